package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/biocore/svcall/encoding/fasta"
	"github.com/biocore/svcall/interval"
	"github.com/biocore/svcall/pipeline"
	"github.com/biocore/svcall/readsource"
	"github.com/biocore/svcall/refsource"
	"github.com/biocore/svcall/varfilter"
)

type callFlags struct {
	bamPaths             []string
	sample               string
	refPath              string
	faiPath              string
	shardDir             string
	regions              []string
	numberOfJobs         int
	maxBlockSize         int64
	memLimit             int64
	ploidy               int
	outputRefCalls       bool
	minBaseQuality       int
	minCandidateFraction float64
	filterIDs            []string
	source               string
	options              string

	alleleBiasP           float64
	strandBiasP           float64
	alleleBiasPlusSBP     float64
	minRMSMappingQuality  float64
	minSNPQualOverDepth   float64
	minIndelQualOverDepth float64
	minBadReadsScore      float64
	minCallQuality        float64
}

func newCallCmd() *cobra.Command {
	f := &callFlags{}
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Call variants from one or more BAMs against a reference (default map-and-reduce mode)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(f)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&f.bamPaths, "bam", nil, "input BAM path; may be repeated")
	flags.StringVar(&f.sample, "sample", "SAMPLE", "sample name recorded in the VCF header and genotype column")
	flags.StringVar(&f.refPath, "reference", "", "reference FASTA path")
	flags.StringVar(&f.faiPath, "index", "", "reference FASTA index (.fai) path; defaults to reference+\".fai\"")
	flags.StringVar(&f.shardDir, "shardDir", "", "directory to write per-job VCF shards and the reduced output to")
	flags.StringSliceVar(&f.regions, "regions", nil, "comma-separated list of contig[:start-end] regions; default is the whole reference")
	flags.IntVar(&f.numberOfJobs, "numberOfJobs", 1, "number of blocks to process concurrently; 0 means runtime.NumCPU()")
	flags.Int64Var(&f.maxBlockSize, "maxBlockSize", 1000, "maximum reference bases per block")
	flags.Int64Var(&f.memLimit, "memLimit", 1<<30, "in-memory read byte budget per block")
	flags.IntVar(&f.ploidy, "ploidy", 2, "number of haplotype copies to genotype")
	flags.BoolVar(&f.outputRefCalls, "outputRefCalls", false, "emit a VCF record for candidates genotyped homozygous reference too")
	flags.IntVar(&f.minBaseQuality, "minBaseQuality", 20, "minimum base quality for a mismatch to count toward a candidate")
	flags.Float64Var(&f.minCandidateFraction, "minCandidateFraction", 0.05, "minimum fraction of overlapping reads that must support a mismatch to become a candidate")
	flags.StringSliceVar(&f.filterIDs, "filters", []string{varfilter.LowQualityID, varfilter.MappingQualityID, varfilter.QualityOverDepthID}, "comma-separated soft filter IDs to apply")
	flags.StringVar(&f.source, "source", "svcall", "##source value recorded in the VCF header")
	flags.StringVar(&f.options, "options", "", "##options value recorded in the VCF header")

	flags.Float64Var(&f.alleleBiasP, "alleleBiasP", varfilter.DefaultThresholds().AlleleBiasP, "allele-bias p-value threshold")
	flags.Float64Var(&f.strandBiasP, "strandBiasP", varfilter.DefaultThresholds().StrandBiasP, "strand-bias p-value threshold")
	flags.Float64Var(&f.alleleBiasPlusSBP, "alleleBiasPlusSBP", varfilter.DefaultThresholds().AlleleBiasPlusSBP, "combined allele+strand-bias p-value threshold")
	flags.Float64Var(&f.minRMSMappingQuality, "minRMSMappingQuality", varfilter.DefaultThresholds().MinRMSMappingQuality, "minimum RMS mapping quality")
	flags.Float64Var(&f.minSNPQualOverDepth, "minSNPQualOverDepth", varfilter.DefaultThresholds().MinSNPQualOverDepth, "minimum QUAL/depth for SNPs")
	flags.Float64Var(&f.minIndelQualOverDepth, "minIndelQualOverDepth", varfilter.DefaultThresholds().MinIndelQualOverDepth, "minimum QUAL/depth for indels")
	flags.Float64Var(&f.minBadReadsScore, "minBadReadsScore", varfilter.DefaultThresholds().MinBadReadsScore, "minimum bad-reads score")
	flags.Float64Var(&f.minCallQuality, "minCallQuality", varfilter.DefaultThresholds().MinCallQuality, "minimum call QUAL")

	bindViper(flags,
		"bam", "sample", "reference", "index", "shardDir", "regions", "numberOfJobs", "maxBlockSize",
		"memLimit", "ploidy", "outputRefCalls", "minBaseQuality", "minCandidateFraction", "filters",
		"source", "options", "alleleBiasP", "strandBiasP", "alleleBiasPlusSBP", "minRMSMappingQuality",
		"minSNPQualOverDepth", "minIndelQualOverDepth", "minBadReadsScore", "minCallQuality",
	)

	return cmd
}

func runCall(f *callFlags) error {
	ctx := backgroundContext()

	ref, err := openReference(f.refPath, f.faiPath)
	if err != nil {
		return err
	}

	contigs := make([]pipeline.ContigLength, len(ref.SeqNames()))
	for i, name := range ref.SeqNames() {
		length, err := ref.Len(name)
		if err != nil {
			return err
		}
		contigs[i] = pipeline.ContigLength{Name: name, Length: int64(length)}
	}

	regions, err := parseRegions(f.regions)
	if err != nil {
		return err
	}

	cfg := pipeline.DefaultConfig()
	cfg.Ploidy = f.ploidy
	cfg.NumberOfJobs = viper.GetInt("numberOfJobs")
	cfg.MaxBlockSize = f.maxBlockSize
	cfg.MemLimit = f.memLimit
	cfg.Regions = regions
	cfg.OutputRefCalls = f.outputRefCalls
	cfg.MinBaseQuality = byte(f.minBaseQuality)
	cfg.MinCandidateFraction = f.minCandidateFraction
	cfg.FilterIDs = f.filterIDs
	cfg.FilterThresholds.AlleleBiasP = f.alleleBiasP
	cfg.FilterThresholds.StrandBiasP = f.strandBiasP
	cfg.FilterThresholds.AlleleBiasPlusSBP = f.alleleBiasPlusSBP
	cfg.FilterThresholds.MinRMSMappingQuality = f.minRMSMappingQuality
	cfg.FilterThresholds.MinSNPQualOverDepth = f.minSNPQualOverDepth
	cfg.FilterThresholds.MinIndelQualOverDepth = f.minIndelQualOverDepth
	cfg.FilterThresholds.MinBadReadsScore = f.minBadReadsScore
	cfg.FilterThresholds.MinCallQuality = f.minCallQuality
	cfg.Source = f.source
	cfg.Reference = f.refPath
	cfg.Options = f.options

	zapLogger, err := newBlockLogger(viper.GetString("logLevel"), viper.GetString("logFilename"))
	if err != nil {
		return err
	}
	defer zapLogger.Sync() // nolint: errcheck

	readSources, closeReads, err := openReads(f.bamPaths, f.sample, f.memLimit)
	if err != nil {
		return err
	}
	defer closeReads()

	opts := pipeline.Opts{
		Sample:     f.sample,
		ShardDir:   f.shardDir,
		RefSource:  refsource.NewFASTA(ref),
		ReadSource: readSources,
		Contigs:    contigs,
		ZapLogger:  zapLogger,
		FileDate:   time.Now().UTC().Format("20060102"),
	}

	shardPaths, err := pipeline.Call(ctx, cfg, opts)
	if err != nil {
		return err
	}

	outPath := f.shardDir + "/out.vcf"
	return pipeline.Reduce(ctx, shardPaths, outPath)
}

func openReference(path, faiPath string) (fasta.Fasta, error) {
	r, closeFn, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var opts []fasta.Opt
	if faiPath == "" {
		faiPath = path + ".fai"
	}
	if index, ferr := readFileIfExists(faiPath); ferr == nil && index != nil {
		opts = append(opts, fasta.OptIndex(index))
	}
	return fasta.New(r, opts...)
}

// openReads merges multiple BAMs into a single readsource.Source, labeling
// each with its configured sample name (svcall runs single-sample today, so
// every BAM shares f.sample). memLimit is split evenly across inputs so the
// combined per-block footprint still respects the configured budget.
func openReads(paths []string, sample string, memLimit int64) (readsource.Source, func(), error) {
	filters := readsource.DefaultFilters()
	if n := len(paths); n > 0 {
		filters.MemLimit = memLimit / int64(n)
	}
	var sources multiBAM
	for _, p := range paths {
		sources = append(sources, readsource.NewBAM(sample, p, filters))
	}
	closeFn := func() {
		for _, s := range sources {
			_ = s.Close()
		}
	}
	return sources, closeFn, nil
}

func parseRegions(specs []string) ([]interval.Region, error) {
	var out []interval.Region
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		entry, err := interval.ParseRegionString(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, interval.NewRegion(entry.ChrName, int64(entry.Start0), int64(entry.End)))
	}
	return out, nil
}
