package pipeline

import (
	"context"
	"math"
	"runtime"
	"strconv"

	"github.com/grailbio/base/file"
	baselog "github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/biocore/svcall/align"
	"github.com/biocore/svcall/readsource"
	"github.com/biocore/svcall/refsource"
	"github.com/biocore/svcall/refwindow"
	"github.com/biocore/svcall/varfilter"
	"github.com/biocore/svcall/vcf"
)

// Opts configures a Call run beyond the per-variant Config: the inputs and
// output location, plus an optional structured side-channel logger for
// per-block timing/throughput events (github.com/grailbio/base/log remains
// the primary logger for everything else, matching the teacher's idiom).
type Opts struct {
	Sample     string
	ShardDir   string
	RefSource  refsource.Source
	ReadSource readsource.Source
	Contigs    []ContigLength

	// ZapLogger, if non-nil, receives one structured event per completed
	// block (its reference span and the number of calls it emitted).
	ZapLogger *zap.Logger

	// FileDate is recorded verbatim in the VCF header's ##fileDate line.
	FileDate string
}

// Call runs the default "map and reduce" mode: it splits the genome (or
// cfg.Regions) into blocks, calls each block independently -- possibly
// across a worker pool -- and writes each worker's result to a private VCF
// shard under opts.ShardDir. Call Reduce afterward to concatenate the
// shards into a single VCF.
//
// Workers communicate only through the filesystem: each worker opens its
// own shard file and there is no shared in-memory state between them,
// matching the isolation the core's concurrency model requires.
func Call(ctx context.Context, cfg Config, opts Opts) ([]string, error) {
	blocks := SplitBlocks(cfg.Regions, opts.Contigs, cfg.MaxBlockSize)
	if len(blocks) == 0 {
		return nil, nil
	}

	numJobs := cfg.NumberOfJobs
	if numJobs <= 0 {
		numJobs = runtime.NumCPU()
	}
	parallelism := numJobs
	if parallelism > len(blocks) {
		parallelism = len(blocks)
	}

	bank, err := varfilter.NewBank(cfg.FilterIDs, cfg.FilterThresholds)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline.Call: building filter bank")
	}

	shardPaths := make([]string, parallelism)
	baselog.Printf("pipeline.Call: starting main loop (%d jobs, %d blocks)", parallelism, len(blocks))

	err = traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * len(blocks)) / parallelism
		endIdx := ((jobIdx + 1) * len(blocks)) / parallelism
		jobBlocks := blocks[startIdx:endIdx]

		shardPath := shardFileName(opts.ShardDir, jobIdx, parallelism)
		shardPaths[jobIdx] = shardPath

		dst, err := file.Create(ctx, shardPath)
		if err != nil {
			return errors.Wrapf(err, "pipeline.Call: creating shard %s", shardPath)
		}
		defer dst.Close(ctx)

		w := vcf.NewWriter(dst.Writer(ctx))
		if err := writeHeader(w, cfg, opts, bank); err != nil {
			return err
		}

		for _, block := range jobBlocks {
			nCalls, err := callBlock(ctx, cfg, opts, bank, block, w)
			if err != nil {
				return errors.Wrapf(err, "pipeline.Call: block %v", block.Region)
			}
			if opts.ZapLogger != nil {
				opts.ZapLogger.Info("block complete",
					zap.String("contig", block.Region.Contig),
					zap.Int64("start", block.Region.Start),
					zap.Int64("end", block.Region.End),
					zap.Int("calls", nCalls),
				)
			}
		}
		return w.Flush()
	})
	if err != nil {
		return nil, err
	}

	baselog.Printf("pipeline.Call: main loop complete")
	return shardPaths, nil
}

func writeHeader(w *vcf.Writer, cfg Config, opts Opts, bank varfilter.Bank) error {
	contigs := make([]vcf.Contig, len(opts.Contigs))
	for i, c := range opts.Contigs {
		contigs[i] = vcf.Contig{ID: c.Name, Length: c.Length}
	}

	filterDescs := bank.FilterDescs()
	filters := make([]vcf.FilterField, len(filterDescs))
	for i, d := range filterDescs {
		filters[i] = vcf.FilterField{ID: d.ID, Description: d.Description}
	}

	return w.WriteHeader(vcf.Header{
		FileDate:  opts.FileDate,
		Source:    cfg.Source,
		Reference: cfg.Reference,
		Options:   cfg.Options,
		Info: []vcf.InfoField{
			{ID: "DP", Number: "1", Type: "Integer", Description: "Total read depth"},
			{ID: "MQ", Number: "1", Type: "Float", Description: "RMS mapping quality"},
		},
		Filters: filters,
		Format: []vcf.FormatField{
			{ID: "GT", Number: "1", Type: "String", Description: "Genotype"},
			{ID: "DP", Number: "1", Type: "Integer", Description: "Read depth at this site"},
			{ID: "GQ", Number: "1", Type: "Integer", Description: "Genotype quality"},
		},
		Contigs: contigs,
		Samples: []string{opts.Sample},
	})
}

func callBlock(ctx context.Context, cfg Config, opts Opts, bank varfilter.Bank, block Block, w *vcf.Writer) (int, error) {
	padding := int64(align.MaxIndel + 1)
	paddedIv := block.Region.Interval.Pad(padding, 0)

	window, err := opts.RefSource.Fetch(block.Region.Contig, paddedIv)
	if err != nil {
		return 0, errors.Wrap(err, "fetching reference window")
	}
	reads, err := opts.ReadSource.Fetch(block.Region.Contig, paddedIv)
	if err != nil {
		return 0, errors.Wrap(err, "fetching reads")
	}

	candidates := GenerateCandidates(window, reads, cfg.MinBaseQuality, cfg.MinCandidateFraction)

	nCalls := 0
	for _, v := range candidates {
		if v.Start < block.Region.Start || v.Start >= block.Region.End {
			continue
		}
		call, err := GenotypeVariant(window, v, reads, cfg.Ploidy)
		if err != nil {
			return nCalls, errors.Wrapf(err, "genotyping %v", v)
		}
		if normalized, nerr := normalizeVariant(window, call.variant); nerr == nil {
			call.variant = normalized
		} else {
			baselog.Debug.Printf("pipeline.callBlock: normalizing %v: %v", call.variant, nerr)
		}
		if (call.genotype == "0/0" || call.genotype == "0") && !cfg.OutputRefCalls {
			continue
		}

		filterIDs := bank.Apply(recordStatsFor(call))

		record := buildRecord(window, call, filterIDs)
		if err := w.WriteRecord(record); err != nil {
			return nCalls, errors.Wrap(err, "writing record")
		}
		nCalls++
	}
	return nCalls, nil
}

// recordStatsFor derives the annotations varfilter.Bank's threshold filters
// consume from a single genotyped call.
func recordStatsFor(call candidateCall) varfilter.RecordStats {
	qd := math.NaN()
	if call.depth > 0 {
		qd = call.qual / float64(call.depth)
	}
	return varfilter.RecordStats{
		ABPV:    varfilter.AlleleBiasPValue(call.altDepth, call.depth, 0.5),
		SBPV:    varfilter.StrandBiasPValue(call.fwdRef, call.revRef, call.fwdAlt, call.revAlt),
		MQ:      call.rmsMapQ,
		QD:      qd,
		BR:      math.NaN(), // no bad-reads score is computed per call
		PP:      call.qual,
		IsIndel: !call.variant.IsSNP(),
	}
}

func buildRecord(window refwindow.Window, call candidateCall, filterIDs []string) vcf.Record {
	v := call.variant
	ref, err := window.Sub(v.Region())
	refBases := ""
	if err == nil {
		refBases = ref.Seq.String()
	}
	return vcf.Record{
		Contig:  v.Contig,
		Pos:     v.Start,
		Ref:     refBases,
		Alt:     []string{v.Alt.String()},
		HasQual: true,
		Qual:    call.qual,
		Filters: filterIDs,
		Info: map[string]string{
			"DP": strconv.Itoa(call.depth),
			"MQ": strconv.FormatFloat(call.rmsMapQ, 'f', 1, 64),
		},
		Format:  []string{"GT", "DP", "GQ"},
		Samples: [][]string{{call.genotype, strconv.Itoa(call.depth), strconv.Itoa(int(call.qual))}},
	}
}
