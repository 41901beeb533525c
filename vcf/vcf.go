// Package vcf writes variant calls to the tab-separated VCF text format, the
// same column layout the original caller's vcf writer emits.
package vcf

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// InfoField describes one ##INFO= header line.
type InfoField struct {
	ID, Number, Type, Description string
}

// FormatField describes one ##FORMAT= header line.
type FormatField struct {
	ID, Number, Type, Description string
}

// FilterField describes one ##FILTER= header line, naming a soft filter that
// may appear in a record's FILTER column.
type FilterField struct {
	ID, Description string
}

// Contig describes one ##contig= header line.
type Contig struct {
	ID     string
	Length int64
}

// Header holds everything needed to render a VCF header before any records
// are written.
type Header struct {
	FileDate string
	Source   string
	// Reference is the path or URI of the reference FASTA used for calling.
	Reference string
	// Options is the rendered command-line / config used for this run,
	// recorded verbatim for reproducibility.
	Options string

	Info    []InfoField
	Filters []FilterField
	Format  []FormatField
	Contigs []Contig
	Samples []string
}

// Record is a single VCF data row.
type Record struct {
	Contig  string
	Pos     int64 // 0-based; rendered 1-based.
	ID      string
	Ref     string
	Alt     []string
	Qual    float64
	HasQual bool
	Filters []string // empty means PASS.
	Info    map[string]string
	Format  []string   // ordered FORMAT keys shared by every sample.
	Samples [][]string // per-sample values, same order/length as Format.
}

// Writer renders a VCF header followed by records to an underlying writer,
// using github.com/grailbio/base/tsv for the tab-separated body, matching
// the TSV-writer idiom the original caller's pileup output uses.
type Writer struct {
	w   io.Writer
	tsv *tsv.Writer
}

// NewWriter returns a Writer that writes to w; callers must call WriteHeader
// exactly once before any WriteRecord calls, and Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, tsv: tsv.NewWriter(w)}
}

// WriteHeader renders every ##-prefixed metadata line followed by the
// #CHROM column header.
func (vw *Writer) WriteHeader(h Header) error {
	lines := []string{
		"##fileformat=VCFv4.2",
		"##fileDate=" + h.FileDate,
		"##source=" + h.Source,
		"##reference=" + h.Reference,
		"##options=" + h.Options,
	}
	for _, f := range h.Info {
		lines = append(lines, fmt.Sprintf("##INFO=<ID=%s,Number=%s,Type=%s,Description=%q>", f.ID, f.Number, f.Type, f.Description))
	}
	for _, f := range h.Filters {
		lines = append(lines, fmt.Sprintf("##FILTER=<ID=%s,Description=%q>", f.ID, f.Description))
	}
	for _, f := range h.Format {
		lines = append(lines, fmt.Sprintf("##FORMAT=<ID=%s,Number=%s,Type=%s,Description=%q>", f.ID, f.Number, f.Type, f.Description))
	}
	for _, c := range h.Contigs {
		lines = append(lines, fmt.Sprintf("##contig=<ID=%s,length=%d>", c.ID, c.Length))
	}
	for _, line := range lines {
		if _, err := io.WriteString(vw.w, line+"\n"); err != nil {
			return errors.Wrap(err, "vcf.Writer.WriteHeader")
		}
	}

	columns := []string{"#CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO"}
	if len(h.Format) > 0 || len(h.Samples) > 0 {
		columns = append(columns, "FORMAT")
		columns = append(columns, h.Samples...)
	}
	if _, err := io.WriteString(vw.w, strings.Join(columns, "\t")+"\n"); err != nil {
		return errors.Wrap(err, "vcf.Writer.WriteHeader")
	}
	return nil
}

// WriteRecord renders a single data row.
func (vw *Writer) WriteRecord(r Record) error {
	vw.tsv.WriteString(r.Contig)
	vw.tsv.WriteString(strconv.FormatInt(r.Pos+1, 10))
	vw.tsv.WriteString(dotIfEmpty(r.ID))
	vw.tsv.WriteString(r.Ref)
	vw.tsv.WriteString(dotIfEmptyJoin(r.Alt, ","))

	if r.HasQual {
		vw.tsv.WriteString(strconv.FormatFloat(r.Qual, 'f', 2, 64))
	} else {
		vw.tsv.WriteString(".")
	}

	if len(r.Filters) == 0 {
		vw.tsv.WriteString("PASS")
	} else {
		vw.tsv.WriteString(strings.Join(r.Filters, ";"))
	}

	vw.tsv.WriteString(dotIfEmpty(joinInfo(r.Info)))

	if len(r.Format) > 0 {
		vw.tsv.WriteString(strings.Join(r.Format, ":"))
		for _, sampleValues := range r.Samples {
			if len(sampleValues) != len(r.Format) {
				return errors.Errorf("vcf.Writer.WriteRecord: sample has %d values but FORMAT has %d keys", len(sampleValues), len(r.Format))
			}
			vw.tsv.WriteString(strings.Join(sampleValues, ":"))
		}
	}
	return vw.tsv.EndLine()
}

// Flush flushes any buffered output.
func (vw *Writer) Flush() error {
	return vw.tsv.Flush()
}

func dotIfEmpty(s string) string {
	if s == "" {
		return "."
	}
	return s
}

func dotIfEmptyJoin(vals []string, sep string) string {
	if len(vals) == 0 {
		return "."
	}
	return strings.Join(vals, sep)
}

// joinInfo renders INFO as key=value pairs (or bare keys for empty values),
// semicolon-joined, in sorted key order for determinism.
func joinInfo(info map[string]string) string {
	if len(info) == 0 {
		return ""
	}
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := info[k]
		if v == "" {
			parts = append(parts, k)
		} else {
			parts = append(parts, k+"="+v)
		}
	}
	return strings.Join(parts, ";")
}
