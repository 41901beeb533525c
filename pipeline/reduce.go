package pipeline

import (
	"bufio"
	"context"
	"sort"
	"strings"

	"github.com/grailbio/base/file"
	baselog "github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// Reduce concatenates VCF shards produced by Call into a single VCF written
// to outPath: the first shard's full header is kept, every other shard's
// header lines are skipped, and every shard's data rows follow in
// filename order -- the property shardFileName's fixed-width numbering
// guarantees matches block order.
func Reduce(ctx context.Context, shardPaths []string, outPath string) error {
	sorted := append([]string(nil), shardPaths...)
	sort.Strings(sorted)

	dst, err := file.Create(ctx, outPath)
	if err != nil {
		return errors.Wrapf(err, "pipeline.Reduce: creating %s", outPath)
	}
	defer dst.Close(ctx)
	out := dst.Writer(ctx)

	baselog.Printf("pipeline.Reduce: concatenating %d shards into %s", len(sorted), outPath)

	headerWritten := false
	for _, path := range sorted {
		if err := appendShard(ctx, out, path, &headerWritten); err != nil {
			return errors.Wrapf(err, "pipeline.Reduce: shard %s", path)
		}
	}
	return nil
}

func appendShard(ctx context.Context, out interface {
	Write([]byte) (int, error)
}, path string, headerWritten *bool) error {
	src, err := file.Open(ctx, path)
	if err != nil {
		return err
	}
	defer src.Close(ctx)

	scanner := bufio.NewScanner(src.Reader(ctx))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<24)
	skipHeader := *headerWritten
	for scanner.Scan() {
		line := scanner.Text()
		isHeader := strings.HasPrefix(line, "#")
		if isHeader && skipHeader {
			continue
		}
		if isHeader {
			*headerWritten = true
		}
		if _, err := out.Write([]byte(line + "\n")); err != nil {
			return err
		}
	}
	return scanner.Err()
}
