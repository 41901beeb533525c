package main

import (
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/biocore/svcall/pipeline"
)

func newReduceCmd() *cobra.Command {
	var shardDir, outPath string
	cmd := &cobra.Command{
		Use:   "reduce",
		Short: "Concatenate a directory of VCF shards left behind by a prior call run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReduce(shardDir, outPath)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&shardDir, "shardDir", "", "directory of VCF shards to reduce")
	flags.StringVar(&outPath, "out", "", "reduced VCF output path")
	bindViper(flags, "shardDir", "out")

	return cmd
}

func runReduce(shardDir, outPath string) error {
	ctx := backgroundContext()

	entries, err := ioutil.ReadDir(shardDir)
	if err != nil {
		return err
	}
	var shardPaths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "shard-") {
			continue
		}
		shardPaths = append(shardPaths, filepath.Join(shardDir, e.Name()))
	}
	sort.Strings(shardPaths)

	return pipeline.Reduce(ctx, shardPaths, outPath)
}
