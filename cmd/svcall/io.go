package main

import (
	"context"
	"io"
	"io/ioutil"
	"os"

	"github.com/grailbio/base/vcontext"

	"github.com/biocore/svcall/interval"
	"github.com/biocore/svcall/readsource"
)

func backgroundContext() context.Context { return vcontext.Background() }

func openFile(path string) (io.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

// readFileIfExists returns nil, nil when path does not exist, so optional
// sidecar files (like a .fai index) are silently skipped rather than
// treated as an error.
func readFileIfExists(path string) ([]byte, error) {
	b, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return b, err
}

// multiBAM fans Fetch out across every configured BAM source and
// concatenates the results, so svcall can call against more than one input
// file as if they were a single pooled read source.
type multiBAM []readsource.BAM

func (m multiBAM) Fetch(contig string, iv interval.Interval) ([]readsource.Read, error) {
	var all []readsource.Read
	for _, b := range m {
		reads, err := b.Fetch(contig, iv)
		if err != nil {
			return nil, err
		}
		all = append(all, reads...)
	}
	return all, nil
}
