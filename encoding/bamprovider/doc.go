// Package bamprovider provides utilities for scanning a BAM/CRAM file in
// parallel, sharded by genomic region.
//
// Provider is an interface for reading a BAM/CRAM file in parallel; callers
// obtain Shards with GenerateShards and read each one with NewIterator.
package bamprovider
