package pipeline

import "fmt"

// shardFileName returns the private VCF shard path a single job writes,
// named so that lexicographic order matches block order -- the property
// Reduce relies on to concatenate shards without re-sorting records.
func shardFileName(dir string, jobIdx, numJobs int) string {
	width := len(fmt.Sprintf("%d", numJobs))
	return fmt.Sprintf("%s/shard-%0*d.vcf", dir, width, jobIdx)
}
