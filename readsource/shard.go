package readsource

import (
	"github.com/grailbio/hts/sam"

	gbam "github.com/biocore/svcall/encoding/bam"
	"github.com/biocore/svcall/interval"
)

// bamShard builds a single-contig gbam.Shard covering iv on ref.
func bamShard(ref *sam.Reference, iv interval.Interval) gbam.Shard {
	return gbam.Shard{
		StartRef: ref,
		EndRef:   ref,
		Start:    int(iv.Start),
		End:      int(iv.End),
	}
}
