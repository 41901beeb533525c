package pipeline

import "github.com/biocore/svcall/interval"

// Block is one unit of independent work: a contiguous reference span that a
// single worker calls variants over in isolation.
type Block struct {
	Region interval.Region
}

// ContigLength names a contig and its total length, as recorded in the VCF
// header's ##contig lines.
type ContigLength struct {
	Name   string
	Length int64
}

// SplitBlocks breaks regions into blocks no larger than maxBlockSize. When
// regions is empty, the whole of every contig in contigs is split instead.
func SplitBlocks(regions []interval.Region, contigs []ContigLength, maxBlockSize int64) []Block {
	if maxBlockSize <= 0 {
		maxBlockSize = 1 << 62
	}
	if len(regions) == 0 {
		regions = make([]interval.Region, len(contigs))
		for i, c := range contigs {
			regions[i] = interval.NewRegion(c.Name, 0, c.Length)
		}
	}

	var blocks []Block
	for _, region := range regions {
		start := region.Start
		for start < region.End {
			end := start + maxBlockSize
			if end > region.End {
				end = region.End
			}
			blocks = append(blocks, Block{Region: interval.NewRegion(region.Contig, start, end)})
			start = end
		}
	}
	return blocks
}
