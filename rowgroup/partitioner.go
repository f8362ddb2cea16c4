// Copyright (c) 2025 Cloudflare, Inc.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package rowgroup

import "math"

// byteSpan is a half open interval [start, end) of file offsets.
type byteSpan struct {
	start uint64
	end   uint64
}

func (s byteSpan) size() uint64 { return s.end - s.start }

type partitioner interface {
	// partition merges length spans, sorted by start and possibly overlapping,
	// into at most length spans that cover all of them.
	partition(length int, rng func(int) (uint64, uint64)) []byteSpan
}

type gapBasedPartitioner struct {
	maxGapSize   uint64
	maxRangeSize uint64
}

func newGapBasedPartitioner(maxRangeSize, maxGapSize uint64) partitioner {
	return gapBasedPartitioner{
		maxGapSize:   maxGapSize,
		maxRangeSize: maxRangeSize,
	}
}

// partition combines entries that are separated by reasonably small gaps, so
// that many small reads against object storage turn into fewer bigger ones.
func (g gapBasedPartitioner) partition(length int, rng func(int) (uint64, uint64)) (parts []byteSpan) {
	for k := 0; k < length; {
		var p byteSpan
		p.start, p.end = rng(k)
		k++

		// Keep growing the range until the end or we encounter a large gap.
		for ; k < length; k++ {
			s, e := rng(k)

			if e-p.start > g.maxRangeSize {
				break
			}

			if g.maxGapSize != math.MaxUint64 && p.end+g.maxGapSize < s {
				break
			}

			if p.end < e {
				p.end = e
			}
		}
		parts = append(parts, p)
	}
	return parts
}
