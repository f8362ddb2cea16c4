// Copyright (c) 2025 Cloudflare, Inc.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package rowgroup

import (
	"math"
	"slices"
	"testing"
)

func TestPartitioner(t *testing.T) {
	mk := func(start, end uint64) byteSpan {
		return byteSpan{start: start, end: end}
	}
	for _, tc := range []struct {
		maxRangeSize uint64
		maxGapSize   uint64
		spans        []byteSpan
		expect       []byteSpan
	}{
		{
			maxRangeSize: 15,
			maxGapSize:   2,
			spans: []byteSpan{
				{start: 0, end: 3},
				{start: 4, end: 6},
				{start: 6, end: 15},
				{start: 10, end: 40},
				{start: 43, end: 44},
				{start: 46, end: 58},
				{start: 58, end: 59},
			},
			expect: []byteSpan{
				mk(0, 15),
				mk(10, 40),
				mk(43, 58),
				mk(58, 59),
			},
		},
		{
			maxRangeSize: 100,
			maxGapSize:   5,
			spans: []byteSpan{
				{start: 10, end: 20},
				{start: 26, end: 40},
				{start: 42, end: 55},
				{start: 60, end: 75},
				{start: 81, end: 90},
			},
			expect: []byteSpan{
				mk(10, 20),
				mk(26, 75),
				mk(81, 90),
			},
		},
		{
			// dictionary page directly followed by the first selected data page
			maxRangeSize: math.MaxUint64,
			maxGapSize:   0,
			spans: []byteSpan{
				{start: 4, end: 120},
				{start: 120, end: 300},
				{start: 900, end: 1000},
			},
			expect: []byteSpan{
				mk(4, 300),
				mk(900, 1000),
			},
		},
		{
			maxRangeSize: math.MaxUint64,
			maxGapSize:   math.MaxUint64,
			spans: []byteSpan{
				{start: 10, end: 20},
				{start: 100, end: 200},
				{start: 1000, end: 2000},
			},
			expect: []byteSpan{
				mk(10, 2000),
			},
		},
	} {
		t.Run("", func(tt *testing.T) {
			gen := func(i int) (uint64, uint64) {
				s := tc.spans[i]
				return s.start, s.end
			}
			part := newGapBasedPartitioner(tc.maxRangeSize, tc.maxGapSize)

			if got := part.partition(len(tc.spans), gen); !slices.Equal(got, tc.expect) {
				tt.Fatalf("expected %+v, got %+v", tc.expect, got)
			}
		})
	}
}
