// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package selection

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// FromBitmap selects the row ids contained in bm. Row ids at or beyond total
// are ignored.
func FromBitmap(bm *roaring.Bitmap, total int64) RowSelection {
	return FromBitmapRange(bm, 0, total)
}

// FromBitmapRange selects the row ids of bm in [from, from+count), relative
// to from. It is used to cut file wide row ids into row group selections.
func FromBitmapRange(bm *roaring.Bitmap, from, count int64) RowSelection {
	rr := make([]Range, 0)
	if from > math.MaxUint32 {
		return FromRanges(rr, count)
	}

	it := bm.Iterator()
	it.AdvanceIfNeeded(uint32(from))
	for it.HasNext() {
		row := int64(it.Next()) - from
		if row >= count {
			break
		}
		if n := len(rr); n > 0 && rr[n-1].End() == row {
			rr[n-1].Count++
			continue
		}
		rr = append(rr, Range{From: row, Count: 1})
	}
	return FromRanges(rr, count)
}

// Concat appends selections that describe consecutive row groups.
func Concat(sels ...RowSelection) RowSelection {
	var res RowSelection
	for _, s := range sels {
		for _, r := range s.selectors {
			res.push(r)
		}
	}
	return res
}

// Bitmap returns the selected row ids.
func (rs RowSelection) Bitmap() *roaring.Bitmap {
	bm := roaring.New()
	for _, r := range rs.Ranges() {
		bm.AddRange(uint64(r.From), uint64(r.End()))
	}
	return bm
}
