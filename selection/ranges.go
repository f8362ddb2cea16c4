// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package selection

// Range is a half open interval of rows [From, From+Count).
type Range struct {
	From  int64
	Count int64
}

func (r Range) End() int64 { return r.From + r.Count }

// Overlaps reports whether both ranges share at least one row.
func (r Range) Overlaps(o Range) bool {
	return r.From < o.End() && o.From < r.End()
}

// Ranges returns the selected rows as sorted, non overlapping ranges.
func (rs RowSelection) Ranges() []Range {
	res := make([]Range, 0, len(rs.selectors)/2+1)

	var cur int64
	for _, s := range rs.selectors {
		if !s.Skip {
			res = append(res, Range{From: cur, Count: s.Count})
		}
		cur += s.Count
	}
	return res
}

// FromRanges builds a selection over total rows that selects exactly the rows
// in rr. The ranges must be sorted and must not overlap.
func FromRanges(rr []Range, total int64) RowSelection {
	res := RowSelection{selectors: make([]RowSelector, 0, 2*len(rr)+1)}

	var cur int64
	for _, r := range rr {
		res.push(Skip(r.From - cur))
		res.push(Select(r.Count))
		cur = r.End()
	}
	res.push(Skip(total - cur))
	return res
}

// intersectRanges assumes that lhs and rhs are sorted and non overlapping. It
// cursors through both with two pointers and returns a sorted result.
func intersectRanges(lhs, rhs []Range) []Range {
	res := make([]Range, 0, min(len(lhs), len(rhs)))
	for l, r := 0, 0; l < len(lhs) && r < len(rhs); {
		al, bl := lhs[l].From, lhs[l].End()
		ar, br := rhs[r].From, rhs[r].End()

		if al < br && ar < bl {
			os, oe := max(al, ar), min(bl, br)
			res = append(res, Range{From: os, Count: oe - os})
		}

		// advance the cursor of the range that ends first
		if bl <= br {
			l++
		} else {
			r++
		}
	}
	return res
}
