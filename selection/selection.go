// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

// Package selection implements run-length encoded row selections over the
// rows of a parquet row group.
package selection

import (
	"fmt"
	"slices"
	"strings"
)

// RowSelector is a single run of a RowSelection, either skipping or selecting
// Count consecutive rows.
type RowSelector struct {
	Count int64
	Skip  bool
}

func Select(n int64) RowSelector { return RowSelector{Count: n} }

func Skip(n int64) RowSelector { return RowSelector{Count: n, Skip: true} }

func (s RowSelector) String() string {
	if s.Skip {
		return fmt.Sprintf("skip(%d)", s.Count)
	}
	return fmt.Sprintf("select(%d)", s.Count)
}

// RowSelection is an ordered sequence of runs describing which rows of a row
// group survive. A nil *RowSelection means every row is selected, an empty
// RowSelection selects nothing. Rows past the last run are skipped.
//
// RowSelection values are never mutated in place, with the exception of
// SplitOff, which advances the receiver.
type RowSelection struct {
	selectors []RowSelector
}

// New builds a selection from runs, dropping empty runs and merging
// neighbours of the same kind.
func New(selectors ...RowSelector) RowSelection {
	res := RowSelection{selectors: make([]RowSelector, 0, len(selectors))}
	for _, s := range selectors {
		res.push(s)
	}
	return res
}

// All selects the first n rows.
func All(n int64) RowSelection {
	return New(Select(n))
}

// push must only be called on a selection that owns its backing array.
func (rs *RowSelection) push(s RowSelector) {
	if s.Count <= 0 {
		return
	}
	if n := len(rs.selectors); n > 0 && rs.selectors[n-1].Skip == s.Skip {
		rs.selectors[n-1].Count += s.Count
		return
	}
	rs.selectors = append(rs.selectors, s)
}

func (rs RowSelection) Selectors() []RowSelector {
	return slices.Clone(rs.selectors)
}

// RowCount returns the number of selected rows.
func (rs RowSelection) RowCount() int64 {
	var n int64
	for _, s := range rs.selectors {
		if !s.Skip {
			n += s.Count
		}
	}
	return n
}

// TotalRows returns the number of rows described by the selection, selected or not.
func (rs RowSelection) TotalRows() int64 {
	var n int64
	for _, s := range rs.selectors {
		n += s.Count
	}
	return n
}

func (rs RowSelection) Equal(o RowSelection) bool {
	return slices.Equal(rs.selectors, o.selectors)
}

func (rs RowSelection) String() string {
	parts := make([]string, 0, len(rs.selectors))
	for _, s := range rs.selectors {
		parts = append(parts, s.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// SelectsAny reports whether the selection selects at least one row. A nil
// selection selects everything.
func SelectsAny(rs *RowSelection) bool {
	if rs == nil {
		return true
	}
	for _, s := range rs.selectors {
		if !s.Skip && s.Count > 0 {
			return true
		}
	}
	return false
}

// Trim drops trailing skip runs.
func (rs RowSelection) Trim() RowSelection {
	n := len(rs.selectors)
	for n > 0 && rs.selectors[n-1].Skip {
		n--
	}
	return RowSelection{selectors: slices.Clone(rs.selectors[:n])}
}

// Offset skips the first offset selected rows. If the selection selects
// offset rows or fewer the result is empty.
func (rs RowSelection) Offset(offset int64) RowSelection {
	if offset <= 0 {
		return rs
	}

	var selected, skipped int64
	for i, s := range rs.selectors {
		if s.Skip {
			skipped += s.Count
			continue
		}
		selected += s.Count
		if selected <= offset {
			continue
		}
		res := RowSelection{selectors: make([]RowSelector, 0, len(rs.selectors)-i+1)}
		res.push(Skip(skipped + offset))
		res.push(Select(selected - offset))
		for _, r := range rs.selectors[i+1:] {
			res.push(r)
		}
		return res
	}
	return RowSelection{}
}

// Limit keeps at most limit selected rows and drops every run after the one
// that exhausts the limit.
func (rs RowSelection) Limit(limit int64) RowSelection {
	if limit <= 0 {
		return RowSelection{}
	}

	res := RowSelection{selectors: make([]RowSelector, 0, len(rs.selectors))}
	for _, s := range rs.selectors {
		if s.Skip {
			res.push(s)
			continue
		}
		if s.Count >= limit {
			res.push(Select(limit))
			break
		}
		limit -= s.Count
		res.push(s)
	}
	return res
}

// ApplyRange folds offset and limit into a selection over a row group of
// rowCount rows. Offset is applied before limit. A nil selection stands for
// all rowCount rows; the result is nil only if sel is nil and neither offset
// nor limit is given.
func ApplyRange(sel *RowSelection, rowCount int64, offset, limit *int64) *RowSelection {
	if offset != nil {
		var res RowSelection
		switch {
		case rowCount < *offset:
		case sel != nil:
			res = sel.Offset(*offset)
		default:
			res = New(Skip(*offset), Select(rowCount-*offset))
		}
		sel = &res
	}
	if limit != nil {
		var res RowSelection
		if sel != nil {
			res = sel.Limit(*limit)
		} else {
			res = All(min(*limit, rowCount))
		}
		sel = &res
	}
	return sel
}

// SplitOff removes the runs covering the first n rows from the receiver and
// returns them. A run straddling row n is split in two.
func (rs *RowSelection) SplitOff(n int64) RowSelection {
	if n <= 0 {
		return RowSelection{}
	}

	var total int64
	for i, s := range rs.selectors {
		switch {
		case total+s.Count == n:
			head := New(rs.selectors[:i+1]...)
			rs.selectors = slices.Clone(rs.selectors[i+1:])
			return head
		case total+s.Count > n:
			head := New(rs.selectors[:i]...)
			head.push(RowSelector{Count: n - total, Skip: s.Skip})

			rest := make([]RowSelector, 0, len(rs.selectors)-i)
			rest = append(rest, RowSelector{Count: total + s.Count - n, Skip: s.Skip})
			rest = append(rest, rs.selectors[i+1:]...)
			rs.selectors = rest
			return head
		}
		total += s.Count
	}

	head := *rs
	rs.selectors = nil
	return head
}

// AndThen narrows the selection by other, whose runs describe only the rows
// selected by the receiver. Rows of the receiver beyond the end of other are
// skipped.
func (rs RowSelection) AndThen(other RowSelection) RowSelection {
	res := RowSelection{selectors: make([]RowSelector, 0, len(rs.selectors)+len(other.selectors))}

	rest := other.selectors
	var carry RowSelector
	next := func(want int64) RowSelector {
		if carry.Count == 0 {
			if len(rest) == 0 {
				return Skip(want)
			}
			carry, rest = rest[0], rest[1:]
		}
		if carry.Count <= want {
			s := carry
			carry = RowSelector{}
			return s
		}
		s := RowSelector{Count: want, Skip: carry.Skip}
		carry.Count -= want
		return s
	}

	for _, s := range rs.selectors {
		if s.Skip {
			res.push(s)
			continue
		}
		for remaining := s.Count; remaining > 0; {
			r := next(remaining)
			res.push(r)
			remaining -= r.Count
		}
	}
	return res
}

// And returns the rows selected by both a and b. The shorter selection is
// treated as skipping the rows it does not describe.
func And(a, b RowSelection) RowSelection {
	return FromRanges(intersectRanges(a.Ranges(), b.Ranges()), max(a.TotalRows(), b.TotalRows()))
}
