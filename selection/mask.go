// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package selection

import (
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// FromMasks builds a selection from consecutive boolean masks. True selects a
// row, false and null skip it.
func FromMasks(masks ...*array.Boolean) RowSelection {
	var res RowSelection
	for _, m := range masks {
		for i := 0; i < m.Len(); i++ {
			if m.IsValid(i) && m.Value(i) {
				res.push(Select(1))
			} else {
				res.push(Skip(1))
			}
		}
	}
	return res
}

// RepairNulls returns a mask without nulls where every null entry of mask is
// replaced by false. The result must be released by the caller.
func RepairNulls(mem memory.Allocator, mask *array.Boolean) *array.Boolean {
	if mask.NullN() == 0 {
		mask.Retain()
		return mask
	}

	b := array.NewBooleanBuilder(mem)
	defer b.Release()

	b.Reserve(mask.Len())
	for i := 0; i < mask.Len(); i++ {
		b.UnsafeAppend(mask.IsValid(i) && mask.Value(i))
	}
	return b.NewBooleanArray()
}
