// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// Projection is a sorted set of leaf column indexes.
type Projection struct {
	leaves []int
}

func ProjectionFromLeaves(leaves ...int) Projection {
	res := slices.Clone(leaves)
	slices.Sort(res)
	return Projection{leaves: slices.Compact(res)}
}

// ProjectionAll projects every leaf column of s.
func ProjectionAll(s *parquet.Schema) Projection {
	leaves := make([]int, len(s.Columns()))
	for i := range leaves {
		leaves[i] = i
	}
	return Projection{leaves: leaves}
}

// ProjectionFromNames resolves dot separated column paths to leaf columns.
func ProjectionFromNames(s *parquet.Schema, names ...string) (Projection, error) {
	leaves := make([]int, 0, len(names))
	for _, name := range names {
		leaf, ok := s.Lookup(strings.Split(name, ".")...)
		if !ok {
			return Projection{}, fmt.Errorf("column %q not found in schema", name)
		}
		leaves = append(leaves, leaf.ColumnIndex)
	}
	return ProjectionFromLeaves(leaves...), nil
}

func (p Projection) Leaves() []int {
	return slices.Clone(p.leaves)
}

func (p Projection) Len() int {
	return len(p.leaves)
}

func (p Projection) Contains(leaf int) bool {
	_, ok := slices.BinarySearch(p.leaves, leaf)
	return ok
}

func (p Projection) Union(o Projection) Projection {
	return ProjectionFromLeaves(append(slices.Clone(p.leaves), o.leaves...)...)
}

// Validate checks that every projected leaf exists in s.
func (p Projection) Validate(s *parquet.Schema) error {
	n := len(s.Columns())
	for _, l := range p.leaves {
		if l < 0 || l >= n {
			return fmt.Errorf("leaf column %d out of range [0,%d)", l, n)
		}
	}
	return nil
}

// ColumnName returns the dot separated path of a leaf column.
func ColumnName(s *parquet.Schema, leaf int) string {
	return strings.Join(s.Columns()[leaf], ".")
}
