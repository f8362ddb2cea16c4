// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package filter

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/parquet-go/parquet-go"
	"github.com/prometheus/prometheus/model/labels"
	"github.com/stretchr/testify/require"

	"github.com/thanos-io/parquet-scan/internal/testutil"
)

func stringRecord(t *testing.T, mem memory.Allocator, vals ...*string) arrow.Record {
	t.Helper()

	b := array.NewStringBuilder(mem)
	defer b.Release()
	for _, v := range vals {
		if v == nil {
			b.AppendNull()
			continue
		}
		b.Append(*v)
	}
	arr := b.NewArray()
	defer arr.Release()

	sch := arrow.NewSchema([]arrow.Field{{Name: "label", Type: arrow.BinaryTypes.String, Nullable: true}}, nil)
	return array.NewRecord(sch, []arrow.Array{arr}, int64(len(vals)))
}

func ptr(s string) *string { return &s }

func maskValues(mask *array.Boolean) []any {
	res := make([]any, mask.Len())
	for i := range res {
		if mask.IsNull(i) {
			res[i] = nil
			continue
		}
		res[i] = mask.Value(i)
	}
	return res
}

func TestMatcher(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	s := parquet.SchemaOf(testutil.Row{})

	rec := stringRecord(t, mem, ptr("a"), nil, ptr("b"), ptr("ab"))
	defer rec.Release()

	for _, tc := range []struct {
		matcher *labels.Matcher
		expect  []any
	}{
		{
			matcher: labels.MustNewMatcher(labels.MatchEqual, "label", "a"),
			expect:  []any{true, nil, false, false},
		},
		{
			matcher: labels.MustNewMatcher(labels.MatchNotEqual, "label", "a"),
			expect:  []any{false, nil, true, true},
		},
		{
			matcher: labels.MustNewMatcher(labels.MatchRegexp, "label", "a.*"),
			expect:  []any{true, nil, false, true},
		},
		{
			matcher: labels.MustNewMatcher(labels.MatchNotRegexp, "label", "a.*"),
			expect:  []any{false, nil, true, false},
		},
	} {
		t.Run(tc.matcher.String(), func(t *testing.T) {
			m, err := NewMatcher(s, tc.matcher, Allocator(mem))
			require.NoError(t, err)

			leaf, ok := s.Lookup("label")
			require.True(t, ok)
			require.Equal(t, []int{leaf.ColumnIndex}, m.Projection().Leaves())

			mask, err := m.Evaluate(rec)
			require.NoError(t, err)
			defer mask.Release()

			require.Equal(t, tc.expect, maskValues(mask))
		})
	}
}

func TestMatcherRejectsColumns(t *testing.T) {
	s := parquet.SchemaOf(testutil.Row{})

	_, err := NewMatcher(s, labels.MustNewMatcher(labels.MatchEqual, "missing", "x"))
	require.ErrorContains(t, err, "not found")

	_, err = NewMatcher(s, labels.MustNewMatcher(labels.MatchEqual, "score", "1"))
	require.ErrorContains(t, err, "expected a string or binary column")

	_, err = FromMatchers(s,
		labels.MustNewMatcher(labels.MatchEqual, "name", "x"),
		labels.MustNewMatcher(labels.MatchEqual, "id", "1"),
	)
	require.Error(t, err)

	ps, err := FromMatchers(s,
		labels.MustNewMatcher(labels.MatchEqual, "name", "x"),
		labels.MustNewMatcher(labels.MatchEqual, "label", "y"),
	)
	require.NoError(t, err)
	require.Len(t, ps, 2)
}

func TestNotNull(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	n, err := NewNotNull(parquet.SchemaOf(testutil.Row{}), "label", Allocator(mem))
	require.NoError(t, err)

	rec := stringRecord(t, mem, nil, ptr("a"), nil)
	defer rec.Release()

	mask, err := n.Evaluate(rec)
	require.NoError(t, err)
	defer mask.Release()

	require.Equal(t, []any{false, true, false}, maskValues(mask))
}
