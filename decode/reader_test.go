// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package decode_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"
	"github.com/thanos-io/objstore"

	"github.com/thanos-io/parquet-scan/decode"
	"github.com/thanos-io/parquet-scan/internal/testutil"
	"github.com/thanos-io/parquet-scan/rowgroup"
	"github.com/thanos-io/parquet-scan/schema"
	"github.com/thanos-io/parquet-scan/selection"
)

// decodeSelection drives rr through sel the way a batch reader would, one
// record per select run.
func decodeSelection(t *testing.T, rr *decode.Reader, sel selection.RowSelection) []arrow.Record {
	t.Helper()

	res := make([]arrow.Record, 0)
	for _, s := range sel.Selectors() {
		if s.Skip {
			n, err := rr.SkipRecords(s.Count)
			require.NoError(t, err)
			require.Equal(t, s.Count, n)
			continue
		}
		n, err := rr.ReadRecords(s.Count)
		require.NoError(t, err)
		require.Equal(t, s.Count, n)

		rec, err := rr.ConsumeBatch()
		require.NoError(t, err)
		res = append(res, rec)
	}
	return res
}

func column(rec arrow.Record, name string) arrow.Array {
	return rec.Column(rec.Schema().FieldIndices(name)[0])
}

func TestReaderDecodesSelectedRows(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	bkt := objstore.NewInMemBucket()
	testutil.WriteParquet(t, bkt, "data.parquet", testutil.Rows(4000), 4000, parquet.PageBufferSize(256))
	f := testutil.Open(t, bkt, "data.parquet")

	proj := schema.ProjectionAll(f.Schema())
	sel := selection.New(selection.Skip(5), selection.Select(3), selection.Skip(2992), selection.Select(4))

	rg, err := rowgroup.New(f, 0)
	require.NoError(t, err)
	require.NoError(t, rg.Fetch(ctx, proj, &sel))

	rr, err := decode.Build(rg, proj, decode.Allocator(mem), decode.ValueBatch(2))
	require.NoError(t, err)
	defer func() { require.NoError(t, rr.Close()) }()

	recs := decodeSelection(t, rr, sel)
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()
	require.Len(t, recs, 2)

	expectRows := []int64{5, 6, 7, 3000, 3001, 3002, 3003}
	got := 0
	for _, rec := range recs {
		ids := column(rec, "id").(*array.Int64)
		names := column(rec, "name").(*array.String)
		labels := column(rec, "label").(*array.String)
		scores := column(rec, "score").(*array.Float64)
		flags := column(rec, "flag").(*array.Boolean)

		for i := 0; i < int(rec.NumRows()); i++ {
			row := expectRows[got]
			got++

			require.Equal(t, row, ids.Value(i))
			require.Equal(t, fmt.Sprintf("name-%d", row%7), names.Value(i))
			require.Equal(t, float64(row)/2, scores.Value(i))
			require.Equal(t, row%2 == 0, flags.Value(i))
			if row%3 == 0 {
				require.True(t, labels.IsNull(i))
			} else {
				require.Equal(t, fmt.Sprintf("label-%d", row%5), labels.Value(i))
			}
		}
	}
	require.Equal(t, len(expectRows), got)

	// the row group is exhausted after the last selected row
	n, err := rr.SkipRecords(1000)
	require.NoError(t, err)
	require.Equal(t, int64(996), n)
	n, err = rr.ReadRecords(10)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestReaderIsIdempotent(t *testing.T) {
	ctx := context.Background()
	bkt := objstore.NewInMemBucket()
	testutil.WriteParquet(t, bkt, "data.parquet", testutil.Rows(1000), 1000, parquet.PageBufferSize(128))
	f := testutil.Open(t, bkt, "data.parquet")

	proj := schema.ProjectionAll(f.Schema())
	sel := selection.New(selection.Skip(100), selection.Select(50), selection.Skip(300), selection.Select(200))

	rg, err := rowgroup.New(f, 0)
	require.NoError(t, err)
	require.NoError(t, rg.Fetch(ctx, proj, &sel))

	decodeOnce := func() []arrow.Record {
		rr, err := decode.Build(rg, proj)
		require.NoError(t, err)
		defer func() { require.NoError(t, rr.Close()) }()
		return decodeSelection(t, rr, sel)
	}

	first, second := decodeOnce(), decodeOnce()
	require.Len(t, second, len(first))
	for i := range first {
		require.True(t, array.RecordEqual(first[i], second[i]), "record %d differs", i)
		first[i].Release()
		second[i].Release()
	}
}

func TestReaderFailsOnUnfetchedBytes(t *testing.T) {
	bkt := objstore.NewInMemBucket()
	testutil.WriteParquet(t, bkt, "data.parquet", testutil.Rows(100), 100)
	f := testutil.Open(t, bkt, "data.parquet")

	rg, err := rowgroup.New(f, 0)
	require.NoError(t, err)

	rr, err := decode.Build(rg, schema.ProjectionAll(f.Schema()))
	require.NoError(t, err)
	defer func() { _ = rr.Close() }()

	_, err = rr.ReadRecords(10)
	require.Error(t, err)
}

func TestBuildRejectsRepeatedColumns(t *testing.T) {
	type nested struct {
		ID   int64   `parquet:"id"`
		Tags []int32 `parquet:"tags"`
	}
	bkt := objstore.NewInMemBucket()
	testutil.WriteParquet(t, bkt, "nested.parquet", []nested{{ID: 1, Tags: []int32{1, 2}}}, 10)
	f := testutil.Open(t, bkt, "nested.parquet")

	rg, err := rowgroup.New(f, 0)
	require.NoError(t, err)

	_, err = decode.Build(rg, schema.ProjectionAll(f.Schema()))
	require.ErrorIs(t, err, schema.ErrUnsupportedColumn)
}

func TestReaderAcrossSeparateFetches(t *testing.T) {
	ctx := context.Background()
	bkt := objstore.NewInMemBucket()
	testutil.WriteParquet(t, bkt, "data.parquet", testutil.Rows(4000), 4000, parquet.PageBufferSize(256))
	f := testutil.Open(t, bkt, "data.parquet")

	proj, err := schema.ProjectionFromNames(f.Schema(), "id")
	require.NoError(t, err)

	rg, err := rowgroup.New(f, 0)
	require.NoError(t, err)

	// pages of the second fetch start where the first fetch ended
	first := selection.New(selection.Select(1000))
	second := selection.New(selection.Skip(1000), selection.Select(1000))
	require.NoError(t, rg.Fetch(ctx, proj, &first))
	require.NoError(t, rg.Fetch(ctx, proj, &second))

	rr, err := decode.Build(rg, proj)
	require.NoError(t, err)
	defer func() { require.NoError(t, rr.Close()) }()

	n, err := rr.ReadRecords(2000)
	require.NoError(t, err)
	require.Equal(t, int64(2000), n)

	rec, err := rr.ConsumeBatch()
	require.NoError(t, err)
	defer rec.Release()

	got := column(rec, "id").(*array.Int64).Int64Values()
	require.Len(t, got, 2000)
	for i, v := range got {
		require.Equal(t, int64(i), v)
	}

	// the third thousand rows were never fetched
	_, err = rr.ReadRecords(1000)
	require.Error(t, err)
}
