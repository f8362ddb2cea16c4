// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

// Package testutil writes parquet fixtures into object storage for tests.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"
	"github.com/thanos-io/objstore"

	"github.com/thanos-io/parquet-scan/schema"
	"github.com/thanos-io/parquet-scan/storage"
)

// Row is the fixture row type used across tests.
type Row struct {
	ID    int64   `parquet:"id"`
	Name  string  `parquet:"name,dict"`
	Label *string `parquet:"label,optional"`
	Score float64 `parquet:"score"`
	Flag  bool    `parquet:"flag"`
}

// Rows returns n deterministic rows. Every third row has a null label.
func Rows(n int) []Row {
	res := make([]Row, n)
	for i := range res {
		res[i] = Row{
			ID:    int64(i),
			Name:  fmt.Sprintf("name-%d", i%7),
			Score: float64(i) / 2,
			Flag:  i%2 == 0,
		}
		if i%3 != 0 {
			lbl := fmt.Sprintf("label-%d", i%5)
			res[i].Label = &lbl
		}
	}
	return res
}

// WriteParquet writes rows into bkt, cutting a row group every rowGroupSize rows.
func WriteParquet[T any](t testing.TB, bkt objstore.Bucket, name string, rows []T, rowGroupSize int, opts ...parquet.WriterOption) {
	t.Helper()

	buf := bytes.NewBuffer(nil)
	w := parquet.NewGenericWriter[T](buf, opts...)
	for len(rows) > 0 {
		n := min(rowGroupSize, len(rows))
		_, err := w.Write(rows[:n])
		require.NoError(t, err)
		require.NoError(t, w.Flush())
		rows = rows[n:]
	}
	require.NoError(t, w.Close())
	require.NoError(t, bkt.Upload(context.Background(), name, buf))
}

// Open opens a parquet file previously written with WriteParquet.
func Open(t testing.TB, bkt objstore.BucketReader, name string) *schema.File {
	t.Helper()

	f, err := storage.Open(context.Background(), bkt, name)
	require.NoError(t, err)
	return f
}

var ErrInjected = errors.New("injected failure")

// FailingBucket fails every range request once Fail is set.
type FailingBucket struct {
	objstore.Bucket

	Fail atomic.Bool
}

func (b *FailingBucket) GetRange(ctx context.Context, name string, off, length int64) (io.ReadCloser, error) {
	if b.Fail.Load() {
		return nil, ErrInjected
	}
	return b.Bucket.GetRange(ctx, name, off, length)
}

// CountingBucket counts the bytes requested through range requests.
type CountingBucket struct {
	objstore.Bucket

	Requests atomic.Int64
	Bytes    atomic.Int64
}

func (b *CountingBucket) GetRange(ctx context.Context, name string, off, length int64) (io.ReadCloser, error) {
	b.Requests.Add(1)
	b.Bytes.Add(length)
	return b.Bucket.GetRange(ctx, name, off, length)
}
