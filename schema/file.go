// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package schema

import (
	"context"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
)

// File is an opened parquet file. Only the footer is held in memory, column
// data is read through a ReaderAt obtained per scan.
type File struct {
	name string
	f    *parquet.File

	// We smuggle a bucket reader here so we can create a prepared ReaderAt
	// for chunks that is scoped to a scan and can be traced.
	rdrCtx func(ctx context.Context) io.ReaderAt
}

func NewFile(name string, f *parquet.File, rdrF func(ctx context.Context) io.ReaderAt) *File {
	return &File{name: name, f: f, rdrCtx: rdrF}
}

func (f *File) Name() string {
	return f.name
}

func (f *File) File() *parquet.File {
	return f.f
}

func (f *File) Schema() *parquet.Schema {
	return f.f.Schema()
}

func (f *File) Reader(ctx context.Context) io.ReaderAt {
	return f.rdrCtx(ctx)
}

func (f *File) NumRowGroups() int {
	return len(f.f.Metadata().RowGroups)
}

func (f *File) RowGroupNumRows(rgIdx int) int64 {
	return f.f.Metadata().RowGroups[rgIdx].NumRows
}

func (f *File) NumRows() int64 {
	return f.f.NumRows()
}

func (f *File) ColumnMetaData(rgIdx, colIdx int) (format.ColumnMetaData, error) {
	rgs := f.f.Metadata().RowGroups
	if rgIdx < 0 || rgIdx >= len(rgs) {
		return format.ColumnMetaData{}, fmt.Errorf("row group %d out of range [0,%d)", rgIdx, len(rgs))
	}
	cols := rgs[rgIdx].Columns
	if colIdx < 0 || colIdx >= len(cols) {
		return format.ColumnMetaData{}, fmt.Errorf("column %d out of range [0,%d)", colIdx, len(cols))
	}
	return cols[colIdx].MetaData, nil
}

// DictionaryPageBounds returns offset and length of the dictionary page of a
// column chunk, length is zero if the chunk has no dictionary page.
func (f *File) DictionaryPageBounds(rgIdx, colIdx int) (uint64, uint64) {
	colMeta := f.f.Metadata().RowGroups[rgIdx].Columns[colIdx].MetaData
	if colMeta.DictionaryPageOffset <= 0 || colMeta.DictionaryPageOffset >= colMeta.DataPageOffset {
		return 0, 0
	}
	return uint64(colMeta.DictionaryPageOffset), uint64(colMeta.DataPageOffset - colMeta.DictionaryPageOffset)
}

// ChunkBounds returns offset and length of a whole column chunk.
func (f *File) ChunkBounds(rgIdx, colIdx int) (uint64, uint64) {
	colMeta := f.f.Metadata().RowGroups[rgIdx].Columns[colIdx].MetaData
	start := colMeta.DataPageOffset
	if off, n := f.DictionaryPageBounds(rgIdx, colIdx); n > 0 {
		start = int64(off)
	}
	return uint64(start), uint64(colMeta.TotalCompressedSize)
}
