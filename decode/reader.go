// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

// Package decode turns fetched column chunk bytes into arrow records.
package decode

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hashicorp/go-multierror"
	"github.com/parquet-go/parquet-go"

	"github.com/thanos-io/parquet-scan/rowgroup"
	"github.com/thanos-io/parquet-scan/schema"
)

type config struct {
	mem        memory.Allocator
	valueBatch int
}

type Option func(*config)

// Allocator sets the allocator used for decoded arrays.
func Allocator(mem memory.Allocator) Option {
	return func(cfg *config) {
		cfg.mem = mem
	}
}

// ValueBatch sets how many parquet values are decoded per call into a page.
func ValueBatch(n int) Option {
	return func(cfg *config) {
		cfg.valueBatch = n
	}
}

// Reader is a pull based decoder over the projected columns of a fetched row
// group. Rows are read into builders and handed out as a record by
// ConsumeBatch.
type Reader struct {
	schema  *arrow.Schema
	cursors []*columnCursor

	numRows  int64
	row      int64
	buffered int64
}

// Build returns a Reader over the projected leaf columns of rg. The bytes of
// the rows that will be read must have been fetched before.
func Build(rg *rowgroup.RowGroup, projection schema.Projection, opts ...Option) (*Reader, error) {
	cfg := config{
		mem:        memory.DefaultAllocator,
		valueBatch: 1024,
	}
	for i := range opts {
		opts[i](&cfg)
	}

	as, err := schema.ArrowSchema(rg.File().Schema(), projection)
	if err != nil {
		return nil, fmt.Errorf("unable to build arrow schema: %w", err)
	}

	r := &Reader{
		schema:  as,
		cursors: make([]*columnCursor, 0, projection.Len()),
		numRows: rg.NumRows(),
	}
	for i, leaf := range projection.Leaves() {
		fcc, ok := rg.ColumnChunk(leaf).(*parquet.FileColumnChunk)
		if !ok {
			return nil, closeOnError(r, fmt.Errorf("column %q is not backed by a file", as.Field(i).Name))
		}
		c, err := newColumnCursor(cfg.mem, as.Field(i), fcc.PagesFrom(rg.ColumnReaderAt(leaf)), rg.NumRows(), cfg.valueBatch)
		if err != nil {
			return nil, closeOnError(r, err)
		}
		r.cursors = append(r.cursors, c)
	}
	return r, nil
}

func closeOnError(r *Reader, err error) error {
	if cerr := r.Close(); cerr != nil {
		return multierror.Append(err, cerr)
	}
	return err
}

func (r *Reader) Schema() *arrow.Schema {
	return r.schema
}

// ReadRecords decodes up to n rows into the pending batch and returns how
// many rows were decoded. Zero means the row group is exhausted.
func (r *Reader) ReadRecords(n int64) (int64, error) {
	n = min(n, r.numRows-r.row)
	if n <= 0 {
		return 0, nil
	}
	for _, c := range r.cursors {
		got, err := c.read(n)
		if err != nil {
			return 0, err
		}
		if got != n {
			return 0, fmt.Errorf("column %q decoded %d rows, expected %d", c.name, got, n)
		}
	}
	r.row += n
	r.buffered += n
	return n, nil
}

// SkipRecords skips up to n rows without decoding them.
func (r *Reader) SkipRecords(n int64) (int64, error) {
	n = min(n, r.numRows-r.row)
	if n <= 0 {
		return 0, nil
	}
	for _, c := range r.cursors {
		got, err := c.skip(n)
		if err != nil {
			return 0, err
		}
		if got != n {
			return 0, fmt.Errorf("column %q skipped %d rows, expected %d", c.name, got, n)
		}
	}
	r.row += n
	return n, nil
}

// ConsumeBatch returns the rows read since the last call as a record. The
// caller owns the record.
func (r *Reader) ConsumeBatch() (arrow.Record, error) {
	cols := make([]arrow.Array, 0, len(r.cursors))
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	for _, c := range r.cursors {
		arr := c.newArray()
		cols = append(cols, arr)
		if int64(arr.Len()) != r.buffered {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.name, arr.Len(), r.buffered)
		}
	}
	rows := r.buffered
	r.buffered = 0
	return array.NewRecord(r.schema, cols, rows), nil
}

func (r *Reader) Close() error {
	var errs *multierror.Error
	for _, c := range r.cursors {
		if err := c.close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("unable to close column %q: %w", c.name, err))
		}
	}
	r.cursors = nil
	return errs.ErrorOrNil()
}
