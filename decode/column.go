// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/parquet-go/parquet-go"
)

// columnCursor walks the pages of one flat column chunk row by row and
// appends decoded values to an arrow builder.
type columnCursor struct {
	name    string
	pages   parquet.Pages
	numRows int64

	// row is the index of the next row the cursor yields.
	row int64

	page      parquet.Page
	values    parquet.ValueReader
	remaining int64

	buf     []parquet.Value
	builder array.Builder
	append  func(v parquet.Value)
}

func newColumnCursor(mem memory.Allocator, field arrow.Field, pages parquet.Pages, numRows int64, bufSize int) (*columnCursor, error) {
	c := &columnCursor{
		name:    field.Name,
		pages:   pages,
		numRows: numRows,
		buf:     make([]parquet.Value, bufSize),
		builder: array.NewBuilder(mem, field.Type),
	}

	switch b := c.builder.(type) {
	case *array.BooleanBuilder:
		c.append = func(v parquet.Value) { b.Append(v.Boolean()) }
	case *array.Int32Builder:
		c.append = func(v parquet.Value) { b.Append(v.Int32()) }
	case *array.Int64Builder:
		c.append = func(v parquet.Value) { b.Append(v.Int64()) }
	case *array.Float32Builder:
		c.append = func(v parquet.Value) { b.Append(v.Float()) }
	case *array.Float64Builder:
		c.append = func(v parquet.Value) { b.Append(v.Double()) }
	case *array.StringBuilder:
		c.append = func(v parquet.Value) { b.Append(string(v.ByteArray())) }
	case *array.BinaryBuilder:
		c.append = func(v parquet.Value) { b.Append(v.ByteArray()) }
	case *array.FixedSizeBinaryBuilder:
		c.append = func(v parquet.Value) { b.Append(v.ByteArray()) }
	default:
		c.builder.Release()
		return nil, fmt.Errorf("no decoder for arrow type %s of column %q", field.Type, field.Name)
	}
	return c, nil
}

func (c *columnCursor) releasePage() {
	if c.page != nil {
		parquet.Release(c.page)
	}
	c.page, c.values, c.remaining = nil, nil, 0
}

func (c *columnCursor) nextPage() error {
	c.releasePage()

	page, err := c.pages.ReadPage()
	if err != nil {
		return err
	}
	c.page = page
	c.values = page.Values()
	c.remaining = page.NumRows()
	return nil
}

// consume pulls up to n values of the current page, appending them to the
// builder if keep is set.
func (c *columnCursor) consume(n int64, keep bool) (int64, error) {
	var done int64
	for done < n && c.row < c.numRows {
		if c.remaining == 0 {
			if err := c.nextPage(); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return done, fmt.Errorf("unable to read page of column %q: %w", c.name, err)
			}
			continue
		}

		k := int(min(n-done, c.remaining, int64(len(c.buf))))
		m, err := c.values.ReadValues(c.buf[:k])
		if keep {
			for _, v := range c.buf[:m] {
				if v.IsNull() {
					c.builder.AppendNull()
					continue
				}
				c.append(v)
			}
		}
		done += int64(m)
		c.row += int64(m)
		c.remaining -= int64(m)

		if err != nil && !errors.Is(err, io.EOF) {
			return done, fmt.Errorf("unable to read values of column %q: %w", c.name, err)
		}
		if m == 0 {
			// the page had fewer values than rows, nothing sensible can follow
			return done, fmt.Errorf("page of column %q ended at row %d, expected %d more", c.name, c.row, c.remaining)
		}
	}
	return done, nil
}

func (c *columnCursor) read(n int64) (int64, error) {
	return c.consume(n, true)
}

// skip advances by n rows. Skips that leave the current page seek through
// the page index, so the pages in between are never read.
func (c *columnCursor) skip(n int64) (int64, error) {
	if n <= c.remaining {
		return c.consume(n, false)
	}

	target := min(c.row+n, c.numRows)
	skipped := target - c.row
	c.releasePage()
	if target < c.numRows {
		if err := c.pages.SeekToRow(target); err != nil {
			return 0, fmt.Errorf("unable to seek column %q to row %d: %w", c.name, target, err)
		}
	}
	c.row = target
	return skipped, nil
}

func (c *columnCursor) newArray() arrow.Array {
	return c.builder.NewArray()
}

func (c *columnCursor) close() error {
	c.releasePage()
	c.builder.Release()
	return c.pages.Close()
}
