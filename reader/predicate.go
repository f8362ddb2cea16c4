// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package reader

import (
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/thanos-io/parquet-scan/schema"
	"github.com/thanos-io/parquet-scan/selection"
)

var ErrMaskLength = errors.New("predicate mask length mismatch")

// Predicate narrows the rows of a row group. Evaluate is called with batches
// that hold exactly the leaf columns of Projection, in leaf order, and must
// return one mask entry per row. Null entries are treated as false.
type Predicate interface {
	Projection() schema.Projection
	Evaluate(rec arrow.Record) (*array.Boolean, error)
}

// evaluatePredicate decodes the rows selected by sel in batches, evaluates p
// on each batch and returns sel narrowed to the rows p matched. The masks are
// relative to the rows that were decoded, so they are composed with AndThen.
func evaluatePredicate(mem memory.Allocator, batchSize int, rr RecordReader, sel *selection.RowSelection, p Predicate) (selection.RowSelection, error) {
	br := NewBatchReader(rr, sel, batchSize)

	masks := make([]*array.Boolean, 0)
	defer func() {
		for _, m := range masks {
			m.Release()
		}
	}()

	var evaluated int64
	defer func() { predicateRowsEvaluated.Add(float64(evaluated)) }()

	for {
		rec, err := br.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return selection.RowSelection{}, fmt.Errorf("unable to decode predicate columns: %w", err)
		}
		rows := rec.NumRows()
		evaluated += rows
		mask, err := p.Evaluate(rec)
		rec.Release()
		if err != nil {
			return selection.RowSelection{}, fmt.Errorf("unable to evaluate predicate: %w", err)
		}
		if mask == nil {
			return selection.RowSelection{}, fmt.Errorf("%w: predicate returned no mask for %d rows", ErrMaskLength, rows)
		}
		if int64(mask.Len()) != rows {
			mask.Release()
			return selection.RowSelection{}, fmt.Errorf("%w: predicate returned %d rows, expected %d", ErrMaskLength, mask.Len(), rows)
		}
		if mask.NullN() > 0 {
			repaired := selection.RepairNulls(mem, mask)
			mask.Release()
			mask = repaired
		}
		masks = append(masks, mask)
	}

	matched := selection.FromMasks(masks...)
	if sel == nil {
		return matched, nil
	}
	return sel.AndThen(matched), nil
}
