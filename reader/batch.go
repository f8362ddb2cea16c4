// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package reader

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/thanos-io/parquet-scan/selection"
)

// RecordReader is a pull based decoder over one row group. Rows are read into
// a pending batch with ReadRecords and handed out with ConsumeBatch.
type RecordReader interface {
	Schema() *arrow.Schema
	ReadRecords(n int64) (int64, error)
	SkipRecords(n int64) (int64, error)
	ConsumeBatch() (arrow.Record, error)
	Close() error
}

// BatchReader yields the rows of a RecordReader selected by a row selection
// in batches of at most batchSize rows. Skipped rows are never decoded.
type BatchReader struct {
	rr        RecordReader
	batchSize int64

	// selective is false if every row is read.
	selective bool
	selectors []selection.RowSelector
}

// NewBatchReader returns a BatchReader over rr. A nil selection reads all rows.
func NewBatchReader(rr RecordReader, sel *selection.RowSelection, batchSize int) *BatchReader {
	br := &BatchReader{
		rr:        rr,
		batchSize: int64(max(batchSize, 1)),
	}
	if sel != nil {
		br.selective = true
		br.selectors = sel.Trim().Selectors()
	}
	return br
}

func (br *BatchReader) Schema() *arrow.Schema {
	return br.rr.Schema()
}

// Next returns the next batch, or io.EOF once all selected rows were returned.
// The caller owns the record.
func (br *BatchReader) Next() (arrow.Record, error) {
	var read int64
	if !br.selective {
		n, err := br.rr.ReadRecords(br.batchSize)
		if err != nil {
			return nil, err
		}
		read = n
	}

	for read < br.batchSize && len(br.selectors) > 0 {
		front := &br.selectors[0]
		if front.Skip {
			skipped, err := br.rr.SkipRecords(front.Count)
			if err != nil {
				return nil, err
			}
			if skipped != front.Count {
				return nil, fmt.Errorf("failed to skip rows, expected %d, got %d", front.Count, skipped)
			}
			br.selectors = br.selectors[1:]
			continue
		}

		want := min(front.Count, br.batchSize-read)
		n, err := br.rr.ReadRecords(want)
		if err != nil {
			return nil, err
		}
		read += n
		if n < want {
			// the row group ended before the selection did
			br.selectors = nil
			break
		}
		if front.Count -= want; front.Count == 0 {
			br.selectors = br.selectors[1:]
		}
	}

	if read == 0 {
		return nil, io.EOF
	}
	return br.rr.ConsumeBatch()
}

func (br *BatchReader) Close() error {
	return br.rr.Close()
}
