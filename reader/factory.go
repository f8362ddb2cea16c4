// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package reader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/efficientgo/core/errcapture"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thanos-io/parquet-scan/decode"
	"github.com/thanos-io/parquet-scan/internal/tracing"
	"github.com/thanos-io/parquet-scan/rowgroup"
	"github.com/thanos-io/parquet-scan/schema"
	"github.com/thanos-io/parquet-scan/selection"
)

// DecoderBuilder returns a RecordReader over the projected columns of a row
// group whose bytes were fetched before.
type DecoderBuilder func(rg *rowgroup.RowGroup, projection schema.Projection) (RecordReader, error)

func defaultDecoderBuilder(mem memory.Allocator) DecoderBuilder {
	return func(rg *rowgroup.RowGroup, projection schema.Projection) (RecordReader, error) {
		r, err := decode.Build(rg, projection, decode.Allocator(mem))
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// readerFactory carries everything that outlives a single row group: the
// file handle, the predicates and the remaining offset and limit budgets.
// It is handed to exactly one row group step at a time.
type readerFactory struct {
	file       *schema.File
	predicates []Predicate
	offset     *int64
	limit      *int64

	fetchOpts []rowgroup.Option
	build     DecoderBuilder
	mem       memory.Allocator
	log       *slog.Logger
}

// readRowGroup prepares a BatchReader for one row group. It evaluates the
// predicates against sel, applies the remaining offset and limit, and fetches
// the projected columns for the surviving rows. A nil reader means the row
// group contributes no rows. The factory is returned in every case.
func (f *readerFactory) readRowGroup(ctx context.Context, index int, sel *selection.RowSelection, projection schema.Projection, batchSize int) (_ *readerFactory, _ *BatchReader, rerr error) {
	ctx, span := tracing.Tracer().Start(ctx, "Read Row Group")
	defer func() { tracing.EndSpan(span, rerr) }()

	span.SetAttributes(attribute.String("file", f.file.Name()))
	span.SetAttributes(attribute.Int("row_group", index))

	log := f.log.With(slog.Int("row_group", index))
	defer func() {
		if rerr != nil {
			rowGroupsRead.WithLabelValues(outcomeError).Inc()
		}
	}()

	if f.limit != nil && *f.limit == 0 {
		log.Debug("Limit reached, skipping row group")
		rowGroupsRead.WithLabelValues(outcomeLimitReached).Inc()
		return f, nil, nil
	}

	rg, err := rowgroup.New(f.file, index, f.fetchOpts...)
	if err != nil {
		return f, nil, err
	}

	for i, p := range f.predicates {
		if !selection.SelectsAny(sel) {
			break
		}
		narrowed, err := f.evaluate(ctx, rg, sel, p, batchSize)
		if err != nil {
			return f, nil, fmt.Errorf("unable to evaluate predicate %d on row group %d: %w", i, index, err)
		}
		sel = &narrowed
	}

	rowsBefore := rg.NumRows()
	if sel != nil {
		rowsBefore = sel.RowCount()
	}
	if rowsBefore == 0 {
		log.Debug("No rows matched predicates")
		rowGroupsRead.WithLabelValues(outcomeFiltered).Inc()
		return f, nil, nil
	}

	sel = selection.ApplyRange(sel, rg.NumRows(), f.offset, f.limit)

	rowsAfter := rg.NumRows()
	if sel != nil {
		rowsAfter = sel.RowCount()
	}
	if f.offset != nil {
		*f.offset = saturatingSub(*f.offset, max(rowsBefore-rowsAfter, 0))
	}
	if rowsAfter == 0 {
		log.Debug("Offset consumed row group", slog.Int64("rows", rowsBefore))
		rowGroupsRead.WithLabelValues(outcomeFiltered).Inc()
		return f, nil, nil
	}
	if f.limit != nil {
		*f.limit = saturatingSub(*f.limit, rowsAfter)
	}

	if err := rg.Fetch(rowgroup.ContextWithPurpose(ctx, rowgroup.PurposeProjection), projection, sel); err != nil {
		return f, nil, err
	}
	rr, err := f.build(rg, projection)
	if err != nil {
		return f, nil, fmt.Errorf("unable to build decoder for row group %d: %w", index, err)
	}

	log.Debug("Decoding row group", slog.Int64("rows", rowsAfter))
	rowGroupsRead.WithLabelValues(outcomeDecoded).Inc()
	rowsSelected.Add(float64(rowsAfter))

	return f, NewBatchReader(rr, sel, batchSize), nil
}

func (f *readerFactory) evaluate(ctx context.Context, rg *rowgroup.RowGroup, sel *selection.RowSelection, p Predicate, batchSize int) (_ selection.RowSelection, rerr error) {
	ctx, span := tracing.Tracer().Start(ctx, "Evaluate Predicate")
	defer func() { tracing.EndSpan(span, rerr) }()

	if err := rg.Fetch(rowgroup.ContextWithPurpose(ctx, rowgroup.PurposePredicate), p.Projection(), sel); err != nil {
		return selection.RowSelection{}, err
	}
	rr, err := f.build(rg, p.Projection())
	if err != nil {
		return selection.RowSelection{}, fmt.Errorf("unable to build decoder: %w", err)
	}
	defer errcapture.Do(&rerr, rr.Close, "predicate decoder close")

	res, err := evaluatePredicate(f.mem, batchSize, rr, sel, p)
	if err != nil {
		return selection.RowSelection{}, err
	}
	span.SetAttributes(attribute.Int64("rows_matched", res.RowCount()))
	return res, nil
}

func saturatingSub(a, b int64) int64 {
	if b >= a {
		return 0
	}
	return a - b
}
