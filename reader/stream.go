// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

// Package reader streams arrow record batches out of a parquet file. Row
// groups are read one at a time: predicates narrow the rows of a row group,
// offset and limit are applied across row groups, and only the pages needed
// for the surviving rows are fetched and decoded.
package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/thanos-io/parquet-scan/schema"
	"github.com/thanos-io/parquet-scan/selection"
)

type state int

const (
	// stateInit has no row group in flight and the factory in hand.
	stateInit state = iota
	// stateReading waits for a row group step that owns the factory.
	stateReading
	// stateDecoding drains the batch reader of the current row group.
	stateDecoding
	// stateDone is terminal, the stream failed or was closed.
	stateDone
)

type stepResult struct {
	factory *readerFactory
	reader  *BatchReader
	err     error
}

// Stream is a lazy sequence of record batches. It is not safe for concurrent
// use. Records returned by Next are owned by the caller.
type Stream struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger

	file       *schema.File
	schema     *arrow.Schema
	projection schema.Projection
	batchSize  int

	rowGroups []int
	selection *selection.RowSelection

	state   state
	factory *readerFactory
	pending chan stepResult
	reader  *BatchReader
}

// NewStream validates the options and returns a stream over f. Nothing is
// fetched until the first call to Next. ctx bounds the lifetime of the
// stream's background work.
func NewStream(ctx context.Context, f *schema.File, opts ...Option) (*Stream, error) {
	cfg := streamConfig{
		batchSize: DefaultBatchSize,
		mem:       memory.DefaultAllocator,
		log:       slog.Default(),
	}
	for i := range opts {
		opts[i](&cfg)
	}
	if cfg.rowGroups == nil {
		cfg.rowGroups = make([]int, f.NumRowGroups())
		for i := range cfg.rowGroups {
			cfg.rowGroups[i] = i
		}
	}
	if cfg.projection == nil {
		p := schema.ProjectionAll(f.Schema())
		cfg.projection = &p
	}
	if cfg.build == nil {
		cfg.build = defaultDecoderBuilder(cfg.mem)
	}
	if err := cfg.validate(f); err != nil {
		return nil, fmt.Errorf("invalid scan options: %w", err)
	}

	as, err := schema.ArrowSchema(f.Schema(), *cfg.projection)
	if err != nil {
		return nil, err
	}
	for i, p := range cfg.predicates {
		if _, err := schema.ArrowSchema(f.Schema(), p.Projection()); err != nil {
			return nil, fmt.Errorf("predicate %d: %w", i, err)
		}
	}

	sel := cfg.selection
	if cfg.rowIDs != nil {
		sel = rowIDSelection(f, cfg)
	}

	ctx, cancel := context.WithCancel(ctx)
	return &Stream{
		ctx:        ctx,
		cancel:     cancel,
		log:        cfg.log,
		file:       f,
		schema:     as,
		projection: *cfg.projection,
		batchSize:  cfg.batchSize,
		rowGroups:  cfg.rowGroups,
		selection:  sel,
		state:      stateInit,
		factory: &readerFactory{
			file:       f,
			predicates: cfg.predicates,
			offset:     budget(cfg.offset),
			limit:      budget(cfg.limit),
			fetchOpts:  cfg.fetchOpts,
			build:      cfg.build,
			mem:        cfg.mem,
			log:        cfg.log.With(slog.String("file", f.Name())),
		},
	}, nil
}

func (cfg streamConfig) validate(f *schema.File) error {
	if cfg.batchSize < 1 {
		return validation.NewError("batch_size", "batch size must be at least 1")
	}
	if cfg.offset != nil && *cfg.offset < 0 {
		return validation.NewError("offset", "offset must not be negative")
	}
	if cfg.limit != nil && *cfg.limit < 0 {
		return validation.NewError("limit", "limit must not be negative")
	}
	if cfg.selection != nil && cfg.rowIDs != nil {
		return validation.NewError("selection", "selection and row ids are mutually exclusive")
	}
	for _, rg := range cfg.rowGroups {
		if rg < 0 || rg >= f.NumRowGroups() {
			return validation.NewError("row_groups", fmt.Sprintf("row group %d out of range [0,%d)", rg, f.NumRowGroups()))
		}
	}
	if err := cfg.projection.Validate(f.Schema()); err != nil {
		return validation.NewError("projection", err.Error())
	}
	for i, p := range cfg.predicates {
		if err := p.Projection().Validate(f.Schema()); err != nil {
			return validation.NewError("predicates", fmt.Sprintf("predicate %d: %s", i, err))
		}
	}
	return nil
}

// rowIDSelection cuts file wide row ids into one selection that spans the
// queued row groups in read order.
func rowIDSelection(f *schema.File, cfg streamConfig) *selection.RowSelection {
	starts := make([]int64, f.NumRowGroups())
	var off int64
	for i := range starts {
		starts[i] = off
		off += f.RowGroupNumRows(i)
	}

	sels := make([]selection.RowSelection, 0, len(cfg.rowGroups))
	for _, rg := range cfg.rowGroups {
		sels = append(sels, selection.FromBitmapRange(cfg.rowIDs, starts[rg], f.RowGroupNumRows(rg)))
	}
	sel := selection.Concat(sels...)
	return &sel
}

// Schema returns the schema of the emitted records.
func (s *Stream) Schema() *arrow.Schema {
	return s.schema
}

// Next returns the next record batch. It returns io.EOF once the stream is
// exhausted. The first error of a row group step is returned once, after that
// the stream is terminated and returns io.EOF. If ctx is done while a row
// group step is in flight ctx.Err() is returned and the stream can be polled
// again.
func (s *Stream) Next(ctx context.Context) (arrow.Record, error) {
	for {
		switch s.state {
		case stateInit:
			if len(s.rowGroups) == 0 {
				return nil, io.EOF
			}
			s.startRowGroup()

		case stateReading:
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case res := <-s.pending:
				s.pending = nil
				s.factory = res.factory
				switch {
				case res.err != nil:
					s.state = stateDone
					return nil, res.err
				case res.reader == nil:
					s.state = stateInit
				default:
					s.reader = res.reader
					s.state = stateDecoding
				}
			}

		case stateDecoding:
			rec, err := s.reader.Next()
			if err == nil {
				batchesEmitted.Inc()
				return rec, nil
			}
			cerr := s.reader.Close()
			s.reader = nil
			if errors.Is(err, io.EOF) {
				if cerr != nil {
					s.state = stateDone
					return nil, fmt.Errorf("unable to close row group decoder: %w", cerr)
				}
				s.state = stateInit
				continue
			}
			s.state = stateDone
			return nil, errors.Join(err, cerr)

		case stateDone:
			return nil, io.EOF
		}
	}
}

// startRowGroup hands the factory to a step for the next queued row group.
func (s *Stream) startRowGroup() {
	factory := s.factory
	if factory == nil {
		panic("reader factory missing with no row group step in flight")
	}
	s.factory = nil

	index := s.rowGroups[0]
	s.rowGroups = s.rowGroups[1:]

	var sel *selection.RowSelection
	if s.selection != nil {
		head := s.selection.SplitOff(s.file.RowGroupNumRows(index))
		sel = &head
	}

	var (
		ctx        = s.ctx
		projection = s.projection
		batchSize  = s.batchSize
		pending    = make(chan stepResult, 1)
	)
	go func() {
		f, r, err := factory.readRowGroup(ctx, index, sel, projection, batchSize)
		pending <- stepResult{factory: f, reader: r, err: err}
	}()
	s.pending = pending
	s.state = stateReading
}

// Records iterates the stream until it is exhausted, an error is yielded or
// the caller stops.
func (s *Stream) Records(ctx context.Context) iter.Seq2[arrow.Record, error] {
	return func(yield func(arrow.Record, error) bool) {
		for {
			rec, err := s.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Close cancels the row group step in flight, waits for it and releases the
// current decoder. The stream returns io.EOF afterwards.
func (s *Stream) Close() error {
	s.cancel()

	var errs []error
	if s.pending != nil {
		res := <-s.pending
		s.pending = nil
		s.factory = res.factory
		if res.reader != nil {
			errs = append(errs, res.reader.Close())
		}
	}
	if s.reader != nil {
		errs = append(errs, s.reader.Close())
		s.reader = nil
	}
	s.state = stateDone
	return errors.Join(errs...)
}

// budget copies an offset or limit so the factory owns the value it decrements
// and options can be reused across streams.
func budget(n *int64) *int64 {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
