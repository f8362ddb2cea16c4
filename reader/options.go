// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package reader

import (
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/thanos-io/parquet-scan/rowgroup"
	"github.com/thanos-io/parquet-scan/schema"
	"github.com/thanos-io/parquet-scan/selection"
)

const DefaultBatchSize = 8192

type streamConfig struct {
	rowGroups  []int
	projection *schema.Projection
	batchSize  int
	selection  *selection.RowSelection
	rowIDs     *roaring.Bitmap
	predicates []Predicate
	offset     *int64
	limit      *int64

	fetchOpts []rowgroup.Option
	build     DecoderBuilder
	mem       memory.Allocator
	log       *slog.Logger
}

type Option func(*streamConfig)

// RowGroups restricts the scan to the given row groups, read in the given
// order. By default every row group is read in file order.
func RowGroups(rgs ...int) Option {
	return func(cfg *streamConfig) {
		cfg.rowGroups = rgs
	}
}

// Projection sets the leaf columns of the emitted records. By default all
// leaf columns are emitted.
func Projection(p schema.Projection) Option {
	return func(cfg *streamConfig) {
		cfg.projection = &p
	}
}

func BatchSize(n int) Option {
	return func(cfg *streamConfig) {
		cfg.batchSize = n
	}
}

// Selection restricts the rows read. It spans the queued row groups back to
// back, in the order they are read.
func Selection(sel selection.RowSelection) Option {
	return func(cfg *streamConfig) {
		cfg.selection = &sel
	}
}

// RowIDs restricts the rows read to file wide row ids.
func RowIDs(bm *roaring.Bitmap) Option {
	return func(cfg *streamConfig) {
		cfg.rowIDs = bm
	}
}

// Predicates are evaluated in order, each one only on the rows the previous
// ones matched.
func Predicates(ps ...Predicate) Option {
	return func(cfg *streamConfig) {
		cfg.predicates = append(cfg.predicates, ps...)
	}
}

// Offset skips the first n rows that match the predicates.
func Offset(n int64) Option {
	return func(cfg *streamConfig) {
		cfg.offset = &n
	}
}

// Limit stops the scan after n rows were emitted.
func Limit(n int64) Option {
	return func(cfg *streamConfig) {
		cfg.limit = &n
	}
}

// FetchOptions configure how column bytes are fetched for every row group.
func FetchOptions(opts ...rowgroup.Option) Option {
	return func(cfg *streamConfig) {
		cfg.fetchOpts = append(cfg.fetchOpts, opts...)
	}
}

// Decoder replaces the builder of row group decoders.
func Decoder(build DecoderBuilder) Option {
	return func(cfg *streamConfig) {
		cfg.build = build
	}
}

func Allocator(mem memory.Allocator) Option {
	return func(cfg *streamConfig) {
		cfg.mem = mem
	}
}

func Logger(log *slog.Logger) Option {
	return func(cfg *streamConfig) {
		cfg.log = log
	}
}
