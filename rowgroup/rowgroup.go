// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

// Package rowgroup fetches the bytes of column chunks of a single row group
// into memory. With a page offset index only pages that overlap a row
// selection are fetched.
package rowgroup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sync"

	"github.com/alecthomas/units"
	"github.com/parquet-go/parquet-go"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/thanos-io/parquet-scan/internal/limits"
	"github.com/thanos-io/parquet-scan/internal/tracing"
	"github.com/thanos-io/parquet-scan/schema"
	"github.com/thanos-io/parquet-scan/selection"
)

var ErrNotFetched = errors.New("column chunk bytes were not fetched")

type config struct {
	bytesQuota   *limits.Quota
	maxRangeSize uint64
	maxGapSize   uint64
	concurrency  int
}

type Option func(*config)

// ByteQuota bounds the bytes fetched. The quota may be shared by many row groups.
func ByteQuota(q *limits.Quota) Option {
	return func(cfg *config) {
		cfg.bytesQuota = q
	}
}

// MaxRangeSize bounds the size of a single coalesced read.
func MaxRangeSize(sz uint64) Option {
	return func(cfg *config) {
		cfg.maxRangeSize = sz
	}
}

// MaxGapSize sets the largest gap between two pages that is read over
// instead of issuing a separate request.
func MaxGapSize(sz uint64) Option {
	return func(cfg *config) {
		cfg.maxGapSize = sz
	}
}

// Concurrency bounds the number of reads in flight during a fetch. Zero means unbounded.
func Concurrency(n int) Option {
	return func(cfg *config) {
		cfg.concurrency = n
	}
}

// RowGroup is the working context of one row group: its footer metadata and
// the column chunk bytes fetched so far. It is not safe for concurrent use
// except for Fetch's own reads.
type RowGroup struct {
	file    *schema.File
	index   int
	numRows int64
	chunks  []parquet.ColumnChunk
	cfg     config

	mu      sync.Mutex
	fetched map[int][]fetchedRange
}

type fetchedRange struct {
	off  uint64
	data []byte
}

func (r fetchedRange) end() uint64 { return r.off + uint64(len(r.data)) }

func New(f *schema.File, index int, opts ...Option) (*RowGroup, error) {
	rgs := f.File().RowGroups()
	if index < 0 || index >= len(rgs) {
		return nil, fmt.Errorf("row group %d out of range [0,%d)", index, len(rgs))
	}
	cfg := config{
		bytesQuota:   limits.UnlimitedQuota(),
		maxRangeSize: math.MaxUint64,
	}
	for i := range opts {
		opts[i](&cfg)
	}
	return &RowGroup{
		file:    f,
		index:   index,
		numRows: rgs[index].NumRows(),
		chunks:  rgs[index].ColumnChunks(),
		cfg:     cfg,
		fetched: make(map[int][]fetchedRange),
	}, nil
}

func (rg *RowGroup) File() *schema.File { return rg.file }

func (rg *RowGroup) Index() int { return rg.index }

func (rg *RowGroup) NumRows() int64 { return rg.numRows }

func (rg *RowGroup) ColumnChunk(leaf int) parquet.ColumnChunk { return rg.chunks[leaf] }

// FetchedBytes returns the number of bytes held in memory for a leaf column.
func (rg *RowGroup) FetchedBytes(leaf int) int64 {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	var n int64
	for _, r := range rg.fetched[leaf] {
		n += int64(len(r.data))
	}
	return n
}

// offsetIndex returns the page offset index of a column chunk if it exists and
// describes at least one page.
func (rg *RowGroup) offsetIndex(leaf int) (parquet.OffsetIndex, bool) {
	oidx, err := rg.chunks[leaf].OffsetIndex()
	if err != nil || oidx == nil || oidx.NumPages() == 0 {
		return nil, false
	}
	return oidx, true
}

// neededSpans returns the byte spans of a column chunk that are required to
// decode the rows selected by sel, and the number of data pages they cover.
func (rg *RowGroup) neededSpans(leaf int, sel *selection.RowSelection) ([]byteSpan, int) {
	oidx, ok := rg.offsetIndex(leaf)
	if sel == nil || !ok {
		off, n := rg.file.ChunkBounds(rg.index, leaf)
		pages := 1
		if ok {
			pages = oidx.NumPages()
		}
		return []byteSpan{{start: off, end: off + n}}, pages
	}

	res := make([]byteSpan, 0, oidx.NumPages()+1)
	if off, n := rg.file.DictionaryPageBounds(rg.index, leaf); n > 0 {
		res = append(res, byteSpan{start: off, end: off + n})
	}

	ranges := sel.Ranges()
	pages := 0
	for i, r := 0, 0; i < oidx.NumPages() && r < len(ranges); i++ {
		page := selection.Range{From: oidx.FirstRowIndex(i)}
		page.Count = rg.numRows - page.From
		if i < oidx.NumPages()-1 {
			page.Count = oidx.FirstRowIndex(i+1) - page.From
		}

		for r < len(ranges) && ranges[r].End() <= page.From {
			r++
		}
		if r < len(ranges) && page.Overlaps(ranges[r]) {
			start := uint64(oidx.Offset(i))
			res = append(res, byteSpan{start: start, end: start + uint64(oidx.CompressedPageSize(i))})
			pages++
		}
	}
	return res, pages
}

// missing drops the spans that are already held in memory.
func (rg *RowGroup) missing(leaf int, spans []byteSpan) []byteSpan {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	have := rg.fetched[leaf]
	return slices.DeleteFunc(spans, func(s byteSpan) bool {
		return slices.ContainsFunc(have, func(r fetchedRange) bool {
			return r.off <= s.start && s.end <= r.end()
		})
	})
}

func (rg *RowGroup) add(leaf int, r fetchedRange) {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	rg.fetched[leaf] = append(rg.fetched[leaf], r)
	slices.SortFunc(rg.fetched[leaf], func(a, b fetchedRange) int {
		switch {
		case a.off < b.off:
			return -1
		case a.off > b.off:
			return 1
		}
		return 0
	})
}

type columnRead struct {
	leaf   int
	column string
	pages  int
	spans  []byteSpan
}

// Fetch reads the bytes needed to decode the rows selected by sel from every
// projected column into memory. A nil selection fetches whole column chunks.
// Bytes fetched by earlier calls are not read again.
func (rg *RowGroup) Fetch(ctx context.Context, projection schema.Projection, sel *selection.RowSelection) (rerr error) {
	ctx, span := tracing.Tracer().Start(ctx, "Fetch Row Group Columns")
	defer func() { tracing.EndSpan(span, rerr) }()

	span.SetAttributes(attribute.String("file", rg.file.Name()))
	span.SetAttributes(attribute.Int("row_group", rg.index))
	span.SetAttributes(attribute.IntSlice("columns", projection.Leaves()))

	if err := projection.Validate(rg.file.Schema()); err != nil {
		return err
	}

	purpose := purposeFromContext(ctx)

	reads := make([]columnRead, 0, projection.Len())
	total := uint64(0)
	for _, leaf := range projection.Leaves() {
		spans, pages := rg.neededSpans(leaf, sel)
		spans = rg.missing(leaf, spans)
		if len(spans) == 0 {
			continue
		}
		for _, s := range spans {
			total += s.size()
		}
		reads = append(reads, columnRead{
			leaf:   leaf,
			column: schema.ColumnName(rg.file.Schema(), leaf),
			pages:  pages,
			spans:  spans,
		})
	}
	span.SetAttributes(attribute.Stringer("bytes", units.Base2Bytes(total).Round(1)))

	if err := rg.cfg.bytesQuota.Reserve(int64(total)); err != nil {
		return fmt.Errorf("would use too many bytes: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if limit := rg.cfg.concurrency; limit != 0 {
		g.SetLimit(limit)
	}

	partitioner := newGapBasedPartitioner(rg.cfg.maxRangeSize, rg.cfg.maxGapSize)
	for _, cr := range reads {
		columnFetched.WithLabelValues(cr.column, purpose).Inc()
		pagesFetched.WithLabelValues(cr.column, purpose).Add(float64(cr.pages))

		parts := partitioner.partition(len(cr.spans), func(i int) (uint64, uint64) {
			return cr.spans[i].start, cr.spans[i].end
		})
		for _, p := range parts {
			g.Go(func() error {
				ctx, span := tracing.Tracer().Start(ctx, "Fetch Column Range")
				defer span.End()

				span.SetAttributes(attribute.String("column", cr.column))
				span.SetAttributes(attribute.Int64("offset", int64(p.start)))
				span.SetAttributes(attribute.Stringer("bytes", units.Base2Bytes(p.size()).Round(1)))

				if err := ctx.Err(); err != nil {
					return err
				}
				bytesFetched.WithLabelValues(cr.column, purpose).Add(float64(p.size()))

				buf := make([]byte, p.size())
				n, err := rg.file.Reader(ctx).ReadAt(buf, int64(p.start))
				if n != len(buf) {
					if err == nil {
						err = io.ErrUnexpectedEOF
					}
					return fmt.Errorf("unable to read column %q range [%d,%d): %w", cr.column, p.start, p.end, err)
				}
				rg.add(cr.leaf, fetchedRange{off: p.start, data: buf})
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("unable to fetch row group %d: %w", rg.index, err)
	}
	return nil
}

// ColumnReaderAt returns a reader over the fetched bytes of a leaf column at
// absolute file offsets. Adjacent or overlapping fetched ranges read as one.
// Reads that run into bytes that were not fetched return what precedes them
// and an error wrapping ErrNotFetched.
func (rg *RowGroup) ColumnReaderAt(leaf int) io.ReaderAt {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	return fetchedReaderAt{leaf: leaf, ranges: slices.Clone(rg.fetched[leaf])}
}

type fetchedReaderAt struct {
	leaf int
	// sorted by offset, may overlap
	ranges []fetchedRange
}

func (f fetchedReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	n := 0
	for n < len(p) {
		pos := uint64(off) + uint64(n)
		r, ok := f.covering(pos)
		if !ok {
			return n, fmt.Errorf("%w: leaf column %d at offset %d", ErrNotFetched, f.leaf, pos)
		}
		n += copy(p[n:], r.data[pos-r.off:])
	}
	return n, nil
}

// covering returns the range holding pos that extends the furthest.
func (f fetchedReaderAt) covering(pos uint64) (fetchedRange, bool) {
	var (
		best  fetchedRange
		found bool
	)
	for _, r := range f.ranges {
		if r.off > pos {
			break
		}
		if pos < r.end() && (!found || r.end() > best.end()) {
			best, found = r, true
		}
	}
	return best, found
}
