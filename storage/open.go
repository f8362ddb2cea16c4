// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/alecthomas/units"
	"github.com/parquet-go/parquet-go"
	"github.com/thanos-io/objstore"

	"github.com/thanos-io/parquet-scan/internal/tracing"
	"github.com/thanos-io/parquet-scan/schema"
)

type openConfig struct {
	readBufferSize units.Base2Bytes
	skipPageIndex  bool
}

type OpenOption func(*openConfig)

// ReadBufferSize sets the buffer size parquet uses when reading pages.
func ReadBufferSize(sz units.Base2Bytes) OpenOption {
	return func(cfg *openConfig) {
		cfg.readBufferSize = sz
	}
}

// SkipPageIndex disables loading the column and offset indexes, every fetch
// then reads whole column chunks.
func SkipPageIndex(skip bool) OpenOption {
	return func(cfg *openConfig) {
		cfg.skipPageIndex = skip
	}
}

// Open reads the footer of the parquet object name. Column chunk data is only
// read later, through the reader of the returned file.
func Open(ctx context.Context, bkt objstore.BucketReader, name string, opts ...OpenOption) (*schema.File, error) {
	ctx, span := tracing.Tracer().Start(ctx, "Open Parquet File")
	defer span.End()

	cfg := openConfig{
		readBufferSize: 4 * units.KiB,
	}
	for _, o := range opts {
		o(&cfg)
	}

	attrs, err := bkt.Attributes(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("unable to get attributes for %q: %w", name, err)
	}

	rdrAtFromCtx := func(ctx context.Context) io.ReaderAt {
		return NewReaderAt(ctx, bkt, name)
	}

	pf, err := parquet.OpenFile(rdrAtFromCtx(ctx), attrs.Size,
		parquet.ReadBufferSize(int(cfg.readBufferSize)),
		parquet.SkipPageIndex(cfg.skipPageIndex),
		parquet.SkipBloomFilters(true),
		parquet.OptimisticRead(true),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to open parquet file %q: %w", name, err)
	}
	return schema.NewFile(name, pf, rdrAtFromCtx), nil
}
