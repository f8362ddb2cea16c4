// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/units"
	"github.com/apache/arrow-go/v18/arrow"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/oklog/run"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/thanos-io/objstore"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/thanos-io/parquet-scan/filter"
	"github.com/thanos-io/parquet-scan/internal/limits"
	ctxlog "github.com/thanos-io/parquet-scan/internal/log"
	"github.com/thanos-io/parquet-scan/internal/slogerrcapture"
	"github.com/thanos-io/parquet-scan/internal/tracing"
	"github.com/thanos-io/parquet-scan/reader"
	"github.com/thanos-io/parquet-scan/rowgroup"
	"github.com/thanos-io/parquet-scan/schema"
	"github.com/thanos-io/parquet-scan/storage"
)

type scanOpts struct {
	bucket      bucketOpts
	tracing     tracingOpts
	internalAPI apiOpts

	scan  scanQueryOpts
	fetch fetchOpts
}

type scanQueryOpts struct {
	file      string
	output    string
	columns   []string
	filters   matcherSlice
	rowGroups []int
	offset    int64
	limit     int64
	batchSize int

	readBufferSize units.Base2Bytes
}

type fetchOpts struct {
	maxGap      units.Base2Bytes
	maxRange    units.Base2Bytes
	maxBytes    units.Base2Bytes
	concurrency int
}

func (opts *scanOpts) registerFlags(cmd *kingpin.CmdClause) {
	opts.bucket.registerScanFlags(cmd)
	opts.tracing.registerScanFlags(cmd)
	opts.internalAPI.registerScanInternalAPIFlags(cmd)
	opts.scan.registerScanFlags(cmd)
	opts.fetch.registerScanFlags(cmd)
}

func (opts *bucketOpts) registerScanFlags(cmd *kingpin.CmdClause) {
	cmd.Flag("objstore.config-file", "YAML file that contains object store configuration. See format details: https://thanos.io/tip/thanos/storage.md/#configuration").StringVar(&opts.objStoreConfigFile)
	cmd.Flag("objstore.config", "Alternative to 'objstore.config-file'. YAML content for object store configuration.").StringVar(&opts.objStoreConfig)
}

func (opts *tracingOpts) registerScanFlags(cmd *kingpin.CmdClause) {
	cmd.Flag("tracing.exporter.type", "type of tracing exporter").Default("NONE").EnumVar(&opts.exporterType, "NONE", "JAEGER", "STDOUT")
	cmd.Flag("tracing.jaeger.endpoint", "endpoint to send traces, eg. https://example.com:4318/v1/traces").StringVar(&opts.jaegerEndpoint)
	cmd.Flag("tracing.sampling.param", "sample of traces to send").Default("0.1").Float64Var(&opts.samplingParam)
	cmd.Flag("tracing.sampling.type", "type of sampling").Default("ALWAYS").EnumVar(&opts.samplingType, "PROBABILISTIC", "ALWAYS", "NEVER")
}

func (opts *apiOpts) registerScanInternalAPIFlags(cmd *kingpin.CmdClause) {
	cmd.Flag("http.internal.port", "port to host metrics and pprof while scanning (0 is disabled)").Default("0").IntVar(&opts.port)
	cmd.Flag("http.internal.shutdown-timeout", "timeout on shutdown").Default("10s").DurationVar(&opts.shutdownTimeout)
}

func (opts *scanQueryOpts) registerScanFlags(cmd *kingpin.CmdClause) {
	cmd.Flag("file", "object name of the parquet file").Required().StringVar(&opts.file)
	cmd.Flag("output", "file to write JSON lines to, stdout if empty").StringVar(&opts.output)
	cmd.Flag("columns", "columns to emit, all if empty").StringsVar(&opts.columns)
	MatchersVar(cmd.Flag("filter", "selector whose matchers filter rows, matcher names are column names, eg. '{name=\"x\", label=~\"a.*\"}'"), &opts.filters)
	cmd.Flag("row-groups", "row groups to read in this order, all if empty").IntsVar(&opts.rowGroups)
	cmd.Flag("offset", "rows that match the filters to skip").Default("0").Int64Var(&opts.offset)
	cmd.Flag("limit", "maximum amount of rows to emit. (0 is unlimited)").Default("0").Int64Var(&opts.limit)
	cmd.Flag("batch-size", "rows per decoded batch").Default("8192").IntVar(&opts.batchSize)
	cmd.Flag("read-buffer-size", "read buffer size for the file footer").Default("64KiB").BytesVar(&opts.readBufferSize)
}

func (opts *fetchOpts) registerScanFlags(cmd *kingpin.CmdClause) {
	cmd.Flag("fetch.max-gap", "the maximum acceptable gap when coalescing page reads.").Default("1MiB").BytesVar(&opts.maxGap)
	cmd.Flag("fetch.max-range", "coalesce page reads into ranges of this length to be scheduled concurrently.").Default("64MiB").BytesVar(&opts.maxRange)
	cmd.Flag("fetch.max-bytes", "the amount of bytes a scan can fetch. (0B is unlimited)").Default("0B").BytesVar(&opts.maxBytes)
	cmd.Flag("fetch.concurrency", "the maximum amount of concurrent reads per row group. (0 is unlimited)").Default("4").IntVar(&opts.concurrency)
}

func (opts scanQueryOpts) validate() error {
	return validation.ValidateStruct(&opts,
		validation.Field(&opts.file, validation.Required),
		validation.Field(&opts.offset, validation.Min(int64(0))),
		validation.Field(&opts.limit, validation.Min(int64(0))),
		validation.Field(&opts.batchSize, validation.Required, validation.Min(1)),
		validation.Field(&opts.rowGroups, validation.Each(validation.Min(0))),
	)
}

func (opts fetchOpts) validate() error {
	return validation.ValidateStruct(&opts,
		validation.Field(&opts.maxRange, validation.Required),
		validation.Field(&opts.concurrency, validation.Min(0)),
	)
}

func registerScanApp(app *kingpin.Application) (*kingpin.CmdClause, func(context.Context, *slog.Logger, *prometheus.Registry) error) {
	cmd := app.Command("scan", "read rows of a parquet file in object storage as JSON lines")

	var opts scanOpts
	opts.registerFlags(cmd)

	return cmd, func(ctx context.Context, log *slog.Logger, reg *prometheus.Registry) error {
		if err := opts.scan.validate(); err != nil {
			return fmt.Errorf("invalid scan flags: %w", err)
		}
		if err := opts.fetch.validate(); err != nil {
			return fmt.Errorf("invalid fetch flags: %w", err)
		}

		var g run.Group

		setupInterrupt(ctx, &g, log)

		shutdown, err := setupTracing(ctx, opts.tracing)
		if err != nil {
			return fmt.Errorf("unable to setup tracing: %w", err)
		}
		defer slogerrcapture.Do(log, func() error { return shutdown(context.Background()) }, "tracer shutdown")

		bkt, err := setupBucket(log, opts.bucket)
		if err != nil {
			return fmt.Errorf("unable to setup bucket: %w", err)
		}
		defer slogerrcapture.Do(log, bkt.Close, "bucket close")

		if opts.internalAPI.port != 0 {
			setupInternalAPI(&g, log, reg, opts.internalAPI)
		}

		out := io.Writer(os.Stdout)
		if opts.scan.output != "" {
			f, err := os.Create(opts.scan.output)
			if err != nil {
				return fmt.Errorf("unable to create output file: %w", err)
			}
			defer slogerrcapture.Do(log, f.Close, "output file close")
			out = f
		}

		scanCtx, scanCancel := context.WithCancel(ctx)
		g.Add(func() error {
			_, err := runScan(scanCtx, log, bkt, out, opts.scan, opts.fetch)
			return err
		}, func(error) {
			scanCancel()
		})
		return g.Run()
	}
}

type scanSummary struct {
	batches int
	rows    int64
}

// runScan streams the rows of one parquet file into w, one JSON object per row.
func runScan(ctx context.Context, log *slog.Logger, bkt objstore.BucketReader, w io.Writer, opts scanQueryOpts, fopts fetchOpts) (summary scanSummary, rerr error) {
	scanID := ulid.Make().String()
	ctx = ctxlog.With(ctxlog.WithLogger(ctx, log), slog.String("scan_id", scanID), slog.String("file", opts.file))
	log = ctxlog.Ctx(ctx)

	ctx, span := tracing.Tracer().Start(ctx, "Scan")
	defer func() { tracing.EndSpan(span, rerr) }()

	span.SetAttributes(attribute.String("scan_id", scanID))
	span.SetAttributes(attribute.String("file", opts.file))

	start := time.Now()

	f, err := storage.Open(ctx, bkt, opts.file, storage.ReadBufferSize(opts.readBufferSize))
	if err != nil {
		return summary, fmt.Errorf("unable to open file: %w", err)
	}

	quota := limits.NewQuota(int64(fopts.maxBytes))
	streamOpts, err := streamOptions(f, opts, fopts, quota)
	if err != nil {
		return summary, err
	}
	streamOpts = append(streamOpts, reader.Logger(ctxlog.Ctx(ctx)))

	s, err := reader.NewStream(ctx, f, streamOpts...)
	if err != nil {
		return summary, fmt.Errorf("unable to create stream: %w", err)
	}
	defer slogerrcapture.Do(log, s.Close, "stream close")

	bw := bufio.NewWriter(w)
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(bw)
	for rec, err := range s.Records(ctx) {
		if err != nil {
			return summary, fmt.Errorf("unable to read records: %w", err)
		}
		err := writeRecord(enc, rec)
		summary.batches++
		summary.rows += rec.NumRows()
		rec.Release()
		if err != nil {
			return summary, fmt.Errorf("unable to write records: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return summary, fmt.Errorf("unable to flush output: %w", err)
	}

	span.SetAttributes(attribute.Int64("rows", summary.rows))
	log.Info("Scan done",
		slog.Int("batches", summary.batches),
		slog.Int64("rows", summary.rows),
		slog.Duration("duration", time.Since(start)),
		slog.Int64("fetch_bytes_remaining", quota.Remaining()),
	)
	return summary, nil
}

func streamOptions(f *schema.File, opts scanQueryOpts, fopts fetchOpts, quota *limits.Quota) ([]reader.Option, error) {
	res := []reader.Option{
		reader.BatchSize(opts.batchSize),
		reader.FetchOptions(
			rowgroup.ByteQuota(quota),
			rowgroup.MaxGapSize(uint64(fopts.maxGap)),
			rowgroup.MaxRangeSize(uint64(fopts.maxRange)),
			rowgroup.Concurrency(fopts.concurrency),
		),
	}
	if len(opts.columns) != 0 {
		proj, err := schema.ProjectionFromNames(f.Schema(), opts.columns...)
		if err != nil {
			return nil, fmt.Errorf("unable to resolve columns: %w", err)
		}
		res = append(res, reader.Projection(proj))
	}
	if len(opts.filters) != 0 {
		preds, err := filter.FromMatchers(f.Schema(), opts.filters...)
		if err != nil {
			return nil, fmt.Errorf("unable to build filters: %w", err)
		}
		res = append(res, reader.Predicates(preds...))
	}
	if len(opts.rowGroups) != 0 {
		res = append(res, reader.RowGroups(opts.rowGroups...))
	}
	if opts.offset != 0 {
		res = append(res, reader.Offset(opts.offset))
	}
	if opts.limit != 0 {
		res = append(res, reader.Limit(opts.limit))
	}
	return res, nil
}

func writeRecord(enc *jsoniter.Encoder, rec arrow.Record) error {
	row := make(map[string]any, rec.NumCols())
	for i := range int(rec.NumRows()) {
		for j, col := range rec.Columns() {
			row[rec.ColumnName(j)] = col.GetOneForMarshal(i)
		}
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}
