// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/alecthomas/kingpin.v2"

	ctxlog "github.com/thanos-io/parquet-scan/internal/log"
	"github.com/thanos-io/parquet-scan/pkg/version"
	"github.com/thanos-io/parquet-scan/reader"
	"github.com/thanos-io/parquet-scan/rowgroup"
	"github.com/thanos-io/parquet-scan/storage"
)

var logLevelMap = map[string]slog.Level{
	"DEBUG": slog.LevelDebug,
	"INFO":  slog.LevelInfo,
	"WARN":  slog.LevelWarn,
	"ERROR": slog.LevelError,
}

func main() {
	app := kingpin.New("parquet-scan", "read rows out of parquet files in object storage")
	app.Version(version.Print())
	memratio := app.Flag("memlimit.ratio", "gomemlimit ratio").Default("0.9").Float()
	logLevel := app.Flag("logger.level", "log level").Default("INFO").Enum("DEBUG", "INFO", "WARN", "ERROR")
	metricsPrefix := app.Flag("metrics.prefix", "prefix for all metrics").Default("parquet_scan_").String()

	scan, scanF := registerScanApp(app)
	parsed := kingpin.MustParse(app.Parse(os.Args[1:]))

	// records go to stdout, logs must not interleave with them
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevelMap[*logLevel],
	}))
	ctxlog.SetDefaultLogger(log)

	memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(*memratio),
		memlimit.WithProvider(
			memlimit.ApplyFallback(
				memlimit.FromCgroup,
				memlimit.FromSystem,
			),
		),
	)

	reg, err := setupPrometheusRegistry(*metricsPrefix)
	if err != nil {
		log.Error("Could not setup prometheus", slog.Any("err", err))
		return
	}

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGTERM, syscall.SIGINT)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		s := <-sigC
		log.Warn("Caught signal, canceling context", slog.String("signal", s.String()))
		cancel()
	}()

	switch parsed {
	case scan.FullCommand():
		log.Debug("Running scan")
		if err := scanF(ctx, log, reg); err != nil {
			log.Error("Error running scan", slog.Any("err", err))
			os.Exit(1)
		}
	}
	log.Debug("Done")
}

func setupPrometheusRegistry(metricsPrefix string) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	registerer := prometheus.WrapRegistererWithPrefix(metricsPrefix, reg)

	if err := errors.Join(
		reg.Register(version.Collector()),
		storage.RegisterMetrics(prometheus.WrapRegistererWithPrefix("storage_", registerer)),
		rowgroup.RegisterMetrics(prometheus.WrapRegistererWithPrefix("rowgroup_", registerer)),
		reader.RegisterMetrics(prometheus.WrapRegistererWithPrefix("reader_", registerer)),
	); err != nil {
		return nil, fmt.Errorf("unable to register metrics: %w", err)
	}
	return reg, nil
}
