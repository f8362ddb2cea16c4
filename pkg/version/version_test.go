// Copyright (c) The Thanos Authors.
// Licensed under the Apache License, Version 2.0.

package version

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPrint(t *testing.T) {
	require.True(t, strings.HasPrefix(Print(), "parquet-scan, version "))
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(Collector()))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 1)
	require.Equal(t, "parquet_scan_build_info", mfs[0].GetName())
}
