// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/baidubce/bce-sdk-go/util/log.NewLogger.func1"))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestExpand(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "test_value")

	input := []byte("value: $(TEST_ENV_VAR)\nmissing: $(MISSING_ENV_VAR)\nliteral: $TEST_ENV_VAR\n")
	expected := []byte("value: test_value\nmissing: \nliteral: $TEST_ENV_VAR\n")

	require.Equal(t, string(expected), string(ExpandEnvParens(input)))
}

func TestSetupBucket(t *testing.T) {
	t.Run("filesystem config from file", func(t *testing.T) {
		dir := t.TempDir()
		configFile := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(configFile, []byte("type: FILESYSTEM\nconfig:\n  directory: "+dir+"\n"), 0o644))

		bkt, err := setupBucket(discardLogger(), bucketOpts{objStoreConfigFile: configFile})
		require.NoError(t, err)
		require.NoError(t, bkt.Iter(t.Context(), "", func(string) error { return nil }))
	})
	t.Run("filesystem config from inline yaml with environment", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("SCAN_BUCKET_DIR", dir)

		bkt, err := setupBucket(discardLogger(), bucketOpts{objStoreConfig: "type: FILESYSTEM\nconfig:\n  directory: $(SCAN_BUCKET_DIR)\n"})
		require.NoError(t, err)
		require.NoError(t, bkt.Upload(t.Context(), "obj", strings.NewReader("x")))
		_, err = os.Stat(filepath.Join(dir, "obj"))
		require.NoError(t, err)
	})
	t.Run("empty config", func(t *testing.T) {
		_, err := setupBucket(discardLogger(), bucketOpts{})
		require.Error(t, err)
	})
	t.Run("invalid config", func(t *testing.T) {
		_, err := setupBucket(discardLogger(), bucketOpts{objStoreConfig: "invalid: yaml: content"})
		require.Error(t, err)
	})
}

func TestSetupTracingNone(t *testing.T) {
	shutdown, err := setupTracing(t.Context(), tracingOpts{exporterType: "NONE"})
	require.NoError(t, err)
	require.NoError(t, shutdown(t.Context()))

	_, err = setupTracing(t.Context(), tracingOpts{exporterType: "STDOUT", samplingType: "SOMETIMES"})
	require.Error(t, err)
}
