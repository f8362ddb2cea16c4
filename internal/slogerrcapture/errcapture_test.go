// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package slogerrcapture

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/efficientgo/core/errors"
	"github.com/stretchr/testify/require"
)

func TestDo(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	Do(logger, func() error { return nil }, "noop")
	Do(logger, func() error { return fmt.Errorf("close: %w", os.ErrClosed) }, "double close")
	Do(logger, func() error { return context.Canceled }, "canceled")
	require.Empty(t, buf.String())

	Do(logger, func() error { return errors.New("boom") }, "stream %s", "close")
	require.Contains(t, buf.String(), "stream close: boom")
}
