// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

// Package slogerrcapture logs the errors of deferred best effort calls.
package slogerrcapture

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/efficientgo/core/errors"
)

// Do runs fn and logs its error, if any, wrapped with the formatted message.
// Double closes and cancellations are expected on interrupted scans and are
// not logged.
func Do(logger *slog.Logger, fn func() error, format string, a ...any) {
	err := fn()
	if err == nil || errors.Is(err, os.ErrClosed) || errors.Is(err, context.Canceled) {
		return
	}
	logger.Error("Deferred call failed", slog.String("err", errors.Wrap(err, fmt.Sprintf(format, a...)).Error()))
}
