// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package rowgroup

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	PurposePredicate  = "predicate"
	PurposeProjection = "projection"
)

type ctxPurposeKey struct{}

var ctxPurposeKeyVal = ctxPurposeKey{}

// ContextWithPurpose labels the fetches issued with ctx, either predicate
// evaluation or the final projection.
func ContextWithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, ctxPurposeKeyVal, purpose)
}

func purposeFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxPurposeKeyVal).(string); ok {
		return v
	}
	return PurposeProjection
}

var (
	columnFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "column_fetched_total",
		Help: "How often we had to fetch bytes of a column chunk",
	}, []string{"column", "purpose"},
	)
	pagesFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pages_fetched_total",
		Help: "Pages fetched into memory, whole chunks without a page index count as one page",
	}, []string{"column", "purpose"},
	)
	bytesFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fetched_size_bytes_total",
		Help: "Cummulative size of coalesced byte ranges fetched into memory",
	}, []string{"column", "purpose"},
	)
)

func RegisterMetrics(reg prometheus.Registerer) error {
	return errors.Join(
		reg.Register(columnFetched),
		reg.Register(pagesFetched),
		reg.Register(bytesFetched),
	)
}
