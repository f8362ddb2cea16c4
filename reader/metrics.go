// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package reader

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeDecoded      = "decoded"
	outcomeFiltered     = "filtered"
	outcomeLimitReached = "limit_reached"
	outcomeError        = "error"
)

var (
	rowGroupsRead = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "row_groups_read_total",
		Help: "Row groups processed by scans, by outcome",
	}, []string{"outcome"},
	)
	rowsSelected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rows_selected_total",
		Help: "Rows that survived predicates, offset and limit and were decoded",
	})
	predicateRowsEvaluated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "predicate_rows_evaluated_total",
		Help: "Rows decoded to evaluate predicates",
	})
	batchesEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "batches_emitted_total",
		Help: "Record batches handed out by streams",
	})
)

func RegisterMetrics(reg prometheus.Registerer) error {
	return errors.Join(
		reg.Register(rowGroupsRead),
		reg.Register(rowsSelected),
		reg.Register(predicateRowsEvaluated),
		reg.Register(batchesEmitted),
	)
}
