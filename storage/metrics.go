// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package storage

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	bucketRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bucket_requests_total",
		Help: "Total amount of requests to object storage",
	})
	bucketRequestBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bucket_request_bytes_total",
		Help: "Total amount of bytes requested from object storage",
	})
)

func RegisterMetrics(reg prometheus.Registerer) error {
	bucketRequests.Add(0)
	bucketRequestBytes.Add(0)

	return errors.Join(
		reg.Register(bucketRequests),
		reg.Register(bucketRequestBytes),
	)
}
