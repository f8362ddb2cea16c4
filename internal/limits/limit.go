// Copyright (c) 2025 Cloudflare, Inc.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package limits

import (
	"errors"
	"fmt"
	"sync"
)

type resourceExhausted struct {
	quota     int64
	requested int64
}

func (re *resourceExhausted) Error() string {
	return fmt.Sprintf("resource exhausted (quota %d, requested %d)", re.quota, re.requested)
}

func IsResourceExhausted(err error) bool {
	var re *resourceExhausted
	return errors.As(err, &re)
}

// Quota is a budget that is drawn down by Reserve and never replenished. It
// is safe for concurrent use.
type Quota struct {
	mu sync.Mutex
	q  int64
	u  int64
}

func NewQuota(n int64) *Quota {
	return &Quota{q: n, u: n}
}

func UnlimitedQuota() *Quota {
	return NewQuota(0)
}

func (q *Quota) Reserve(n int64) error {
	if q.q == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.u-n < 0 {
		return &resourceExhausted{quota: q.q, requested: n}
	}
	q.u -= n
	return nil
}

// Remaining returns the unreserved budget, or -1 for unlimited quotas.
func (q *Quota) Remaining() int64 {
	if q.q == 0 {
		return -1
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	return q.u
}
