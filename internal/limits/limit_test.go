// Copyright (c) 2025 Cloudflare, Inc.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package limits

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuota(t *testing.T) {
	q := NewQuota(10)
	require.NoError(t, q.Reserve(4))
	require.NoError(t, q.Reserve(6))
	require.Zero(t, q.Remaining())

	err := q.Reserve(1)
	require.True(t, IsResourceExhausted(err))
	require.True(t, IsResourceExhausted(fmt.Errorf("wrapped: %w", err)))
	require.Equal(t, "resource exhausted (quota 10, requested 1)", err.Error())

	u := UnlimitedQuota()
	require.NoError(t, u.Reserve(1<<40))
	require.Equal(t, int64(-1), u.Remaining())
}

func TestQuotaConcurrentReserve(t *testing.T) {
	q := NewQuota(100)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		rejected int
	)
	for range 150 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := q.Reserve(1); err != nil {
				mu.Lock()
				rejected++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 50, rejected)
	require.Zero(t, q.Remaining())
}
