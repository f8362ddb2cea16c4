// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package rowgroup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchedReaderAt(t *testing.T) {
	r := fetchedReaderAt{
		leaf: 1,
		ranges: []fetchedRange{
			{off: 10, data: []byte("abcde")},
			{off: 15, data: []byte("fgh")},
			{off: 16, data: []byte("GHIJ")},
			{off: 40, data: []byte("xyz")},
		},
	}

	t.Run("within one range", func(t *testing.T) {
		buf := make([]byte, 3)
		n, err := r.ReadAt(buf, 11)
		require.NoError(t, err)
		require.Equal(t, 3, n)
		require.Equal(t, "bcd", string(buf))
	})

	t.Run("across adjacent and overlapping ranges", func(t *testing.T) {
		buf := make([]byte, 10)
		n, err := r.ReadAt(buf, 10)
		require.NoError(t, err)
		require.Equal(t, 10, n)
		require.Equal(t, "abcdefghIJ", string(buf))
	})

	t.Run("short read past the fetched bytes", func(t *testing.T) {
		buf := make([]byte, 8)
		n, err := r.ReadAt(buf, 17)
		require.ErrorIs(t, err, ErrNotFetched)
		require.Equal(t, 3, n)
		require.Equal(t, "HIJ", string(buf[:n]))
	})

	t.Run("not fetched", func(t *testing.T) {
		n, err := r.ReadAt(make([]byte, 2), 30)
		require.ErrorIs(t, err, ErrNotFetched)
		require.Zero(t, n)
	})

	t.Run("negative offset", func(t *testing.T) {
		_, err := r.ReadAt(make([]byte, 2), -1)
		require.Error(t, err)
	})
}
