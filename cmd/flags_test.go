// Copyright (c) 2025 Cloudflare, Inc.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package main

import (
	"testing"

	"github.com/prometheus/prometheus/model/labels"
	"github.com/stretchr/testify/require"
	"gopkg.in/alecthomas/kingpin.v2"
)

func TestMatchersVar(t *testing.T) {
	app := kingpin.New("test", "")

	var ms matcherSlice
	MatchersVar(app.Flag("filter", ""), &ms)

	_, err := app.Parse([]string{`--filter={name="a"}`, `--filter={label=~"x.*", flag!="false"}`})
	require.NoError(t, err)

	require.Len(t, ms, 3)
	require.Equal(t, labels.MatchRegexp, ms[1].Type)
	require.Equal(t, "label", ms[1].Name)
	require.Equal(t, "x.*", ms[1].Value)
	require.Equal(t, `name="a",label=~"x.*",flag!="false"`, ms.String())

	_, err = app.Parse([]string{`--filter={name=}`})
	require.Error(t, err)
}
