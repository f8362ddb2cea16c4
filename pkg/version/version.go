// Copyright (c) The Thanos Authors.
// Licensed under the Apache License, Version 2.0.

package version

import (
	"runtime/debug"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	promversion "github.com/prometheus/common/version"
)

const program = "parquet-scan"

// Build information. Populated at build-time.
var (
	Version   = "unknown"
	Revision  = "unknown"
	Branch    = "unknown"
	BuildUser = "unknown"
	BuildDate = "unknown"
)

// Print returns version information for parquet-scan.
func Print() string {
	return promversion.Print(program)
}

// Collector exposes the build information as a build_info metric.
func Collector() prometheus.Collector {
	return versioncollector.NewCollector(strings.ReplaceAll(program, "-", "_"))
}

func version() string {
	if Version != "unknown" {
		return Version
	}
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		return buildInfo.Main.Version
	}
	return "unknown"
}

func revision() string {
	if Revision != "unknown" {
		return Revision
	}
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range buildInfo.Settings {
			if setting.Key == "vcs.revision" {
				if len(setting.Value) > 7 {
					return setting.Value[:7]
				}
				return setting.Value
			}
		}
	}
	return "unknown"
}

func init() {
	promversion.Version = version()
	promversion.Revision = revision()
	promversion.Branch = Branch
	promversion.BuildUser = BuildUser
	promversion.BuildDate = BuildDate
}
