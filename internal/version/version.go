/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version reports build information.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of bobinbox.
// This is set at build time via ldflags:
//
//	-X github.com/Acidsyd/BOB-inbox-sub010/internal/version.Version=X.Y.Z
var Version = "0.4.0"

// Commit is the git revision, also set via ldflags.
var Commit = "unknown"

// String returns a one-line build description.
func String() string {
	return fmt.Sprintf("bobinbox %s (%s, %s)", Version, Commit, runtime.Version())
}
