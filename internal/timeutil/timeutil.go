/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timeutil converts between time.Time and the textual timestamps
// exchanged with storage, exports and API clients.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// StorageLayout is RFC 3339 in UTC with millisecond precision.
const StorageLayout = "2006-01-02T15:04:05.000Z07:00"

var parseLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ToStorageFormat renders t in UTC with millisecond precision.
func ToStorageFormat(t time.Time) string {
	return t.UTC().Format(StorageLayout)
}

// Parse accepts RFC 3339 (with or without fractional seconds), a space
// separated date-time, or a bare date. Values without an offset are UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseOptional is Parse for optional inputs: an empty string yields nil.
func ParseOptional(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
