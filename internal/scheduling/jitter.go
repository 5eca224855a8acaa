/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"time"
	"unicode/utf16"
)

// Hash32 is the classic h = h*31 + c string hash over UTF-16 code units,
// wrapped to 32 bits. Characters above U+FFFF contribute both surrogates.
func Hash32(s string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(u)
	}
	return h
}

// Offset maps seed onto [-MaxMinutes, +MaxMinutes] at second precision.
// The same seed always yields the same offset.
func (j Jitter) Offset(seed string) time.Duration {
	if !j.Enabled || j.MaxMinutes <= 0 {
		return 0
	}
	unit := float64(uint32(Hash32(seed))) / (1 << 32)
	minutes := (unit*2 - 1) * float64(j.MaxMinutes)
	return time.Duration(minutes * float64(time.Minute)).Round(time.Second)
}

// ApplyJitter shifts base by the seed's offset. Consecutive leads are not
// re-spaced afterwards, so two jittered sends may sit closer together than the
// sending interval.
func (j Jitter) ApplyJitter(base time.Time, seed string) time.Time {
	return base.Add(j.Offset(seed))
}
