/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"fmt"
	"testing"
	"time"
)

func TestHash32(t *testing.T) {
	tests := []struct {
		in   string
		want int32
	}{
		{"", 0},
		{"a", 97},
		{"ab", 97*31 + 98},
		{"é", 0xe9},
		// U+1F600 is the surrogate pair D83D DE00.
		{"\U0001F600", 0xd83d*31 + 0xde00},
	}
	for _, tt := range tests {
		if got := Hash32(tt.in); got != tt.want {
			t.Fatalf("Hash32(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}

	// Long inputs wrap instead of overflowing.
	long := Hash32("a.very.long.address.that.overflows.thirty.two.bits@example.com")
	if long == 0 {
		t.Fatalf("Hash32 of long input collapsed to zero")
	}
}

func TestJitterOffsetBounds(t *testing.T) {
	j := Jitter{Enabled: true, MaxMinutes: 3}
	for i := 0; i < 1000; i++ {
		seed := fmt.Sprintf("user%d@example.com", i)
		off := j.Offset(seed)
		if off < -3*time.Minute || off > 3*time.Minute {
			t.Fatalf("Offset(%q) = %v outside ±3m", seed, off)
		}
		if off != off.Round(time.Second) {
			t.Fatalf("Offset(%q) = %v not whole seconds", seed, off)
		}
		if again := j.Offset(seed); again != off {
			t.Fatalf("Offset(%q) not deterministic: %v then %v", seed, off, again)
		}
	}
}

func TestJitterOffsetEdges(t *testing.T) {
	j := Jitter{Enabled: true, MaxMinutes: 3}
	if got := j.Offset(""); got != -3*time.Minute {
		t.Fatalf("Offset(\"\") = %v, want -3m", got)
	}

	off := Jitter{Enabled: false, MaxMinutes: 3}
	base := at(2, 9, 0)
	if got := off.ApplyJitter(base, "someone@example.com"); !got.Equal(base) {
		t.Fatalf("disabled jitter moved %v to %v", base, got)
	}
}
