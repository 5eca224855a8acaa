/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// HourValue is an hour-of-day exactly as it arrived from an untrusted source.
// Campaign rows, API bodies and plan files carry numbers ("9"), strings ("09:00")
// or garbage; ParseHour turns it into an int at the boundary.
type HourValue struct {
	raw string
	set bool
}

// Hour wraps a numeric hour.
func Hour(h int) HourValue {
	return HourValue{raw: strconv.Itoa(h), set: true}
}

// HourText wraps a textual hour.
func HourText(s string) HourValue {
	return HourValue{raw: s, set: true}
}

// IsSet reports whether a value was supplied at all.
func (h HourValue) IsSet() bool { return h.set }

func (h HourValue) String() string { return h.raw }

// UnmarshalJSON accepts numbers, strings and null.
func (h *HourValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*h = HourValue{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*h = HourText(s)
		return nil
	}
	*h = HourText(string(data))
	return nil
}

// MarshalJSON writes numeric hours as numbers and anything else as a string.
func (h HourValue) MarshalJSON() ([]byte, error) {
	if !h.set {
		return []byte("null"), nil
	}
	if n, err := strconv.Atoi(h.raw); err == nil {
		return []byte(strconv.Itoa(n)), nil
	}
	return json.Marshal(h.raw)
}

// UnmarshalYAML accepts any scalar.
func (h *HourValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		*h = HourValue{}
		return nil
	}
	*h = HourText(node.Value)
	return nil
}

// ParseHour converts a raw hour to an int. "9", "09", "9.5" and "09:30" all
// yield 9; anything non-numeric, and an absent value, yields def.
func ParseHour(h HourValue, def int) (int, bool) {
	if !h.set {
		return def, true
	}
	s := strings.TrimSpace(h.raw)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int(math.Max(-1, math.Min(f, 24))), true
	}
	return def, false
}
