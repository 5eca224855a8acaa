/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logbuffer keeps the most recent log records in memory so operators
// can inspect scheduler activity without shipping logs anywhere.
package logbuffer

import (
	"encoding/json"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogEntry represents a single log entry.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// campaignID returns the campaign the entry is about, if any.
func (e LogEntry) campaignID() string {
	id, _ := e.Fields["campaign_id"].(string)
	return id
}

// Buffer is a thread-safe ring buffer for log entries.
type Buffer struct {
	mu       sync.RWMutex
	entries  []LogEntry
	capacity int
	head     int
	count    int
}

// New creates a new log buffer with the specified capacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 5000
	}
	return &Buffer{
		entries:  make([]LogEntry, capacity),
		capacity: capacity,
	}
}

// Add adds a log entry to the buffer, overwriting the oldest when full.
func (b *Buffer) Add(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// each visits entries oldest first. Callers hold at least a read lock.
func (b *Buffer) each(fn func(LogEntry)) {
	start := 0
	if b.count == b.capacity {
		start = b.head
	}
	for i := 0; i < b.count; i++ {
		fn(b.entries[(start+i)%b.capacity])
	}
}

// GetAll returns all log entries in chronological order.
func (b *Buffer) GetAll() []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]LogEntry, 0, b.count)
	b.each(func(e LogEntry) { result = append(result, e) })
	return result
}

// QueryParams filters Query results. Zero values match everything.
type QueryParams struct {
	Level      string
	Component  string
	CampaignID string
	Search     string // case-insensitive, over message, component and string fields
	Since      time.Time
	Limit      int
	Descending bool
}

func (p QueryParams) match(e LogEntry) bool {
	if p.Level != "" && e.Level != p.Level {
		return false
	}
	if p.Component != "" && e.Component != p.Component {
		return false
	}
	if p.CampaignID != "" && e.campaignID() != p.CampaignID {
		return false
	}
	if !p.Since.IsZero() && e.Timestamp.Before(p.Since) {
		return false
	}
	if p.Search == "" {
		return true
	}
	needle := strings.ToLower(p.Search)
	if strings.Contains(strings.ToLower(e.Message), needle) || strings.Contains(strings.ToLower(e.Component), needle) {
		return true
	}
	for _, v := range e.Fields {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

// Query returns log entries matching params.
func (b *Buffer) Query(params QueryParams) []LogEntry {
	var filtered []LogEntry
	for _, entry := range b.GetAll() {
		if params.match(entry) {
			filtered = append(filtered, entry)
		}
	}

	if params.Descending {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}
	if params.Limit > 0 && len(filtered) > params.Limit {
		filtered = filtered[:params.Limit]
	}
	return filtered
}

// Stats summarizes the buffer contents.
type Stats struct {
	Capacity   int            `json:"capacity"`
	Count      int            `json:"count"`
	LevelCount map[string]int `json:"level_count"`
	Components []string       `json:"components"`
}

// Stats returns counts per level and the components seen, optionally limited
// to one campaign.
func (b *Buffer) Stats(campaignID string) Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := Stats{Capacity: b.capacity, LevelCount: make(map[string]int)}
	components := make(map[string]bool)
	b.each(func(e LogEntry) {
		if campaignID != "" && e.campaignID() != campaignID {
			return
		}
		stats.Count++
		stats.LevelCount[e.Level]++
		if e.Component != "" {
			components[e.Component] = true
		}
	})

	stats.Components = make([]string, 0, len(components))
	for c := range components {
		stats.Components = append(stats.Components, c)
	}
	sort.Strings(stats.Components)
	return stats
}

// Writer captures zerolog JSON records into a Buffer.
type Writer struct {
	buffer   *Buffer
	fallback io.Writer
}

// NewWriter creates a writer that captures logs to the buffer and copies them
// to fallback when it is non-nil.
func NewWriter(buffer *Buffer, fallback io.Writer) *Writer {
	return &Writer{buffer: buffer, fallback: fallback}
}

// Write implements io.Writer. Records that are not JSON objects are only
// passed to the fallback.
func (w *Writer) Write(p []byte) (int, error) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err == nil {
		entry := LogEntry{Timestamp: time.Now(), Fields: make(map[string]any)}
		for k, v := range raw {
			switch k {
			case "level":
				entry.Level, _ = v.(string)
			case "message":
				entry.Message, _ = v.(string)
			case "component":
				entry.Component, _ = v.(string)
			case "time":
				switch ts := v.(type) {
				case float64:
					entry.Timestamp = time.Unix(int64(ts), 0)
				case string:
					if t, err := time.Parse(time.RFC3339, ts); err == nil {
						entry.Timestamp = t
					}
				}
			default:
				entry.Fields[k] = v
			}
		}
		w.buffer.Add(entry)
	}

	if w.fallback != nil {
		return w.fallback.Write(p)
	}
	return len(p), nil
}
