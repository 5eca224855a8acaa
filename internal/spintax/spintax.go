/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package spintax expands "{a|b|c}" variation groups and "{{field}}"
// personalization placeholders in campaign templates.
package spintax

import (
	"hash/fnv"
	"math/rand/v2"
	"strings"
)

// Resolve picks one alternative from every "{a|b}" group, recursing into
// nested groups. The same seed always yields the same text. "{{field}}"
// placeholders pass through untouched, and a "{" with no closing brace is
// kept as a literal.
func Resolve(template, seed string) string {
	if !strings.Contains(template, "{") {
		return template
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	p := &parser{src: template, rng: rand.New(rand.NewPCG(h.Sum64(), 0x626f62))}
	return p.text(false)
}

type parser struct {
	src string
	pos int
	rng *rand.Rand
	// unclosed holds offsets of '{' whose group ran off the end of src.
	// Whether a group closes depends only on the text after it, so each
	// offset is tried once and nested stray braces stay polynomial.
	unclosed map[int]bool
}

// text consumes until end of input or, inside a group, an unnested '|' or
// '}', which it leaves for the caller.
func (p *parser) text(inGroup bool) string {
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case strings.HasPrefix(p.src[p.pos:], "{{"):
			end := strings.Index(p.src[p.pos+2:], "}}")
			if end < 0 {
				b.WriteString(p.src[p.pos:])
				p.pos = len(p.src)
				continue
			}
			b.WriteString(p.src[p.pos : p.pos+2+end+2])
			p.pos += 2 + end + 2
		case c == '{':
			start := p.pos
			p.pos++
			if p.unclosed[start] {
				b.WriteByte('{')
				continue
			}
			if choice, ok := p.group(); ok {
				b.WriteString(choice)
			} else {
				if p.unclosed == nil {
					p.unclosed = make(map[int]bool)
				}
				p.unclosed[start] = true
				b.WriteByte('{')
				p.pos = start + 1
			}
		case inGroup && (c == '|' || c == '}'):
			return b.String()
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return b.String()
}

// group parses alternatives up to the closing brace. Every alternative is
// parsed, so the random stream advances the same way whichever is chosen.
func (p *parser) group() (string, bool) {
	var options []string
	for {
		options = append(options, p.text(true))
		if p.pos >= len(p.src) {
			return "", false
		}
		sep := p.src[p.pos]
		p.pos++
		if sep == '}' {
			break
		}
	}
	return options[p.rng.IntN(len(options))], true
}

// Personalize replaces "{{field}}" placeholders with values from fields. Keys
// match case-insensitively. "{{field|fallback}}" uses fallback when the value
// is missing or blank; otherwise a missing field renders empty.
func Personalize(template string, fields map[string]string) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	lookup := make(map[string]string, len(fields))
	for k, v := range fields {
		lookup[strings.ToLower(strings.TrimSpace(k))] = v
	}

	var b strings.Builder
	rest := template
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			break
		}
		end := strings.Index(rest[open+2:], "}}")
		if end < 0 {
			break
		}
		b.WriteString(rest[:open])

		key, fallback, _ := strings.Cut(rest[open+2:open+2+end], "|")
		value := lookup[strings.ToLower(strings.TrimSpace(key))]
		if strings.TrimSpace(value) == "" {
			value = strings.TrimSpace(fallback)
		}
		b.WriteString(value)

		rest = rest[open+2+end+2:]
	}
	b.WriteString(rest)
	return b.String()
}

// Render resolves spintax for seed and then personalizes the result.
func Render(template, seed string, fields map[string]string) string {
	return Personalize(Resolve(template, seed), fields)
}
