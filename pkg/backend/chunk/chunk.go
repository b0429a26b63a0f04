// Copyright 2024-2026 Aiku AI

// Package chunk splits outgoing message bodies into platform-sized parts
// while keeping fenced code blocks well formed in every part.
package chunk

import "strings"

// Fence is the Markdown code-fence marker.
const Fence = "```"

// Split breaks body into parts of at most limit bytes. It prefers breaking
// after a line, falls back to hard-splitting an oversized line, and never
// splits inside a multi-byte rune. It does not repair code fences; use
// Prepare for bodies that may contain them.
func Split(body string, limit int) []string {
	if limit <= 0 || len(body) <= limit {
		return []string{body}
	}

	var parts []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
		}
	}

	for _, line := range splitAfter(body, "\n") {
		if len(line) > limit {
			flush()
			rest := line
			for len(rest) > limit {
				cut := runeBoundary(rest, limit)
				parts = append(parts, rest[:cut])
				rest = rest[cut:]
			}
			cur.WriteString(rest)
			continue
		}
		if cur.Len()+len(line) > limit {
			flush()
		}
		cur.WriteString(line)
	}
	flush()

	if len(parts) == 0 {
		return []string{""}
	}
	return parts
}

// Prepare returns body chunked and ready for sending: parts are split with
// Split, then repaired so every part carries an even number of fence markers.
// If the body opens with a fence, continuation parts that do not already start
// with one get an opening fence prepended, so each part renders as the same
// code block it was cut from.
func Prepare(body string, limit int) []string {
	parts := Split(body, limit)

	if len(parts) == 1 {
		if strings.Count(parts[0], Fence)%2 != 0 {
			parts[0] += "\n" + Fence + "\n"
		}
		return parts
	}

	fenced := strings.HasPrefix(body, Fence)
	for i, part := range parts {
		if fenced && !strings.HasPrefix(part, Fence) {
			part = Fence + "\n" + part
		}
		if strings.Count(part, Fence)%2 != 0 {
			part += "\n" + Fence + "\n"
		}
		parts[i] = part
	}
	return parts
}

// splitAfter splits s after every occurrence of sep, keeping the separator
// attached to the preceding segment and dropping a trailing empty segment.
func splitAfter(s, sep string) []string {
	segs := strings.SplitAfter(s, sep)
	if n := len(segs); n > 0 && segs[n-1] == "" {
		segs = segs[:n-1]
	}
	return segs
}

// runeBoundary returns the largest cut <= limit that does not land inside a
// multi-byte rune.
func runeBoundary(s string, limit int) int {
	cut := limit
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		// A single rune longer than the limit; emit it whole rather
		// than corrupt it.
		cut = limit
		for cut < len(s) && !utf8RuneStart(s[cut]) {
			cut++
		}
	}
	return cut
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
