package main

import (
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// recentTranscripts remembers the last few displayed lines so near-identical
// interim updates do not spam the terminal. A line counts as seen when its
// normalized Levenshtein similarity to any remembered line reaches the
// threshold.
type recentTranscripts struct {
	mu        sync.Mutex
	lines     []string
	next      int
	threshold float64
}

func newRecentTranscripts(capacity int, threshold float64) *recentTranscripts {
	if capacity <= 0 {
		capacity = 1
	}
	return &recentTranscripts{
		lines:     make([]string, 0, capacity),
		threshold: threshold,
	}
}

// Seen reports whether text is a near-duplicate of a remembered line and
// remembers it when it is new.
func (rt *recentTranscripts) Seen(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return true
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	for _, line := range rt.lines {
		if similarity(normalized, line) >= rt.threshold {
			return true
		}
	}

	if len(rt.lines) < cap(rt.lines) {
		rt.lines = append(rt.lines, normalized)
	} else {
		rt.lines[rt.next] = normalized
		rt.next = (rt.next + 1) % cap(rt.lines)
	}
	return false
}

func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}
