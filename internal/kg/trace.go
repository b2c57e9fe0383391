package kg

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// TraceStep is one recorded pipeline step with rich debugging detail
// (prompt previews, hashes, timings). Not durable, not the source of truth;
// the audit log is.
type TraceStep struct {
	Name   string         `json:"name"`
	At     time.Time      `json:"at"`
	Detail map[string]any `json:"detail,omitempty"`
}

type TraceEntry struct {
	DocID     string      `json:"doc_id"`
	StartedAt time.Time   `json:"started_at"`
	OK        bool        `json:"ok"`
	ErrorCode string      `json:"error_code,omitempty"`
	Steps     []TraceStep `json:"steps"`
}

// TraceBuffer keeps a bounded per-project ring of recent ingestion attempts
// for interactive debugging.
type TraceBuffer struct {
	mu        sync.Mutex
	byProject map[string][]TraceEntry
	max       int
}

func NewTraceBuffer(maxPerProject int) *TraceBuffer {
	if maxPerProject <= 0 {
		maxPerProject = 20
	}
	return &TraceBuffer{
		byProject: map[string][]TraceEntry{},
		max:       maxPerProject,
	}
}

func (t *TraceBuffer) Push(projectID string, e TraceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries := append(t.byProject[projectID], e)
	if len(entries) > t.max {
		entries = entries[len(entries)-t.max:]
	}
	t.byProject[projectID] = entries
}

// Recent returns up to n most recent entries, newest last.
func (t *TraceBuffer) Recent(projectID string, n int) []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries := t.byProject[projectID]
	if n <= 0 || n > len(entries) {
		n = len(entries)
	}
	out := make([]TraceEntry, n)
	copy(out, entries[len(entries)-n:])
	return out
}

// PreviewHash is a short stable fingerprint for prompt/text previews, so the
// trace can show "same input as last time" without retaining full text.
func PreviewHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// Preview clips s for trace detail fields.
func Preview(s string, max int) string {
	if max <= 0 {
		max = 160
	}
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
