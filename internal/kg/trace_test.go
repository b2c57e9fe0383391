package kg

import (
	"fmt"
	"testing"
	"time"
)

func TestTraceBufferBounded(t *testing.T) {
	buf := NewTraceBuffer(3)
	for i := 0; i < 10; i++ {
		buf.Push("p1", TraceEntry{DocID: fmt.Sprintf("d%d", i), StartedAt: time.Now()})
	}
	entries := buf.Recent("p1", 0)
	if len(entries) != 3 {
		t.Fatalf("expected ring of 3, got %d", len(entries))
	}
	if entries[0].DocID != "d7" || entries[2].DocID != "d9" {
		t.Fatalf("expected newest-last window d7..d9, got %+v", entries)
	}
}

func TestTraceBufferRecentN(t *testing.T) {
	buf := NewTraceBuffer(10)
	for i := 0; i < 5; i++ {
		buf.Push("p1", TraceEntry{DocID: fmt.Sprintf("d%d", i)})
	}
	got := buf.Recent("p1", 2)
	if len(got) != 2 || got[1].DocID != "d4" {
		t.Fatalf("expected the 2 newest entries, got %+v", got)
	}
	if len(buf.Recent("p2", 0)) != 0 {
		t.Fatalf("unknown project should return no entries")
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("short", 10); got != "short" {
		t.Fatalf("short strings pass through, got %q", got)
	}
	long := Preview("abcdefghij", 4)
	if long != "abcd…" {
		t.Fatalf("expected clipped preview, got %q", long)
	}
	if PreviewHash("x") == PreviewHash("y") {
		t.Fatalf("distinct inputs should not collide")
	}
	if len(PreviewHash("x")) != 12 {
		t.Fatalf("expected 12-char fingerprint")
	}
}
