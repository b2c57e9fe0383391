package kg

import (
	"context"
	"testing"
	"time"
)

func TestEnqueueDedupesByKey(t *testing.T) {
	q := NewIngestQueue(testLogger(), time.Millisecond)
	job := Job{ProjectID: "p1", DocID: "chat:p1:t1"}

	if !q.Enqueue(job) {
		t.Fatalf("first enqueue should succeed")
	}
	if q.Enqueue(job) {
		t.Fatalf("second enqueue of same key should be refused")
	}
	if !q.Enqueue(Job{ProjectID: "p1", DocID: "chat:p1:t2"}) {
		t.Fatalf("different doc id should enqueue")
	}
	if !q.Enqueue(Job{ProjectID: "p2", DocID: "chat:p1:t1"}) {
		t.Fatalf("same doc id under different project should enqueue")
	}
	if q.Depth() != 3 {
		t.Fatalf("expected depth 3, got %d", q.Depth())
	}
}

func TestDrainOneRunsInOrderAndReleasesKey(t *testing.T) {
	q := NewIngestQueue(testLogger(), time.Millisecond)
	job := Job{ProjectID: "p1", DocID: "chat:p1:t1"}
	q.Enqueue(job)
	q.Enqueue(Job{ProjectID: "p1", DocID: "chat:p1:t2"})

	var ran []string
	run := func(ctx context.Context, j Job) {
		ran = append(ran, j.DocID)
	}

	q.drainOne(context.Background(), run)
	q.drainOne(context.Background(), run)
	if len(ran) != 2 || ran[0] != "chat:p1:t1" || ran[1] != "chat:p1:t2" {
		t.Fatalf("expected FIFO drain, got %v", ran)
	}
	if q.Depth() != 0 {
		t.Fatalf("expected empty queue, got depth %d", q.Depth())
	}

	// The key is free again after the job finished.
	if !q.Enqueue(job) {
		t.Fatalf("re-enqueue after completion should succeed")
	}
}

func TestDrainOneRecoversFromPanic(t *testing.T) {
	q := NewIngestQueue(testLogger(), time.Millisecond)
	job := Job{ProjectID: "p1", DocID: "chat:p1:t1"}
	q.Enqueue(job)

	q.drainOne(context.Background(), func(ctx context.Context, j Job) {
		panic("boom")
	})

	// A panicking job must not wedge its key.
	if !q.Enqueue(job) {
		t.Fatalf("key should be released after panic")
	}
}

func TestDrainOneDuplicateRunningKeyIsNoop(t *testing.T) {
	q := NewIngestQueue(testLogger(), time.Millisecond)
	job := Job{ProjectID: "p1", DocID: "chat:p1:t1"}

	var noops []Job
	q.OnDuplicate = func(j Job) { noops = append(noops, j) }

	// Simulate the key being mid-flight when the job is popped.
	q.mu.Lock()
	q.running[job.Key()] = true
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	ran := 0
	q.drainOne(context.Background(), func(ctx context.Context, j Job) { ran++ })
	if ran != 0 {
		t.Fatalf("duplicate of a running key must not run")
	}
	if len(noops) != 1 || noops[0].DocID != job.DocID {
		t.Fatalf("expected one no-op callback, got %v", noops)
	}
}

func TestStartDrainsQueue(t *testing.T) {
	q := NewIngestQueue(testLogger(), time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan string, 1)
	q.Start(ctx, func(ctx context.Context, j Job) {
		done <- j.DocID
	})

	q.Enqueue(Job{ProjectID: "p1", DocID: "chat:p1:t1"})
	select {
	case got := <-done:
		if got != "chat:p1:t1" {
			t.Fatalf("unexpected job: %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("queue never drained")
	}
}
