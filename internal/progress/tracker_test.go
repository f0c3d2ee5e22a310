package progress

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"lexisub/internal/chunk"
	"lexisub/internal/services"
)

func TestBeginIsAtMostOnePerTask(t *testing.T) {
	tr := NewTracker()
	if _, ok := tr.Begin("a"); !ok {
		t.Fatal("first Begin should create")
	}
	tr.Update("a", chunk.StateExtractingAudio, 20, nil)
	rec, ok := tr.Begin("a")
	if ok {
		t.Fatal("second Begin on an active task must not create")
	}
	if rec.Stage != chunk.StateExtractingAudio || rec.Percent != 20 {
		t.Fatalf("expected existing record, got %+v", rec)
	}

	tr.Complete("a", "done")
	if _, ok := tr.Begin("a"); !ok {
		t.Fatal("Begin after completion should start a fresh record")
	}
}

func TestPercentIsMonotonic(t *testing.T) {
	tr := NewTracker()
	tr.Begin("a")
	tr.Update("a", chunk.StateExtractingAudio, 20, nil)
	tr.Update("a", chunk.StateTranscribing, 35, nil)
	tr.Update("a", chunk.StateTranscribing, 25, nil)
	tr.Update("a", "", 150, nil)

	rec, _ := tr.Get("a")
	if rec.Percent != 100 {
		t.Fatalf("percent = %v, want clamp to 100", rec.Percent)
	}
	if rec.Stage != chunk.StateTranscribing {
		t.Fatalf("stage = %s", rec.Stage)
	}

	tr.Update("a", chunk.StateExtractingAudio, 100, nil)
	if rec, _ := tr.Get("a"); rec.Stage != chunk.StateTranscribing {
		t.Fatalf("stage must not move backwards, got %s", rec.Stage)
	}
}

func TestFailureIsTerminal(t *testing.T) {
	tr := NewTracker()
	tr.Begin("a")
	tr.Update("a", chunk.StateExtractingAudio, 10, nil)
	tr.Update("a", chunk.StateExtractingAudio, 10, &services.StageTimeoutError{Stage: "extracting_audio", Executable: "ffmpeg", Timeout: time.Second})

	rec, _ := tr.Get("a")
	if rec.Stage != chunk.StateFailed {
		t.Fatalf("stage = %s, want failed", rec.Stage)
	}
	if rec.Error == nil || rec.Error.Category != services.CategoryStageTimeout {
		t.Fatalf("unexpected error %+v", rec.Error)
	}

	tr.Complete("a", "late result")
	tr.Update("a", chunk.StateTranscribing, 50, nil)
	rec, _ = tr.Get("a")
	if rec.Stage != chunk.StateFailed || rec.Result != nil || rec.Percent != 10 {
		t.Fatalf("failed record must not change: %+v", rec)
	}
}

func TestEvictRemovesOnlyOldTerminalRecords(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(WithClock(func() time.Time { return now }))
	tr.Begin("old-done")
	tr.Complete("old-done", nil)
	tr.Begin("old-running")
	tr.Begin("old-failed")
	tr.Update("old-failed", "", 0, errors.New("boom"))

	now = now.Add(2 * time.Hour)
	tr.Begin("new-done")
	tr.Complete("new-done", nil)

	if n := tr.Evict(time.Hour); n != 2 {
		t.Fatalf("evicted %d, want 2", n)
	}
	for _, id := range []string{"old-running", "new-done"} {
		if _, ok := tr.Get(id); !ok {
			t.Fatalf("%s should survive eviction", id)
		}
	}
	if got := len(tr.Snapshot()); got != 2 {
		t.Fatalf("snapshot len = %d", got)
	}
}

func TestConcurrentWritersAndReaders(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("task-%d", i)
		tr.Begin(id)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for p := 0; p <= 100; p++ {
				tr.Update(id, "", float64(p), nil)
			}
			tr.Complete(id, "complete")
		}()
		go func() {
			defer wg.Done()
			last := -1.0
			for j := 0; j < 200; j++ {
				rec, _ := tr.Get(id)
				if rec.Percent < last {
					t.Errorf("percent went backwards: %v < %v", rec.Percent, last)
					return
				}
				last = rec.Percent
			}
		}()
	}
	wg.Wait()
	for _, rec := range tr.Snapshot() {
		if rec.Stage != chunk.StateCompleted || rec.Percent != 100 {
			t.Fatalf("unexpected final record %+v", rec)
		}
	}
}
