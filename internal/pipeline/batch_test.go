package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() })
		if bp.concurrency != DefaultBatchConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultBatchConcurrency, bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, WithConcurrency(0))
		if bp.concurrency != DefaultBatchConcurrency {
			t.Errorf("expected default concurrency, got %d", bp.concurrency)
		}
	})
}

func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("runs every job with a fresh pipeline", func(t *testing.T) {
		t.Parallel()

		var pipelines atomic.Int32
		factory := func() *Pipeline {
			pipelines.Add(1)
			p := New()
			p.AddStep(&mockStep{name: "capture", doFunc: func(_ context.Context, job *Job) error {
				job.Document = []byte(job.Capture.URL)
				return nil
			}})
			return p
		}

		jobs := []*Job{newJob("https://a/"), newJob("https://b/"), newJob("https://c/")}
		bp := NewBatchProcessor(factory, WithConcurrency(2))
		if err := bp.ProcessBatch(context.Background(), jobs); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pipelines.Load() != 3 {
			t.Errorf("expected 3 pipelines, got %d", pipelines.Load())
		}
		for _, job := range jobs {
			if string(job.Document) != job.Capture.URL {
				t.Errorf("job %s not processed", job.Capture.URL)
			}
		}
	})

	t.Run("a failed job does not stop the others", func(t *testing.T) {
		t.Parallel()

		factory := func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{name: "capture", doFunc: func(_ context.Context, job *Job) error {
				if job.Capture.URL == "https://bad/" {
					return errors.New("unreachable")
				}
				job.Document = []byte("ok")
				return nil
			}})
			return p
		}

		jobs := []*Job{newJob("https://bad/"), newJob("https://good/")}
		if err := NewBatchProcessor(factory).ProcessBatch(context.Background(), jobs); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if jobs[0].Capture.Error != "unreachable" {
			t.Errorf("bad job error = %q", jobs[0].Capture.Error)
		}
		if string(jobs[1].Document) != "ok" {
			t.Error("good job should be processed")
		}
	})

	t.Run("respects the concurrency limit", func(t *testing.T) {
		t.Parallel()

		var running, peak atomic.Int32
		factory := func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{name: "capture", doFunc: func(context.Context, *Job) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil
			}})
			return p
		}

		jobs := make([]*Job, 8)
		for i := range jobs {
			jobs[i] = newJob("https://example.com/")
		}
		if err := NewBatchProcessor(factory, WithConcurrency(2)).ProcessBatch(context.Background(), jobs); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("peak concurrency %d exceeds 2", peak.Load())
		}
	})

	t.Run("returns the cancellation error", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		jobs := []*Job{newJob("https://a/")}
		err := NewBatchProcessor(func() *Pipeline { return New() }).ProcessBatch(ctx, jobs)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestBatchProcessorCallback(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seen := make(map[int]string)
	jobs := []*Job{newJob("https://a/"), newJob("https://b/")}

	err := NewBatchProcessor(func() *Pipeline { return New() }).ProcessBatchWithCallback(
		context.Background(), jobs,
		func(job *Job, index int) {
			mu.Lock()
			defer mu.Unlock()
			seen[index] = job.Capture.URL
		},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen[0] != "https://a/" || seen[1] != "https://b/" {
		t.Errorf("callback saw %v", seen)
	}
}
