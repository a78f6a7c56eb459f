package memo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoComputesOnce(t *testing.T) {
	t.Parallel()

	a := NewArena()
	k := Key{ID: a.NewID(), Field: "text"}

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Do(context.Background(), a, k, fn)
			if err != nil {
				t.Errorf("Do() error = %v", err)
			}
			results[i] = v
		}(i)
	}

	// Wait until the first caller owns the cell.
	for a.State(k) != InFlight {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("fn called %d times, want 1", calls.Load())
	}
	for i, v := range results {
		if v != "value" {
			t.Errorf("result %d = %q", i, v)
		}
	}
	if a.State(k) != Ready {
		t.Errorf("State() = %v, want ready", a.State(k))
	}
}

func TestDoMemoizesFailure(t *testing.T) {
	t.Parallel()

	a := NewArena()
	k := Key{ID: a.NewID(), Field: "download"}
	boom := errors.New("boom")

	calls := 0
	fn := func(context.Context) (int, error) {
		calls++
		return 0, boom
	}

	for range 3 {
		if _, err := Do(context.Background(), a, k, fn); !errors.Is(err, boom) {
			t.Fatalf("Do() error = %v, want boom", err)
		}
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
	if a.State(k) != Failed {
		t.Errorf("State() = %v, want failed", a.State(k))
	}
}

func TestDoWaiterCancellation(t *testing.T) {
	t.Parallel()

	a := NewArena()
	k := Key{ID: a.NewID(), Field: "slow"}
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = Do(context.Background(), a, k, func(context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Do(ctx, a, k, func(context.Context) (int, error) { return 2, nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}

	close(release)
	v, err := Do(context.Background(), a, k, func(context.Context) (int, error) { return 3, nil })
	if err != nil || v != 1 {
		t.Errorf("Do() = %d, %v; want first result 1", v, err)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	t.Parallel()

	a := NewArena()
	id := a.NewID()
	if other := a.NewID(); other == id {
		t.Fatal("NewID returned a duplicate")
	}

	text, _ := Do(context.Background(), a, Key{ID: id, Field: "text"}, func(context.Context) (string, error) { return "t", nil })
	blob, _ := Do(context.Background(), a, Key{ID: id, Field: "blob"}, func(context.Context) (string, error) { return "b", nil })
	if text != "t" || blob != "b" {
		t.Errorf("got %q %q", text, blob)
	}
	if a.Len() != 2 {
		t.Errorf("Len() = %d, want 2", a.Len())
	}
	if Uncomputed.String() != "uncomputed" || InFlight.String() != "in-flight" {
		t.Error("unexpected State strings")
	}
}
