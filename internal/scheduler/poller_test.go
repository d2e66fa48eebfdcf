package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hqc-labs/huddle-delivery/internal/domain"
)

type fakeRunner struct {
	execute func(ctx context.Context, s *domain.Schedule) error
}

func (f *fakeRunner) Execute(ctx context.Context, s *domain.Schedule) error {
	return f.execute(ctx, s)
}

func newTestPoller(store *fakeStore, runner *fakeRunner, concurrency int) *Poller {
	return NewPoller(store, runner, testLogger(), fixedClock{now: testNow}, time.Hour, concurrency)
}

func waitForDrainedPool(t *testing.T, p *Poller) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for len(p.sem) > 0 {
		select {
		case <-deadline:
			t.Fatalf("worker pool did not drain, %d slots still held", len(p.sem))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTick_DispatchesEveryClaimedSchedule(t *testing.T) {
	executed := make(chan string, 4)

	store := &fakeStore{
		claimDue: func(_ context.Context, now time.Time, limit int, claimedBy string) ([]*domain.Schedule, error) {
			if !now.Equal(testNow) {
				t.Errorf("claim time %v, want %v", now, testNow)
			}
			if limit != 4 {
				t.Errorf("claim limit %d, want 4", limit)
			}
			if claimedBy == "" {
				t.Error("claim owner is empty")
			}
			return []*domain.Schedule{{ID: "sched-1"}, {ID: "sched-2"}}, nil
		},
	}
	runner := &fakeRunner{
		execute: func(_ context.Context, s *domain.Schedule) error {
			executed <- s.ID
			return nil
		},
	}

	p := newTestPoller(store, runner, 4)
	p.tick(context.Background())

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-executed:
			got[id] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for execution %d", i+1)
		}
	}
	if !got["sched-1"] || !got["sched-2"] {
		t.Errorf("executed %v, want both claimed schedules", got)
	}
	waitForDrainedPool(t, p)
}

func TestTick_ConcurrentTicksExecuteEachScheduleOnce(t *testing.T) {
	// The store hands out each schedule exactly once, the way the claim
	// query does. Overlapping ticks must not produce a second execution.
	var mu sync.Mutex
	handedOut := false

	store := &fakeStore{
		claimDue: func(context.Context, time.Time, int, string) ([]*domain.Schedule, error) {
			mu.Lock()
			defer mu.Unlock()
			if handedOut {
				return nil, nil
			}
			handedOut = true
			return []*domain.Schedule{{ID: "sched-1"}}, nil
		},
	}

	executed := make(chan string, 4)
	runner := &fakeRunner{
		execute: func(_ context.Context, s *domain.Schedule) error {
			executed <- s.ID
			return nil
		},
	}

	p := newTestPoller(store, runner, 4)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.tick(context.Background())
		}()
	}
	wg.Wait()

	select {
	case <-executed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the execution")
	}
	waitForDrainedPool(t, p)

	select {
	case id := <-executed:
		t.Fatalf("schedule %s executed a second time", id)
	default:
	}
}

func TestTick_FullPoolSkipsClaiming(t *testing.T) {
	release := make(chan struct{})
	claimCalls := 0

	store := &fakeStore{
		claimDue: func(context.Context, time.Time, int, string) ([]*domain.Schedule, error) {
			claimCalls++
			return []*domain.Schedule{{ID: "sched-1"}}, nil
		},
	}
	runner := &fakeRunner{
		execute: func(context.Context, *domain.Schedule) error {
			<-release
			return nil
		},
	}

	p := newTestPoller(store, runner, 1)

	p.tick(context.Background()) // fills the single slot
	p.tick(context.Background()) // no free slot, must not touch the store

	if claimCalls != 1 {
		t.Errorf("claim calls = %d, want 1", claimCalls)
	}

	close(release)
	waitForDrainedPool(t, p)
}

func TestTick_PanicInOneExecutionDoesNotStallOthers(t *testing.T) {
	executed := make(chan string, 4)

	store := &fakeStore{
		claimDue: func(context.Context, time.Time, int, string) ([]*domain.Schedule, error) {
			return []*domain.Schedule{{ID: "sched-panic"}, {ID: "sched-ok"}}, nil
		},
	}
	runner := &fakeRunner{
		execute: func(_ context.Context, s *domain.Schedule) error {
			if s.ID == "sched-panic" {
				panic("executor bug")
			}
			executed <- s.ID
			return nil
		},
	}

	p := newTestPoller(store, runner, 2)
	p.tick(context.Background())

	select {
	case id := <-executed:
		if id != "sched-ok" {
			t.Errorf("executed %s, want sched-ok", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sibling schedule never executed after panic")
	}

	// The panicking worker must still return its slot.
	waitForDrainedPool(t, p)
}

func TestTick_ClaimErrorLeavesPoolIdle(t *testing.T) {
	store := &fakeStore{
		claimDue: func(context.Context, time.Time, int, string) ([]*domain.Schedule, error) {
			return nil, context.DeadlineExceeded
		},
	}
	runner := &fakeRunner{
		execute: func(context.Context, *domain.Schedule) error {
			t.Error("runner called after claim error")
			return nil
		},
	}

	p := newTestPoller(store, runner, 2)
	p.tick(context.Background())

	if len(p.sem) != 0 {
		t.Errorf("pool holds %d slots after failed claim", len(p.sem))
	}
}
