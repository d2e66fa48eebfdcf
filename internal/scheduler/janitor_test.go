package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestJanitorTick_ReleasesStaleClaimsAndSweepsCompleted(t *testing.T) {
	claimTimeout := 10 * time.Minute
	var releaseCutoff, deactivateCutoff time.Time

	store := &fakeStore{
		releaseStaleClaims: func(_ context.Context, cutoff time.Time) (int, error) {
			releaseCutoff = cutoff
			return 2, nil
		},
		deactivateCompletedBefore: func(_ context.Context, cutoff time.Time) (int, error) {
			deactivateCutoff = cutoff
			return 1, nil
		},
	}

	j := NewJanitor(store, testLogger(), fixedClock{now: testNow}, time.Minute, claimTimeout)
	j.tick(context.Background())

	if want := testNow.Add(-claimTimeout); !releaseCutoff.Equal(want) {
		t.Errorf("release cutoff %v, want %v", releaseCutoff, want)
	}
	if want := testNow.Add(-completedRetention); !deactivateCutoff.Equal(want) {
		t.Errorf("deactivate cutoff %v, want %v", deactivateCutoff, want)
	}
}

func TestJanitorTick_ReleaseErrorStillSweepsCompleted(t *testing.T) {
	swept := false

	store := &fakeStore{
		releaseStaleClaims: func(context.Context, time.Time) (int, error) {
			return 0, errors.New("connection refused")
		},
		deactivateCompletedBefore: func(context.Context, time.Time) (int, error) {
			swept = true
			return 0, nil
		},
	}

	j := NewJanitor(store, testLogger(), fixedClock{now: testNow}, time.Minute, time.Minute)
	j.tick(context.Background())

	if !swept {
		t.Error("completed sweep skipped after release error")
	}
}
