package relay

import (
	"context"
	"sync"
	"testing"
)

func TestInMemoryJobStoreClaimIsExclusive(t *testing.T) {
	store := NewInMemoryJobStore()
	ctx := context.Background()
	if err := store.Insert(ctx, &Job{State: StateQueued}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var wg sync.WaitGroup
	claimed := make([]bool, 8)
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := store.Claim(ctx)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			claimed[i] = ok
		}()
	}
	wg.Wait()

	count := 0
	for _, ok := range claimed {
		if ok {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one goroutine to claim the single job, got %d", count)
	}
}

func TestInMemoryJobStoreClaimSkipsNonQueued(t *testing.T) {
	store := NewInMemoryJobStore()
	ctx := context.Background()
	store.Insert(ctx, &Job{State: StateSettled})
	store.Insert(ctx, &Job{State: StateQueued})

	job, ok, err := store.Claim(ctx)
	if err != nil || !ok {
		t.Fatalf("expected to claim the queued job, err=%v ok=%v", err, ok)
	}
	if job.State != StateExecuting {
		t.Fatalf("expected claimed job to move to Executing, got %s", job.State)
	}

	_, ok, _ = store.Claim(ctx)
	if ok {
		t.Fatalf("expected no further claimable job")
	}
}

func TestInMemoryJobStoreBacklog(t *testing.T) {
	store := NewInMemoryJobStore()
	ctx := context.Background()
	store.Insert(ctx, &Job{State: StateQueued, CreatedAtUnix: 10})
	store.Insert(ctx, &Job{State: StateQueued, CreatedAtUnix: 5})
	store.Insert(ctx, &Job{State: StateFailed, CreatedAtUnix: 1})

	backlog, err := store.Backlog(ctx)
	if err != nil {
		t.Fatalf("backlog: %v", err)
	}
	if backlog[StateQueued].Count != 2 {
		t.Fatalf("expected 2 queued jobs, got %d", backlog[StateQueued].Count)
	}
	if backlog[StateQueued].OldestUnixSec != 5 {
		t.Fatalf("expected oldest queued to be 5, got %d", backlog[StateQueued].OldestUnixSec)
	}
	if backlog[StateFailed].Count != 1 {
		t.Fatalf("expected 1 failed job, got %d", backlog[StateFailed].Count)
	}
}
