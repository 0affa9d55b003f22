package relay

import (
	"context"
	"time"
)

// Engine is the relay's external surface: enqueue_withdraw,
// get_job_status, get_backlog, and a liveness probe, SPEC_FULL.md §4.5.
// It has no HTTP framework wired in, matching the teacher's preference
// for plain functions over a router; cmd/relayd is free to mount these
// behind net/http, a gRPC service, or a CLI.
type Engine struct {
	Store      JobStore
	Roots      *RootCache
	Nullifiers *NullifierCache
	Client     KernelClient
}

func NewEngine(store JobStore, client KernelClient) *Engine {
	return &Engine{
		Store:      store,
		Roots:      NewRootCache(),
		Nullifiers: NewNullifierCache(),
		Client:     client,
	}
}

// RefreshRoots pulls the kernel's current root ring into the local
// cache; call on startup and on a ticker (see RunRootRefresher).
func (e *Engine) RefreshRoots() {
	e.Roots.Refresh(e.Client.Roots())
}

// RunRootRefresher blocks refreshing the root cache on interval until ctx
// is canceled, the single writer SPEC_FULL.md §5 requires for RootCache.
func (e *Engine) RunRootRefresher(ctx context.Context, interval time.Duration) {
	e.RefreshRoots()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.RefreshRoots()
		}
	}
}

// EnqueueWithdraw validates req and, on success, queues a Job in the
// Queued state. A validation failure never touches the store.
func (e *Engine) EnqueueWithdraw(ctx context.Context, req EnqueueRequest) (uint64, error) {
	if err := Validate(req, e.Roots, e.Nullifiers); err != nil {
		return 0, err
	}

	outputs := make([]Output, len(req.Outputs))
	copy(outputs, req.Outputs)

	job := &Job{
		Proof:         req.Proof,
		PublicInputs:  req.PublicInputs,
		Root:          req.Root,
		Nullifier:     req.Nullifier,
		Amount:        req.Amount,
		OutputsHash:   req.OutputsHash,
		Outputs:       outputs,
		State:         StateQueued,
		CreatedAtUnix: uint64(time.Now().Unix()),
		UpdatedAtUnix: uint64(time.Now().Unix()),
	}
	if err := e.Store.Insert(ctx, job); err != nil {
		return 0, err
	}
	return job.ID, nil
}

// GetJobStatus returns the current state of a previously queued job.
func (e *Engine) GetJobStatus(ctx context.Context, id uint64) (*Job, error) {
	job, ok, err := e.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// GetBacklog reports per-state queue depth and age, for operator
// dashboards and autoscaling signals.
func (e *Engine) GetBacklog(ctx context.Context) (map[State]BacklogEntry, error) {
	return e.Store.Backlog(ctx)
}

// Health reports liveness: false only before the root cache has ever
// been refreshed, distinguishing "never started" from "kernel currently
// has zero accepted roots" (which is a valid, if unlikely, steady state).
func (e *Engine) Health() bool {
	return e.Roots.LastRefreshUnix() != 0
}
