package relay

import (
	"context"
	"testing"

	"github.com/duskline/withdraw/internal/kernel"
	"github.com/duskline/withdraw/pkg/primitives"
)

// fakeKernelClient lets worker tests drive Simulate/Submit outcomes
// without standing up a real circuit.Manager.
type fakeKernelClient struct {
	simulateErr error
	submitErr   error
	submitSig   string
	roots       []primitives.Hash
}

func (f *fakeKernelClient) Simulate(kernel.WithdrawArgs) error { return f.simulateErr }
func (f *fakeKernelClient) Submit(kernel.WithdrawArgs) (string, error) {
	return f.submitSig, f.submitErr
}
func (f *fakeKernelClient) Roots() []primitives.Hash { return f.roots }

func newTestJob() *Job {
	return &Job{
		ID:      1,
		Root:    primitives.Hash{1},
		Nullifier: primitives.Hash{2},
		Amount:  1000,
		Outputs: []Output{{Address: primitives.Address{3}, Amount: 900}},
		State:   StateExecuting,
	}
}

func TestWorkerProcessSettlesOnSuccess(t *testing.T) {
	store := NewInMemoryJobStore()
	store.jobs[1] = newTestJob()
	store.order = []uint64{1}

	client := &fakeKernelClient{submitSig: "sig123"}
	nullifiers := NewNullifierCache()
	w := NewWorker(store, client, nil, NewRootCache(), nullifiers, DefaultWorkerConfig(), nil)
	w.process(context.Background(), store.jobs[1])

	job, _, _ := store.Get(context.Background(), 1)
	if job.State != StateSettled {
		t.Fatalf("expected Settled, got %s", job.State)
	}
	if job.Signature != "sig123" {
		t.Fatalf("expected signature to be recorded, got %q", job.Signature)
	}
	if !nullifiers.Seen(job.Nullifier) {
		t.Fatal("expected nullifier cache to be updated after settlement")
	}
}

func TestWorkerRequeuesOnTransientFailure(t *testing.T) {
	store := NewInMemoryJobStore()
	store.jobs[1] = newTestJob()
	store.order = []uint64{1}

	client := &fakeKernelClient{simulateErr: kernel.ErrInvalidRoot, roots: []primitives.Hash{{1}}}
	w := NewWorker(store, client, nil, NewRootCache(), NewNullifierCache(), DefaultWorkerConfig(), nil)
	w.process(context.Background(), store.jobs[1])

	job, _, _ := store.Get(context.Background(), 1)
	if job.State != StateQueued {
		t.Fatalf("expected job requeued to Queued, got %s", job.State)
	}
	if !w.Roots.Contains(primitives.Hash{1}) {
		t.Fatalf("expected root cache refreshed after root-miss")
	}
}

func TestWorkerFailsTerminalWithoutRetry(t *testing.T) {
	store := NewInMemoryJobStore()
	store.jobs[1] = newTestJob()
	store.order = []uint64{1}

	client := &fakeKernelClient{simulateErr: kernel.ErrDoubleSpend}
	w := NewWorker(store, client, nil, NewRootCache(), NewNullifierCache(), DefaultWorkerConfig(), nil)
	w.process(context.Background(), store.jobs[1])

	job, _, _ := store.Get(context.Background(), 1)
	if job.State != StateFailed {
		t.Fatalf("expected Failed for a terminal error, got %s", job.State)
	}
}

func TestWorkerFailsAfterMaxAttempts(t *testing.T) {
	store := NewInMemoryJobStore()
	job := newTestJob()
	job.Attempts = 100
	store.jobs[1] = job
	store.order = []uint64{1}

	client := &fakeKernelClient{simulateErr: kernel.ErrInvalidRoot, roots: nil}
	cfg := DefaultWorkerConfig()
	cfg.MaxAttempts = 3
	w := NewWorker(store, client, nil, NewRootCache(), NewNullifierCache(), cfg, nil)
	w.process(context.Background(), store.jobs[1])

	got, _, _ := store.Get(context.Background(), 1)
	if got.State != StateFailed {
		t.Fatalf("expected Failed once attempts exceed MaxAttempts, got %s", got.State)
	}
}
