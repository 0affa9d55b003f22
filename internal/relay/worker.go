package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/duskline/withdraw/internal/kernel"
	"github.com/duskline/withdraw/pkg/primitives"
)

// WorkerConfig tunes the pipeline's polling and backoff, SPEC_FULL.md §5.
type WorkerConfig struct {
	PollInterval   time.Duration
	RootRefresh    time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	NowSlot        func() uint64
	MinerAuthority primitives.Address
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval: 200 * time.Millisecond,
		RootRefresh:  5 * time.Second,
		MaxAttempts:  8,
		BackoffBase:  250 * time.Millisecond,
		BackoffMax:   30 * time.Second,
		NowSlot:      func() uint64 { return 0 },
	}
}

// Worker drains JobStore, runs each job through simulate-then-submit, and
// applies the SPEC_FULL.md §4.5/§7 retry/terminal split: a transient
// failure is requeued with backoff, everything else is terminal.
type Worker struct {
	Store      JobStore
	Client     KernelClient
	Claims     *kernel.ClaimRegistry
	Roots      *RootCache
	Nullifiers *NullifierCache
	Cfg        WorkerConfig
	Log        io.Writer
}

func NewWorker(store JobStore, client KernelClient, claims *kernel.ClaimRegistry, roots *RootCache, nullifiers *NullifierCache, cfg WorkerConfig, log io.Writer) *Worker {
	if log == nil {
		log = os.Stdout
	}
	return &Worker{Store: store, Client: client, Claims: claims, Roots: roots, Nullifiers: nullifiers, Cfg: cfg, Log: log}
}

// Run drives a single worker's claim/process loop until ctx is canceled.
// A pool of these, started from cmd/relayd, implements SPEC_FULL.md's
// multi-worker pipeline.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	job, ok, err := w.Store.Claim(ctx)
	if err != nil {
		fmt.Fprintf(w.Log, "relay: claim failed: %v\n", err)
		return
	}
	if !ok {
		return
	}
	w.process(ctx, job)
}

// process assembles the WithdrawArgs, simulates, and on success submits.
// Every outcome is written back through Store.Update so Get/Backlog stay
// accurate even under crash-restart.
func (w *Worker) process(ctx context.Context, job *Job) {
	args := kernel.WithdrawArgs{
		Proof:        job.Proof,
		PublicInputs: job.PublicInputs,
		Root:         job.Root,
		Nullifier:    job.Nullifier,
		Amount:       job.Amount,
		OutputsHash:  job.OutputsHash,
		MinerAuthority: w.Cfg.MinerAuthority,
		NowSlot:        w.Cfg.NowSlot(),
	}
	args.Outputs = make([]kernel.WithdrawOutput, len(job.Outputs))
	for i, o := range job.Outputs {
		args.Outputs[i] = kernel.WithdrawOutput{Address: o.Address, Amount: o.Amount}
	}

	if w.Claims != nil {
		batchHash := primitives.Sum(job.Root[:], job.Nullifier[:])
		pda, err := w.Claims.SelectClaim(batchHash, w.Cfg.NowSlot())
		if err != nil {
			w.fail(ctx, job, ErrNoClaimAvailable)
			return
		}
		args.ClaimPDA = pda
	}

	if err := w.Client.Simulate(args); err != nil {
		w.fail(ctx, job, err)
		return
	}

	sig, err := w.Client.Submit(args)
	if err != nil {
		w.fail(ctx, job, err)
		return
	}

	job.State = StateSettled
	if w.Nullifiers != nil {
		w.Nullifiers.MarkSeen(job.Nullifier)
	}
	job.Signature = sig
	job.UpdatedAtUnix = uint64(time.Now().Unix())
	if err := w.Store.Update(ctx, job); err != nil {
		fmt.Fprintf(w.Log, "relay: update after settle failed, job %d: %v\n", job.ID, err)
	}
}

// fail classifies err and either requeues (transient, under max_attempts)
// or parks the job as Failed (validation/terminal/system, or attempts
// exhausted).
func (w *Worker) fail(ctx context.Context, job *Job, cause error) {
	job.LastError = cause.Error()
	job.UpdatedAtUnix = uint64(time.Now().Unix())

	if job.Attempts >= w.Cfg.MaxAttempts {
		job.State = StateFailed
		job.LastError = errJoinMessage(ErrMaxAttempts, cause)
	} else if Retryable(cause) {
		if errors.Is(cause, ErrRootNotAccepted) || errors.Is(cause, kernel.ErrInvalidRoot) {
			w.Roots.Refresh(w.Client.Roots())
		}
		// Exponential, jittered backoff before the job is claimable again:
		// BackoffBase doubled per earlier attempt, capped at BackoffMax.
		delay := w.Cfg.BackoffBase
		for i := 1; i < job.Attempts && delay < w.Cfg.BackoffMax; i++ {
			delay *= 2
		}
		if delay > w.Cfg.BackoffMax {
			delay = w.Cfg.BackoffMax
		}
		if delay > 0 {
			delay = delay/2 + time.Duration(rand.Int63n(int64(delay/2)+1))
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}
		job.State = StateQueued
	} else {
		job.State = StateFailed
	}

	if err := w.Store.Update(ctx, job); err != nil {
		fmt.Fprintf(w.Log, "relay: update after failure failed, job %d: %v\n", job.ID, err)
	}
}

func errJoinMessage(sentinel, cause error) string {
	return sentinel.Error() + ": " + cause.Error()
}
