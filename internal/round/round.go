// Package round runs one end-to-end generation round: it feeds the
// possibility pool, translates pool events into lifecycle machine
// events, and applies the round-level retry policy.
package round

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fanout/internal/lifecycle"
	"fanout/internal/pool"
	"fanout/pkg/types"
)

// Config carries tunables for Runner construction.
type Config struct {
	// Opener opens streaming requests; handed to the pool. Required.
	Opener pool.Opener
	// MaxConcurrent caps simultaneous streams; 0 means the pool default.
	MaxConcurrent int
	// MaxRetries bounds automatic round retries; 0 means the machine
	// default.
	MaxRetries int
	// Publisher receives every pool event after the runner has seen it;
	// nil drops them.
	Publisher pool.EventPublisher
	Logger    zerolog.Logger
}

// Result summarizes a finished round.
type Result struct {
	RequestID string
	State     lifecycle.State
	Completed []pool.CompletedPossibility
	Errors    []string
}

// Runner owns one pool and one lifecycle machine and drives rounds
// through them. One round runs at a time.
type Runner struct {
	pool    *pool.Pool
	machine *lifecycle.Machine
	forward pool.EventPublisher
	log     zerolog.Logger

	mu            sync.Mutex
	total         int
	completed     int
	failed        int
	cancelled     int
	streamingSeen bool
	// permanent holds ids whose failure was not retryable; batch retry
	// skips them.
	permanent map[string]bool
	done      chan struct{}
	doneOnce  *sync.Once
}

// NewRunner constructs a Runner and the pool/machine pair it drives.
func NewRunner(cfg Config) *Runner {
	r := &Runner{
		machine:   lifecycle.New(lifecycle.Config{MaxRetries: cfg.MaxRetries, Logger: cfg.Logger}),
		forward:   cfg.Publisher,
		log:       cfg.Logger,
		permanent: make(map[string]bool),
	}
	if r.forward == nil {
		r.forward = nopPublisher{}
	}
	r.pool = pool.New(pool.Config{
		MaxConcurrent: cfg.MaxConcurrent,
		Opener:        cfg.Opener,
		Publisher:     r,
		Logger:        cfg.Logger,
	})
	return r
}

// Machine exposes the lifecycle machine for listener registration and
// status queries.
func (r *Runner) Machine() *lifecycle.Machine { return r.machine }

// Pool exposes the pool's read-only surface.
func (r *Runner) Pool() *pool.Pool { return r.pool }

// Run executes one round to a terminal lifecycle state. Items that end
// in error are retried as a batch while the machine's retry budget
// lasts. Cancelling ctx aborts the round.
func (r *Runner) Run(ctx context.Context, metadata []types.PossibilityMetadata, conversation []types.Message) (Result, error) {
	requestID := uuid.NewString()
	if len(metadata) == 0 {
		return Result{RequestID: requestID}, fmt.Errorf("no possibilities to generate")
	}

	r.mu.Lock()
	r.total = len(metadata)
	r.completed, r.failed, r.cancelled = 0, 0, 0
	r.streamingSeen = false
	r.permanent = make(map[string]bool)
	r.done = make(chan struct{})
	r.doneOnce = &sync.Once{}
	done := r.done
	r.mu.Unlock()

	// A runner is reusable: a finished round resets the machine so the
	// next Run starts from idle.
	if r.machine.State().Terminal() {
		r.machine.Reset()
	}
	if !r.machine.Send(lifecycle.StartGeneration(requestID, len(metadata))) {
		return Result{RequestID: requestID}, fmt.Errorf("round already in progress: state %s", r.machine.State())
	}
	if err := r.pool.Initialize(ctx, metadata, conversation); err != nil {
		r.machine.Reset()
		return Result{RequestID: requestID}, err
	}
	r.machine.Send(lifecycle.GenerationInitialized())

	ids := make([]string, len(metadata))
	for i, md := range metadata {
		ids[i] = md.ID
		if err := r.pool.Queue(md.ID, md.Priority); err != nil {
			r.log.Warn().Err(err).Str("id", md.ID).Msg("queue rejected")
		}
	}

	for {
		select {
		case <-ctx.Done():
			r.machine.Send(lifecycle.CancelGeneration())
			r.pool.Clear()
			return r.result(requestID), ctx.Err()
		case <-done:
		}

		r.mu.Lock()
		failedNow := r.failed
		r.mu.Unlock()
		if failedNow == 0 {
			break
		}

		// Settle the round on failed: RETRY_GENERATION is only valid
		// from failed or generating, and after a round of retryable
		// item errors the machine is still in streaming. A rejected
		// send (already failed) is harmless.
		r.machine.Send(lifecycle.ErrorOccurred(fmt.Sprintf("round finished with %d failed possibilities", failedNow), false))

		// Batch-retry errored items while budget remains; the guard on
		// RETRY_GENERATION enforces the bound and permanent failures
		// are left alone.
		candidates := r.retryCandidates(ids)
		if len(candidates) == 0 {
			break
		}
		if !r.machine.Send(lifecycle.RetryGeneration(0)) {
			break
		}
		retried := 0
		for _, id := range candidates {
			if err := r.pool.Retry(id); err == nil {
				retried++
			}
		}
		if retried == 0 {
			break
		}
		r.machine.Send(lifecycle.GenerationInitialized())
		r.mu.Lock()
		r.failed -= retried
		r.streamingSeen = false
		r.done = make(chan struct{})
		r.doneOnce = &sync.Once{}
		done = r.done
		r.mu.Unlock()
		for _, id := range ids {
			if st, ok := r.pool.PossibilityStatus(id); ok && st == types.StatusPending {
				if err := r.pool.Queue(id, types.PriorityHigh); err != nil {
					r.log.Warn().Err(err).Str("id", id).Msg("requeue rejected")
				}
			}
		}
	}

	return r.result(requestID), nil
}

// retryCandidates returns errored ids whose failure was retryable.
func (r *Runner) retryCandidates(ids []string) []string {
	r.mu.Lock()
	permanent := r.permanent
	r.mu.Unlock()

	var out []string
	for _, id := range ids {
		st, ok := r.pool.PossibilityStatus(id)
		if !ok || st != types.StatusError || permanent[id] {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (r *Runner) result(requestID string) Result {
	return Result{
		RequestID: requestID,
		State:     r.machine.State(),
		Completed: r.pool.CompletedPossibilities(),
		Errors:    r.machine.GenerationContext().Errors,
	}
}

// Cancel aborts the running round: the machine moves to cancelled and
// every in-flight stream is torn down.
func (r *Runner) Cancel() {
	r.machine.Send(lifecycle.CancelGeneration())
	r.pool.Clear()
	r.mu.Lock()
	once, done := r.doneOnce, r.done
	r.mu.Unlock()
	if once != nil && done != nil {
		once.Do(func() { close(done) })
	}
}

// Publish receives every pool event, drives the machine, and forwards
// the event downstream. It implements pool.EventPublisher.
func (r *Runner) Publish(ev pool.Event) {
	switch ev.Name {
	case pool.EventStreaming:
		r.mu.Lock()
		first := !r.streamingSeen
		r.streamingSeen = true
		r.mu.Unlock()
		if first {
			r.machine.Send(lifecycle.StreamingStarted(r.pool.LoadingCount()))
		}
	case pool.EventCompleted:
		r.mu.Lock()
		r.completed++
		completed, total := r.completed, r.total
		r.mu.Unlock()
		r.machine.Send(lifecycle.PossibilityCompleted(completed, r.pool.LoadingCount()))
		if completed == total {
			r.machine.Send(lifecycle.AllCompleted(total))
		}
		r.maybeDone()
	case pool.EventFailed:
		msg, _ := ev.Fields["error"].(string)
		retryable, _ := ev.Fields["retryable"].(bool)
		if msg == "" {
			msg = "possibility " + ev.PossibilityID + " failed"
		}
		r.mu.Lock()
		r.failed++
		if !retryable {
			r.permanent[ev.PossibilityID] = true
		}
		r.mu.Unlock()
		r.machine.Send(lifecycle.ErrorOccurred(msg, retryable))
		r.maybeDone()
	case pool.EventCancelled:
		r.mu.Lock()
		r.cancelled++
		r.mu.Unlock()
		r.maybeDone()
	}
	r.forward.Publish(ev)
}

// maybeDone signals Run when every item reached a terminal status.
func (r *Runner) maybeDone() {
	r.mu.Lock()
	settled := r.completed+r.failed+r.cancelled >= r.total && r.total > 0
	once, done := r.doneOnce, r.done
	r.mu.Unlock()
	if settled && once != nil && done != nil {
		once.Do(func() { close(done) })
	}
}

// RoundErrors joins the machine's accumulated errors for display.
func (res Result) RoundErrors() string {
	return strings.Join(res.Errors, "; ")
}

type nopPublisher struct{}

func (nopPublisher) Publish(pool.Event) {}
