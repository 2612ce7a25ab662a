package pool

import (
	"context"
	"errors"
	"io"
	"time"

	"fanout/internal/stream"
	"fanout/pkg/types"
)

// runTask drives one possibility from dispatch to a terminal status.
// It owns the stream for its lifetime; the stream is released on every
// exit path. The context is the item's cancellation scope and gen ties
// the goroutine to the dispatch that started it.
func (p *Pool) runTask(ctx context.Context, id string, gen int, req types.GenerateRequest) {
	s, err := p.cfg.Opener.Open(ctx, req)
	if err != nil {
		p.taskFailed(ctx, id, gen, err)
		return
	}
	defer func() { _ = s.Close() }()

	if !p.markStreaming(id, gen) {
		// Cancelled between dispatch and the body opening.
		return
	}

	for {
		ev, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.finish(id, gen, types.StatusComplete, "", nil)
				return
			}
			p.taskFailed(ctx, id, gen, err)
			return
		}
		switch e := ev.(type) {
		case stream.TokenEvent:
			p.appendToken(id, gen, e)
		case stream.ProbabilityEvent:
			p.setProbability(id, gen, e)
		case stream.CompleteEvent:
			p.finish(id, gen, types.StatusComplete, "", nil)
			return
		case stream.DoneEvent:
			p.finish(id, gen, types.StatusComplete, "", nil)
			return
		case stream.ErrorEvent:
			p.finish(id, gen, types.StatusError, e.Message, map[string]any{"retryable": e.Retryable})
			return
		}
	}
}

// taskFailed classifies a task error: an abort relinquishes the slot
// without error noise, anything else is a real failure.
func (p *Pool) taskFailed(ctx context.Context, id string, gen int, err error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		// Cancel already moved the item to cancelled and freed the
		// slot; finish is a no-op then. This path covers a parent-scope
		// abort that bypassed Cancel.
		p.finish(id, gen, types.StatusCancelled, "", nil)
		return
	}
	retryable := stream.IsRetryable(err) || !stream.IsStatusError(err)
	p.finish(id, gen, types.StatusError, err.Error(), map[string]any{"retryable": retryable})
}

// markStreaming transitions loading -> streaming once the response body
// is open. Returns false when the dispatch was superseded or cancelled
// in the meantime.
func (p *Pool) markStreaming(id string, gen int) bool {
	p.mu.Lock()
	it := p.items[id]
	if it == nil || it.gen != gen || it.status != types.StatusLoading {
		p.mu.Unlock()
		return false
	}
	it.status = types.StatusStreaming
	p.mu.Unlock()

	p.pub.Publish(Event{Name: EventStreaming, PossibilityID: id})
	return true
}

// appendToken accumulates a streamed token and publishes the partial
// content so callers observe it in real time.
func (p *Pool) appendToken(id string, gen int, e stream.TokenEvent) {
	p.mu.Lock()
	it := p.items[id]
	if it == nil || it.gen != gen || it.status != types.StatusStreaming {
		p.mu.Unlock()
		return
	}
	it.result.Content += e.Token
	if e.Logprob != nil {
		it.result.Logprobs = append(it.result.Logprobs, types.TokenLogprob{Token: e.Token, Logprob: *e.Logprob})
	}
	content := it.result.Content
	p.mu.Unlock()

	tokensTotal.Inc()
	p.pub.Publish(Event{Name: EventToken, PossibilityID: id, Fields: map[string]any{
		"token":   e.Token,
		"content": content,
	}})
}

func (p *Pool) setProbability(id string, gen int, e stream.ProbabilityEvent) {
	p.mu.Lock()
	it := p.items[id]
	if it == nil || it.gen != gen || it.status != types.StatusStreaming {
		p.mu.Unlock()
		return
	}
	prob := e.Probability
	it.result.Probability = &prob
	if len(e.Logprobs) > 0 {
		it.result.Logprobs = append([]types.TokenLogprob(nil), e.Logprobs...)
	}
	p.mu.Unlock()
}

// finish moves an item to a terminal status, frees its loading slot and
// backfills from the queue. It is a no-op when the dispatch was
// superseded or the item is already terminal, which is how cancelled
// tasks unwind quietly.
func (p *Pool) finish(id string, gen int, status types.PossibilityStatus, errMsg string, fields map[string]any) {
	p.mu.Lock()
	it := p.items[id]
	if it == nil || it.gen != gen || it.status.Terminal() {
		p.mu.Unlock()
		return
	}
	wasActive := it.active()
	it.status = status
	it.err = errMsg
	it.result.CompletedAt = time.Now()
	if it.cancel != nil {
		it.cancel()
		it.cancel = nil
	}
	if wasActive {
		p.loadingCount--
		activeStreams.Dec()
	}
	finishedTotal.WithLabelValues(string(status)).Inc()
	p.mu.Unlock()

	switch status {
	case types.StatusComplete:
		p.log.Debug().Str("id", id).Msg("possibility complete")
		p.pub.Publish(Event{Name: EventCompleted, PossibilityID: id, Fields: fields})
	case types.StatusError:
		p.log.Warn().Str("id", id).Str("error", errMsg).Msg("possibility failed")
		ff := map[string]any{"error": errMsg}
		for k, v := range fields {
			ff[k] = v
		}
		p.pub.Publish(Event{Name: EventFailed, PossibilityID: id, Fields: ff})
	case types.StatusCancelled:
		p.pub.Publish(Event{Name: EventCancelled, PossibilityID: id, Fields: fields})
	}
	p.processQueue()
}
