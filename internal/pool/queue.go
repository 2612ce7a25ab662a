package pool

import (
	"context"
	"time"

	"fanout/pkg/types"
)

// Queue admits a pending possibility into the dispatch queue.
// High priority goes to the front, low to the back, and medium to the
// structural midpoint of the current queue. Queues are bounded by the
// number of enabled models, so this keeps a rough urgency ordering
// without a priority heap. No-op unless the item exists, is pending,
// and is not already queued.
func (p *Pool) Queue(id string, pri types.Priority) error {
	p.mu.Lock()
	it := p.items[id]
	if it == nil {
		p.mu.Unlock()
		return ErrNotFound(id)
	}
	if it.status != types.StatusPending {
		p.mu.Unlock()
		p.log.Debug().Str("id", id).Str("status", string(it.status)).Msg("queue rejected: not pending")
		return invalidStatusError{id: id, status: it.status, op: "queue"}
	}
	if p.queued(id) {
		p.mu.Unlock()
		return nil
	}
	switch pri {
	case types.PriorityHigh:
		p.queue = append([]string{id}, p.queue...)
	case types.PriorityLow:
		p.queue = append(p.queue, id)
	default:
		mid := len(p.queue) / 2
		p.queue = append(p.queue[:mid], append([]string{id}, p.queue[mid:]...)...)
	}
	p.mu.Unlock()

	p.pub.Publish(Event{Name: EventQueued, PossibilityID: id, Fields: map[string]any{"priority": string(pri)}})
	p.processQueue()
	return nil
}

// queued reports whether id is already in the queue. Caller holds mu.
func (p *Pool) queued(id string) bool {
	for _, q := range p.queue {
		if q == id {
			return true
		}
	}
	return false
}

// dequeue removes id from the queue if present. Caller holds mu.
func (p *Pool) dequeue(id string) {
	for i, q := range p.queue {
		if q == id {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			return
		}
	}
}

// processQueue dispatches queued items while loading slots are free.
// The processing flag collapses re-entrant calls: completion goroutines
// fire back to back and each calls processQueue, but only one pass may
// dispatch from a given queue snapshot or the ceiling could be
// exceeded transiently.
func (p *Pool) processQueue() {
	p.mu.Lock()
	if p.processing || p.roundCtx == nil {
		p.mu.Unlock()
		return
	}
	p.processing = true

	var dispatched []string
	for len(p.queue) > 0 && p.loadingCount < p.cfg.MaxConcurrent {
		id := p.queue[0]
		p.queue = p.queue[1:]
		it := p.items[id]
		if it == nil || it.status != types.StatusPending {
			continue
		}
		ctx, cancel := context.WithCancel(p.roundCtx)
		it.status = types.StatusLoading
		it.cancel = cancel
		it.loadingStart = time.Now()
		it.err = ""
		it.result = types.PossibilityResult{StartedAt: it.loadingStart}
		it.gen++
		p.loadingCount++
		activeStreams.Inc()
		dispatchedTotal.Inc()
		dispatched = append(dispatched, id)
		go p.runTask(ctx, id, it.gen, p.buildRequest(it.md))
	}
	p.processing = false
	p.mu.Unlock()

	for _, id := range dispatched {
		p.pub.Publish(Event{Name: EventDispatched, PossibilityID: id})
	}
}

// buildRequest assembles the endpoint request body for one possibility.
// Caller holds mu.
func (p *Pool) buildRequest(md types.PossibilityMetadata) types.GenerateRequest {
	msgs := make([]types.Message, 0, len(p.conversation)+1)
	if md.SystemInstruction != "" {
		msgs = append(msgs, types.Message{Role: "system", Content: md.SystemInstruction})
	}
	msgs = append(msgs, p.conversation...)
	return types.GenerateRequest{
		Provider:    md.Provider,
		Model:       md.Model,
		Messages:    msgs,
		Temperature: md.Temperature,
		MaxTokens:   md.EstimatedTokens,
		Logprobs:    true,
	}
}
