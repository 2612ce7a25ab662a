package pool

import (
	"sort"

	"fanout/pkg/types"
)

// LoadingStats returns the pool's per-status counts.
func (p *Pool) LoadingStats() types.LoadingStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	var s types.LoadingStats
	for _, it := range p.items {
		switch it.status {
		case types.StatusComplete:
			s.Completed++
		case types.StatusLoading, types.StatusStreaming:
			s.Loading++
		case types.StatusPending:
			s.Pending++
		case types.StatusError, types.StatusCancelled:
			s.Failed++
		}
	}
	s.Total = len(p.items)
	return s
}

// CompletedPossibilities returns the results of all complete items,
// sorted by probability descending. Items without a probability sort
// after all items with one; ties keep insertion order.
func (p *Pool) CompletedPossibilities() []CompletedPossibility {
	p.mu.Lock()
	var out []CompletedPossibility
	for _, id := range p.order {
		it := p.items[id]
		if it == nil || it.status != types.StatusComplete {
			continue
		}
		snap := it.snapshot()
		out = append(out, CompletedPossibility{Metadata: snap.Metadata, Result: snap.Result})
	}
	p.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].Result.Probability, out[j].Result.Probability
		switch {
		case pi == nil:
			return false
		case pj == nil:
			return true
		default:
			return *pi > *pj
		}
	})
	return out
}

// LoadingCount returns the number of items holding a loading slot.
func (p *Pool) LoadingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadingCount
}

// QueueLen returns the number of ids waiting in the queue.
func (p *Pool) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}
