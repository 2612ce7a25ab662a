package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fanout/pkg/types"
)

// Pool owns the in-flight, queued and finished possibilities of one
// generation round.
type Pool struct {
	mu           sync.Mutex
	cfg          Config
	items        map[string]*item
	order        []string // insertion order, for stable result ties
	queue        []string // pending ids, highest urgency first
	loadingCount int
	processing   bool
	conversation []types.Message
	// roundCtx is the parent scope of every per-item context; Clear and
	// Initialize cancel it to abort all children.
	roundCtx    context.Context
	cancelRound context.CancelFunc
	log         zerolog.Logger
	pub         EventPublisher
}

// New constructs an empty Pool. Call Initialize before queueing.
func New(cfg Config) *Pool {
	cfg.applyDefaults()
	return &Pool{
		cfg:   cfg,
		items: make(map[string]*item),
		log:   cfg.Logger,
		pub:   cfg.Publisher,
	}
}

// Initialize replaces all pool state with one pending item per metadata
// entry. No network activity happens until items are queued. Any
// previous round's in-flight work is aborted.
func (p *Pool) Initialize(ctx context.Context, metadata []types.PossibilityMetadata, conversation []types.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	items := make(map[string]*item, len(metadata))
	order := make([]string, 0, len(metadata))
	for _, md := range metadata {
		if _, dup := items[md.ID]; dup {
			return fmt.Errorf("duplicate possibility id %q", md.ID)
		}
		items[md.ID] = &item{
			md:                md,
			status:            types.StatusPending,
			estimatedLoadTime: estimateLoadTime(md),
		}
		order = append(order, md.ID)
	}

	p.releaseActiveLocked()
	if p.cancelRound != nil {
		p.cancelRound()
	}
	p.roundCtx, p.cancelRound = context.WithCancel(ctx)
	p.items = items
	p.order = order
	p.queue = nil
	p.loadingCount = 0
	p.conversation = append([]types.Message(nil), conversation...)
	p.log.Debug().Int("count", len(items)).Msg("pool initialized")
	return nil
}

// Clear aborts every active item and resets to an empty pool.
func (p *Pool) Clear() {
	p.mu.Lock()
	p.releaseActiveLocked()
	if p.cancelRound != nil {
		p.cancelRound()
		p.cancelRound = nil
	}
	p.roundCtx = nil
	p.items = make(map[string]*item)
	p.order = nil
	p.queue = nil
	p.loadingCount = 0
	p.conversation = nil
	p.mu.Unlock()
	p.log.Debug().Msg("pool cleared")
}

// releaseActiveLocked aborts every in-flight item and returns its
// gauge count. The orphaned task goroutines see a nil or superseded
// item in finish, so the decrement happens exactly once here. Caller
// holds mu.
func (p *Pool) releaseActiveLocked() {
	for _, it := range p.items {
		if it.cancel != nil {
			it.cancel()
			it.cancel = nil
		}
		if it.active() {
			activeStreams.Dec()
		}
	}
}

// Cancel aborts one possibility. Cancelling does not touch siblings;
// a freed loading slot is backfilled from the queue.
func (p *Pool) Cancel(id string) error {
	p.mu.Lock()
	it := p.items[id]
	if it == nil {
		p.mu.Unlock()
		return ErrNotFound(id)
	}
	if it.status.Terminal() {
		p.mu.Unlock()
		return invalidStatusError{id: id, status: it.status, op: "cancel"}
	}
	if it.cancel != nil {
		it.cancel()
		it.cancel = nil
	}
	if it.status == types.StatusPending {
		p.dequeue(id)
	}
	if it.active() {
		p.loadingCount--
		activeStreams.Dec()
	}
	it.status = types.StatusCancelled
	it.result.CompletedAt = time.Now()
	finishedTotal.WithLabelValues(string(types.StatusCancelled)).Inc()
	p.mu.Unlock()

	p.pub.Publish(Event{Name: EventCancelled, PossibilityID: id})
	p.processQueue()
	return nil
}

// Retry resets an errored or cancelled possibility to pending and
// clears its error. It does not re-enter the queue; callers queue it
// again explicitly.
func (p *Pool) Retry(id string) error {
	p.mu.Lock()
	it := p.items[id]
	if it == nil {
		p.mu.Unlock()
		return ErrNotFound(id)
	}
	if it.status != types.StatusError && it.status != types.StatusCancelled {
		p.mu.Unlock()
		return invalidStatusError{id: id, status: it.status, op: "retry"}
	}
	it.status = types.StatusPending
	it.err = ""
	it.cancel = nil
	// Invalidate the aborted dispatch: its goroutine may still be
	// unwinding and must not touch the item now that it is pending again.
	it.gen++
	p.mu.Unlock()

	p.pub.Publish(Event{Name: EventReset, PossibilityID: id})
	return nil
}

// PossibilityStatus returns the status of one item.
func (p *Pool) PossibilityStatus(id string) (types.PossibilityStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	it := p.items[id]
	if it == nil {
		return "", false
	}
	return it.status, true
}

// PossibilityResult returns a copy of one item's accumulated result.
func (p *Pool) PossibilityResult(id string) (types.PossibilityResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	it := p.items[id]
	if it == nil {
		return types.PossibilityResult{}, false
	}
	return it.snapshot().Result, true
}

// PossibilityError returns the error message of one item; empty when
// the item has no error.
func (p *Pool) PossibilityError(id string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	it := p.items[id]
	if it == nil {
		return "", false
	}
	return it.err, true
}

// Item returns a read-only snapshot of one item.
func (p *Pool) Item(id string) (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	it := p.items[id]
	if it == nil {
		return Snapshot{}, false
	}
	return it.snapshot(), true
}
