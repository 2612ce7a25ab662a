package lifecycle

import (
	"sync"

	"github.com/rs/zerolog"
)

// defaultMaxRetries bounds round-level retry attempts.
const defaultMaxRetries = 3

// Listener observes state changes. Listeners are read-only observers;
// they receive a context snapshot and must not try to mutate it.
type Listener func(newState, oldState State, ctx Context, ev Event)

// Config carries tunables for Machine construction.
type Config struct {
	// MaxRetries bounds RETRY_GENERATION attempts. Defaults to 3.
	MaxRetries int
	Logger     zerolog.Logger
}

// Machine is the lifecycle state machine for one generation round.
// It is safe for concurrent use.
type Machine struct {
	mu        sync.Mutex
	state     State
	ctx       Context
	listeners map[int]Listener
	nextID    int
	log       zerolog.Logger
}

// New constructs a Machine in the idle state.
func New(cfg Config) *Machine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &Machine{
		state:     StateIdle,
		ctx:       newContext(cfg.MaxRetries),
		listeners: make(map[int]Listener),
		log:       cfg.Logger,
	}
}

// Send consumes one event. It returns true when a transition was
// applied, false when the event was malformed, unmatched, or rejected
// by every candidate guard; rejection leaves state and context intact.
func (m *Machine) Send(ev Event) bool {
	if err := ev.validate(); err != nil {
		m.log.Debug().Err(err).Msg("rejected malformed lifecycle event")
		return false
	}

	m.mu.Lock()
	var tr *Transition
	for i := range transitionTable {
		t := &transitionTable[i]
		if t.From != m.state || t.Event != ev.Type {
			continue
		}
		if t.Guard != nil && !t.Guard(m.ctx, ev) {
			continue
		}
		tr = t
		break
	}
	if tr == nil {
		state := m.state
		m.mu.Unlock()
		m.log.Debug().Str("state", string(state)).Str("event", string(ev.Type)).Msg("rejected lifecycle event: no transition")
		return false
	}

	old := m.state
	if tr.Action != nil {
		m.ctx = tr.Action(m.ctx, ev)
	}
	m.state = tr.To
	snapshot := m.ctx.clone()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	m.log.Debug().Str("from", string(old)).Str("to", string(tr.To)).Str("event", string(ev.Type)).Msg("lifecycle transition")
	for _, l := range listeners {
		m.notify(l, tr.To, old, snapshot, ev)
	}
	return true
}

// notify runs one listener, isolating panics so a broken listener can
// neither stop the others nor roll back the transition.
func (m *Machine) notify(l Listener, newState, oldState State, ctx Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Any("panic", r).Msg("lifecycle listener panicked")
		}
	}()
	l(newState, oldState, ctx, ev)
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Is reports whether the machine is in the given state.
func (m *Machine) Is(s State) bool {
	return m.State() == s
}

// GenerationContext returns a read-only snapshot of the round context.
func (m *Machine) GenerationContext() Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx.clone()
}

// Can reports whether any transition would accept an event of the given
// type from the current state and context.
func (m *Machine) Can(t EventType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range transitionTable {
		tr := &transitionTable[i]
		if tr.From != m.state || tr.Event != t {
			continue
		}
		if tr.Guard == nil || tr.Guard(m.ctx, Event{Type: t}) {
			return true
		}
	}
	return false
}

// OnStateChange registers a listener and returns its unsubscribe func.
func (m *Machine) OnStateChange(l Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Reset returns the machine to idle with a fresh context. From idle it
// is a no-op.
func (m *Machine) Reset() {
	m.Send(Reset())
}
