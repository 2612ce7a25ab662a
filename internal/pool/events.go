package pool

// Pool event names.
const (
	EventQueued     = "possibility.queued"
	EventDispatched = "possibility.dispatched"
	EventStreaming  = "possibility.streaming"
	EventToken      = "possibility.token"
	EventCompleted  = "possibility.completed"
	EventFailed     = "possibility.failed"
	EventCancelled  = "possibility.cancelled"
	EventReset      = "possibility.reset"
)

// Event represents one pool occurrence. Minimal and stable: name plus
// possibility id and optional fields via key/values.
type Event struct {
	Name          string
	PossibilityID string
	Fields        map[string]any
}

// EventPublisher receives events from the pool. Implementations should
// be lightweight; Publish must not panic. Events are published outside
// the pool lock, so publishers may call back into the pool.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
