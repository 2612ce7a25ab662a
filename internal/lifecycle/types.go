package lifecycle

import "fmt"

// State of one generation round.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateGenerating   State = "generating"
	StateStreaming    State = "streaming"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
	StateCancelled    State = "cancelled"
)

// Terminal reports whether the round can make no further progress.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// EventType discriminates lifecycle events.
type EventType string

const (
	EventStartGeneration       EventType = "START_GENERATION"
	EventGenerationInitialized EventType = "GENERATION_INITIALIZED"
	EventStreamingStarted      EventType = "STREAMING_STARTED"
	EventPossibilityCompleted  EventType = "POSSIBILITY_COMPLETED"
	EventAllCompleted          EventType = "ALL_COMPLETED"
	EventErrorOccurred         EventType = "ERROR_OCCURRED"
	EventRetryGeneration       EventType = "RETRY_GENERATION"
	EventCancelGeneration      EventType = "CANCEL_GENERATION"
	EventReset                 EventType = "RESET"
)

// Event is one lifecycle occurrence. Only the fields relevant to its
// Type are read; validate rejects malformed payloads before any state
// is touched.
type Event struct {
	Type             EventType
	RequestID        string
	PossibilityCount int
	ActiveStreams    int
	TotalCompleted   int
	Error            string
	Retryable        bool
	Attempt          int
}

// StartGeneration builds a START_GENERATION event.
func StartGeneration(requestID string, possibilityCount int) Event {
	return Event{Type: EventStartGeneration, RequestID: requestID, PossibilityCount: possibilityCount}
}

// GenerationInitialized builds a GENERATION_INITIALIZED event.
func GenerationInitialized() Event {
	return Event{Type: EventGenerationInitialized}
}

// StreamingStarted builds a STREAMING_STARTED event.
func StreamingStarted(activeStreams int) Event {
	return Event{Type: EventStreamingStarted, ActiveStreams: activeStreams}
}

// PossibilityCompleted builds a POSSIBILITY_COMPLETED event.
func PossibilityCompleted(totalCompleted, activeStreams int) Event {
	return Event{Type: EventPossibilityCompleted, TotalCompleted: totalCompleted, ActiveStreams: activeStreams}
}

// AllCompleted builds an ALL_COMPLETED event.
func AllCompleted(totalCompleted int) Event {
	return Event{Type: EventAllCompleted, TotalCompleted: totalCompleted}
}

// ErrorOccurred builds an ERROR_OCCURRED event.
func ErrorOccurred(message string, retryable bool) Event {
	return Event{Type: EventErrorOccurred, Error: message, Retryable: retryable}
}

// RetryGeneration builds a RETRY_GENERATION event.
func RetryGeneration(attempt int) Event {
	return Event{Type: EventRetryGeneration, Attempt: attempt}
}

// CancelGeneration builds a CANCEL_GENERATION event.
func CancelGeneration() Event {
	return Event{Type: EventCancelGeneration}
}

// Reset builds a RESET event.
func Reset() Event {
	return Event{Type: EventReset}
}

// validate checks that the event has a recognized type and a well-formed
// payload for that type.
func (e Event) validate() error {
	switch e.Type {
	case EventStartGeneration:
		if e.RequestID == "" {
			return fmt.Errorf("%s requires a request id", e.Type)
		}
		if e.PossibilityCount <= 0 {
			return fmt.Errorf("%s requires a positive possibility count", e.Type)
		}
	case EventStreamingStarted:
		if e.ActiveStreams < 0 {
			return fmt.Errorf("%s requires a non-negative stream count", e.Type)
		}
	case EventPossibilityCompleted, EventAllCompleted:
		if e.TotalCompleted < 0 {
			return fmt.Errorf("%s requires a non-negative completed count", e.Type)
		}
	case EventErrorOccurred:
		if e.Error == "" {
			return fmt.Errorf("%s requires an error message", e.Type)
		}
	case EventRetryGeneration:
		if e.Attempt < 0 {
			return fmt.Errorf("%s requires a non-negative attempt", e.Type)
		}
	case EventGenerationInitialized, EventCancelGeneration, EventReset:
	default:
		return fmt.Errorf("unrecognized event type %q", e.Type)
	}
	return nil
}
