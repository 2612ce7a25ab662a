package lifecycle

import "time"

// Transition is one allowed edge: from a state, on an event type, to a
// target state, optionally gated by a guard and carrying an action that
// derives the next context. Ownership is exclusive to the machine; the
// table is read-only at runtime.
type Transition struct {
	From   State
	Event  EventType
	To     State
	Guard  func(Context, Event) bool
	Action func(Context, Event) Context
}

// transitionTable is the machine's full behavior, searched in
// declaration order: the first row matching (state, event type) whose
// guard passes is applied. Fallback rows for the same pair must come
// after their guarded variants.
var transitionTable = []Transition{
	{
		From: StateIdle, Event: EventStartGeneration, To: StateInitializing,
		Action: func(c Context, e Event) Context {
			now := time.Now()
			return Context{
				RequestID:        e.RequestID,
				PossibilityCount: e.PossibilityCount,
				MaxRetries:       c.MaxRetries,
				RetryAttempt:     c.RetryAttempt,
				StartTime:        now,
				LastActivity:     now,
			}
		},
	},
	{
		From: StateInitializing, Event: EventGenerationInitialized, To: StateGenerating,
		Action: func(c Context, e Event) Context {
			out := c.clone()
			if e.PossibilityCount > 0 {
				out.PossibilityCount = e.PossibilityCount
			}
			out.LastActivity = time.Now()
			return out
		},
	},
	{
		From: StateGenerating, Event: EventStreamingStarted, To: StateStreaming,
		Action: func(c Context, e Event) Context {
			out := c.clone()
			out.ActiveStreams = e.ActiveStreams
			out.LastActivity = time.Now()
			return out
		},
	},
	{
		From: StateStreaming, Event: EventPossibilityCompleted, To: StateStreaming,
		Action: func(c Context, e Event) Context {
			out := c.clone()
			out.CompletedCount = e.TotalCompleted
			out.ActiveStreams = e.ActiveStreams
			out.LastActivity = time.Now()
			return out
		},
	},
	{
		From: StateStreaming, Event: EventAllCompleted, To: StateCompleted,
		Guard: func(c Context, e Event) bool { return e.TotalCompleted == c.PossibilityCount },
		Action: func(c Context, e Event) Context {
			out := c.clone()
			out.CompletedCount = e.TotalCompleted
			out.ActiveStreams = 0
			out.LastActivity = time.Now()
			return out
		},
	},

	// An error fails the round only when it is not retryable or the
	// retry budget is spent; otherwise the fallback rows record it and
	// keep the round alive for a RETRY_GENERATION.
	{
		From: StateGenerating, Event: EventErrorOccurred, To: StateFailed,
		Guard:  func(c Context, e Event) bool { return !e.Retryable || c.RetryAttempt >= c.MaxRetries },
		Action: func(c Context, e Event) Context { return c.withError(e.Error) },
	},
	{
		From: StateStreaming, Event: EventErrorOccurred, To: StateFailed,
		Guard:  func(c Context, e Event) bool { return !e.Retryable || c.RetryAttempt >= c.MaxRetries },
		Action: func(c Context, e Event) Context { return c.withError(e.Error) },
	},
	{
		From: StateGenerating, Event: EventErrorOccurred, To: StateGenerating,
		Action: func(c Context, e Event) Context { return c.withError(e.Error) },
	},
	{
		From: StateStreaming, Event: EventErrorOccurred, To: StateStreaming,
		Action: func(c Context, e Event) Context { return c.withError(e.Error) },
	},

	{
		From: StateFailed, Event: EventRetryGeneration, To: StateInitializing,
		Guard:  func(c Context, e Event) bool { return c.RetryAttempt < c.MaxRetries },
		Action: retryAction,
	},
	{
		From: StateGenerating, Event: EventRetryGeneration, To: StateInitializing,
		Guard:  func(c Context, e Event) bool { return c.RetryAttempt < c.MaxRetries },
		Action: retryAction,
	},

	{From: StateInitializing, Event: EventCancelGeneration, To: StateCancelled, Action: touch},
	{From: StateGenerating, Event: EventCancelGeneration, To: StateCancelled, Action: touch},
	{From: StateStreaming, Event: EventCancelGeneration, To: StateCancelled, Action: touch},

	{From: StateInitializing, Event: EventReset, To: StateIdle, Action: resetAction},
	{From: StateGenerating, Event: EventReset, To: StateIdle, Action: resetAction},
	{From: StateStreaming, Event: EventReset, To: StateIdle, Action: resetAction},
	{From: StateCompleted, Event: EventReset, To: StateIdle, Action: resetAction},
	{From: StateFailed, Event: EventReset, To: StateIdle, Action: resetAction},
	{From: StateCancelled, Event: EventReset, To: StateIdle, Action: resetAction},
}

// retryAction increments the attempt and clears accumulated errors.
func retryAction(c Context, e Event) Context {
	out := c.clone()
	if e.Attempt > 0 {
		out.RetryAttempt = e.Attempt
	} else {
		out.RetryAttempt = c.RetryAttempt + 1
	}
	out.Errors = nil
	out.CompletedCount = 0
	out.ActiveStreams = 0
	out.LastActivity = time.Now()
	return out
}

// resetAction restores the initial context, keeping the retry budget.
func resetAction(c Context, _ Event) Context {
	return newContext(c.MaxRetries)
}

// touch only bumps the activity timestamp.
func touch(c Context, _ Event) Context {
	out := c.clone()
	out.LastActivity = time.Now()
	return out
}
