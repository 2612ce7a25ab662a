// Package lifecycle tracks the aggregate progress of one generation
// round through a guarded finite-state machine. It is structured into
// small files by concern:
//
//   - machine.go: the Machine, Send, listener registration.
//   - transitions.go: the ordered declarative transition table.
//   - types.go: states, event types, the Event record and validation.
//   - context.go: the per-round GenerationContext.
//   - status.go: derived status (progress, duration, canRetry).
//
// The transition table is the machine's behavior: Send looks up
// candidates for (currentState, event type) in declaration order,
// evaluates guards, applies the first match's action and notifies
// listeners synchronously. Unmatched or malformed events are rejected
// without mutating state.
package lifecycle
