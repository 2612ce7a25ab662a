// Package pool runs the possibility generation tasks of one round under
// a strict concurrency ceiling. It is structured into small files by
// concern:
//
//   - pool.go: core Pool type, constructor, Initialize/Clear, accessors.
//   - config.go: Config and package defaults.
//   - types.go: internal item record and exported snapshot types.
//   - queue.go: priority queue admission and the guarded queue processor.
//   - task.go: the per-possibility streaming task and its terminal paths.
//   - estimate.go: load-time estimation heuristic.
//   - events.go: EventPublisher interface and event names.
//   - eventpub_memory.go: in-memory publisher for tests.
//   - errors.go: error types and predicates (IsNotFound, IsInvalidStatus).
//   - metrics.go: prometheus collectors.
//   - stats.go: per-status counts and completed-result ordering.
//
// The Pool owns all mutable per-possibility state. Every mutation takes
// the pool mutex; events and metrics are published after the lock is
// released so observers may call back into the pool.
package pool
