package lifecycle

import "time"

// Context is the state-machine-owned record of one generation round.
// It is mutated only by transition actions, always by value: actions
// take the old context and return the new one.
type Context struct {
	RequestID        string
	PossibilityCount int
	CompletedCount   int
	ActiveStreams    int
	Errors           []string
	RetryAttempt     int
	MaxRetries       int
	StartTime        time.Time
	LastActivity     time.Time
}

// newContext returns the initial context for a machine with the given
// retry budget.
func newContext(maxRetries int) Context {
	return Context{MaxRetries: maxRetries}
}

// clone deep-copies the context so snapshots cannot alias the errors
// slice the machine keeps appending to.
func (c Context) clone() Context {
	out := c
	if len(c.Errors) > 0 {
		out.Errors = append([]string(nil), c.Errors...)
	}
	return out
}

// withError returns a copy of c with msg appended to the error list.
func (c Context) withError(msg string) Context {
	out := c.clone()
	out.Errors = append(out.Errors, msg)
	out.LastActivity = time.Now()
	return out
}
