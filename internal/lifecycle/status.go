package lifecycle

import "time"

// Status is the derived, caller-facing view of the round.
type Status struct {
	State State `json:"state"`
	// Progress is completed/total in [0,1]; 0 when the round is empty.
	Progress float64 `json:"progress"`
	// Duration since the round started; nil before START_GENERATION.
	Duration *time.Duration `json:"duration,omitempty"`
	// IsActive is true while initializing, generating or streaming.
	IsActive bool `json:"is_active"`
	// CanRetry is true when retry budget remains and there is a failure
	// to retry from.
	CanRetry bool `json:"can_retry"`
}

// Status computes the derived status from the current state and context.
func (m *Machine) Status() Status {
	m.mu.Lock()
	state := m.state
	ctx := m.ctx.clone()
	m.mu.Unlock()

	st := Status{State: state}
	if ctx.PossibilityCount > 0 {
		st.Progress = float64(ctx.CompletedCount) / float64(ctx.PossibilityCount)
	}
	if !ctx.StartTime.IsZero() {
		d := time.Since(ctx.StartTime)
		st.Duration = &d
	}
	st.IsActive = state == StateInitializing || state == StateGenerating || state == StateStreaming
	st.CanRetry = ctx.RetryAttempt < ctx.MaxRetries && (state == StateFailed || len(ctx.Errors) > 0)
	return st
}
