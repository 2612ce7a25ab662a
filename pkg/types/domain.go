package types

import "time"

// Priority controls queue admission order for a possibility.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority maps a string to a Priority, defaulting to medium.
func ParsePriority(s string) Priority {
	switch s {
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// PossibilityStatus is the lifecycle status of one pool item.
type PossibilityStatus string

const (
	StatusPending   PossibilityStatus = "pending"
	StatusLoading   PossibilityStatus = "loading"
	StatusStreaming PossibilityStatus = "streaming"
	StatusComplete  PossibilityStatus = "complete"
	StatusError     PossibilityStatus = "error"
	StatusCancelled PossibilityStatus = "cancelled"
)

// Terminal reports whether the status is one of the three end states.
func (s PossibilityStatus) Terminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusCancelled
}

// PossibilityMetadata describes one generation task. It is created once
// per round from user settings and never mutated afterwards.
type PossibilityMetadata struct {
	// Unique identifier within a round.
	ID string `json:"id"`
	// Provider name (e.g., openai, anthropic, local).
	Provider string `json:"provider"`
	// Model identifier at the provider.
	Model string `json:"model"`
	// Sampling temperature for this possibility.
	Temperature float64 `json:"temperature"`
	// Optional system instruction prepended to the conversation.
	SystemInstruction string `json:"system_instruction,omitempty"`
	// Queue admission tier.
	Priority Priority `json:"priority"`
	// Stable sort key: position in the fan-out the round was built with.
	Order int `json:"order"`
	// Expected completion length, used for load-time estimation.
	EstimatedTokens int `json:"estimated_tokens"`
}

// TokenLogprob carries per-token log-probability data when the provider
// reports it.
type TokenLogprob struct {
	Token   string  `json:"token"`
	Logprob float64 `json:"logprob"`
}

// PossibilityResult accumulates the streamed output of one possibility.
type PossibilityResult struct {
	// Content is the text accumulated so far; callers observe it grow
	// while the possibility is streaming.
	Content string `json:"content"`
	// Probability of the whole completion, when the provider reports
	// one. Nil means unknown.
	Probability *float64 `json:"probability,omitempty"`
	// Optional per-token log-probability data.
	Logprobs []TokenLogprob `json:"logprobs,omitempty"`
	// StartedAt is when the item was dispatched; zero if never started.
	StartedAt time.Time `json:"started_at,omitzero"`
	// CompletedAt is when the item reached a terminal status.
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// LoadingStats summarizes a pool's per-status counts.
type LoadingStats struct {
	// Items in the complete status.
	Completed int `json:"completed"`
	// Items currently loading or streaming.
	Loading int `json:"loading"`
	// Items waiting in the queue or reset for retry.
	Pending int `json:"pending"`
	// Items that ended in error or were cancelled.
	Failed int `json:"failed"`
	// Total items in the pool.
	Total int `json:"total"`
}
