package types

// Message is one turn of the conversation context sent to the
// generation endpoint.
type Message struct {
	// Role of the author: system, user, or assistant.
	Role string `json:"role"`
	// Text content of the turn.
	Content string `json:"content"`
}

// GenerateRequest is the JSON body POSTed to the generation endpoint
// for one possibility.
type GenerateRequest struct {
	// Provider to route the request to.
	Provider string `json:"provider,omitempty"`
	// Model identifier at the provider.
	Model string `json:"model"`
	// Conversation context, oldest turn first.
	Messages []Message `json:"messages"`
	// Sampling temperature.
	Temperature float64 `json:"temperature,omitempty"`
	// Maximum number of new tokens to generate.
	MaxTokens int `json:"max_tokens,omitempty"`
	// Request per-token log-probability data when supported.
	Logprobs bool `json:"logprobs,omitempty"`
}

// Wire event types carried on stream lines emitted by the generation
// endpoint. Each line of interest is a JSON envelope
// {"type": "...", "data": {...}}.
const (
	WireEventToken       = "token"
	WireEventProbability = "probability"
	WireEventComplete    = "possibility_complete"
	WireEventError       = "error"
	WireEventDone        = "done"
)

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	Error string `json:"error"`
	// HTTP status code.
	Code int `json:"code"`
}
