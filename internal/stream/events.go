package stream

import (
	"bytes"
	"encoding/json"
	"fmt"

	"fanout/pkg/types"
)

// Event is one parsed line from the generation endpoint. Lines are
// validated at this boundary so callers switch on concrete variants
// instead of probing JSON fields.
type Event interface {
	isEvent()
}

// TokenEvent carries one streamed token.
type TokenEvent struct {
	Token   string
	Logprob *float64
}

// ProbabilityEvent carries the completion probability and optional
// per-token log-probability data.
type ProbabilityEvent struct {
	Probability float64
	Logprobs    []types.TokenLogprob
}

// CompleteEvent signals the possibility finished normally.
type CompleteEvent struct {
	FinishReason string
}

// ErrorEvent signals a provider-side failure for this possibility.
type ErrorEvent struct {
	Message   string
	Retryable bool
}

// DoneEvent signals the end of the stream.
type DoneEvent struct{}

func (TokenEvent) isEvent()       {}
func (ProbabilityEvent) isEvent() {}
func (CompleteEvent) isEvent()    {}
func (ErrorEvent) isEvent()       {}
func (DoneEvent) isEvent()        {}

// linePrefix marks stream lines that carry an event envelope. Bare JSON
// object lines are accepted too; anything else is ignorable noise
// (keepalives, comments).
var linePrefix = []byte("data: ")

// envelope is the wire shape of one event line.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseLine decodes one stream line into an Event. It returns
// (nil, nil) for lines that carry no event and should be skipped
// silently, and an error for lines that look like events but fail to
// decode (callers log and skip those).
func ParseLine(line []byte) (Event, error) {
	line = bytes.TrimSpace(line)
	switch {
	case len(line) == 0:
		return nil, nil
	case bytes.HasPrefix(line, linePrefix):
		line = bytes.TrimSpace(line[len(linePrefix):])
	case line[0] != '{':
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	switch env.Type {
	case types.WireEventToken:
		var d struct {
			Token   string   `json:"token"`
			Logprob *float64 `json:"logprob"`
		}
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("decode token event: %w", err)
		}
		return TokenEvent{Token: d.Token, Logprob: d.Logprob}, nil
	case types.WireEventProbability:
		var d struct {
			Probability float64              `json:"probability"`
			Logprobs    []types.TokenLogprob `json:"logprobs"`
		}
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("decode probability event: %w", err)
		}
		return ProbabilityEvent{Probability: d.Probability, Logprobs: d.Logprobs}, nil
	case types.WireEventComplete:
		var d struct {
			FinishReason string `json:"finish_reason"`
		}
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &d); err != nil {
				return nil, fmt.Errorf("decode complete event: %w", err)
			}
		}
		return CompleteEvent{FinishReason: d.FinishReason}, nil
	case types.WireEventError:
		var d struct {
			Message   string `json:"message"`
			Retryable bool   `json:"retryable"`
		}
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("decode error event: %w", err)
		}
		return ErrorEvent{Message: d.Message, Retryable: d.Retryable}, nil
	case types.WireEventDone:
		return DoneEvent{}, nil
	default:
		// Unknown event kinds are forward-compatible noise.
		return nil, nil
	}
}
