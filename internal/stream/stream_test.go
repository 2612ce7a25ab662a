package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"fanout/pkg/types"
)

func TestParseLineVariants(t *testing.T) {
	cases := []struct {
		name string
		line string
		want Event
	}{
		{"token", `{"type":"token","data":{"token":"hi"}}`, TokenEvent{Token: "hi"}},
		{"token with prefix", `data: {"type":"token","data":{"token":"hi"}}`, TokenEvent{Token: "hi"}},
		{"probability", `{"type":"probability","data":{"probability":0.42}}`, ProbabilityEvent{Probability: 0.42}},
		{"complete", `{"type":"possibility_complete","data":{"finish_reason":"stop"}}`, CompleteEvent{FinishReason: "stop"}},
		{"complete without data", `{"type":"possibility_complete"}`, CompleteEvent{}},
		{"error", `{"type":"error","data":{"message":"boom","retryable":true}}`, ErrorEvent{Message: "boom", Retryable: true}},
		{"done", `{"type":"done"}`, DoneEvent{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseLine([]byte(tc.line))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %#v, got %#v", tc.want, got)
			}
		})
	}
}

func TestParseLineTokenLogprob(t *testing.T) {
	ev, err := ParseLine([]byte(`{"type":"token","data":{"token":"a","logprob":-0.5}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tok, ok := ev.(TokenEvent)
	if !ok {
		t.Fatalf("expected TokenEvent, got %#v", ev)
	}
	if tok.Logprob == nil || *tok.Logprob != -0.5 {
		t.Fatalf("expected logprob -0.5, got %v", tok.Logprob)
	}
}

func TestParseLineIgnorableAndUnknown(t *testing.T) {
	for _, line := range []string{
		"",
		"   ",
		": keepalive",
		"event: ping",
		`{"type":"heartbeat","data":{}}`,
	} {
		ev, err := ParseLine([]byte(line))
		if err != nil {
			t.Fatalf("line %q: unexpected error %v", line, err)
		}
		if ev != nil {
			t.Fatalf("line %q: expected nil event, got %#v", line, ev)
		}
	}
}

func TestParseLineMalformed(t *testing.T) {
	for _, line := range []string{
		`{"type":"token","data":`,
		`data: {not json}`,
		`{"type":"token","data":"not an object"}`,
		`{"type":"error","data":[1,2]}`,
	} {
		if _, err := ParseLine([]byte(line)); err == nil {
			t.Fatalf("line %q: expected decode error", line)
		}
	}
}

func ndjsonHandler(lines []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, l := range lines {
			_, _ = io.WriteString(w, l+"\n")
		}
	}
}

func TestClientStreamsEvents(t *testing.T) {
	reqc := make(chan types.GenerateRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var gotReq types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		reqc <- gotReq
		ndjsonHandler([]string{
			`{"type":"token","data":{"token":"a"}}`,
			`this line is not an event`,
			`{"type":"not-a-kind","data":{}}`,
			`{"type":"token","data":`,
			`{"type":"token","data":{"token":"b"}}`,
			`{"type":"done"}`,
		})(w, r)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	s, err := c.Open(context.Background(), types.GenerateRequest{Provider: "openai", Model: "m"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if gotReq := <-reqc; gotReq.Model != "m" {
		t.Fatalf("request body not forwarded, got %+v", gotReq)
	}

	var tokens []string
	for {
		ev, err := s.Next()
		if errors.Is(err, io.EOF) {
			t.Fatal("done event expected before EOF")
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		switch e := ev.(type) {
		case TokenEvent:
			tokens = append(tokens, e.Token)
		case DoneEvent:
			if len(tokens) != 2 || tokens[0] != "a" || tokens[1] != "b" {
				t.Fatalf("expected tokens [a b], got %v", tokens)
			}
			return
		default:
			t.Fatalf("unexpected event %#v", ev)
		}
	}
}

func TestClientEOFWithoutDone(t *testing.T) {
	srv := httptest.NewServer(ndjsonHandler([]string{
		`{"type":"token","data":{"token":"a"}}`,
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	s, err := c.Open(context.Background(), types.GenerateRequest{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, err := s.Next(); err != nil {
		t.Fatalf("first next: %v", err)
	}
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestClientStatusErrors(t *testing.T) {
	cases := []struct {
		code      int
		retryable bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.code)
		}))
		c := NewClient(ClientConfig{BaseURL: srv.URL})
		_, err := c.Open(context.Background(), types.GenerateRequest{})
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.code)
		}
		if !IsStatusError(err) {
			t.Fatalf("status %d: expected status error, got %v", tc.code, err)
		}
		if got := IsRetryable(err); got != tc.retryable {
			t.Fatalf("status %d: expected retryable=%v, got %v", tc.code, tc.retryable, got)
		}
	}
}

func TestTransportErrorIsNotStatusError(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Open(context.Background(), types.GenerateRequest{})
	if err == nil {
		t.Fatal("expected connection error")
	}
	if IsStatusError(err) || IsRetryable(err) {
		t.Fatalf("transport errors are not status errors: %v", err)
	}
}

func TestClientCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"type":"token","data":{"token":"a"}}`+"\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(ClientConfig{BaseURL: srv.URL})
	s, err := c.Open(ctx, types.GenerateRequest{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, err := s.Next(); err != nil {
		t.Fatalf("first next: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = s.Next()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBaseURLTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		ndjsonHandler([]string{`{"type":"done"}`})(w, r)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/"})
	s, err := c.Open(context.Background(), types.GenerateRequest{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Close()
}
