// Package stream consumes the generation endpoint: it opens a streaming
// POST per possibility and decodes the newline-delimited event lines
// into typed variants at the boundary.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"fanout/pkg/types"
)

const defaultPath = "/v1/generate"

// scanner buffer sizing: event lines with logprob payloads can get
// large, so start at 64KiB and allow up to 1MiB per line.
const (
	scanBufSize = 64 * 1024
	scanBufMax  = 1024 * 1024
)

// ClientConfig carries tunables for Client construction. Zero values
// get package defaults.
type ClientConfig struct {
	// BaseURL of the generation endpoint, e.g. http://localhost:8080.
	BaseURL string
	// Path of the streaming route. Defaults to /v1/generate.
	Path string
	// HTTPClient to use. Defaults to a client with no overall timeout;
	// per-request cancellation comes from the caller's context.
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client opens streaming generation requests.
type Client struct {
	baseURL string
	path    string
	hc      *http.Client
	log     zerolog.Logger
}

// NewClient constructs a Client, applying defaults for unset fields.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		path:    cfg.Path,
		hc:      cfg.HTTPClient,
		log:     cfg.Logger,
	}
	if c.path == "" {
		c.path = defaultPath
	}
	if c.hc == nil {
		c.hc = &http.Client{}
	}
	return c
}

// Open POSTs a generation request and returns a Stream over the
// response body. The stream is scoped to ctx: cancelling ctx terminates
// the next read promptly. Callers must Close the stream on every path.
func (c *Client) Open(ctx context.Context, req types.GenerateRequest) (*Stream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.hc.Do(hreq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read a bounded slice of the body for the error message.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		_ = resp.Body.Close()
		return nil, statusError{code: resp.StatusCode, body: strings.TrimSpace(string(b))}
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, scanBufSize), scanBufMax)
	return &Stream{ctx: ctx, body: resp.Body, sc: sc, log: c.log}, nil
}

// Stream iterates the typed events of one open generation response.
type Stream struct {
	ctx  context.Context
	body io.ReadCloser
	sc   *bufio.Scanner
	log  zerolog.Logger
}

// Next returns the next event. It skips ignorable and malformed lines
// (malformed lines are logged). It returns io.EOF when the body is
// exhausted, and the context error if the stream was cancelled.
func (s *Stream) Next() (Event, error) {
	for s.sc.Scan() {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}
		ev, err := ParseLine(s.sc.Bytes())
		if err != nil {
			s.log.Warn().Err(err).Str("line", string(s.sc.Bytes())).Msg("skipping malformed stream line")
			continue
		}
		if ev == nil {
			continue
		}
		return ev, nil
	}
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.sc.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	return nil, io.EOF
}

// Close releases the underlying response body.
func (s *Stream) Close() error {
	return s.body.Close()
}
