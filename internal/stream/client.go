package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	apiTypes "github.com/nikhildhole/mermaid-visualizer/pkg/api"
)

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

var _ HTTPClient = (*http.Client)(nil)

// StatusError reports a non-success response from the streaming endpoint.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: unexpected status %d", ErrStreamFailed, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrStreamFailed
}

type ClientConfig struct {
	// URL is the endpoint accepting {query, user_id}.
	URL        string
	HTTPClient HTTPClient
	Framing    Framing
	Logger     *slog.Logger
}

// Client performs one streaming request per Ask and aggregates the body.
type Client struct {
	url     string
	http    HTTPClient
	framing Framing
	logger  *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		url:     cfg.URL,
		http:    cfg.HTTPClient,
		framing: cfg.Framing,
		logger:  cfg.Logger,
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Ask posts the query and streams the response into sink. There is no
// retry: any failure comes back once as an error wrapping ErrStreamFailed.
func (c *Client) Ask(ctx context.Context, query, userID string, sink SnapshotFunc) (Snapshot, error) {
	body, err := json.Marshal(apiTypes.AskRequest{Query: query, UserID: userID})
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrStreamFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrStreamFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("stream request failed", "url", c.url, "error", err)
		return Snapshot{}, fmt.Errorf("%w: %v", ErrStreamFailed, err)
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.Body != nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		}
		c.logger.Warn("stream request rejected", "url", c.url, "status", resp.StatusCode)
		return Snapshot{}, &StatusError{StatusCode: resp.StatusCode}
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return Snapshot{}, ErrNoBody
	}

	snap, err := NewAggregator(WithFraming(c.framing)).Aggregate(resp.Body, sink)
	if err != nil {
		c.logger.Warn("stream aborted", "url", c.url, "events", len(snap.Events), "error", err)
	}
	return snap, err
}
