package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nikhildhole/mermaid-visualizer/internal/circuit"
	apiTypes "github.com/nikhildhole/mermaid-visualizer/pkg/api"
)

func postChat(t *testing.T, env *testEnv, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(env.server.URL+"/api/chat", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/chat failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func expectChatFailure(t *testing.T, resp *http.Response) {
	t.Helper()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	var body apiTypes.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error != "Failed to process request" {
		t.Fatalf("error = %q", body.Error)
	}
}

func writeFrame(w http.ResponseWriter, v any) {
	data, _ := json.Marshal(v)
	fmt.Fprintf(w, "data: %s\n\n", data)
	w.(http.Flusher).Flush()
}

func TestChatProxy_StreamsUpstreamBody(t *testing.T) {
	forwardedCh := make(chan apiTypes.AskRequest, 1)
	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req apiTypes.AskRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		forwardedCh <- req
		w.Header().Set("Content-Type", "text/event-stream")
		writeFrame(w, apiTypes.StartEvent{Type: apiTypes.EventTypeStart, Message: "Starting"})
		<-release
		writeFrame(w, apiTypes.AgentCompleteEvent{Type: apiTypes.EventTypeAgentComplete, Agent: "writer", Result: "graph TD"})
		writeFrame(w, apiTypes.CompleteEvent{Type: apiTypes.EventTypeComplete, Message: "done"})
	}))
	defer upstream.Close()
	var once sync.Once
	closeRelease := func() { once.Do(func() { close(release) }) }
	defer closeRelease()

	env := newTestEnv(t, HandlerConfig{AskURL: upstream.URL})
	resp := postChat(t, env, `{"query":"draw a graph","userId":"user-1-abc"}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	for header, want := range map[string]string{
		"Content-Type":  "text/event-stream",
		"Cache-Control": "no-cache",
		"Connection":    "keep-alive",
	} {
		if got := resp.Header.Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				lines <- strings.TrimPrefix(line, "data: ")
			}
		}
	}()

	// the first frame must arrive before upstream finishes
	select {
	case line := <-lines:
		if !strings.Contains(line, `"start"`) {
			t.Fatalf("first frame = %s", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first frame was not flushed")
	}
	closeRelease()

	var rest []string
	for line := range lines {
		rest = append(rest, line)
	}
	if len(rest) != 2 || !strings.Contains(rest[0], `"graph TD"`) || !strings.Contains(rest[1], `"complete"`) {
		t.Fatalf("remaining frames = %v", rest)
	}

	forwarded := <-forwardedCh
	if forwarded.Query != "draw a graph" || forwarded.UserID != "user-1-abc" {
		t.Fatalf("forwarded = %+v", forwarded)
	}
}

func TestChatProxy_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-success status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusBadGateway)
			},
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := httptest.NewServer(tt.handler)
			defer upstream.Close()

			env := newTestEnv(t, HandlerConfig{AskURL: upstream.URL})
			expectChatFailure(t, postChat(t, env, `{"query":"q","userId":"u"}`))
		})
	}
}

func TestChatProxy_UpstreamUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	env := newTestEnv(t, HandlerConfig{AskURL: url})
	expectChatFailure(t, postChat(t, env, `{"query":"q","userId":"u"}`))
}

func TestChatProxy_BreakerFailsFast(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	env := newTestEnv(t, HandlerConfig{
		AskURL:  upstream.URL,
		Breaker: circuit.NewBreaker(3, time.Minute),
	})
	for i := 0; i < 5; i++ {
		expectChatFailure(t, postChat(t, env, `{"query":"q","userId":"u"}`))
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("upstream calls = %d, want 3", got)
	}
}

func TestChatProxy_InvalidBody(t *testing.T) {
	env := newTestEnv(t, HandlerConfig{AskURL: "http://127.0.0.1:1/ask"})
	resp := postChat(t, env, `{"query":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestChatProxy_ForwardsBodyVerbatim(t *testing.T) {
	payload := "data: {\"type\":\"agent_com"
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, payload)
		fmt.Fprint(w, "plete\",\"result\":\"x\"}\n")
	}))
	defer upstream.Close()

	env := newTestEnv(t, HandlerConfig{AskURL: upstream.URL})
	resp := postChat(t, env, `{"query":"q","userId":"u"}`)

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if buf.String() != "data: {\"type\":\"agent_complete\",\"result\":\"x\"}\n" {
		t.Fatalf("body = %q", buf.String())
	}
}
