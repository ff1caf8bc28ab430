package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apiTypes "github.com/nikhildhole/mermaid-visualizer/pkg/api"
)

const (
	maxChatRequestSize = 1 << 20
	proxyChunkSize     = 32 * 1024

	chatFailureMessage = "Failed to process request"
)

var (
	errUpstreamStatus = errors.New("upstream returned non-success status")
	errUpstreamNoBody = errors.New("upstream response has no body")
)

// chatProxy forwards a chat query to the assistant and streams its
// text/event-stream body back unmodified, flushing after every read.
func (h *Handler) chatProxy(w http.ResponseWriter, r *http.Request) {
	var req apiTypes.ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxChatRequestSize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.breaker.Allow(); err != nil {
		h.logger.Warn("chat upstream unavailable", "error", err)
		writeError(w, http.StatusInternalServerError, chatFailureMessage, "")
		return
	}

	resp, err := h.askUpstream(r, req)
	if err != nil {
		if h.breaker.RecordFailure() {
			h.logger.Warn("chat upstream breaker opened", "url", h.askURL)
		}
		h.logger.Warn("chat upstream failed", "url", h.askURL, "consecutive_failures", h.breaker.FailureCount(), "error", err)
		writeError(w, http.StatusInternalServerError, chatFailureMessage, "")
		return
	}
	defer resp.Body.Close()
	h.breaker.RecordSuccess()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	buf := make([]byte, proxyChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				h.logger.Warn("chat upstream stream aborted", "error", readErr)
			}
			return
		}
	}
}

// askUpstream returns a response with a readable body and a 2xx status, or
// an error.
func (h *Handler) askUpstream(r *http.Request, req apiTypes.ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(apiTypes.AskRequest{Query: req.Query, UserID: req.UserID})
	if err != nil {
		return nil, err
	}
	upstreamReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.askURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	upstreamReq.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Do(upstreamReq)
	if err != nil {
		return nil, err
	}
	if resp.Body == nil {
		return nil, errUpstreamNoBody
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", errUpstreamStatus, resp.StatusCode)
	}
	if resp.Body == http.NoBody {
		return nil, errUpstreamNoBody
	}
	return resp, nil
}
