package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nikhildhole/mermaid-visualizer/internal/identity"
	"github.com/nikhildhole/mermaid-visualizer/internal/realtime"
	"github.com/nikhildhole/mermaid-visualizer/internal/storage"
	realtimeTypes "github.com/nikhildhole/mermaid-visualizer/pkg/realtime"
)

const (
	maxDocumentFrameSize = 4 * 1024 * 1024
	storeTimeout         = 5 * time.Second

	updateAcknowledgement = "Code updated successfully"
)

var documentUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// documentWebSocket is the reference authority: get answers with the stored
// document, update stores it, acknowledges the sender and pushes the new
// content to every other connection editing the same user id.
func (h *Handler) documentWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := documentUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(maxDocumentFrameSize)

	client := realtime.NewClient(conn)
	h.hub.Register(client)
	defer h.hub.Unregister(client.ID())

	go client.WriteLoop()

	logger := h.logger.With("client_id", client.ID())
	logger.Debug("document connection opened")

	// the document topic this connection currently follows
	var userID string

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logger.Debug("document connection closed", "error", err)
			return
		}

		var msg realtimeTypes.ClientEnvelope
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Warn("dropping malformed frame", "error", err, "size", len(raw))
			continue
		}
		if err := identity.Validate(msg.UserID); err != nil {
			logger.Warn("dropping frame without a valid user_id", "type", string(msg.Type), "error", err)
			continue
		}
		if msg.UserID != userID {
			if userID != "" {
				h.hub.Unsubscribe(client.ID(), []string{realtime.DocumentTopic(userID)})
			}
			h.hub.Subscribe(client.ID(), []string{realtime.DocumentTopic(msg.UserID)})
			userID = msg.UserID
		}

		var ok bool
		switch msg.Type {
		case realtimeTypes.ClientMessageTypeGet:
			ok = h.handleDocumentGet(r.Context(), client, msg.UserID)
		case realtimeTypes.ClientMessageTypeUpdate:
			if msg.Content == nil {
				logger.Warn("dropping update without content", "user_id", msg.UserID)
				continue
			}
			ok = h.handleDocumentUpdate(r.Context(), client, msg.UserID, *msg.Content)
		default:
			logger.Warn("dropping unsupported frame", "type", string(msg.Type))
			continue
		}
		if !ok {
			return
		}
	}
}

// handleDocumentGet reports false when the connection must be closed. A
// failed load closes it without a current frame: current replaces the
// editor's document, so only a missing document is answered with "".
func (h *Handler) handleDocumentGet(ctx context.Context, client *realtime.Client, userID string) bool {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	content := ""
	doc, err := h.store.Load(ctx, userID)
	switch {
	case err == nil:
		content = doc.Content
	case errors.Is(err, storage.ErrDocumentNotFound):
	default:
		h.logger.Error("failed to load document, closing connection", "user_id", userID, "error", err)
		return false
	}
	return client.Queue(realtimeTypes.NewCurrent(content))
}

func (h *Handler) handleDocumentUpdate(ctx context.Context, client *realtime.Client, userID, content string) bool {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := h.store.Save(ctx, storage.Document{UserID: userID, Content: content}); err != nil {
		h.logger.Error("failed to save document", "user_id", userID, "error", err)
		return true
	}

	if !client.Queue(realtimeTypes.NewAcknowledged(updateAcknowledgement)) {
		return false
	}
	n := h.hub.Publish(realtime.DocumentTopic(userID), realtimeTypes.NewCodeUpdated(content), client.ID())
	h.logger.Debug("document updated", "user_id", userID, "size", len(content), "peers", n)
	return true
}
