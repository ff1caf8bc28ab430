package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nikhildhole/mermaid-visualizer/internal/circuit"
	"github.com/nikhildhole/mermaid-visualizer/internal/realtime"
	"github.com/nikhildhole/mermaid-visualizer/internal/storage"
	"github.com/nikhildhole/mermaid-visualizer/internal/stream"
	apiTypes "github.com/nikhildhole/mermaid-visualizer/pkg/api"
)

const (
	defaultBreakerThreshold = 3
	defaultBreakerCooldown  = 30 * time.Second
)

type HandlerConfig struct {
	// Store holds documents for the /mermaid authority. Defaults to memory.
	Store storage.Store
	// AskURL is the assistant endpoint the chat proxy forwards to.
	AskURL     string
	HTTPClient stream.HTTPClient
	Breaker    *circuit.Breaker
	Logger     *slog.Logger
}

// Handler serves the document authority and the chat streaming proxy.
type Handler struct {
	store   storage.Store
	hub     *realtime.Hub
	askURL  string
	http    stream.HTTPClient
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		store:   cfg.Store,
		askURL:  cfg.AskURL,
		http:    cfg.HTTPClient,
		breaker: cfg.Breaker,
		logger:  cfg.Logger,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.logger = h.logger.With("component", "api")
	if h.store == nil {
		h.store = storage.NewMemoryStore()
	}
	if h.http == nil {
		h.http = http.DefaultClient
	}
	if h.breaker == nil {
		h.breaker = circuit.NewBreaker(defaultBreakerThreshold, defaultBreakerCooldown)
	}
	h.hub = realtime.NewHub(h.logger)
	return h
}

// Mount registers all routes on the provided router.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/mermaid", h.documentWebSocket)
	r.Post("/api/chat", h.chatProxy)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message, details string) {
	resp := apiTypes.ErrorResponse{Error: message}
	if details != "" {
		resp.Details = details
	}
	writeJSON(w, code, resp)
}
