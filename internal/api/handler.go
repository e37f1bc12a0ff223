package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/distconf/internal/resolver"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// ConfigSource is the subset of the resolver the HTTP API depends on.
type ConfigSource interface {
	Load(dirs ...string) error
	Get(key string, def any) any
	Has(key string) bool
	Store() map[string]any
	Sources() []resolver.Source
	Tiers() []string
	Environment() string
	Hostname() string
}

// Handler serves a resolved configuration over HTTP. Reads share a lock and
// reloads take it exclusively, so a reload is never observed half-way.
type Handler struct {
	source ConfigSource
	logger *zap.Logger

	clock func() time.Time

	mu       sync.RWMutex
	loadedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithHandlerLogger sets the logger used for reload diagnostics.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler constructs a Handler around an already loaded configuration.
func NewHandler(source ConfigSource, opts ...HandlerOption) *Handler {
	h := &Handler{
		source: source,
		logger: zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.loadedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	_ = r
	h.mu.RLock()
	resp := configResponse{
		Environment: h.source.Environment(),
		Hostname:    h.source.Hostname(),
		LoadedAt:    h.loadedAt,
		Config:      h.source.Store(),
	}
	h.mu.RUnlock()

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetKey(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("key"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "Invalid request", "key must be a non-empty dotted path")
		return
	}

	h.mu.RLock()
	found := h.source.Has(key)
	value := h.source.Get(key, nil)
	h.mu.RUnlock()

	if !found {
		writeError(w, http.StatusNotFound, "Key not found", key)
		return
	}

	writeJSON(w, http.StatusOK, keyResponse{Key: key, Value: value})
}

func (h *Handler) handleGetSources(w http.ResponseWriter, r *http.Request) {
	_ = r
	h.mu.RLock()
	sources := h.source.Sources()
	h.mu.RUnlock()

	if sources == nil {
		sources = []resolver.Source{}
	}
	writeJSON(w, http.StatusOK, sourcesResponse{Sources: sources})
}

func (h *Handler) handleGetTiers(w http.ResponseWriter, r *http.Request) {
	_ = r
	h.mu.RLock()
	tiers := h.source.Tiers()
	h.mu.RUnlock()

	writeJSON(w, http.StatusOK, tiersResponse{Tiers: tiers})
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	err := h.source.Load()
	if err == nil {
		h.loadedAt = h.clock()
	}
	loadedAt := h.loadedAt
	sourceCount := len(h.source.Sources())
	h.mu.Unlock()

	if err != nil {
		h.logger.Warn("reload rejected",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.Error(err),
		)
		if errors.Is(err, resolver.ErrLoad) {
			writeError(w, http.StatusUnprocessableEntity, "Reload failed", err.Error(), "The previous configuration is still active; fix the file and retry")
			return
		}
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reloadResponse{
		LoadedAt: loadedAt,
		Sources:  sourceCount,
		Message:  "Configuration reloaded successfully",
	})
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type configResponse struct {
	Environment string         `json:"environment"`
	Hostname    string         `json:"hostname"`
	LoadedAt    time.Time      `json:"loadedAt"`
	Config      map[string]any `json:"config"`
}

type keyResponse struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type sourcesResponse struct {
	Sources []resolver.Source `json:"sources"`
}

type tiersResponse struct {
	Tiers []string `json:"tiers"`
}

type reloadResponse struct {
	LoadedAt time.Time `json:"loadedAt"`
	Sources  int       `json:"sources"`
	Message  string    `json:"message"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// writeJSON encodes payload before writing the status; an encoding failure
// is answered with a 500.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		writeInternalError(w, fmt.Errorf("encode response: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
