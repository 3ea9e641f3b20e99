// Package httpapi is a thin demo HTTP layer over the orchestrator, reusing
// the teacher's logging-middleware/SSE-streaming idiom
// (internal/api/router.go before its rewrite) without the teacher's
// JWT/tenant/document surface, which spec.md §1 names as an external
// collaborator this repository only demonstrates wiring for.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/northfieldai/ragcore/internal/domain"
	"github.com/northfieldai/ragcore/internal/orchestrator"
)

// RouterDeps bundles the router's collaborators.
type RouterDeps struct {
	Orchestrator *orchestrator.Orchestrator
	Logger       *slog.Logger
}

// NewRouter builds the demo HTTP handler: a health check and a turn
// endpoint, streamed over SSE.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()
	h := &handlers{deps: deps}

	mux.HandleFunc("GET /api/v1/health", h.health)
	mux.HandleFunc("POST /api/v1/turn", h.turn)
	mux.HandleFunc("POST /api/v1/turn/sync", h.turnSync)

	return h.loggingMiddleware(mux)
}

type handlers struct {
	deps RouterDeps
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().Format(time.RFC3339)})
}

type turnBody struct {
	UserID          string               `json:"user_id"`
	SessionID       string               `json:"session_id"`
	ProjectID       string               `json:"project_id"`
	UserText        string               `json:"user_text"`
	History         []domain.ChatMessage `json:"history"`
	EnableWebSearch *bool                `json:"enable_web_search"`
}

func (b turnBody) toRequest() domain.TurnRequest {
	return domain.TurnRequest{
		UserID:          b.UserID,
		SessionID:       b.SessionID,
		ProjectID:       b.ProjectID,
		UserText:        b.UserText,
		History:         b.History,
		EnableWebSearch: b.EnableWebSearch,
	}
}

func decodeTurnBody(r *http.Request) (turnBody, error) {
	var body turnBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return turnBody{}, fmt.Errorf("invalid request body: %w", err)
	}
	if body.UserID == "" || body.SessionID == "" || body.UserText == "" {
		return turnBody{}, fmt.Errorf("user_id, session_id, and user_text are required")
	}
	return body, nil
}

// turn streams a single turn's response as Server-Sent Events: one
// "data: <token>" event per text delta, a "data: [DONE]" terminator, and an
// "event: error" frame if generation ends in an error.
func (h *handlers) turn(w http.ResponseWriter, r *http.Request) {
	body, err := decodeTurnBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	for d := range h.deps.Orchestrator.Turn(r.Context(), body.toRequest()) {
		if d.Err != nil {
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", escapeSSE(d.Err.Error()))
			flusher.Flush()
			continue
		}
		if d.Text != "" {
			fmt.Fprintf(w, "data: %s\n\n", escapeSSE(d.Text))
			flusher.Flush()
		}
	}

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// turnSync buffers the full response and returns it as JSON, for simple
// clients that don't want to parse SSE.
func (h *handlers) turnSync(w http.ResponseWriter, r *http.Request) {
	body, err := decodeTurnBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var answer strings.Builder
	var streamErr error
	for d := range h.deps.Orchestrator.Turn(r.Context(), body.toRequest()) {
		if d.Text != "" {
			answer.WriteString(d.Text)
		}
		if d.Err != nil {
			streamErr = d.Err
		}
	}

	resp := map[string]string{"answer": answer.String()}
	if streamErr != nil {
		resp["error"] = streamErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.deps.Logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func escapeSSE(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}
