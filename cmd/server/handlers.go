package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/docmindhq/docmind"
	"github.com/docmindhq/docmind/llm"
	"github.com/docmindhq/docmind/store"
)

type handler struct {
	svc docmind.Service
}

func newHandler(svc docmind.Service) *handler {
	return &handler{svc: svc}
}

type queryRequest struct {
	Question            string        `json:"question"`
	TopK                int           `json:"top_k,omitempty"`
	SimilarityThreshold float64       `json:"similarity_threshold,omitempty"`
	History             []llm.Message `json:"history,omitempty"`
}

func (req *queryRequest) options() []docmind.QueryOption {
	var opts []docmind.QueryOption
	if req.TopK >= 1 && req.TopK <= 100 {
		opts = append(opts, docmind.WithTopK(req.TopK))
	}
	if req.SimilarityThreshold > 0 {
		opts = append(opts, docmind.WithSimilarityThreshold(req.SimilarityThreshold))
	}
	if len(req.History) > 0 {
		opts = append(opts, docmind.WithHistory(req.History))
	}
	return opts
}

// POST /query
func (h *handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := h.svc.Query(ctx, req.Question, req.options()...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		slog.Error("query error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// POST /query/stream
// Responds with newline-delimited SSE frames, each "data: <json>\n\n".
func (h *handler) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emit := func(ev docmind.Event) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := h.svc.StreamQuery(r.Context(), req.Question, emit, req.options()...); err != nil {
		// Headers are long gone; all we can do is log.
		slog.Error("stream query error", "error", err)
	}
}

// POST /agent/answer
// Runs the requested tools and synthesizes one answer.
func (h *handler) handleAgentAnswer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Question string        `json:"question"`
		Tools    []string      `json:"tools,omitempty"`
		History  []llm.Message `json:"history,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	var answer strings.Builder
	err := h.svc.AgentAnswer(ctx, req.Question, req.Tools, req.History, func(chunk string) error {
		answer.WriteString(chunk)
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "agent answer failed")
		slog.Error("agent answer error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"answer": answer.String()})
}

// POST /documents
func (h *handler) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	var doc store.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(doc.Number) == "" || strings.TrimSpace(doc.Subject) == "" {
		writeError(w, http.StatusBadRequest, "number and subject are required")
		return
	}

	id, err := h.svc.AddDocument(ctx, doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storing document failed")
		slog.Error("add document error", "number", doc.Number, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"document_id": id})
}

// POST /scheduler/start
func (h *handler) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.StartScheduler(); err != nil {
		if errors.Is(err, docmind.ErrSchedulerRunning) {
			writeError(w, http.StatusConflict, "scheduler already running")
			return
		}
		writeError(w, http.StatusInternalServerError, "starting scheduler failed")
		slog.Error("scheduler start error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.SchedulerStatus())
}

// POST /scheduler/stop
func (h *handler) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.StopScheduler(); err != nil {
		if errors.Is(err, docmind.ErrSchedulerStopped) {
			writeError(w, http.StatusConflict, "scheduler not running")
			return
		}
		writeError(w, http.StatusInternalServerError, "stopping scheduler failed")
		slog.Error("scheduler stop error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.SchedulerStatus())
}

// GET /scheduler/status
func (h *handler) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.SchedulerStatus())
}

// GET /stats
func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		slog.Error("stats error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
