// Package handler exposes the telephony callback endpoints.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"clinic-voice-go/internal/callflow"
	"clinic-voice-go/internal/logger"
	"clinic-voice-go/internal/processor"
	"clinic-voice-go/internal/types"
)

// CallFlow is the subset of *callflow.Controller the routes drive.
type CallFlow interface {
	Start(ctx context.Context, cb callflow.Callback) callflow.Outcome
	SelectMenu(ctx context.Context, cb callflow.Callback) callflow.Outcome
	PromptRecording(ctx context.Context, cb callflow.Callback) callflow.Outcome
	CompleteRecording(ctx context.Context, cb callflow.Callback) callflow.Outcome
}

// Pipeline backs the diagnostic /process endpoint.
type Pipeline interface {
	Process(ctx context.Context, ref types.RecordingReference) (processor.Result, error)
}

type Handler struct {
	flow     CallFlow
	pipeline Pipeline
	baseURL  string
	log      *logger.Logger
}

// New builds the handler. An empty baseURL means callback targets are
// derived from each request's forwarded scheme and host.
func New(flow CallFlow, pipeline Pipeline, baseURL string, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		flow:     flow,
		pipeline: pipeline,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      log.WithComponent("handler"),
	}
}

// Router wires middleware and routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLog)
	r.Use(middleware.Recoverer)

	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/healthz", h.handleHealth)

	r.Post("/voice", h.handleVoice)
	r.Post(callflow.PathMenu, h.handleMenu)
	r.Post(callflow.PathRecord, h.handleRecord)
	r.Post(callflow.PathTranscribe, h.handleTranscribe)

	r.Get("/process", h.handleProcess)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	h.respondXML(w, h.flow.Start(r.Context(), h.callback(r)))
}

func (h *Handler) handleMenu(w http.ResponseWriter, r *http.Request) {
	h.respondXML(w, h.flow.SelectMenu(r.Context(), h.callback(r)))
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	h.respondXML(w, h.flow.PromptRecording(r.Context(), h.callback(r)))
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	h.respondXML(w, h.flow.CompleteRecording(r.Context(), h.callback(r)))
}

// handleProcess runs the pipeline for ?recording_url= and returns the
// result as JSON. Used to check a deployment without placing a call.
func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	reqLog := h.log.WithRequest(r)
	url := strings.TrimSpace(r.URL.Query().Get("recording_url"))
	if url == "" {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "missing recording_url"})
		return
	}

	res, err := h.pipeline.Process(r.Context(), types.NewRecordingReference(url))
	if err != nil {
		reqLog.WithField("error", err.Error()).Warn("process request failed")
		h.respondJSON(w, http.StatusBadGateway, res)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// callback extracts the fields the provider posts. A missing CallSid is
// replaced with a random id so log lines stay correlated.
func (h *Handler) callback(r *http.Request) callflow.Callback {
	if err := r.ParseForm(); err != nil {
		h.log.WithRequest(r).WithField("error", err.Error()).Warn("unreadable callback form")
	}
	callID := strings.TrimSpace(r.PostFormValue("CallSid"))
	if callID == "" {
		callID = uuid.NewString()
	}
	return callflow.Callback{
		CallID:       callID,
		Digit:        strings.TrimSpace(r.PostFormValue("Digits")),
		RecordingURL: strings.TrimSpace(r.PostFormValue("RecordingUrl")),
		BaseURL:      h.origin(r),
	}
}

func (h *Handler) origin(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.TrimSpace(strings.Split(p, ",")[0])
	}
	host := r.Host
	if fh := r.Header.Get("X-Forwarded-Host"); fh != "" {
		host = strings.TrimSpace(strings.Split(fh, ",")[0])
	}
	return scheme + "://" + host
}

func (h *Handler) respondXML(w http.ResponseWriter, out callflow.Outcome) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(out.Markup)); err != nil {
		h.log.WithCall(out.Session.CallID).WithField("error", err.Error()).Error("failed to write markup")
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.WithField("error", err.Error()).Error("failed to write response")
	}
}

// requestLog is chi's request logger on logrus.
func (h *Handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-ID") == "" {
			if id := middleware.GetReqID(r.Context()); id != "" {
				r.Header.Set("X-Request-ID", id)
			}
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.WithRequest(r).
			WithField("status", ww.Status()).
			WithField("bytes", ww.BytesWritten()).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Info("request handled")
	})
}
