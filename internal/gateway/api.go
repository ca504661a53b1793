package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/CosmoTheDev/pipeline-guardian/internal/remediation"
)

// buildHandler registers all HTTP routes.
func buildHandler(gw *Gateway) http.Handler {
	mux := http.NewServeMux()

	// Webhooks
	mux.HandleFunc("POST /webhook/gitlab", gw.handleGitLabWebhook)
	mux.HandleFunc("POST /webhook/github", gw.handleGitHubWebhook)

	// Status
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /api/stats", gw.handleStats)

	// Analysis and prediction
	mux.HandleFunc("POST /api/analyze", gw.handleAnalyze)
	mux.HandleFunc("GET /api/predict", gw.handlePredict)
	mux.HandleFunc("GET /api/patterns", gw.handlePatterns)

	// Live event stream
	mux.HandleFunc("GET /events", gw.handleEvents)

	return mux
}

func (gw *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, gw.health())
}

func (gw *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{}
	if gw.deps.Cache != nil {
		resp.Cache = gw.deps.Cache.Stats()
	}
	if gw.deps.Store != nil {
		st, err := gw.deps.Store.Stats(r.Context(), strings.TrimSpace(r.URL.Query().Get("project")))
		if err != nil {
			gw.logger.Error("stats query failed", "error", err)
			writeError(w, http.StatusInternalServerError, "loading stats failed")
			return
		}
		resp.History = st
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAnalyze classifies a posted log and returns the plan the processor
// would follow, without touching the source-control host.
func (gw *Gateway) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	var req AnalyzeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Log) == "" {
		writeError(w, http.StatusBadRequest, "log is required")
		return
	}
	if gw.deps.Classifier == nil {
		writeError(w, http.StatusServiceUnavailable, "classifier not configured")
		return
	}

	analysis := gw.deps.Classifier.Classify(r.Context(), req.Log, req.JobName)
	plan := gw.planner.Plan(analysis, remediation.PlanContext{ProjectID: req.ProjectID})
	writeJSON(w, http.StatusOK, AnalyzeResponse{Analysis: analysis, Plan: plan})
}

// handlePredict scores a prospective pipeline. Optional parameters: ref,
// sha (enables a risk comment when high) and at (RFC 3339).
func (gw *Gateway) handlePredict(w http.ResponseWriter, r *http.Request) {
	project, err := queryProject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	at := gw.now()
	if raw := q.Get("at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid at %q: want RFC 3339", raw))
			return
		}
		at = t
	}

	assessment, err := gw.deps.Processor.AssessRisk(r.Context(), project, q.Get("ref"), q.Get("sha"), at)
	if err != nil {
		gw.logger.Error("risk assessment failed", "project", project, "error", err)
		writeError(w, http.StatusBadGateway, "risk assessment failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

func (gw *Gateway) handlePatterns(w http.ResponseWriter, r *http.Request) {
	project, err := queryProject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	patterns, err := gw.deps.Processor.Patterns(r.Context(), project)
	if err != nil {
		gw.logger.Error("pattern analysis failed", "project", project, "error", err)
		writeError(w, http.StatusBadGateway, "pattern analysis failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, patterns)
}

// handleEvents streams SSE to the client. Each frame is a JSON SSEEvent.
// Clients receive a "connected" event immediately, then live updates.
func (gw *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering if behind a proxy

	ch := gw.broadcaster.subscribe()
	defer gw.broadcaster.unsubscribe(ch)

	if frame, err := encodeFrame(SSEEvent{Type: EventConnected, Payload: gw.health()}); err == nil {
		_, _ = w.Write(frame)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}
