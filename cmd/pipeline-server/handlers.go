// cmd/pipeline-server/handlers.go
package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"pagegen-pipeline/internal/adapters/layoutstore"
	"pagegen-pipeline/internal/adapters/transcribe"
	"pagegen-pipeline/internal/common/config"
	"pagegen-pipeline/internal/common/errors"
	"pagegen-pipeline/internal/common/logger"
	"pagegen-pipeline/internal/pipeline"
)

// maxAudioUpload caps the multipart audio part at 10 MiB.
const maxAudioUpload = 10 << 20

type apiServer struct {
	orch         *pipeline.Orchestrator
	store        *layoutstore.Adapter
	cfg          *config.Config
	logger       logger.Logger
	healthChecks map[string]func(context.Context) bool
}

type generateTextRequest struct {
	Text              string `json:"text"`
	Language          string `json:"language"`
	Template          string `json:"template"`
	SkipVisualMapping bool   `json:"skipVisualMapping"`
}

// handleGenerate accepts a JSON body for text input or a multipart form for
// audio. The X-Client-Id header keys the session; an anonymous caller gets a
// per-request session.
func (s *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.NewValidationError("POST required"))
		return
	}

	clientKey := r.Header.Get("X-Client-Id")
	req := &pipeline.GenerationRequest{ClientKey: clientKey}

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := s.parseAudioRequest(r, req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	default:
		var body generateTextRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, errors.NewValidationError("undecodable body: "+err.Error()))
			return
		}
		req.Text = body.Text
		req.Language = body.Language
		req.Template = body.Template
		req.SkipVisualMapping = body.SkipVisualMapping
	}

	result, err := s.orch.Generate(r.Context(), req)
	if err != nil {
		s.logger.Warn("generation rejected", map[string]interface{}{
			"clientKey": clientKey,
			"error":     err.Error(),
		})
		writeError(w, http.StatusBadRequest, errors.Normalize(err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) parseAudioRequest(r *http.Request, req *pipeline.GenerationRequest) *errors.PipelineError {
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		return errors.NewValidationError("unparsable multipart form: " + err.Error())
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		return errors.NewValidationError("audio file part is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAudioUpload))
	if err != nil {
		return errors.NewValidationError("unreadable audio part: " + err.Error())
	}

	mimeType := header.Header.Get("Content-Type")
	language := r.FormValue("language")
	if language == "" {
		language = s.cfg.Pipeline.DefaultLanguage
	}

	req.Audio = &transcribe.Audio{Data: data, MimeType: mimeType, Language: language}
	req.Template = r.FormValue("template")
	req.SkipVisualMapping = r.FormValue("skipVisualMapping") == "true"
	return nil
}

// handleGetLayout proxies the persisted layout for a session.
func (s *apiServer) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.NewValidationError("GET required"))
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/api/v1/layouts/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		writeError(w, http.StatusBadRequest, errors.NewValidationError("session id is required"))
		return
	}

	layout, pErr := s.store.Load(r.Context(), sessionID)
	if pErr != nil {
		if layoutstore.IsNotFound(pErr) {
			writeError(w, http.StatusNotFound, pErr)
			return
		}
		writeError(w, http.StatusBadGateway, pErr)
		return
	}

	writeJSON(w, http.StatusOK, layout)
}

type healthResponse struct {
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
}

// handleHealth aggregates collaborator probes. The server itself reports
// degraded, not down, when a collaborator is unreachable: generation may
// still partially work.
func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Services: make(map[string]bool, len(s.healthChecks))}
	for name, check := range s.healthChecks {
		up := check(ctx)
		resp.Services[name] = up
		if !up {
			resp.Status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, pErr *errors.PipelineError) {
	writeJSON(w, status, map[string]interface{}{"error": pErr})
}
