// internal/adapters/transcribe/adapter.go
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strings"

	"pagegen-pipeline/internal/common/errors"
	"pagegen-pipeline/internal/common/invoker"
	"pagegen-pipeline/internal/common/logger"
)

const ServiceName = "transcription"

// Adapter is the typed wrapper over the resilient invoker for the
// speech-transcription service.
type Adapter struct {
	config  *Config
	invoker *invoker.Invoker
	logger  logger.Logger
}

func NewAdapter(cfg *Config, inv *invoker.Invoker, log logger.Logger) *Adapter {
	return &Adapter{
		config:  cfg,
		invoker: inv,
		logger: log.With(map[string]interface{}{
			"adapter": ServiceName,
		}),
	}
}

// Transcribe uploads the audio blob and returns the transcript. Input that
// is not audio or is below the audibility threshold is rejected before any
// network call. Service failures come back as a structured result, never as
// a panic or a bare transport error.
func (a *Adapter) Transcribe(ctx context.Context, sessionID string, audio Audio) *Result {
	if len(audio.Data) == 0 {
		return &Result{
			Reason: ReasonTooShort,
			Err:    errors.NewValidationError("audio blob is empty"),
		}
	}
	if !isAudioMime(audio.MimeType) {
		return &Result{
			Reason: ReasonServiceError,
			Err:    errors.NewValidationError("input is not audio-typed: " + audio.MimeType),
		}
	}
	if len(audio.Data) < a.config.MinAudioBytes {
		a.logger.Info("audio below audibility threshold", map[string]interface{}{
			"sessionId": sessionID,
			"size":      len(audio.Data),
			"minimum":   a.config.MinAudioBytes,
		})
		return &Result{
			Reason: ReasonTooShort,
			Err:    errors.NewTranscriptionTooShortError(len(audio.Data), a.config.MinAudioBytes),
		}
	}

	body, contentType, err := buildMultipart(audio)
	if err != nil {
		return &Result{
			Reason: ReasonServiceError,
			Err:    errors.NewTranscriptionFailedError(err),
		}
	}

	resp, pErr := a.invoker.Invoke(ctx, invoker.Request{
		Target:     ServiceName,
		Method:     http.MethodPost,
		URL:        a.config.BaseURL + "/api/transcribe",
		Headers:    map[string]string{"Content-Type": contentType},
		Body:       body,
		SessionID:  sessionID,
		Timeout:    a.config.Timeout,
		MaxRetries: a.config.MaxRetries,
	})
	if pErr != nil {
		return &Result{
			Reason: ReasonServiceError,
			Err:    pErr.WithStage("transcribe"),
		}
	}

	var wire wireResponse
	if err := json.Unmarshal(resp.Body, &wire); err != nil {
		return &Result{
			Reason: ReasonServiceError,
			Err:    errors.NewServiceLogicError(ServiceName, "undecodable response: "+err.Error()),
		}
	}

	if strings.TrimSpace(wire.Text) == "" {
		// Reachable service, empty transcript: the user said nothing usable.
		return &Result{
			Reason: ReasonSilence,
			Err:    errors.NewTranscriptionSilenceError("service returned an empty transcript"),
		}
	}

	language := wire.Language
	if language == "" {
		language = audio.Language
	}

	a.logger.Info("transcription completed", map[string]interface{}{
		"sessionId":  sessionID,
		"confidence": wire.Confidence,
		"textLength": len(wire.Text),
	})

	return &Result{
		Text:       strings.TrimSpace(wire.Text),
		Confidence: wire.Confidence,
		Language:   language,
	}
}

// HealthCheck is a best-effort liveness probe; failures report false.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	return a.invoker.CheckHealth(ctx, ServiceName, a.config.BaseURL+a.config.HealthPath, a.config.HealthTimeout)
}

func buildMultipart(audio Audio) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", "recording")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("language", audio.Language); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

func isAudioMime(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "audio/")
}
