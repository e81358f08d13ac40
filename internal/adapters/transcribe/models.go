// internal/adapters/transcribe/models.go
package transcribe

import "pagegen-pipeline/internal/common/errors"

// Failure reasons reported to the caller. These are actionable: the UI can
// tell the user to speak up or record longer instead of showing a generic
// error.
const (
	ReasonTooShort     = "too-short"
	ReasonSilence      = "silence-detected"
	ReasonServiceError = "service-error"
)

// Audio is the caller-supplied voice input.
type Audio struct {
	Data     []byte
	MimeType string
	Language string
}

// Result is the outcome of one transcription attempt. Failures are carried
// in Err and Reason rather than thrown, so the orchestrator decides whether
// to retry the stage or abort the pipeline.
type Result struct {
	Text       string
	Confidence float64
	Language   string
	Reason     string
	Err        *errors.PipelineError
}

// OK reports whether the result carries usable text.
func (r *Result) OK() bool {
	return r.Err == nil && r.Text != ""
}

type wireResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}
