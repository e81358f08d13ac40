// internal/pipeline/progress.go
package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"pagegen-pipeline/internal/common/errors"
	"pagegen-pipeline/internal/common/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// ProgressTopic is the in-process event-bus topic for stage transitions.
const ProgressTopic = "pipeline.progress"

// StageTransition is one progress event. Events for a session are emitted
// in stage order; subscribers may use them to drive live UI updates.
type StageTransition struct {
	SessionID string                `json:"sessionId"`
	Stage     string                `json:"stage"`
	From      StageStatus           `json:"from"`
	To        StageStatus           `json:"to"`
	Progress  int                   `json:"progress"`
	Err       *errors.PipelineError `json:"error,omitempty"`
	At        time.Time             `json:"at"`
}

// ProgressReporter receives stage transitions as they happen. Reporting is
// fire-and-forget: a slow or broken reporter must never stall the pipeline.
type ProgressReporter interface {
	Publish(transition StageTransition)
}

// BusReporter publishes transitions on a watermill in-process channel, so
// HTTP handlers and loggers subscribe without coupling to the orchestrator.
type BusReporter struct {
	bus    *gochannel.GoChannel
	logger logger.Logger
}

func NewBusReporter(bus *gochannel.GoChannel, log logger.Logger) *BusReporter {
	return &BusReporter{bus: bus, logger: log}
}

func (r *BusReporter) Publish(transition StageTransition) {
	payload, err := json.Marshal(transition)
	if err != nil {
		r.logger.Warn("progress event not serializable", map[string]interface{}{
			"stage": transition.Stage,
			"error": err.Error(),
		})
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("sessionId", transition.SessionID)
	if err := r.bus.Publish(ProgressTopic, msg); err != nil {
		r.logger.Warn("progress event dropped", map[string]interface{}{
			"stage": transition.Stage,
			"error": err.Error(),
		})
	}
}

// Subscribe attaches a consumer to the progress topic. The returned channel
// closes when ctx is cancelled.
func (r *BusReporter) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return r.bus.Subscribe(ctx, ProgressTopic)
}

// LogReporter writes transitions to the structured log. Used standalone in
// tests and chained behind the bus in production.
type LogReporter struct {
	logger logger.Logger
}

func NewLogReporter(log logger.Logger) *LogReporter {
	return &LogReporter{logger: log}
}

func (r *LogReporter) Publish(transition StageTransition) {
	fields := map[string]interface{}{
		"sessionId": transition.SessionID,
		"stage":     transition.Stage,
		"from":      string(transition.From),
		"to":        string(transition.To),
		"progress":  transition.Progress,
	}
	if transition.Err != nil {
		fields["errorCode"] = string(transition.Err.Code)
	}
	r.logger.Info("stage transition", fields)
}

// MultiReporter fans a transition out to several reporters in order.
type MultiReporter []ProgressReporter

func (m MultiReporter) Publish(transition StageTransition) {
	for _, r := range m {
		r.Publish(transition)
	}
}

// Recorder captures transitions for assertions.
type Recorder struct {
	mu          sync.Mutex
	transitions []StageTransition
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(transition StageTransition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, transition)
}

// Transitions returns a copy of everything recorded so far.
func (r *Recorder) Transitions() []StageTransition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StageTransition, len(r.transitions))
	copy(out, r.transitions)
	return out
}
