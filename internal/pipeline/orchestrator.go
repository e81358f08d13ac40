// internal/pipeline/orchestrator.go
package pipeline

import (
	"context"
	"time"

	"pagegen-pipeline/internal/adapters/extract"
	"pagegen-pipeline/internal/adapters/layoutstore"
	"pagegen-pipeline/internal/adapters/transcribe"
	"pagegen-pipeline/internal/adapters/visualmap"
	"pagegen-pipeline/internal/common/errors"
	"pagegen-pipeline/internal/common/logger"
	"pagegen-pipeline/internal/common/metrics"
	"pagegen-pipeline/internal/common/observability"
	"pagegen-pipeline/internal/layout"
	"pagegen-pipeline/internal/session"
)

// GenerationRequest is one generation run. Exactly one of Audio or Text must
// be set; Audio wins the mode decision. ClientKey identifies the caller and
// keys the session lookup.
type GenerationRequest struct {
	ClientKey         string
	Audio             *transcribe.Audio
	Text              string
	Language          string
	Template          string
	SkipVisualMapping bool
}

// GenerationResult is the caller-facing outcome. Stage failures after
// transcription degrade the result instead of aborting it, so callers must
// check Persisted and Warnings, not just State.
type GenerationResult struct {
	SessionID     string                  `json:"sessionId"`
	State         State                   `json:"state"`
	Layout        *layout.CanonicalLayout `json:"layout,omitempty"`
	Stages        []StageResult           `json:"stages"`
	Warnings      []string                `json:"warnings,omitempty"`
	Persisted     bool                    `json:"persisted"`
	FailureReason string                  `json:"failureReason,omitempty"`
}

// Orchestrator drives one generation request through the stage sequence.
// It owns the Stage Result collection; adapters never see it.
type Orchestrator struct {
	sessions    *session.Context
	transcriber *transcribe.Adapter
	extractor   *extract.Adapter
	mapper      *visualmap.Adapter
	store       *layoutstore.Adapter
	reporter    ProgressReporter
	obs         *observability.Observability
	logger      logger.Logger
	template    string
	now         func() time.Time
}

type Deps struct {
	Sessions    *session.Context
	Transcriber *transcribe.Adapter
	Extractor   *extract.Adapter
	Mapper      *visualmap.Adapter
	Store       *layoutstore.Adapter
	Reporter    ProgressReporter
	Obs         *observability.Observability
	Logger      logger.Logger
	// DefaultTemplate is used when the request names none.
	DefaultTemplate string
}

func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		sessions:    deps.Sessions,
		transcriber: deps.Transcriber,
		extractor:   deps.Extractor,
		mapper:      deps.Mapper,
		store:       deps.Store,
		reporter:    deps.Reporter,
		obs:         deps.Obs,
		logger:      deps.Logger,
		template:    deps.DefaultTemplate,
		now:         time.Now,
	}
}

// run carries the mutable state of one generation through the stages.
type run struct {
	machine   *machine
	sessionID string
	template  string
	stages    map[string]*StageResult
	order     []string
	warnings  []string
	started   time.Time
}

// Generate executes the full pipeline for one request. The only returned
// error is an up-front validation failure; every stage-level failure is
// reported inside the result. Cancellation via ctx is honored at stage
// boundaries and inside the invoker's retry loop.
func (o *Orchestrator) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	if req == nil {
		return nil, errors.NewValidationError("request must not be nil")
	}
	voiceMode := req.Audio != nil
	if !voiceMode && req.Text == "" {
		return nil, errors.NewValidationError("either audio or text input is required")
	}

	metrics.GenerationsActive.Inc()
	defer metrics.GenerationsActive.Dec()

	r := &run{
		machine:  newMachine(),
		template: req.Template,
		started:  o.now(),
		stages:   make(map[string]*StageResult, len(StageOrder)),
	}
	if r.template == "" {
		r.template = o.template
	}
	for _, stage := range StageOrder {
		r.stages[stage] = &StageResult{Stage: stage, Status: StagePending}
	}
	r.order = append(r.order, StageOrder...)

	r.sessionID = o.sessions.EnsureSessionID(ctx, req.ClientKey)
	log := o.logger.With(map[string]interface{}{
		"sessionId": r.sessionID,
		"voiceMode": voiceMode,
	})
	log.Info("generation started", map[string]interface{}{
		"template":          r.template,
		"skipVisualMapping": req.SkipVisualMapping,
	})

	// Stage 1: transcription. Voice only; the single pipeline-fatal stage.
	text := req.Text
	if voiceMode {
		transcribed, failed := o.runTranscribe(ctx, r, req, log)
		if failed != nil {
			return failed, nil
		}
		text = transcribed
	} else {
		o.skipStage(r, StageTranscribe)
	}

	// Stage 2: entity extraction. Failures degrade to an empty entity set.
	extraction := o.runExtract(ctx, r, text, log)

	// Stage 3: visual mapping, unless the fallback rule applies.
	source := o.runMapVisual(ctx, r, req, extraction, log)

	canonical := layout.Normalize(source, r.sessionID, o.now())

	// Stage 4: persistence. A failed write never rolls the layout back.
	persisted := o.runPersist(ctx, r, canonical, log)

	if err := r.machine.to(StateComplete); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	o.record(ctx, r, StateComplete)
	log.Info("generation complete", map[string]interface{}{
		"componentCount": canonical.ComponentCount(),
		"persisted":      persisted,
		"warningCount":   len(r.warnings),
	})

	return o.result(r, canonical, persisted, ""), nil
}

func (o *Orchestrator) runTranscribe(ctx context.Context, r *run, req *GenerationRequest, log logger.Logger) (string, *GenerationResult) {
	if err := r.machine.to(StateTranscribing); err != nil {
		return "", o.failed(ctx, r, StageTranscribe, errors.NewValidationError(err.Error()), "service-error")
	}
	o.beginStage(r, StageTranscribe)

	started := o.now()
	result := o.transcriber.Transcribe(ctx, r.sessionID, *req.Audio)
	metrics.StageDuration.WithLabelValues(StageTranscribe).Observe(o.now().Sub(started).Seconds())

	if !result.OK() {
		pErr := result.Err
		if pErr == nil {
			pErr = errors.NewTranscriptionSilenceError("no speech detected")
		}
		reason := result.Reason
		if reason == "" {
			reason = transcribe.ReasonServiceError
		}
		return "", o.failed(ctx, r, StageTranscribe, pErr, reason)
	}

	o.endStage(ctx, r, StageTranscribe, nil)
	log.Info("transcription complete", map[string]interface{}{
		"textLength": len(result.Text),
		"confidence": result.Confidence,
		"language":   result.Language,
	})
	return result.Text, nil
}

// runExtract ingests the text and fetches entities. Extraction failures are
// not fatal: the run continues with an empty entity set and a warning, so
// the fallback path still produces a layout.
func (o *Orchestrator) runExtract(ctx context.Context, r *run, text string, log logger.Logger) *extract.Result {
	if err := r.machine.to(StateExtractingEntities); err != nil {
		r.warnings = append(r.warnings, err.Error())
		return &extract.Result{EntitySet: extract.EntitySet{Entities: []string{}, Keyphrases: []string{}}}
	}
	o.beginStage(r, StageExtractEntities)

	started := o.now()
	var result *extract.Result
	if pErr := o.extractor.Ingest(ctx, r.sessionID, text); pErr != nil {
		result = &extract.Result{
			EntitySet: extract.EntitySet{Entities: []string{}, Keyphrases: []string{}},
			Err:       pErr,
		}
	} else {
		result = o.extractor.FetchEntities(ctx, r.sessionID)
	}
	metrics.StageDuration.WithLabelValues(StageExtractEntities).Observe(o.now().Sub(started).Seconds())

	if result.Err != nil {
		r.warnings = append(r.warnings, "entity extraction degraded: "+result.Err.Message)
		o.endStage(ctx, r, StageExtractEntities, result.Err)
		return result
	}

	o.endStage(ctx, r, StageExtractEntities, nil)
	log.Info("entities extracted", map[string]interface{}{
		"entityCount":    len(result.Entities),
		"keyphraseCount": len(result.Keyphrases),
	})
	return result
}

// runMapVisual applies the fallback rule: an empty entity set or an explicit
// skip request bypasses the mapper and reuses the extractor's own layout
// guess. A mapper failure also falls back. Whatever happens, a layout source
// comes out.
func (o *Orchestrator) runMapVisual(ctx context.Context, r *run, req *GenerationRequest, extraction *extract.Result, log logger.Logger) layout.Source {
	fallback := func() layout.Source {
		if extraction.Layout != nil {
			return extraction.Layout
		}
		return layout.EmptyLayout(r.template, r.sessionID, StageExtractEntities, o.now())
	}

	if extraction.Empty() || req.SkipVisualMapping {
		o.skipStage(r, StageMapVisual)
		log.Info("visual mapping skipped", map[string]interface{}{
			"entityCount":   len(extraction.Entities),
			"explicitSkip":  req.SkipVisualMapping,
			"fallbackGuess": extraction.Layout != nil,
		})
		return fallback()
	}

	if err := r.machine.to(StateMappingVisual); err != nil {
		r.warnings = append(r.warnings, err.Error())
		return fallback()
	}
	o.beginStage(r, StageMapVisual)

	started := o.now()
	result := o.mapper.MapEntities(ctx, r.sessionID, extraction.Entities, extraction.Keyphrases, r.template)
	metrics.StageDuration.WithLabelValues(StageMapVisual).Observe(o.now().Sub(started).Seconds())

	if !result.OK() {
		r.warnings = append(r.warnings, "visual mapping degraded: "+result.Err.Message)
		o.endStage(ctx, r, StageMapVisual, result.Err)
		return fallback()
	}

	o.endStage(ctx, r, StageMapVisual, nil)
	log.Info("visual mapping complete", map[string]interface{}{
		"componentCount": result.Count,
		"matchCount":     len(result.Matches),
	})
	return result.Layout
}

func (o *Orchestrator) runPersist(ctx context.Context, r *run, canonical *layout.CanonicalLayout, log logger.Logger) bool {
	if err := r.machine.to(StatePersisting); err != nil {
		r.warnings = append(r.warnings, err.Error())
		return false
	}
	o.beginStage(r, StagePersist)

	started := o.now()
	pErr := o.store.Save(ctx, r.sessionID, canonical)
	metrics.StageDuration.WithLabelValues(StagePersist).Observe(o.now().Sub(started).Seconds())

	if pErr != nil {
		r.warnings = append(r.warnings, "layout not persisted: "+pErr.Message)
		o.endStage(ctx, r, StagePersist, pErr)
		log.Warn("persist failed, completing unpersisted", map[string]interface{}{
			"errorCode": string(pErr.Code),
		})
		return false
	}

	o.endStage(ctx, r, StagePersist, nil)
	return true
}

// failed terminates the run. Only transcription reaches here; every later
// stage degrades instead.
func (o *Orchestrator) failed(ctx context.Context, r *run, stage string, pErr *errors.PipelineError, reason string) *GenerationResult {
	sr := r.stages[stage]
	from := sr.Status
	sr.Status = StageFailed
	sr.Detail = pErr.Message
	metrics.StageFailed.WithLabelValues(stage, string(pErr.Code)).Inc()
	o.publish(r, stage, from, StageFailed, pErr)

	if err := r.machine.to(StateFailed); err != nil {
		r.warnings = append(r.warnings, err.Error())
	}
	o.record(ctx, r, StateFailed)
	o.logger.Warn("generation failed", map[string]interface{}{
		"sessionId": r.sessionID,
		"stage":     stage,
		"reason":    reason,
		"errorCode": string(pErr.Code),
	})
	return o.result(r, nil, false, reason)
}

func (o *Orchestrator) beginStage(r *run, stage string) {
	sr := r.stages[stage]
	from := sr.Status
	sr.Status = StageInProgress
	o.publish(r, stage, from, StageInProgress, nil)
}

func (o *Orchestrator) endStage(ctx context.Context, r *run, stage string, pErr *errors.PipelineError) {
	sr := r.stages[stage]
	from := sr.Status
	if pErr != nil {
		sr.Status = StageFailed
		sr.Detail = pErr.Message
		metrics.StageFailed.WithLabelValues(stage, string(pErr.Code)).Inc()
	} else {
		sr.Status = StageCompleted
		sr.Progress = stageProgress[stage]
		metrics.StageCompleted.WithLabelValues(stage).Inc()
	}
	o.publish(r, stage, from, sr.Status, pErr)
}

func (o *Orchestrator) skipStage(r *run, stage string) {
	sr := r.stages[stage]
	from := sr.Status
	sr.Status = StageSkipped
	o.publish(r, stage, from, StageSkipped, nil)
}

func (o *Orchestrator) publish(r *run, stage string, from, to StageStatus, pErr *errors.PipelineError) {
	if o.reporter == nil {
		return
	}
	progress := 0
	if to == StageCompleted {
		progress = stageProgress[stage]
	}
	o.reporter.Publish(StageTransition{
		SessionID: r.sessionID,
		Stage:     stage,
		From:      from,
		To:        to,
		Progress:  progress,
		Err:       pErr,
		At:        o.now(),
	})
}

func (o *Orchestrator) record(ctx context.Context, r *run, state State) {
	if o.obs == nil {
		return
	}
	o.obs.RecordGeneration(ctx, string(state))
	o.obs.RecordGenerationDuration(ctx, o.now().Sub(r.started), string(state))
}

func (o *Orchestrator) result(r *run, canonical *layout.CanonicalLayout, persisted bool, reason string) *GenerationResult {
	stages := make([]StageResult, 0, len(r.order))
	for _, stage := range r.order {
		stages = append(stages, *r.stages[stage])
	}
	return &GenerationResult{
		SessionID:     r.sessionID,
		State:         r.machine.State(),
		Layout:        canonical,
		Stages:        stages,
		Warnings:      r.warnings,
		Persisted:     persisted,
		FailureReason: reason,
	}
}
