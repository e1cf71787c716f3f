package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crisislens_server/core/domain"
	"crisislens_server/core/port/out"
	"crisislens_server/pkg/apperr"
	"crisislens_server/pkg/metrics"
)

// =============================================================================
// Pipeline State Machine
// =============================================================================

type pipelineState string

const (
	stateReceived        pipelineState = "RECEIVED"
	statePreprocessed    pipelineState = "PREPROCESSED"
	stateRelevanceScored pipelineState = "RELEVANCE_SCORED"
	stateTypeScored      pipelineState = "TYPE_SCORED"
	stateUrgencyScored   pipelineState = "URGENCY_SCORED"
	stateLocated         pipelineState = "LOCATED"
	stateDedupChecked    pipelineState = "DEDUP_CHECKED"
	stateDone            pipelineState = "DONE"
)

// stateTransitions declares the legal moves of a message through the
// pipeline. A not-relevant message (or a failed relevance gate) jumps from
// RELEVANCE_SCORED straight to DONE; there is no retry edge.
var stateTransitions = map[pipelineState][]pipelineState{
	stateReceived:        {statePreprocessed},
	statePreprocessed:    {stateRelevanceScored},
	stateRelevanceScored: {stateTypeScored, stateDone},
	stateTypeScored:      {stateUrgencyScored},
	stateUrgencyScored:   {stateLocated},
	stateLocated:         {stateDedupChecked},
	stateDedupChecked:    {stateDone},
}

type stateTracker struct {
	current pipelineState
}

func newStateTracker() *stateTracker {
	return &stateTracker{current: stateReceived}
}

// advance moves to the next state, failing on an undeclared transition.
// A failure here is an orchestration bug, not a data problem; it aborts the
// current message only.
func (t *stateTracker) advance(to pipelineState) error {
	for _, next := range stateTransitions[t.current] {
		if next == to {
			t.current = to
			return nil
		}
	}
	return apperr.InvariantViolation(fmt.Sprintf("illegal pipeline transition %s -> %s", t.current, to))
}

// =============================================================================
// Orchestrator
// =============================================================================

// Config holds the externally supplied pipeline constants.
type Config struct {
	MaxBatchSize int
	BatchWorkers int
	StageTimeout time.Duration
}

// DefaultConfig returns the standard pipeline configuration.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize: 100,
		BatchWorkers: 8,
		StageTimeout: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = d.MaxBatchSize
	}
	if c.BatchWorkers <= 0 {
		c.BatchWorkers = d.BatchWorkers
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = d.StageTimeout
	}
	return c
}

// Deps are the orchestrator's collaborators. Archiver, Metrics and
// ResetHooks are optional.
type Deps struct {
	Preprocessor *Preprocessor
	Relevance    Stage
	EventType    Stage
	Urgency      Stage
	Location     Stage
	Dedup        *DeduplicationIndex
	Geocache     *GeocodeCache
	Archiver     out.RecordArchiver
	Metrics      *metrics.Pipeline
	Logger       zerolog.Logger
	ResetHooks   []func()
}

// Orchestrator sequences the classification stages for each message and
// owns all cross-message state: the geocode cache, the deduplication index
// and the running counters. One instance per pipeline; independent
// instances (e.g. in tests) never share state.
type Orchestrator struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	counters counters
}

// NewOrchestrator creates a pipeline orchestrator.
func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	if deps.Preprocessor == nil {
		deps.Preprocessor = NewPreprocessor()
	}
	return &Orchestrator{
		cfg:  cfg.withDefaults(),
		deps: deps,
		log:  deps.Logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Analyze runs one message through the full pipeline. Stage failures
// degrade the affected field to unset; only input validation is returned
// as an error.
func (o *Orchestrator) Analyze(ctx context.Context, msg domain.Message) (*domain.AnalysisRecord, error) {
	if msg.Text == "" {
		return nil, apperr.MissingField("text")
	}

	start := time.Now()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	rec := &domain.AnalysisRecord{
		MessageID:    msg.ID,
		OriginalText: msg.Text,
	}
	sc := &StageContext{Message: msg, Record: rec}
	tracker := newStateTracker()

	if err := o.runPipeline(ctx, sc, tracker); err != nil {
		return nil, err
	}

	rec.ProcessedAt = time.Now().UTC()
	rec.ElapsedMs = time.Since(start).Milliseconds()

	o.tally(rec)
	o.archive(rec)
	return rec, nil
}

func (o *Orchestrator) runPipeline(ctx context.Context, sc *StageContext, tracker *stateTracker) error {
	rec := sc.Record

	pre := o.deps.Preprocessor.Run(sc.Message.Text, sc.Message.Language)
	sc.CleanText = pre.CleanText
	sc.Language = pre.Language
	rec.CleanText = pre.CleanText
	rec.Language = pre.Language
	rec.Hashtags = pre.Hashtags
	rec.Mentions = pre.Mentions
	if err := tracker.advance(statePreprocessed); err != nil {
		return err
	}

	relevanceOK := o.runStage(ctx, o.deps.Relevance, sc)
	if err := tracker.advance(stateRelevanceScored); err != nil {
		return err
	}

	// A failed gate halts the conditional stages: they are only meaningful
	// for a message known to be relevant.
	if !relevanceOK || rec.Relevance == nil || !rec.Relevance.Relevant {
		return tracker.advance(stateDone)
	}

	o.runStage(ctx, o.deps.EventType, sc)
	if err := tracker.advance(stateTypeScored); err != nil {
		return err
	}
	o.runStage(ctx, o.deps.Urgency, sc)
	if err := tracker.advance(stateUrgencyScored); err != nil {
		return err
	}
	o.runStage(ctx, o.deps.Location, sc)
	if err := tracker.advance(stateLocated); err != nil {
		return err
	}

	o.runDedup(ctx, sc)
	if err := tracker.advance(stateDedupChecked); err != nil {
		return err
	}
	return tracker.advance(stateDone)
}

// runStage executes one stage under the per-stage timeout. Reports false
// when the stage failed; the failure is recorded, never propagated.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, sc *StageContext) bool {
	stageCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()

	serr := stage.Run(stageCtx, sc)
	if serr == nil {
		return true
	}

	sc.Record.Errors = append(sc.Record.Errors, domain.StageNote{
		Stage: serr.Stage,
		Kind:  string(serr.Kind),
		Error: serr.Err.Error(),
	})
	if o.deps.Metrics != nil {
		o.deps.Metrics.StageErrors.WithLabelValues(serr.Stage, string(serr.Kind)).Inc()
	}
	o.log.Warn().
		Str("stage", serr.Stage).
		Str("kind", string(serr.Kind)).
		Str("message_id", sc.Message.ID).
		Err(serr.Err).
		Msg("stage failed, field left unset")
	return false
}

func (o *Orchestrator) runDedup(ctx context.Context, sc *StageContext) {
	dedupCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()

	duplicate, matchedID, err := o.deps.Dedup.CheckAndAdd(dedupCtx, sc.Message.ID, sc.CleanText)
	if err != nil {
		serr := newStageError("dedup", err)
		sc.Record.Errors = append(sc.Record.Errors, domain.StageNote{
			Stage: serr.Stage,
			Kind:  string(serr.Kind),
			Error: serr.Err.Error(),
		})
		if o.deps.Metrics != nil {
			o.deps.Metrics.StageErrors.WithLabelValues(serr.Stage, string(serr.Kind)).Inc()
		}
		o.log.Warn().Str("message_id", sc.Message.ID).Err(err).Msg("dedup check failed, flag left unset")
		return
	}
	sc.Record.Dedup = &domain.DedupResult{Duplicate: duplicate, MatchedID: matchedID}
}

// =============================================================================
// Batch Analysis
// =============================================================================

type batchItem struct {
	idx int
	msg domain.Message
}

// batchWorker implements pool.Worker. Each item writes to its own result
// slot, so workers never contend on the results slice.
type batchWorker struct {
	orch    *Orchestrator
	results []*domain.AnalysisRecord
}

func (w *batchWorker) Do(ctx context.Context, item batchItem) error {
	rec, err := w.orch.Analyze(ctx, item.msg)
	if err != nil {
		// Per-message validation failures degrade to an empty record so one
		// bad message never fails the batch.
		rec = &domain.AnalysisRecord{
			MessageID:    item.msg.ID,
			OriginalText: item.msg.Text,
			Errors: []domain.StageNote{{
				Stage: "validation",
				Kind:  string(KindInvalidInput),
				Error: err.Error(),
			}},
			ProcessedAt: time.Now().UTC(),
		}
	}
	w.results[item.idx] = rec
	return nil
}

// AnalyzeBatch analyzes up to MaxBatchSize messages concurrently on a
// bounded worker pool. Results are index-aligned with the input regardless
// of completion order. Oversized batches are rejected before any
// classification work starts.
func (o *Orchestrator) AnalyzeBatch(ctx context.Context, msgs []domain.Message) ([]*domain.AnalysisRecord, error) {
	if len(msgs) > o.cfg.MaxBatchSize {
		return nil, apperr.ValidationFailed(
			fmt.Sprintf("batch of %d messages exceeds maximum of %d", len(msgs), o.cfg.MaxBatchSize))
	}
	if len(msgs) == 0 {
		return []*domain.AnalysisRecord{}, nil
	}

	results := make([]*domain.AnalysisRecord, len(msgs))
	worker := &batchWorker{orch: o, results: results}

	p := pool.New[batchItem](o.cfg.BatchWorkers, worker).WithContinueOnError()
	if err := p.Go(ctx); err != nil {
		return nil, apperr.InternalWithError(err)
	}
	for i, msg := range msgs {
		p.Submit(batchItem{idx: i, msg: msg})
	}
	if err := p.Close(ctx); err != nil {
		return nil, apperr.InternalWithError(err)
	}
	return results, nil
}

// =============================================================================
// Counters / Lifecycle
// =============================================================================

// Snapshot is the O(1) running tally of the pipeline.
type Snapshot struct {
	Total      int64 `json:"total"`
	Relevant   int64 `json:"relevant"`
	Critical   int64 `json:"critical"`
	Duplicates int64 `json:"duplicates"`
}

func (o *Orchestrator) tally(rec *domain.AnalysisRecord) {
	o.counters.total.Add(1)
	if o.deps.Metrics != nil {
		o.deps.Metrics.Processed.Inc()
		o.deps.Metrics.ObserveAnalyze(time.Duration(rec.ElapsedMs) * time.Millisecond)
	}
	if rec.Relevance != nil && rec.Relevance.Relevant {
		o.counters.relevant.Add(1)
		if o.deps.Metrics != nil {
			o.deps.Metrics.Relevant.Inc()
		}
	}
	if rec.IsCritical() {
		o.counters.critical.Add(1)
		if o.deps.Metrics != nil {
			o.deps.Metrics.Critical.Inc()
		}
	}
	if rec.Dedup != nil && rec.Dedup.Duplicate {
		o.counters.duplicates.Add(1)
		if o.deps.Metrics != nil {
			o.deps.Metrics.Duplicates.Inc()
		}
	}
}

// archive hands the finished record to the archiver without blocking the
// caller. Archive failures are logged, never surfaced.
func (o *Orchestrator) archive(rec *domain.AnalysisRecord) {
	if o.deps.Archiver == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.deps.Archiver.Archive(ctx, rec); err != nil {
			o.log.Warn().Str("message_id", rec.MessageID).Err(err).Msg("record archive failed")
		}
	}()
}

// Stats returns the running tally without scanning any index.
func (o *Orchestrator) Stats() Snapshot {
	return o.counters.snapshot()
}

// Reset clears the deduplication index, the geocode cache and all counters.
// Callers must drain in-flight analyze calls first; concurrent resets are
// not internally serialized against running pipelines.
func (o *Orchestrator) Reset() {
	o.deps.Dedup.Reset()
	o.deps.Geocache.Purge()
	o.counters.reset()
	for _, hook := range o.deps.ResetHooks {
		hook()
	}
	o.log.Info().Msg("pipeline state reset")
}
