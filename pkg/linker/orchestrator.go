package linker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quarryintel/quarry-cli/pkg/logging"
)

// Orchestrator drives one resolution run: load the extraction result, fan
// out over every registry bucket and mention, and finalize the result as
// linked. Runs are sequential; safety under a racing retry comes from the
// store's idempotent inserts and the harmless repeated status transition,
// not from locking.
type Orchestrator struct {
	store   Store
	matcher *Matcher
	writer  *LinkWriter
	logger  logging.Logger
	metrics *Metrics
	tracer  *Tracer
}

// OrchestratorOption configures the orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMetrics sets the resolution metrics.
func WithMetrics(metrics *Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

// NewOrchestrator creates an orchestrator over the given store.
func NewOrchestrator(store Store, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		logger: logging.MustGlobal(),
		tracer: NewTracer(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.matcher = NewMatcher(store, WithMatcherLogger(o.logger))
	o.writer = NewLinkWriter(store, WithWriterLogger(o.logger))
	o.logger = o.logger.With(logging.F("component", "orchestrator"))
	return o
}

// Run resolves all mentions of one extraction result and finalizes it.
//
// The extraction result must be in ai_done status; anything else is a
// precondition failure surfaced as qerrors.ErrNotFound. A payload without
// an entity-mention mapping short-circuits to OutcomeNoEntities and leaves
// the status untouched. Any storage failure aborts before the status
// transition, so the caller can retry; links written before the failure
// stay in place and will not duplicate.
func (o *Orchestrator) Run(ctx context.Context, extractionID int64) (*Summary, error) {
	start := time.Now()
	ctx, span := o.tracer.StartRunSpan(ctx, extractionID)

	summary, err := o.run(ctx, extractionID)
	EndRunSpan(span, summary, err)
	if err != nil {
		o.metrics.observeRunError(time.Since(start))
		return nil, err
	}

	o.metrics.observeRun(summary.Outcome, time.Since(start))
	return summary, nil
}

func (o *Orchestrator) run(ctx context.Context, extractionID int64) (*Summary, error) {
	res, err := o.store.GetExtractionForLinking(ctx, extractionID)
	if err != nil {
		return nil, err
	}

	log := o.logger.With(
		logging.F("tenant_id", res.TenantID),
		logging.F("extraction_id", res.ID),
		logging.F("source_id", res.SourceID),
	)

	summary := &Summary{
		ExtractionID: res.ID,
		TenantID:     res.TenantID,
		SourceID:     res.SourceID,
	}

	if !res.Output.HasEntities() {
		// Deliberately leaves the result in ai_done: "nothing to link"
		// stays distinguishable from "tried and found nothing".
		summary.Outcome = OutcomeNoEntities
		log.Info("No entity mentions in extraction output, skipping linking")
		return summary, nil
	}

	for _, entityType := range AllEntityTypes() {
		mentions := res.Output.Entities[entityType.BucketKey()]
		for _, raw := range mentions {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("resolution of extraction result %d interrupted: %w", res.ID, err)
			}

			mention := strings.TrimSpace(raw)
			if mention == "" {
				summary.Skipped++
				o.metrics.observeMention(entityType, "skipped")
				continue
			}

			outcome, err := o.matcher.Resolve(ctx, res.TenantID, entityType, mention)
			if err != nil {
				return nil, fmt.Errorf("resolve %s mention: %w", entityType, err)
			}
			if outcome == nil {
				summary.Unmatched++
				o.metrics.observeMention(entityType, "unmatched")
				continue
			}

			link, inserted, err := o.writer.Write(ctx, res.TenantID, res.SourceID, entityType, *outcome)
			if err != nil {
				return nil, fmt.Errorf("link %s mention: %w", entityType, err)
			}

			summary.Matched++
			o.metrics.observeMention(entityType, string(outcome.MatchType))
			o.metrics.observeConfidence(outcome.MatchType, outcome.Confidence)
			if link.Status == LinkStatusReview {
				summary.ReviewQueued++
			}
			if inserted {
				summary.LinksWritten++
				o.metrics.observeLink(entityType, link.Status)
			}
		}
	}

	if err := o.store.MarkLinked(ctx, res.ID); err != nil {
		return nil, err
	}

	summary.Outcome = OutcomeLinkingComplete
	log.Info("Linking complete",
		logging.F("matched", summary.Matched),
		logging.F("links_written", summary.LinksWritten),
		logging.F("review_queued", summary.ReviewQueued),
		logging.F("unmatched", summary.Unmatched),
		logging.F("skipped", summary.Skipped))

	return summary, nil
}
