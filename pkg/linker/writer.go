package linker

import (
	"context"
	"fmt"

	"github.com/quarryintel/quarry-cli/pkg/logging"
)

// LinkWriter persists match outcomes as entity links. It derives the review
// status from the confidence score and relies on the store's natural-key
// insert for idempotency: an existing link is never updated, even when a
// later run computed a different confidence.
type LinkWriter struct {
	store  Store
	logger logging.Logger
}

// WriterOption configures the link writer.
type WriterOption func(*LinkWriter)

// WithWriterLogger sets the logger.
func WithWriterLogger(logger logging.Logger) WriterOption {
	return func(w *LinkWriter) {
		w.logger = logger
	}
}

// NewLinkWriter creates a writer over the given store.
func NewLinkWriter(store Store, opts ...WriterOption) *LinkWriter {
	w := &LinkWriter{
		store:  store,
		logger: logging.MustGlobal(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logging.F("component", "link_writer"))
	return w
}

// Write records one link for a resolved mention. The returned bool reports
// whether a new row was written; false means the natural key already
// existed and the write was a no-op.
func (w *LinkWriter) Write(ctx context.Context, tenantID string, sourceID int64, entityType EntityType, outcome MatchOutcome) (*EntityLink, bool, error) {
	link := &EntityLink{
		TenantID:   tenantID,
		SourceType: SourceTypeNews,
		SourceID:   sourceID,
		EntityType: entityType,
		EntityID:   outcome.EntityID,
		Confidence: outcome.Confidence,
		MatchType:  outcome.MatchType,
		Status:     StatusForConfidence(outcome.Confidence),
	}

	inserted, err := w.store.InsertLink(ctx, link)
	if err != nil {
		return nil, false, fmt.Errorf("write link for entity %d: %w", outcome.EntityID, err)
	}

	if inserted {
		w.logger.Debug("Link written",
			logging.F("tenant_id", tenantID),
			logging.F("source_id", sourceID),
			logging.F("entity_type", string(entityType)),
			logging.F("entity_id", outcome.EntityID),
			logging.F("confidence", outcome.Confidence),
			logging.F("status", string(link.Status)))
	}

	return link, inserted, nil
}
