package linker

import (
	"context"
	"fmt"
	"strings"

	"github.com/quarryintel/quarry-cli/pkg/logging"
)

// Matcher resolves one mention string against one registry. Exact matches
// take precedence; fuzzy lookup runs only on an exact miss.
type Matcher struct {
	store  Store
	logger logging.Logger
}

// MatcherOption configures the matcher.
type MatcherOption func(*Matcher)

// WithMatcherLogger sets the logger.
func WithMatcherLogger(logger logging.Logger) MatcherOption {
	return func(m *Matcher) {
		m.logger = logger
	}
}

// NewMatcher creates a matcher over the given store.
func NewMatcher(store Store, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		store:  store,
		logger: logging.MustGlobal(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logging.F("component", "matcher"))
	return m
}

// Resolve attempts to match rawMention within the tenant's registry of the
// given type. A nil outcome with nil error means the mention was empty or
// had no hit; unmatched mentions produce no artifact by policy.
func (m *Matcher) Resolve(ctx context.Context, tenantID string, entityType EntityType, rawMention string) (*MatchOutcome, error) {
	mention := strings.TrimSpace(rawMention)
	if mention == "" {
		return nil, nil
	}

	entityID, found, err := m.store.FindExact(ctx, tenantID, entityType, mention)
	if err != nil {
		return nil, fmt.Errorf("exact lookup for %q: %w", mention, err)
	}
	if found {
		return &MatchOutcome{
			EntityID:   entityID,
			Confidence: ExactMatchConfidence,
			MatchType:  MatchTypeExact,
		}, nil
	}

	entityID, found, err = m.store.FindFuzzy(ctx, tenantID, entityType, mention)
	if err != nil {
		return nil, fmt.Errorf("fuzzy lookup for %q: %w", mention, err)
	}
	if found {
		return &MatchOutcome{
			EntityID:   entityID,
			Confidence: FuzzyMatchConfidence,
			MatchType:  MatchTypeFuzzy,
		}, nil
	}

	m.logger.Debug("Mention unmatched",
		logging.F("entity_type", string(entityType)),
		logging.F("mention", mention))

	return nil, nil
}
