// Package linker resolves AI-extracted entity mentions against a tenant's
// canonical registries and records durable links between source documents
// and registry records.
//
// The pipeline is: an upstream extraction step writes an ExtractionResult
// with status "ai_done" and a bucketed mention payload; the Orchestrator
// loads it, runs every mention through the Matcher (exact match, then
// fuzzy), hands hits to the LinkWriter, and finalizes the result as
// "linked". All writes are idempotent so a retried run never duplicates
// links.
package linker

import (
	"time"
)

// ExtractionStatus is the lifecycle status of an extraction result.
type ExtractionStatus string

const (
	ExtractionStatusPending ExtractionStatus = "pending"
	ExtractionStatusAIDone  ExtractionStatus = "ai_done"
	ExtractionStatusLinked  ExtractionStatus = "linked"
	ExtractionStatusFailed  ExtractionStatus = "failed"
)

// SourceTypeNews is the source document kind produced by news ingestion.
// It is part of every link's natural key.
const SourceTypeNews = "news"

// Fixed match policy constants. Confidence is a 0-100 score; matches at or
// above ReviewThreshold are linked directly, everything below is queued for
// human review. The values are policy, not similarity metrics.
const (
	ExactMatchConfidence = 95
	FuzzyMatchConfidence = 70
	ReviewThreshold      = 80
)

// MatchType records how a mention was matched to a registry record.
type MatchType string

const (
	MatchTypeExact MatchType = "exact"
	MatchTypeFuzzy MatchType = "fuzzy"
)

// LinkStatus is the review status of an entity link.
type LinkStatus string

const (
	LinkStatusLinked LinkStatus = "LINKED"
	LinkStatusReview LinkStatus = "REVIEW"
)

// StatusForConfidence derives the link status from a confidence score.
func StatusForConfidence(confidence int) LinkStatus {
	if confidence >= ReviewThreshold {
		return LinkStatusLinked
	}
	return LinkStatusReview
}

// ExtractionOutput is the structured payload produced by the AI extraction
// step. Entities maps bucket keys (see EntityType.BucketKey) to ordered
// mention strings. A nil map is the valid "no entities found" case and is
// distinct from an empty map.
type ExtractionOutput struct {
	Summary  string              `json:"summary,omitempty"`
	Entities map[string][]string `json:"entities,omitempty"`
}

// HasEntities reports whether the payload carries an entity-mention mapping.
func (o ExtractionOutput) HasEntities() bool {
	return o.Entities != nil
}

// ExtractionResult is one AI-produced analysis of one source document.
type ExtractionResult struct {
	ID       int64            `json:"id"`
	TenantID string           `json:"tenant_id"`
	SourceID int64            `json:"source_id"`
	Status   ExtractionStatus `json:"status"`
	Output   ExtractionOutput `json:"output"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityLink is a durable edge from a source document to a canonical entity.
// The tuple (tenant, source type, source id, entity type, entity id) is the
// natural key; inserting the same tuple twice is a no-op.
type EntityLink struct {
	ID         int64      `json:"id,omitempty"`
	TenantID   string     `json:"tenant_id"`
	SourceType string     `json:"source_type"`
	SourceID   int64      `json:"source_id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   int64      `json:"entity_id"`
	Confidence int        `json:"confidence"`
	MatchType  MatchType  `json:"match_type"`
	Status     LinkStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
}

// MatchOutcome is the result of resolving one mention.
type MatchOutcome struct {
	EntityID   int64     `json:"entity_id"`
	Confidence int       `json:"confidence"`
	MatchType  MatchType `json:"match_type"`
}

// Outcome is the terminal outcome of a resolution run.
type Outcome string

const (
	// OutcomeLinkingComplete means all buckets were processed and the
	// extraction result was finalized as linked.
	OutcomeLinkingComplete Outcome = "linking_complete"

	// OutcomeNoEntities means the extraction payload carried no
	// entity-mention mapping; nothing was written and the extraction
	// result was left in ai_done.
	OutcomeNoEntities Outcome = "no_entities"
)

// Summary reports what one resolution run did.
type Summary struct {
	ExtractionID int64   `json:"extraction_id"`
	TenantID     string  `json:"tenant_id"`
	SourceID     int64   `json:"source_id"`
	Outcome      Outcome `json:"outcome"`

	// Matched counts mentions with an exact or fuzzy hit; LinksWritten is
	// how many of those inserted a new row (the rest were idempotent
	// no-ops from earlier runs).
	Matched      int `json:"matched"`
	LinksWritten int `json:"links_written"`
	ReviewQueued int `json:"review_queued"`
	Unmatched    int `json:"unmatched"`
	Skipped      int `json:"skipped"`
}
