package linker

import (
	"context"
	"testing"

	"github.com/quarryintel/quarry-cli/pkg/logging"
)

func TestStatusForConfidence(t *testing.T) {
	tests := []struct {
		confidence int
		want       LinkStatus
	}{
		{100, LinkStatusLinked},
		{95, LinkStatusLinked},
		{80, LinkStatusLinked}, // threshold itself links
		{79, LinkStatusReview},
		{70, LinkStatusReview},
		{0, LinkStatusReview},
	}

	for _, tt := range tests {
		if got := StatusForConfidence(tt.confidence); got != tt.want {
			t.Errorf("StatusForConfidence(%d) = %q, want %q", tt.confidence, got, tt.want)
		}
	}
}

func TestWriterDerivesStatus(t *testing.T) {
	store := newFakeStore()
	w := NewLinkWriter(store, WithWriterLogger(logging.NewNopLogger()))

	exact := MatchOutcome{EntityID: 1, Confidence: ExactMatchConfidence, MatchType: MatchTypeExact}
	link, inserted, err := w.Write(context.Background(), "tenant-a", 100, EntityTypeFund, exact)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !inserted {
		t.Error("first write should insert a row")
	}
	if link.Status != LinkStatusLinked {
		t.Errorf("exact match status = %q, want LINKED", link.Status)
	}

	fuzzy := MatchOutcome{EntityID: 2, Confidence: FuzzyMatchConfidence, MatchType: MatchTypeFuzzy}
	link, _, err = w.Write(context.Background(), "tenant-a", 100, EntityTypeFund, fuzzy)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if link.Status != LinkStatusReview {
		t.Errorf("fuzzy match status = %q, want REVIEW", link.Status)
	}
}

func TestWriterPopulatesNaturalKey(t *testing.T) {
	store := newFakeStore()
	w := NewLinkWriter(store, WithWriterLogger(logging.NewNopLogger()))

	outcome := MatchOutcome{EntityID: 42, Confidence: ExactMatchConfidence, MatchType: MatchTypeExact}
	link, _, err := w.Write(context.Background(), "tenant-a", 7, EntityTypeGeneralPartner, outcome)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if link.TenantID != "tenant-a" || link.SourceType != SourceTypeNews ||
		link.SourceID != 7 || link.EntityType != EntityTypeGeneralPartner || link.EntityID != 42 {
		t.Errorf("unexpected link key fields: %+v", link)
	}
}

func TestWriterIdempotentOnNaturalKey(t *testing.T) {
	store := newFakeStore()
	w := NewLinkWriter(store, WithWriterLogger(logging.NewNopLogger()))

	first := MatchOutcome{EntityID: 1, Confidence: ExactMatchConfidence, MatchType: MatchTypeExact}
	if _, inserted, err := w.Write(context.Background(), "tenant-a", 100, EntityTypeFund, first); err != nil || !inserted {
		t.Fatalf("first write: inserted=%v err=%v", inserted, err)
	}

	// Second write for the same key with a different confidence must be a
	// no-op and must not rewrite the stored row.
	second := MatchOutcome{EntityID: 1, Confidence: FuzzyMatchConfidence, MatchType: MatchTypeFuzzy}
	_, inserted, err := w.Write(context.Background(), "tenant-a", 100, EntityTypeFund, second)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if inserted {
		t.Error("second write for the same natural key should not insert")
	}

	links, _ := store.ListLinksBySource(context.Background(), "tenant-a", SourceTypeNews, 100)
	if len(links) != 1 {
		t.Fatalf("got %d links, want 1", len(links))
	}
	if links[0].Confidence != ExactMatchConfidence || links[0].Status != LinkStatusLinked {
		t.Errorf("stored link was modified by no-op write: %+v", links[0])
	}
}

func TestWriterPropagatesStorageErrors(t *testing.T) {
	store := newFakeStore()
	store.failInsertLink = context.DeadlineExceeded
	w := NewLinkWriter(store, WithWriterLogger(logging.NewNopLogger()))

	outcome := MatchOutcome{EntityID: 1, Confidence: ExactMatchConfidence, MatchType: MatchTypeExact}
	if _, _, err := w.Write(context.Background(), "tenant-a", 1, EntityTypeFund, outcome); err == nil {
		t.Error("expected storage error to propagate")
	}
}
