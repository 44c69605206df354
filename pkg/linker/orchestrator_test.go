package linker

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	qerrors "github.com/quarryintel/quarry-cli/pkg/errors"
	"github.com/quarryintel/quarry-cli/pkg/logging"
)

func newTestOrchestrator(store Store) *Orchestrator {
	return NewOrchestrator(store, WithLogger(logging.NewNopLogger()))
}

func readyExtraction(id int64, tenantID string, sourceID int64, entities map[string][]string) *ExtractionResult {
	return &ExtractionResult{
		ID:       id,
		TenantID: tenantID,
		SourceID: sourceID,
		Status:   ExtractionStatusAIDone,
		Output:   ExtractionOutput{Entities: entities},
	}
}

func TestRunLinksAcrossBuckets(t *testing.T) {
	store := newFakeStore()
	store.addEntity("tenant-a", EntityTypeFund, 1, "Acme Fund II")
	store.addEntity("tenant-a", EntityTypeGeneralPartner, 2, "Sequoia Capital")
	store.addEntity("tenant-a", EntityTypePortfolioCompany, 3, "Initech Holdings")
	store.addExtraction(readyExtraction(100, "tenant-a", 500, map[string][]string{
		"funds":               {"Acme Fund II"},
		"general_partners":    {"Sequoia Capital"},
		"portfolio_companies": {"Initech"}, // fuzzy only
		"limited_partners":    {"Unknown LP"},
	}))

	o := newTestOrchestrator(store)
	summary, err := o.Run(context.Background(), 100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Outcome != OutcomeLinkingComplete {
		t.Errorf("Outcome = %q, want linking_complete", summary.Outcome)
	}
	if summary.Matched != 3 || summary.LinksWritten != 3 {
		t.Errorf("Matched/LinksWritten = %d/%d, want 3/3", summary.Matched, summary.LinksWritten)
	}
	if summary.ReviewQueued != 1 {
		t.Errorf("ReviewQueued = %d, want 1 (the fuzzy match)", summary.ReviewQueued)
	}
	if summary.Unmatched != 1 {
		t.Errorf("Unmatched = %d, want 1", summary.Unmatched)
	}

	if store.extractions[100].Status != ExtractionStatusLinked {
		t.Errorf("extraction status = %q, want linked", store.extractions[100].Status)
	}

	links, _ := store.ListLinksBySource(context.Background(), "tenant-a", SourceTypeNews, 500)
	if len(links) != 3 {
		t.Fatalf("got %d links, want 3", len(links))
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.addEntity("tenant-a", EntityTypeFund, 1, "Acme Fund II")
	store.addExtraction(readyExtraction(100, "tenant-a", 500, map[string][]string{
		"funds": {"Acme Fund II"},
	}))

	o := newTestOrchestrator(store)
	first, err := o.Run(context.Background(), 100)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.LinksWritten != 1 {
		t.Fatalf("first run LinksWritten = %d, want 1", first.LinksWritten)
	}

	// Reset status to simulate a retry racing the finished run.
	store.extractions[100].Status = ExtractionStatusAIDone

	second, err := o.Run(context.Background(), 100)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.LinksWritten != 0 {
		t.Errorf("second run LinksWritten = %d, want 0", second.LinksWritten)
	}
	if second.Matched != 1 {
		t.Errorf("second run Matched = %d, want 1 (match still found)", second.Matched)
	}

	links, _ := store.ListLinksBySource(context.Background(), "tenant-a", SourceTypeNews, 500)
	if len(links) != 1 {
		t.Fatalf("after two runs got %d links, want exactly 1", len(links))
	}
}

func TestRunNoEntitiesShortCircuit(t *testing.T) {
	store := newFakeStore()
	store.addExtraction(readyExtraction(100, "tenant-a", 500, nil))

	o := newTestOrchestrator(store)
	summary, err := o.Run(context.Background(), 100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Outcome != OutcomeNoEntities {
		t.Errorf("Outcome = %q, want no_entities", summary.Outcome)
	}
	// The status transition is deliberately withheld for the no-mapping case.
	if store.extractions[100].Status != ExtractionStatusAIDone {
		t.Errorf("status = %q, want ai_done preserved", store.extractions[100].Status)
	}
	if len(store.links) != 0 {
		t.Errorf("got %d links, want 0", len(store.links))
	}
	if store.exactCalls != 0 || store.fuzzyCalls != 0 {
		t.Errorf("registry queried %d/%d times, want none", store.exactCalls, store.fuzzyCalls)
	}
}

func TestRunFinalizesWithEmptyBuckets(t *testing.T) {
	// A present-but-empty mapping means "tried and found nothing": the
	// result still transitions to linked.
	store := newFakeStore()
	store.addExtraction(readyExtraction(100, "tenant-a", 500, map[string][]string{}))

	o := newTestOrchestrator(store)
	summary, err := o.Run(context.Background(), 100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Outcome != OutcomeLinkingComplete {
		t.Errorf("Outcome = %q, want linking_complete", summary.Outcome)
	}
	if store.extractions[100].Status != ExtractionStatusLinked {
		t.Errorf("status = %q, want linked even with zero links", store.extractions[100].Status)
	}
}

func TestRunFinalizesWhenNothingMatches(t *testing.T) {
	store := newFakeStore()
	store.addExtraction(readyExtraction(100, "tenant-a", 500, map[string][]string{
		"funds": {"Completely Unknown Fund"},
	}))

	o := newTestOrchestrator(store)
	summary, err := o.Run(context.Background(), 100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Outcome != OutcomeLinkingComplete || summary.Unmatched != 1 {
		t.Errorf("summary = %+v, want linking_complete with 1 unmatched", summary)
	}
	if store.extractions[100].Status != ExtractionStatusLinked {
		t.Errorf("status = %q, want linked", store.extractions[100].Status)
	}
}

func TestRunSkipsWhitespaceMentions(t *testing.T) {
	store := newFakeStore()
	store.addExtraction(readyExtraction(100, "tenant-a", 500, map[string][]string{
		"funds": {"   ", "\t"},
	}))

	o := newTestOrchestrator(store)
	summary, err := o.Run(context.Background(), 100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", summary.Skipped)
	}
	if store.exactCalls != 0 || store.fuzzyCalls != 0 {
		t.Errorf("registry queried for whitespace mentions (%d/%d calls)",
			store.exactCalls, store.fuzzyCalls)
	}
}

func TestRunIgnoresUnknownBuckets(t *testing.T) {
	store := newFakeStore()
	store.addExtraction(readyExtraction(100, "tenant-a", 500, map[string][]string{
		"banks": {"Goldman Sachs"}, // not a configured registry bucket
	}))

	o := newTestOrchestrator(store)
	summary, err := o.Run(context.Background(), 100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Matched != 0 || summary.Unmatched != 0 {
		t.Errorf("unknown bucket should be ignored entirely, got %+v", summary)
	}
	if summary.Outcome != OutcomeLinkingComplete {
		t.Errorf("Outcome = %q, want linking_complete", summary.Outcome)
	}
}

func TestRunNotFoundPrecondition(t *testing.T) {
	store := newFakeStore()
	pending := readyExtraction(100, "tenant-a", 500, map[string][]string{"funds": {"x"}})
	pending.Status = ExtractionStatusPending
	store.addExtraction(pending)

	o := newTestOrchestrator(store)

	tests := []struct {
		name string
		id   int64
	}{
		{"wrong status", 100},
		{"missing id", 999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Run(context.Background(), tt.id)
			if !qerrors.IsNotFound(err) {
				t.Errorf("Run error = %v, want ErrNotFound", err)
			}
		})
	}

	if store.extractions[100].Status != ExtractionStatusPending {
		t.Errorf("precondition failure must not mutate status, got %q", store.extractions[100].Status)
	}
}

func TestRunAlreadyLinkedIsNotFound(t *testing.T) {
	store := newFakeStore()
	done := readyExtraction(100, "tenant-a", 500, map[string][]string{"funds": {"x"}})
	done.Status = ExtractionStatusLinked
	store.addExtraction(done)

	o := newTestOrchestrator(store)
	if _, err := o.Run(context.Background(), 100); !qerrors.IsNotFound(err) {
		t.Errorf("Run on already-linked result = %v, want ErrNotFound", err)
	}
}

func TestRunAbortsBeforeFinalizeOnWriteFailure(t *testing.T) {
	store := newFakeStore()
	store.addEntity("tenant-a", EntityTypeFund, 1, "Acme Fund II")
	store.addExtraction(readyExtraction(100, "tenant-a", 500, map[string][]string{
		"funds": {"Acme Fund II"},
	}))
	store.failInsertLink = errors.New("connection reset")

	o := newTestOrchestrator(store)
	if _, err := o.Run(context.Background(), 100); err == nil {
		t.Fatal("expected write failure to abort the run")
	}

	// Safe to retry: status untouched.
	if store.extractions[100].Status != ExtractionStatusAIDone {
		t.Errorf("status = %q, want ai_done after aborted run", store.extractions[100].Status)
	}
}

func TestRunAbortsOnFinalizeFailure(t *testing.T) {
	store := newFakeStore()
	store.addEntity("tenant-a", EntityTypeFund, 1, "Acme Fund II")
	store.addExtraction(readyExtraction(100, "tenant-a", 500, map[string][]string{
		"funds": {"Acme Fund II"},
	}))
	store.failMarkLinked = errors.New("connection reset")

	o := newTestOrchestrator(store)
	if _, err := o.Run(context.Background(), 100); err == nil {
		t.Fatal("expected finalize failure to surface")
	}

	// The link written before the failure stays; a retry will no-op it.
	links, _ := store.ListLinksBySource(context.Background(), "tenant-a", SourceTypeNews, 500)
	if len(links) != 1 {
		t.Errorf("got %d links, want 1 surviving the aborted finalize", len(links))
	}
}

func TestRunCountsFailedAndSuccessfulRuns(t *testing.T) {
	store := newFakeStore()
	store.addEntity("tenant-a", EntityTypeFund, 1, "Acme Fund II")
	store.addExtraction(readyExtraction(100, "tenant-a", 500, map[string][]string{
		"funds": {"Acme Fund II"},
	}))
	store.failFindExact = errors.New("connection reset")

	metrics := NewMetrics(prometheus.NewRegistry())
	o := NewOrchestrator(store, WithLogger(logging.NewNopLogger()), WithMetrics(metrics))

	if _, err := o.Run(context.Background(), 100); err == nil {
		t.Fatal("expected lookup failure to abort the run")
	}
	if got := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(runOutcomeError)); got != 1 {
		t.Errorf("error runs counted = %v, want 1", got)
	}

	store.failFindExact = nil
	if _, err := o.Run(context.Background(), 100); err != nil {
		t.Fatalf("retry Run: %v", err)
	}
	if got := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(string(OutcomeLinkingComplete))); got != 1 {
		t.Errorf("completed runs counted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(runOutcomeError)); got != 1 {
		t.Errorf("error runs counted = %v, want 1 after successful retry", got)
	}
}

func TestRunHonorsCancelledContext(t *testing.T) {
	store := newFakeStore()
	store.addEntity("tenant-a", EntityTypeFund, 1, "Acme Fund II")
	store.addExtraction(readyExtraction(100, "tenant-a", 500, map[string][]string{
		"funds": {"Acme Fund II"},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newTestOrchestrator(store)
	if _, err := o.Run(ctx, 100); !errors.Is(err, context.Canceled) {
		t.Errorf("Run with cancelled ctx = %v, want context.Canceled", err)
	}
	if store.extractions[100].Status != ExtractionStatusAIDone {
		t.Errorf("cancelled run must not finalize, status = %q", store.extractions[100].Status)
	}
}

func TestRunTenantIsolation(t *testing.T) {
	store := newFakeStore()
	store.addEntity("tenant-b", EntityTypeFund, 1, "Acme Fund II")
	store.addExtraction(readyExtraction(100, "tenant-a", 500, map[string][]string{
		"funds": {"Acme Fund II"},
	}))

	o := newTestOrchestrator(store)
	summary, err := o.Run(context.Background(), 100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Matched != 0 || summary.Unmatched != 1 {
		t.Errorf("cross-tenant name must not match: %+v", summary)
	}
	if len(store.links) != 0 {
		t.Errorf("got %d links against another tenant's registry, want 0", len(store.links))
	}
}
