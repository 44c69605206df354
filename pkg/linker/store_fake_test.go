package linker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	qerrors "github.com/quarryintel/quarry-cli/pkg/errors"
)

// fakeEntity is one canonical registry row in the fake store.
type fakeEntity struct {
	id   int64
	name string
}

// fakeStore is an in-memory Store for tests. It mirrors the Postgres
// semantics that matter to the pipeline: tenant-scoped lookups with
// lowest-id tie-break, natural-key idempotent inserts, and the ai_done
// precondition on loads.
type fakeStore struct {
	extractions map[int64]*ExtractionResult
	registry    map[string]map[EntityType][]fakeEntity
	links       []EntityLink
	linkKeys    map[string]bool
	nextLinkID  int64

	exactCalls int
	fuzzyCalls int

	failFindExact  error
	failInsertLink error
	failMarkLinked error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		extractions: make(map[int64]*ExtractionResult),
		registry:    make(map[string]map[EntityType][]fakeEntity),
		linkKeys:    make(map[string]bool),
	}
}

func (f *fakeStore) addEntity(tenantID string, entityType EntityType, id int64, name string) {
	if f.registry[tenantID] == nil {
		f.registry[tenantID] = make(map[EntityType][]fakeEntity)
	}
	f.registry[tenantID][entityType] = append(f.registry[tenantID][entityType], fakeEntity{id: id, name: name})
	sort.Slice(f.registry[tenantID][entityType], func(i, j int) bool {
		return f.registry[tenantID][entityType][i].id < f.registry[tenantID][entityType][j].id
	})
}

func (f *fakeStore) addExtraction(res *ExtractionResult) {
	f.extractions[res.ID] = res
}

func (f *fakeStore) GetExtractionForLinking(ctx context.Context, id int64) (*ExtractionResult, error) {
	res, ok := f.extractions[id]
	if !ok || res.Status != ExtractionStatusAIDone {
		return nil, fmt.Errorf("extraction result %d not ready for linking: %w", id, qerrors.ErrNotFound)
	}
	cp := *res
	return &cp, nil
}

func (f *fakeStore) MarkLinked(ctx context.Context, id int64) error {
	if f.failMarkLinked != nil {
		return f.failMarkLinked
	}
	res, ok := f.extractions[id]
	if !ok {
		return fmt.Errorf("extraction result %d: %w", id, qerrors.ErrNotFound)
	}
	res.Status = ExtractionStatusLinked
	return nil
}

func (f *fakeStore) FindExact(ctx context.Context, tenantID string, entityType EntityType, name string) (int64, bool, error) {
	f.exactCalls++
	if f.failFindExact != nil {
		return 0, false, f.failFindExact
	}
	for _, e := range f.registry[tenantID][entityType] {
		if strings.EqualFold(e.name, name) {
			return e.id, true, nil
		}
	}
	return 0, false, nil
}

func (f *fakeStore) FindFuzzy(ctx context.Context, tenantID string, entityType EntityType, name string) (int64, bool, error) {
	f.fuzzyCalls++
	for _, e := range f.registry[tenantID][entityType] {
		if strings.Contains(strings.ToLower(e.name), strings.ToLower(name)) {
			return e.id, true, nil
		}
	}
	return 0, false, nil
}

func (f *fakeStore) InsertLink(ctx context.Context, link *EntityLink) (bool, error) {
	if f.failInsertLink != nil {
		return false, f.failInsertLink
	}
	key := fmt.Sprintf("%s|%s|%d|%s|%d",
		link.TenantID, link.SourceType, link.SourceID, link.EntityType, link.EntityID)
	if f.linkKeys[key] {
		return false, nil
	}
	f.linkKeys[key] = true
	f.nextLinkID++
	stored := *link
	stored.ID = f.nextLinkID
	f.links = append(f.links, stored)
	return true, nil
}

func (f *fakeStore) ListLinksBySource(ctx context.Context, tenantID, sourceType string, sourceID int64) ([]EntityLink, error) {
	var out []EntityLink
	for _, l := range f.links {
		if l.TenantID == tenantID && l.SourceType == sourceType && l.SourceID == sourceID {
			out = append(out, l)
		}
	}
	return out, nil
}

var _ Store = (*fakeStore)(nil)
