package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arklim/record-registry/internal/core/domain"
	"github.com/arklim/record-registry/internal/core/port"
	"github.com/arklim/record-registry/internal/repository"
)

// memStore backs the in-memory repository set used by the service tests.
type memStore struct {
	mu      sync.Mutex
	parents map[uuid.UUID]domain.Parent
	records map[uuid.UUID]domain.Record
	drafts  map[uuid.UUID]domain.Draft
	states  map[uuid.UUID]domain.VersionState
}

func newMemStore() *memStore {
	return &memStore{
		parents: make(map[uuid.UUID]domain.Parent),
		records: make(map[uuid.UUID]domain.Record),
		drafts:  make(map[uuid.UUID]domain.Draft),
		states:  make(map[uuid.UUID]domain.VersionState),
	}
}

func (s *memStore) set() port.RepositorySet {
	return port.RepositorySet{
		Parents:       &memParents{s: s},
		Records:       &memRecords{s: s},
		Drafts:        &memDrafts{s: s},
		VersionStates: &memStates{s: s},
	}
}

type memParents struct{ s *memStore }

func (r *memParents) Create(_ context.Context, parent domain.Parent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.parents[parent.ID]; ok {
		return repository.ErrAlreadyExists
	}
	r.s.parents[parent.ID] = parent
	return nil
}

func (r *memParents) Get(_ context.Context, id uuid.UUID) (*domain.Parent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	parent, ok := r.s.parents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &parent, nil
}

func (r *memParents) Update(_ context.Context, parent domain.Parent, expectedRevision int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.parents[parent.ID]
	if !ok || current.Revision != expectedRevision {
		return repository.ErrRevisionMismatch
	}
	parent.Revision = expectedRevision + 1
	r.s.parents[parent.ID] = parent
	return nil
}

func (r *memParents) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.records {
		if rec.ParentID == id {
			return nil
		}
	}
	for _, d := range r.s.drafts {
		if d.ParentID == id {
			return nil
		}
	}
	delete(r.s.states, id)
	delete(r.s.parents, id)
	return nil
}

func (r *memParents) Count(context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.parents), nil
}

type memRecords struct{ s *memStore }

func (r *memRecords) Create(_ context.Context, record domain.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.records[record.ID]; ok {
		return repository.ErrAlreadyExists
	}
	record.Parent = nil
	r.s.records[record.ID] = record
	return nil
}

func (r *memRecords) Get(_ context.Context, id uuid.UUID) (*domain.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	record, ok := r.s.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &record, nil
}

func (r *memRecords) GetByPID(_ context.Context, pid string) (*domain.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, record := range r.s.records {
		if record.PID == pid {
			return &record, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRecords) Update(_ context.Context, record domain.Record, expectedRevision int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.records[record.ID]
	if !ok || current.Revision != expectedRevision {
		return repository.ErrRevisionMismatch
	}
	record.Revision = expectedRevision + 1
	record.Parent = nil
	r.s.records[record.ID] = record
	return nil
}

func (r *memRecords) ListByParent(_ context.Context, parentID uuid.UUID) ([]domain.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Record
	for _, record := range r.s.records {
		if record.ParentID == parentID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *memRecords) MaxIndexForParent(_ context.Context, parentID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	max := 0
	for _, record := range r.s.records {
		if record.ParentID == parentID && record.Index > max {
			max = record.Index
		}
	}
	return max, nil
}

func (r *memRecords) List(_ context.Context, limit, offset int) ([]domain.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Record
	for _, record := range r.s.records {
		out = append(out, record)
	}
	return out, nil
}

type memDrafts struct{ s *memStore }

func (r *memDrafts) Create(_ context.Context, draft domain.Draft) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.drafts[draft.ID]; ok {
		return repository.ErrAlreadyExists
	}
	draft.Parent = nil
	r.s.drafts[draft.ID] = draft
	return nil
}

func (r *memDrafts) Get(_ context.Context, id uuid.UUID) (*domain.Draft, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	draft, ok := r.s.drafts[id]
	if !ok || draft.IsDeleted {
		return nil, repository.ErrNotFound
	}
	return &draft, nil
}

func (r *memDrafts) GetIncludingDeleted(_ context.Context, id uuid.UUID) (*domain.Draft, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	draft, ok := r.s.drafts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &draft, nil
}

func (r *memDrafts) GetByPID(_ context.Context, pid string) (*domain.Draft, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, draft := range r.s.drafts {
		if draft.PID == pid && !draft.IsDeleted {
			return &draft, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memDrafts) Update(_ context.Context, draft domain.Draft, expectedRevision int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.drafts[draft.ID]
	if !ok || current.Revision != expectedRevision {
		return repository.ErrRevisionMismatch
	}
	draft.Revision = expectedRevision + 1
	draft.Parent = nil
	r.s.drafts[draft.ID] = draft
	return nil
}

func (r *memDrafts) SoftDelete(_ context.Context, id uuid.UUID, expectedRevision int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	draft, ok := r.s.drafts[id]
	if !ok || draft.Revision != expectedRevision {
		return repository.ErrRevisionMismatch
	}
	draft.IsDeleted = true
	draft.Revision = expectedRevision + 1
	draft.UpdatedAt = time.Now().UTC()
	r.s.drafts[id] = draft
	return nil
}

func (r *memDrafts) HardDelete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.drafts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.drafts, id)
	return nil
}

func (r *memDrafts) ListByParent(_ context.Context, parentID uuid.UUID, includeDeleted bool) ([]domain.Draft, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Draft
	for _, draft := range r.s.drafts {
		if draft.ParentID != parentID {
			continue
		}
		if draft.IsDeleted && !includeDeleted {
			continue
		}
		out = append(out, draft)
	}
	return out, nil
}

func (r *memDrafts) MaxIndexForParent(_ context.Context, parentID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	max := 0
	for _, draft := range r.s.drafts {
		if draft.ParentID == parentID && draft.Index != nil && *draft.Index > max {
			max = *draft.Index
		}
	}
	return max, nil
}

func (r *memDrafts) ListCleanupCandidates(_ context.Context, deletedBefore, expiredBefore time.Time) ([]domain.Draft, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Draft
	for _, draft := range r.s.drafts {
		switch {
		case draft.IsDeleted && draft.UpdatedAt.Before(deletedBefore):
			out = append(out, draft)
		case !draft.IsDeleted && draft.ForkVersionID == nil && draft.ExpiresAt != nil && draft.ExpiresAt.Before(expiredBefore):
			out = append(out, draft)
		}
	}
	return out, nil
}

func (r *memDrafts) List(_ context.Context, limit, offset int) ([]domain.Draft, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Draft
	for _, draft := range r.s.drafts {
		if !draft.IsDeleted {
			out = append(out, draft)
		}
	}
	return out, nil
}

type memStates struct{ s *memStore }

func (r *memStates) GetOrCreate(_ context.Context, parentID uuid.UUID) (*domain.VersionState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	state, ok := r.s.states[parentID]
	if !ok {
		state = domain.VersionState{ParentID: parentID}
		r.s.states[parentID] = state
	}
	return &state, nil
}

func (r *memStates) Get(_ context.Context, parentID uuid.UUID) (*domain.VersionState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	state, ok := r.s.states[parentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &state, nil
}

func (r *memStates) Save(_ context.Context, state domain.VersionState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.states[state.ParentID] = state
	return nil
}

func (r *memStates) Count(context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.states), nil
}

// memTxManager runs the function against the shared store. A non-nil failWith
// makes every transaction fail without applying anything visible to the test.
type memTxManager struct {
	set      port.RepositorySet
	failWith error
}

func (m *memTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.RepositorySet) error) error {
	if m.failWith != nil {
		return m.failWith
	}
	return fn(ctx, m.set)
}

type indexedEvent struct {
	op      string
	kind    domain.EntityKind
	id      uuid.UUID
	ids     []uuid.UUID
	payload map[string]any
	refresh bool
}

type recordingIndexer struct {
	mu     sync.Mutex
	events []indexedEvent
}

func (i *recordingIndexer) Index(_ context.Context, entity domain.Indexable, payload map[string]any, refresh bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.events = append(i.events, indexedEvent{op: "index", kind: entity.IndexKind(), id: entity.IndexID(), payload: payload, refresh: refresh})
	return nil
}

func (i *recordingIndexer) Delete(_ context.Context, entity domain.Indexable, refresh bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.events = append(i.events, indexedEvent{op: "delete", kind: entity.IndexKind(), id: entity.IndexID(), refresh: refresh})
	return nil
}

func (i *recordingIndexer) BulkIndex(_ context.Context, kind domain.EntityKind, ids []uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.events = append(i.events, indexedEvent{op: "bulk", kind: kind, ids: ids})
	return nil
}

func (i *recordingIndexer) ops() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, 0, len(i.events))
	for _, e := range i.events {
		out = append(out, e.op)
	}
	return out
}

func (i *recordingIndexer) reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.events = nil
}

type stubBucket struct {
	locked  bool
	objects map[string]struct{}
}

type stubBucketStore struct {
	mu      sync.Mutex
	buckets map[uuid.UUID]*stubBucket
	removed []uuid.UUID
}

func newStubBucketStore() *stubBucketStore {
	return &stubBucketStore{buckets: make(map[uuid.UUID]*stubBucket)}
}

func (s *stubBucketStore) CreateBucket(context.Context) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.buckets[id] = &stubBucket{objects: make(map[string]struct{})}
	return id, nil
}

func (s *stubBucketStore) get(id uuid.UUID) (*stubBucket, error) {
	b, ok := s.buckets[id]
	if !ok {
		return nil, fmt.Errorf("bucket %s: %w", id, repository.ErrNotFound)
	}
	return b, nil
}

func (s *stubBucketStore) Lock(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.get(id)
	if err != nil {
		return err
	}
	b.locked = true
	return nil
}

func (s *stubBucketStore) Unlock(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.get(id)
	if err != nil {
		return err
	}
	b.locked = false
	return nil
}

func (s *stubBucketStore) IsLocked(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.get(id)
	if err != nil {
		return false, err
	}
	return b.locked, nil
}

func (s *stubBucketStore) Copy(_ context.Context, src, dst uuid.UUID, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	from, err := s.get(src)
	if err != nil {
		return err
	}
	to, err := s.get(dst)
	if err != nil {
		return err
	}
	for key := range from.objects {
		to.objects[key] = struct{}{}
	}
	return nil
}

func (s *stubBucketStore) Sync(_ context.Context, src, dst uuid.UUID, deleteExtras bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	from, err := s.get(src)
	if err != nil {
		return err
	}
	to, err := s.get(dst)
	if err != nil {
		return err
	}
	if deleteExtras {
		for key := range to.objects {
			if _, ok := from.objects[key]; !ok {
				delete(to.objects, key)
			}
		}
	}
	for key := range from.objects {
		to.objects[key] = struct{}{}
	}
	return nil
}

func (s *stubBucketStore) DeleteAll(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.get(id)
	if err != nil {
		return err
	}
	b.objects = make(map[string]struct{})
	return nil
}

func (s *stubBucketStore) RemoveBucket(_ context.Context, id uuid.UUID, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.get(id)
	if err != nil {
		return err
	}
	if !force && (b.locked || len(b.objects) > 0) {
		return ErrStorageLocked
	}
	delete(s.buckets, id)
	s.removed = append(s.removed, id)
	return nil
}

func (s *stubBucketStore) putObject(id uuid.UUID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[id]; ok {
		b.objects[key] = struct{}{}
	}
}

func (s *stubBucketStore) objectCount(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[id]
	if !ok {
		return 0
	}
	return len(b.objects)
}

func (s *stubBucketStore) exists(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.buckets[id]
	return ok
}

type stubPIDProvider struct {
	mu         sync.Mutex
	counter    int
	registered map[string]bool
	deleted    []string
}

func newStubPIDProvider() *stubPIDProvider {
	return &stubPIDProvider{registered: make(map[string]bool)}
}

func (p *stubPIDProvider) Mint(context.Context, uuid.UUID, map[string]any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counter++
	return fmt.Sprintf("pid-%04d", p.counter), nil
}

func (p *stubPIDProvider) Register(_ context.Context, pid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered[pid] = true
	return nil
}

func (p *stubPIDProvider) Delete(_ context.Context, pid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.registered, pid)
	p.deleted = append(p.deleted, pid)
	return nil
}

func (p *stubPIDProvider) isRegistered(pid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registered[pid]
}

func (p *stubPIDProvider) wasDeleted(pid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range p.deleted {
		if d == pid {
			return true
		}
	}
	return false
}

type stubPermissions struct {
	denyActions map[string]bool
}

func (p *stubPermissions) Allows(_ context.Context, _ domain.Identity, action string, _ map[string]any) bool {
	return !p.denyActions[action]
}

// stubValidator flags a missing metadata.title and passes the data through
// otherwise.
type stubValidator struct{}

func (stubValidator) Validate(_ context.Context, data map[string]any) (map[string]any, domain.ValidationReport, error) {
	var report domain.ValidationReport
	meta, ok := data["metadata"].(map[string]any)
	if !ok {
		report.Add("metadata", "required")
		return data, report, nil
	}
	if title, _ := meta["title"].(string); title == "" {
		report.Add("metadata.title", "required")
	}
	return data, report, nil
}

// testEnv bundles a service with its collaborators for lifecycle tests.
// recordingStateCache stands in for the external version-state cache layer:
// it records which parents had their cached pointer dropped after a commit.
type recordingStateCache struct {
	port.VersionStateRepository
	invalidated []uuid.UUID
}

func (c *recordingStateCache) InvalidateState(_ context.Context, parentID uuid.UUID) error {
	c.invalidated = append(c.invalidated, parentID)
	return nil
}

func (c *recordingStateCache) invalidations(parentID uuid.UUID) int {
	n := 0
	for _, id := range c.invalidated {
		if id == parentID {
			n++
		}
	}
	return n
}

type testEnv struct {
	store      *memStore
	indexer    *recordingIndexer
	buckets    *stubBucketStore
	pids       *stubPIDProvider
	perms      *stubPermissions
	stateCache *recordingStateCache
	svc        *RecordService
	now        time.Time
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:   newMemStore(),
		indexer: &recordingIndexer{},
		buckets: newStubBucketStore(),
		pids:    newStubPIDProvider(),
		perms:   &stubPermissions{denyActions: map[string]bool{}},
		now:     time.Now().UTC(),
	}

	set := env.store.set()
	env.stateCache = &recordingStateCache{VersionStateRepository: set.VersionStates}
	set.VersionStates = env.stateCache
	components := []LifecycleComponent{
		NewRelationsComponent(set.Parents, env.pids),
		NewMetadataComponent(stubValidator{}),
		NewPIDComponent(env.pids),
		NewFilesComponent(env.buckets, env.perms, FilesOptions{}),
		NewFilesComponent(env.buckets, env.perms, FilesOptions{Media: true}),
	}

	env.svc = NewRecordService(
		set,
		&memTxManager{set: env.store.set()},
		env.indexer,
		env.perms,
		components,
		RecordServiceOptions{DraftTTL: 30 * 24 * time.Hour, GCMargin: 5 * time.Minute},
	).WithNow(func() time.Time { return env.now })

	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func validData() map[string]any {
	return map[string]any{
		"metadata": map[string]any{"title": "Measurement Run 42"},
	}
}

var testIdentity = domain.Identity{ID: "user-1", Roles: []string{"manager"}}
