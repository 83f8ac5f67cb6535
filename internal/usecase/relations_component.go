package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arklim/record-registry/internal/core/domain"
	"github.com/arklim/record-registry/internal/core/port"
)

// RelationsComponent manages the parent relationship: it creates the parent
// anchor on first draft creation and embeds it by value in index payloads.
type RelationsComponent struct {
	BaseComponent
	parents port.ParentRepository
	pids    port.PIDProvider
	now     func() time.Time
}

// NewRelationsComponent wires the parent lifecycle into the pipeline.
func NewRelationsComponent(parents port.ParentRepository, pids port.PIDProvider) *RelationsComponent {
	return &RelationsComponent{parents: parents, pids: pids, now: time.Now}
}

// Create constructs a bare parent and persists it immediately, so it has a
// stable identity before the draft references it.
func (c *RelationsComponent) Create(ctx context.Context, op *OpContext) error {
	now := c.now().UTC()
	parent := domain.Parent{
		ID:        uuid.New(),
		PIDStatus: domain.PIDStatusNew,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	pid, err := c.pids.Mint(ctx, parent.ID, op.Data)
	if err != nil {
		return fmt.Errorf("mint parent pid: %w", err)
	}
	parent.PID = pid

	if err := c.parents.Create(ctx, parent); err != nil {
		return fmt.Errorf("create parent: %w", err)
	}

	op.Draft.ParentID = parent.ID
	op.Draft.Parent = &parent
	return nil
}

// DumpDraft flattens a draft, embedding its parent by value, into an index
// payload.
func DumpDraft(draft *domain.Draft, state *domain.VersionState) map[string]any {
	payload := map[string]any{
		"id":         draft.ID.String(),
		"parent_id":  draft.ParentID.String(),
		"pid":        draft.PID,
		"data":       draft.Data,
		"revision":   draft.Revision,
		"is_deleted": draft.IsDeleted,
	}
	if draft.Index != nil {
		payload["index"] = *draft.Index
	}
	if draft.ForkVersionID != nil {
		payload["fork_version_id"] = *draft.ForkVersionID
	}
	if draft.Parent != nil {
		payload["parent"] = dumpParent(draft.Parent)
	}
	if state != nil {
		payload["versions"] = dumpVersions(state)
	}
	return payload
}

// DumpRecord flattens a record, embedding its parent by value, into an index
// payload.
func DumpRecord(record *domain.Record, state *domain.VersionState) map[string]any {
	payload := map[string]any{
		"id":        record.ID.String(),
		"parent_id": record.ParentID.String(),
		"pid":       record.PID,
		"data":      record.Data,
		"revision":  record.Revision,
		"index":     record.Index,
	}
	if record.Parent != nil {
		payload["parent"] = dumpParent(record.Parent)
	}
	if state != nil {
		payload["versions"] = dumpVersions(state)
	}
	return payload
}

func dumpParent(parent *domain.Parent) map[string]any {
	return map[string]any{
		"id":         parent.ID.String(),
		"pid":        parent.PID,
		"pid_status": string(parent.PIDStatus),
		"revision":   parent.Revision,
	}
}

func dumpVersions(state *domain.VersionState) map[string]any {
	versions := map[string]any{}
	if state.LatestID != nil {
		versions["latest_id"] = state.LatestID.String()
	}
	if state.LatestIndex != nil {
		versions["latest_index"] = *state.LatestIndex
	}
	if state.NextDraftID != nil {
		versions["next_draft_id"] = state.NextDraftID.String()
	}
	return versions
}

// LoadDraft reconstructs a draft from a dumped payload, re-attaching the
// parent by identifier through the repository.
func LoadDraft(ctx context.Context, payload map[string]any, parents port.ParentRepository) (*domain.Draft, error) {
	id, err := uuid.Parse(stringField(payload, "id"))
	if err != nil {
		return nil, fmt.Errorf("parse draft id: %w", err)
	}
	parentID, err := uuid.Parse(stringField(payload, "parent_id"))
	if err != nil {
		return nil, fmt.Errorf("parse parent id: %w", err)
	}

	draft := &domain.Draft{
		ID:       id,
		ParentID: parentID,
		PID:      stringField(payload, "pid"),
	}
	if data, ok := payload["data"].(map[string]any); ok {
		draft.Data = data
	}
	if rev, ok := payload["revision"].(int64); ok {
		draft.Revision = rev
	}
	if deleted, ok := payload["is_deleted"].(bool); ok {
		draft.IsDeleted = deleted
	}
	if index, ok := payload["index"].(int); ok {
		draft.Index = &index
	}
	if fork, ok := payload["fork_version_id"].(int64); ok {
		draft.ForkVersionID = &fork
	}

	parent, err := parents.Get(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("reattach parent: %w", err)
	}
	draft.Parent = parent

	return draft, nil
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

var _ LifecycleComponent = (*RelationsComponent)(nil)
