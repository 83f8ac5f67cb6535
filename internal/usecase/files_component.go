package usecase

import (
	"context"
	"fmt"

	"github.com/arklim/record-registry/internal/core/domain"
	"github.com/arklim/record-registry/internal/core/port"
)

// ActionManageFiles guards toggling the files-enabled flag.
const ActionManageFiles = "manage_files"

// FilesOptions selects between the files manifest and its media variant. The
// two share structure but use separate storage keys; media files default to
// disabled and, unlike regular files, are copied into a new version.
type FilesOptions struct {
	Media bool
}

func (o FilesOptions) payloadKey() string {
	if o.Media {
		return "media_files"
	}
	return "files"
}

func (o FilesOptions) defaultEnabled() bool {
	return !o.Media
}

func (o FilesOptions) copyOnNewVersion() bool {
	return o.Media
}

// FilesComponent keeps an entity's files manifest and its storage bucket
// consistent with the draft/record lifecycle transitions.
type FilesComponent struct {
	BaseComponent
	store port.BucketStore
	perms port.PermissionChecker
	opts  FilesOptions
}

// NewFilesComponent wires the bucket collaborator into the pipeline.
func NewFilesComponent(store port.BucketStore, perms port.PermissionChecker, opts FilesOptions) *FilesComponent {
	return &FilesComponent{store: store, perms: perms, opts: opts}
}

func (c *FilesComponent) draftState(d *domain.Draft) *domain.FilesState {
	if c.opts.Media {
		return &d.MediaFiles
	}
	return &d.Files
}

func (c *FilesComponent) recordState(r *domain.Record) *domain.FilesState {
	if c.opts.Media {
		return &r.MediaFiles
	}
	return &r.Files
}

// Create seeds the enabled flag from caller-supplied data, falling back to
// the variant default. Toggling away from the default needs the manage-files
// permission.
func (c *FilesComponent) Create(ctx context.Context, op *OpContext) error {
	st := c.draftState(op.Draft)
	st.Enabled = c.opts.defaultEnabled()

	requested, ok := c.requestedEnabled(op.Data)
	if !ok {
		return nil
	}
	if requested != st.Enabled && !c.perms.Allows(ctx, op.Identity, ActionManageFiles, nil) {
		return fmt.Errorf("toggle %s: %w", c.opts.payloadKey(), ErrPermissionDenied)
	}
	st.Enabled = requested
	return nil
}

// UpdateDraft applies enable/disable and default-preview changes, reporting
// inconsistent states rather than raising so the draft still saves.
func (c *FilesComponent) UpdateDraft(ctx context.Context, op *OpContext) error {
	st := c.draftState(op.Draft)
	key := c.opts.payloadKey()

	if requested, ok := c.requestedEnabled(op.Data); ok && requested != st.Enabled {
		if st.Locked {
			return fmt.Errorf("%s are published: %w", key, ErrStorageLocked)
		}
		if !c.perms.Allows(ctx, op.Identity, ActionManageFiles, nil) {
			return fmt.Errorf("toggle %s: %w", key, ErrPermissionDenied)
		}
		if !requested && st.HasEntries() {
			op.Report.Add(key+".enabled", "files must be removed before disabling")
		} else {
			st.Enabled = requested
		}
	}

	if preview, ok := c.requestedPreview(op.Data); ok {
		if _, exists := st.Entries[preview]; !exists {
			op.Report.Add(key+".default_preview", fmt.Sprintf("no file entry for preview key %q", preview))
		} else {
			p := preview
			st.DefaultPreview = &p
		}
	}

	if st.Enabled && !st.HasEntries() {
		op.Report.Add(key+".enabled", "missing uploaded files")
	}

	return nil
}

// Edit prepares a draft forked from a published record: it recreates the
// bucket if the draft lost it (a resurrected soft-deleted draft), copies the
// record's entries over, and locks the new bucket when the record's files
// are locked-on-edit so published bytes stay immutable outside new_version.
func (c *FilesComponent) Edit(ctx context.Context, op *OpContext) error {
	st := c.draftState(op.Draft)
	recSt := c.recordState(op.Record)

	st.Enabled = recSt.Enabled
	st.DefaultPreview = recSt.DefaultPreview
	st.Entries = recSt.CloneEntries()

	if !recSt.Enabled || recSt.BucketID == nil {
		return nil
	}

	// A draft resurrected after a first publish still names the bucket it
	// handed off to the record; it needs a fresh one of its own.
	if st.BucketID != nil && *st.BucketID == *recSt.BucketID {
		st.BucketID = nil
	}
	if st.BucketID == nil {
		bucketID, err := c.store.CreateBucket(ctx)
		if err != nil {
			return fmt.Errorf("recreate draft bucket: %w", err)
		}
		st.BucketID = &bucketID
	}

	if err := c.store.Copy(ctx, *recSt.BucketID, *st.BucketID, false); err != nil {
		return fmt.Errorf("copy record files into draft: %w", err)
	}

	if recSt.Locked {
		if err := c.store.Lock(ctx, *st.BucketID); err != nil {
			return fmt.Errorf("lock draft bucket: %w", err)
		}
		st.Locked = true
	}

	return nil
}

// Publish verifies transfer completeness and moves or syncs the draft bucket
// into the record. On the first publish for a lineage the draft's bucket is
// handed off wholesale and locked; afterwards the record's bucket is
// unlocked, synced from the draft deleting extras, relocked, and the draft's
// transient bucket is torn down.
func (c *FilesComponent) Publish(ctx context.Context, op *OpContext) error {
	st := c.draftState(op.Draft)
	recSt := c.recordState(op.Record)
	key := c.opts.payloadKey()

	if !st.Consistent() {
		return fmt.Errorf("%s transfer pending or missing: %w", key, ErrFileStateInvalid)
	}

	recSt.Enabled = st.Enabled
	recSt.DefaultPreview = c.effectivePreview(st)
	recSt.Entries = st.CloneEntries()

	if !st.Enabled || st.BucketID == nil {
		return nil
	}

	if recSt.BucketID == nil {
		// First publish: hand the bucket off, do not copy.
		recSt.BucketID = st.BucketID
		if err := c.store.Lock(ctx, *recSt.BucketID); err != nil {
			return fmt.Errorf("lock published bucket: %w", err)
		}
		recSt.Locked = true
		st.BucketID = nil
		st.Entries = nil
		return nil
	}

	if err := c.store.Unlock(ctx, *recSt.BucketID); err != nil {
		return fmt.Errorf("unlock published bucket: %w", err)
	}
	if err := c.store.Sync(ctx, *st.BucketID, *recSt.BucketID, true); err != nil {
		return fmt.Errorf("sync draft files into record: %w", err)
	}
	if err := c.store.Lock(ctx, *recSt.BucketID); err != nil {
		return fmt.Errorf("relock published bucket: %w", err)
	}
	recSt.Locked = true

	if err := c.store.DeleteAll(ctx, *st.BucketID); err != nil {
		return fmt.Errorf("clear draft bucket: %w", err)
	}
	if err := c.store.RemoveBucket(ctx, *st.BucketID, true); err != nil {
		return fmt.Errorf("remove draft bucket: %w", err)
	}
	st.BucketID = nil
	st.Entries = nil

	return nil
}

// NewVersion leaves regular files empty and disabled so they must be
// explicitly imported; the media variant copies them from the source record.
func (c *FilesComponent) NewVersion(ctx context.Context, op *OpContext) error {
	st := c.draftState(op.Draft)

	if !c.opts.copyOnNewVersion() {
		st.Enabled = false
		st.BucketID = nil
		st.Entries = nil
		st.DefaultPreview = nil
		return nil
	}

	recSt := c.recordState(op.Record)
	st.Enabled = recSt.Enabled
	st.DefaultPreview = recSt.DefaultPreview
	st.Entries = recSt.CloneEntries()
	if recSt.BucketID == nil {
		return nil
	}

	bucketID, err := c.store.CreateBucket(ctx)
	if err != nil {
		return fmt.Errorf("create draft bucket: %w", err)
	}
	st.BucketID = &bucketID
	if err := c.store.Copy(ctx, *recSt.BucketID, bucketID, true); err != nil {
		return fmt.Errorf("copy media files into new version: %w", err)
	}
	return nil
}

// DeleteDraft tears down the draft's own bucket on a force delete. A
// soft-deleted draft handed its bucket to the record on publish, so its row
// may still name a bucket the draft no longer owns.
func (c *FilesComponent) DeleteDraft(ctx context.Context, op *OpContext) error {
	if !op.Force || op.Draft.IsDeleted {
		return nil
	}
	st := c.draftState(op.Draft)
	if st.BucketID == nil {
		return nil
	}

	if err := c.store.Unlock(ctx, *st.BucketID); err != nil {
		return fmt.Errorf("unlock draft bucket: %w", err)
	}
	if err := c.store.DeleteAll(ctx, *st.BucketID); err != nil {
		return fmt.Errorf("delete draft files: %w", err)
	}
	if err := c.store.RemoveBucket(ctx, *st.BucketID, true); err != nil {
		return fmt.Errorf("remove draft bucket: %w", err)
	}
	st.BucketID = nil
	st.Entries = nil
	return nil
}

// ImportFiles copies files from the latest published record into the current
// draft. Rejected when files are already present, files are disabled, or the
// source record carries none.
func (c *FilesComponent) ImportFiles(ctx context.Context, op *OpContext) error {
	st := c.draftState(op.Draft)
	key := c.opts.payloadKey()

	if st.HasEntries() {
		return fmt.Errorf("%s already present: %w", key, ErrFileStateInvalid)
	}
	if !st.Enabled {
		return fmt.Errorf("%s disabled: %w", key, ErrFileStateInvalid)
	}

	src := c.recordState(op.LatestRecord)
	if src.BucketID == nil || !src.HasEntries() {
		return fmt.Errorf("source record has no %s: %w", key, ErrFileStateInvalid)
	}

	if st.BucketID == nil {
		bucketID, err := c.store.CreateBucket(ctx)
		if err != nil {
			return fmt.Errorf("create draft bucket: %w", err)
		}
		st.BucketID = &bucketID
	}
	if err := c.store.Copy(ctx, *src.BucketID, *st.BucketID, true); err != nil {
		return fmt.Errorf("import files from record: %w", err)
	}
	st.Entries = src.CloneEntries()
	st.DefaultPreview = src.DefaultPreview
	return nil
}

// effectivePreview resolves the preview to publish. The media variant drives
// it from the draft's state; the regular variant keeps the draft's explicit
// choice and otherwise leaves it unset.
func (c *FilesComponent) effectivePreview(st *domain.FilesState) *string {
	if st.DefaultPreview != nil {
		if _, ok := st.Entries[*st.DefaultPreview]; ok {
			return st.DefaultPreview
		}
		if c.opts.Media {
			return nil
		}
	}
	return st.DefaultPreview
}

func (c *FilesComponent) requestedEnabled(data map[string]any) (bool, bool) {
	section, ok := data[c.opts.payloadKey()].(map[string]any)
	if !ok {
		return false, false
	}
	enabled, ok := section["enabled"].(bool)
	return enabled, ok
}

func (c *FilesComponent) requestedPreview(data map[string]any) (string, bool) {
	section, ok := data[c.opts.payloadKey()].(map[string]any)
	if !ok {
		return "", false
	}
	preview, ok := section["default_preview"].(string)
	return preview, ok
}

var _ LifecycleComponent = (*FilesComponent)(nil)
