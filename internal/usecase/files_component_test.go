package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/arklim/record-registry/internal/core/domain"
)

func completedEntry(key string) domain.FileEntry {
	return domain.FileEntry{Key: key, Status: domain.TransferCompleted, Size: 128}
}

func newFilesFixture() (*FilesComponent, *stubBucketStore) {
	store := newStubBucketStore()
	perms := &stubPermissions{denyActions: map[string]bool{}}
	return NewFilesComponent(store, perms, FilesOptions{}), store
}

func TestFilesFirstPublishHandsOffBucket(t *testing.T) {
	ctx := context.Background()
	comp, store := newFilesFixture()

	bucketID, _ := store.CreateBucket(ctx)
	store.putObject(bucketID, "raw.csv")

	draft := &domain.Draft{Files: domain.FilesState{
		Enabled:  true,
		BucketID: &bucketID,
		Entries:  map[string]domain.FileEntry{"raw.csv": completedEntry("raw.csv")},
	}}
	record := &domain.Record{}

	op := &OpContext{Draft: draft, Record: record, FirstPublish: true}
	if err := comp.Publish(ctx, op); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if record.Files.BucketID == nil || *record.Files.BucketID != bucketID {
		t.Fatal("record must take over the draft's bucket on first publish")
	}
	if !record.Files.Locked {
		t.Fatal("published bucket must be locked")
	}
	if locked, _ := store.IsLocked(ctx, bucketID); !locked {
		t.Fatal("bucket lock must be applied in storage")
	}
	if draft.Files.BucketID != nil {
		t.Fatal("draft must release the handed-off bucket")
	}
	if store.objectCount(bucketID) != 1 {
		t.Fatal("handoff must not move any bytes")
	}
}

func TestFilesRepublishSyncsIntoLockedBucket(t *testing.T) {
	ctx := context.Background()
	comp, store := newFilesFixture()

	recordBucket, _ := store.CreateBucket(ctx)
	store.putObject(recordBucket, "keep.csv")
	store.putObject(recordBucket, "stale.csv")
	_ = store.Lock(ctx, recordBucket)

	draftBucket, _ := store.CreateBucket(ctx)
	store.putObject(draftBucket, "keep.csv")
	store.putObject(draftBucket, "new.csv")

	draft := &domain.Draft{Files: domain.FilesState{
		Enabled:  true,
		BucketID: &draftBucket,
		Entries: map[string]domain.FileEntry{
			"keep.csv": completedEntry("keep.csv"),
			"new.csv":  completedEntry("new.csv"),
		},
	}}
	record := &domain.Record{Files: domain.FilesState{
		Enabled:  true,
		BucketID: &recordBucket,
		Locked:   true,
		Entries:  map[string]domain.FileEntry{"keep.csv": completedEntry("keep.csv")},
	}}

	op := &OpContext{Draft: draft, Record: record}
	if err := comp.Publish(ctx, op); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if store.objectCount(recordBucket) != 2 {
		t.Fatalf("record bucket must mirror the draft, got %d objects", store.objectCount(recordBucket))
	}
	if locked, _ := store.IsLocked(ctx, recordBucket); !locked {
		t.Fatal("record bucket must be relocked after the sync")
	}
	if store.exists(draftBucket) {
		t.Fatal("draft's transient bucket must be removed after republish")
	}
	if len(record.Files.Entries) != 2 {
		t.Fatalf("record manifest must follow the draft, got %d entries", len(record.Files.Entries))
	}
}

func TestFilesPublishRejectsPendingTransfers(t *testing.T) {
	ctx := context.Background()
	comp, _ := newFilesFixture()

	draft := &domain.Draft{Files: domain.FilesState{
		Enabled: true,
		Entries: map[string]domain.FileEntry{
			"big.bin": {Key: "big.bin", Status: domain.TransferPending},
		},
	}}

	op := &OpContext{Draft: draft, Record: &domain.Record{}, FirstPublish: true}
	err := comp.Publish(ctx, op)
	if !errors.Is(err, ErrFileStateInvalid) {
		t.Fatalf("expected ErrFileStateInvalid, got %v", err)
	}
}

func TestFilesImportGuards(t *testing.T) {
	ctx := context.Background()
	comp, store := newFilesFixture()

	srcBucket, _ := store.CreateBucket(ctx)
	store.putObject(srcBucket, "raw.csv")
	latest := &domain.Record{Files: domain.FilesState{
		Enabled:  true,
		BucketID: &srcBucket,
		Entries:  map[string]domain.FileEntry{"raw.csv": completedEntry("raw.csv")},
	}}

	occupied := &domain.Draft{Files: domain.FilesState{
		Enabled: true,
		Entries: map[string]domain.FileEntry{"own.csv": completedEntry("own.csv")},
	}}
	if err := comp.ImportFiles(ctx, &OpContext{Draft: occupied, LatestRecord: latest}); !errors.Is(err, ErrFileStateInvalid) {
		t.Fatalf("import into a non-empty manifest must fail, got %v", err)
	}

	disabled := &domain.Draft{Files: domain.FilesState{Enabled: false}}
	if err := comp.ImportFiles(ctx, &OpContext{Draft: disabled, LatestRecord: latest}); !errors.Is(err, ErrFileStateInvalid) {
		t.Fatalf("import with files disabled must fail, got %v", err)
	}

	empty := &domain.Draft{Files: domain.FilesState{Enabled: true}}
	bare := &domain.Record{Files: domain.FilesState{Enabled: true}}
	if err := comp.ImportFiles(ctx, &OpContext{Draft: empty, LatestRecord: bare}); !errors.Is(err, ErrFileStateInvalid) {
		t.Fatalf("import from a record without files must fail, got %v", err)
	}

	target := &domain.Draft{Files: domain.FilesState{Enabled: true}}
	if err := comp.ImportFiles(ctx, &OpContext{Draft: target, LatestRecord: latest}); err != nil {
		t.Fatalf("import: %v", err)
	}
	if target.Files.BucketID == nil {
		t.Fatal("import must create a draft bucket")
	}
	if len(target.Files.Entries) != 1 {
		t.Fatalf("import must copy the manifest, got %d entries", len(target.Files.Entries))
	}
	if store.objectCount(*target.Files.BucketID) != 1 {
		t.Fatal("import must copy the bytes")
	}
}

func TestMediaFilesCopiedOnNewVersion(t *testing.T) {
	ctx := context.Background()
	store := newStubBucketStore()
	perms := &stubPermissions{denyActions: map[string]bool{}}
	media := NewFilesComponent(store, perms, FilesOptions{Media: true})
	regular := NewFilesComponent(store, perms, FilesOptions{})

	mediaBucket, _ := store.CreateBucket(ctx)
	store.putObject(mediaBucket, "cover.png")
	fileBucket, _ := store.CreateBucket(ctx)
	store.putObject(fileBucket, "raw.csv")

	record := &domain.Record{
		Files: domain.FilesState{
			Enabled:  true,
			BucketID: &fileBucket,
			Entries:  map[string]domain.FileEntry{"raw.csv": completedEntry("raw.csv")},
		},
		MediaFiles: domain.FilesState{
			Enabled:  true,
			BucketID: &mediaBucket,
			Entries:  map[string]domain.FileEntry{"cover.png": completedEntry("cover.png")},
		},
	}
	draft := &domain.Draft{}
	op := &OpContext{Draft: draft, Record: record}

	if err := regular.NewVersion(ctx, op); err != nil {
		t.Fatalf("regular new version: %v", err)
	}
	if draft.Files.Enabled || draft.Files.BucketID != nil || draft.Files.HasEntries() {
		t.Fatal("regular files start empty in a new version")
	}

	if err := media.NewVersion(ctx, op); err != nil {
		t.Fatalf("media new version: %v", err)
	}
	if !draft.MediaFiles.Enabled || draft.MediaFiles.BucketID == nil {
		t.Fatal("media files carry over into a new version")
	}
	if store.objectCount(*draft.MediaFiles.BucketID) != 1 {
		t.Fatal("media bytes must be copied into the new draft bucket")
	}
}

func TestDeleteDraftSkipsSoftDeletedRows(t *testing.T) {
	ctx := context.Background()
	comp, store := newFilesFixture()

	bucketID, _ := store.CreateBucket(ctx)
	store.putObject(bucketID, "raw.csv")

	// The stale row of a published draft still names the record's bucket.
	draft := &domain.Draft{
		IsDeleted: true,
		Files:     domain.FilesState{Enabled: true, BucketID: &bucketID},
	}
	if err := comp.DeleteDraft(ctx, &OpContext{Draft: draft, Force: true}); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if !store.exists(bucketID) {
		t.Fatal("garbage collection must not touch a handed-off bucket")
	}

	active := &domain.Draft{Files: domain.FilesState{Enabled: true, BucketID: &bucketID}}
	if err := comp.DeleteDraft(ctx, &OpContext{Draft: active, Force: true}); err != nil {
		t.Fatalf("delete active draft: %v", err)
	}
	if store.exists(bucketID) {
		t.Fatal("a never-published draft's bucket must be removed")
	}
}

func TestUpdateDraftToggleAndPreview(t *testing.T) {
	ctx := context.Background()
	store := newStubBucketStore()
	perms := &stubPermissions{denyActions: map[string]bool{ActionManageFiles: true}}
	comp := NewFilesComponent(store, perms, FilesOptions{})

	draft := &domain.Draft{Files: domain.FilesState{
		Enabled: true,
		Entries: map[string]domain.FileEntry{"raw.csv": completedEntry("raw.csv")},
	}}
	var report domain.ValidationReport
	op := &OpContext{
		Draft:  draft,
		Data:   map[string]any{"files": map[string]any{"enabled": false}},
		Report: &report,
	}
	if err := comp.UpdateDraft(ctx, op); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("toggling without permission must fail, got %v", err)
	}

	perms.denyActions[ActionManageFiles] = false
	report = domain.ValidationReport{}
	op.Data = map[string]any{"files": map[string]any{"default_preview": "missing.png"}}
	if err := comp.UpdateDraft(ctx, op); err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if report.Empty() {
		t.Fatal("preview pointing at a missing entry must be reported")
	}
	if draft.Files.DefaultPreview != nil {
		t.Fatal("invalid preview must not be applied")
	}

	report = domain.ValidationReport{}
	op.Data = map[string]any{"files": map[string]any{"default_preview": "raw.csv"}}
	if err := comp.UpdateDraft(ctx, op); err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if draft.Files.DefaultPreview == nil || *draft.Files.DefaultPreview != "raw.csv" {
		t.Fatal("valid preview must be applied")
	}
}

func TestResurrectedDraftGetsFreshBucket(t *testing.T) {
	ctx := context.Background()
	comp, store := newFilesFixture()

	recordBucket, _ := store.CreateBucket(ctx)
	store.putObject(recordBucket, "raw.csv")
	_ = store.Lock(ctx, recordBucket)

	sharedID := recordBucket
	draft := &domain.Draft{Files: domain.FilesState{Enabled: true, BucketID: &sharedID}}
	record := &domain.Record{Files: domain.FilesState{
		Enabled:  true,
		BucketID: &recordBucket,
		Locked:   true,
		Entries:  map[string]domain.FileEntry{"raw.csv": completedEntry("raw.csv")},
	}}

	if err := comp.Edit(ctx, &OpContext{Draft: draft, Record: record}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if draft.Files.BucketID == nil || *draft.Files.BucketID == recordBucket {
		t.Fatal("resurrected draft must not share the record's bucket")
	}
	if !draft.Files.Locked {
		t.Fatal("draft copied from a locked record stays locked")
	}
	if !store.exists(*draft.Files.BucketID) {
		t.Fatal("fresh draft bucket must exist in storage")
	}
}
