package port

import (
	"context"

	"github.com/google/uuid"
)

// BucketStore is the object-storage collaborator holding a version's file
// bytes. A bucket is the storage container backing one entity's files state.
type BucketStore interface {
	CreateBucket(ctx context.Context) (uuid.UUID, error)
	Lock(ctx context.Context, bucketID uuid.UUID) error
	Unlock(ctx context.Context, bucketID uuid.UUID) error
	IsLocked(ctx context.Context, bucketID uuid.UUID) (bool, error)
	// Copy duplicates entries from src into dst. When copyBytes is false only
	// the object listing is copied and byte transfer is deferred.
	Copy(ctx context.Context, src, dst uuid.UUID, copyBytes bool) error
	// Sync makes dst mirror src, removing extra objects when deleteExtras is
	// set.
	Sync(ctx context.Context, src, dst uuid.UUID, deleteExtras bool) error
	DeleteAll(ctx context.Context, bucketID uuid.UUID) error
	RemoveBucket(ctx context.Context, bucketID uuid.UUID, force bool) error
}
