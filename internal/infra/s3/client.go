package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/record-registry/internal/core/port"
	"github.com/arklim/record-registry/internal/infra/config"
)

const (
	bucketMarkerKey = ".bucket"
	lockMarkerKey   = ".lock"
)

// BucketStore implements port.BucketStore over one S3 bucket. Each logical
// bucket is a key prefix named by its uuid; a lock is a marker object under
// the prefix so the flag survives process restarts.
type BucketStore struct {
	client *awss3.Client
	bucket string
	logger *zap.Logger
}

// NewBucketStore constructs the store and verifies bucket access.
func NewBucketStore(ctx context.Context, cfg config.S3Settings, logger *zap.Logger) (*BucketStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		cfg.AccessKey,
		cfg.SecretKey,
		"",
	))

	client := awss3.New(awss3.Options{
		BaseEndpoint:     aws.String(cfg.Endpoint),
		Region:           cfg.Region,
		Credentials:      creds,
		UsePathStyle:     cfg.ForcePathStyle,
		RetryMode:        aws.RetryModeAdaptive,
		RetryMaxAttempts: 3,
	})

	if _, err := client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("access bucket %s: %w", cfg.Bucket, err)
	}

	logger.Info("connected to object storage",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("bucket", cfg.Bucket),
	)

	return &BucketStore{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// CreateBucket materializes a new logical bucket under a fresh prefix.
func (s *BucketStore) CreateBucket(ctx context.Context) (uuid.UUID, error) {
	id := uuid.New()
	if err := s.putMarker(ctx, s.key(id, bucketMarkerKey)); err != nil {
		return uuid.Nil, fmt.Errorf("create bucket %s: %w", id, err)
	}
	return id, nil
}

// Lock places the lock marker on the bucket.
func (s *BucketStore) Lock(ctx context.Context, bucketID uuid.UUID) error {
	if err := s.putMarker(ctx, s.key(bucketID, lockMarkerKey)); err != nil {
		return fmt.Errorf("lock bucket %s: %w", bucketID, err)
	}
	return nil
}

// Unlock removes the lock marker from the bucket.
func (s *BucketStore) Unlock(ctx context.Context, bucketID uuid.UUID) error {
	if _, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(bucketID, lockMarkerKey)),
	}); err != nil {
		return fmt.Errorf("unlock bucket %s: %w", bucketID, err)
	}
	return nil
}

// IsLocked reports whether the lock marker exists.
func (s *BucketStore) IsLocked(ctx context.Context, bucketID uuid.UUID) (bool, error) {
	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(bucketID, lockMarkerKey)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("check bucket lock %s: %w", bucketID, err)
	}
	return true, nil
}

// Copy duplicates objects from src into dst. When copyBytes is false the
// transfer is deferred: entries travel in the manifest and bytes stay where
// they are until the destination bucket diverges.
func (s *BucketStore) Copy(ctx context.Context, src, dst uuid.UUID, copyBytes bool) error {
	if !copyBytes {
		return nil
	}

	keys, err := s.listKeys(ctx, src)
	if err != nil {
		return fmt.Errorf("list source bucket %s: %w", src, err)
	}

	for _, key := range keys {
		if err := s.copyObject(ctx, src, dst, key); err != nil {
			return fmt.Errorf("copy %s from %s to %s: %w", key, src, dst, err)
		}
	}
	return nil
}

// Sync makes dst mirror src, removing destination extras when requested.
func (s *BucketStore) Sync(ctx context.Context, src, dst uuid.UUID, deleteExtras bool) error {
	srcKeys, err := s.listKeys(ctx, src)
	if err != nil {
		return fmt.Errorf("list source bucket %s: %w", src, err)
	}

	srcSet := make(map[string]struct{}, len(srcKeys))
	for _, key := range srcKeys {
		srcSet[key] = struct{}{}
		if err := s.copyObject(ctx, src, dst, key); err != nil {
			return fmt.Errorf("sync %s from %s to %s: %w", key, src, dst, err)
		}
	}

	if !deleteExtras {
		return nil
	}

	dstKeys, err := s.listKeys(ctx, dst)
	if err != nil {
		return fmt.Errorf("list destination bucket %s: %w", dst, err)
	}
	for _, key := range dstKeys {
		if _, kept := srcSet[key]; kept {
			continue
		}
		if _, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(dst, key)),
		}); err != nil {
			return fmt.Errorf("delete extra %s in %s: %w", key, dst, err)
		}
	}
	return nil
}

// DeleteAll removes every file object in the bucket, keeping the markers.
func (s *BucketStore) DeleteAll(ctx context.Context, bucketID uuid.UUID) error {
	keys, err := s.listKeys(ctx, bucketID)
	if err != nil {
		return fmt.Errorf("list bucket %s: %w", bucketID, err)
	}

	for _, key := range keys {
		if _, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(bucketID, key)),
		}); err != nil {
			return fmt.Errorf("delete %s in %s: %w", key, bucketID, err)
		}
	}
	return nil
}

// RemoveBucket deletes the bucket's markers. A non-force removal of a locked
// or non-empty bucket is rejected.
func (s *BucketStore) RemoveBucket(ctx context.Context, bucketID uuid.UUID, force bool) error {
	if !force {
		locked, err := s.IsLocked(ctx, bucketID)
		if err != nil {
			return err
		}
		if locked {
			return fmt.Errorf("bucket %s is locked", bucketID)
		}
		keys, err := s.listKeys(ctx, bucketID)
		if err != nil {
			return fmt.Errorf("list bucket %s: %w", bucketID, err)
		}
		if len(keys) > 0 {
			return fmt.Errorf("bucket %s is not empty", bucketID)
		}
	}

	for _, marker := range []string{lockMarkerKey, bucketMarkerKey} {
		if _, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(bucketID, marker)),
		}); err != nil {
			return fmt.Errorf("remove bucket %s: %w", bucketID, err)
		}
	}
	return nil
}

// listKeys returns file object keys under the bucket prefix, marker objects
// excluded, relative to the prefix.
func (s *BucketStore) listKeys(ctx context.Context, bucketID uuid.UUID) ([]string, error) {
	prefix := bucketID.String() + "/"

	var keys []string
	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if key == bucketMarkerKey || key == lockMarkerKey {
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *BucketStore) copyObject(ctx context.Context, src, dst uuid.UUID, key string) error {
	_, err := s.client.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + s.key(src, key)),
		Key:        aws.String(s.key(dst, key)),
	})
	return err
}

func (s *BucketStore) putMarker(ctx context.Context, key string) error {
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(""),
	})
	return err
}

func (s *BucketStore) key(bucketID uuid.UUID, key string) string {
	return bucketID.String() + "/" + key
}

var _ port.BucketStore = (*BucketStore)(nil)
