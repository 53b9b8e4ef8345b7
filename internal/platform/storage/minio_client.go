package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// SnapshotStore keeps definition snapshots in one MinIO bucket. Snapshots
// are immutable JSON documents; edge SDKs bootstrap from the newest one.
type SnapshotStore struct {
	client *minio.Client
	bucket string
}

func NewSnapshotStore(endpoint, accessKey, secretKey string, useSSL bool, bucket string) (*SnapshotStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &SnapshotStore{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the snapshot bucket if it does not exist yet, so the
// generator can run against a fresh MinIO deployment.
func (s *SnapshotStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check snapshot bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create snapshot bucket: %w", err)
	}
	return nil
}

// PutSnapshot uploads one snapshot document and returns its object name.
func (s *SnapshotStore) PutSnapshot(ctx context.Context, generatedAt time.Time, data []byte) (string, error) {
	objectName := SnapshotObjectName(generatedAt)
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("upload snapshot %s: %w", objectName, err)
	}
	return objectName, nil
}

// SnapshotObjectName names snapshot objects so lexicographic order is
// generation order.
func SnapshotObjectName(generatedAt time.Time) string {
	return "snapshot-" + generatedAt.UTC().Format("20060102T150405Z") + ".json"
}
