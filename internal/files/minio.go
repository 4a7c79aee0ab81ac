package files

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig carries the object-storage connection settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioBlobStore is the durable BlobStore backed by an S3-compatible
// object store.
type MinioBlobStore struct {
	client *minio.Client
	bucket string
}

// NewMinioBlobStore connects to the object store and ensures the
// bucket exists.
func NewMinioBlobStore(ctx context.Context, cfg MinioConfig) (*MinioBlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("files: minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("files: bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("files: bucket create: %w", err)
		}
	}

	return &MinioBlobStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioBlobStore) Put(ctx context.Context, id string, reader io.Reader, size int64, info ObjectInfo) error {
	_, err := s.client.PutObject(ctx, s.bucket, id, reader, size, minio.PutObjectOptions{
		ContentType: info.ContentType,
		UserMetadata: map[string]string{
			"filename": info.Filename,
		},
	})
	return err
}

// Get stats the object first so a missing blob surfaces before any
// bytes stream, then returns a reader that honors ctx cancellation
// mid-stream.
func (s *MinioBlobStore) Get(ctx context.Context, id string) (io.ReadCloser, ObjectInfo, error) {
	stat, err := s.client.StatObject(ctx, s.bucket, id, minio.StatObjectOptions{})
	if err != nil {
		if isMissingObject(err) {
			return nil, ObjectInfo{}, ErrBlobNotFound
		}
		return nil, ObjectInfo{}, err
	}

	object, err := s.client.GetObject(ctx, s.bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	info := ObjectInfo{
		ContentType: stat.ContentType,
		Filename:    stat.UserMetadata["Filename"],
		Size:        stat.Size,
	}
	return object, info, nil
}

func (s *MinioBlobStore) Remove(ctx context.Context, id string) error {
	err := s.client.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{})
	if isMissingObject(err) {
		return nil
	}
	return err
}

func isMissingObject(err error) bool {
	if err == nil {
		return false
	}
	var response minio.ErrorResponse
	if errors.As(err, &response) {
		return response.Code == "NoSuchKey" || response.Code == "NoSuchBucket"
	}
	return false
}
