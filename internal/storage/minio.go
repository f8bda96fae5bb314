package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/yuvalaufer/students-calander/internal/config"
	"github.com/yuvalaufer/students-calander/internal/docstore"
)

// objectClient is the subset of *minio.Client the archive uses.
type objectClient interface {
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// MinIOArchive keeps a snapshot of every committed document revision under
// <name>/<revision>.json in one bucket.
type MinIOArchive struct {
	client objectClient
	bucket string
}

// NewMinIOArchive creates a MinIO client and ensures the bucket exists.
func NewMinIOArchive(cfg config.MinIOConfig) (*MinIOArchive, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := mc.BucketExists(ctx, cfg.Bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return &MinIOArchive{client: mc, bucket: cfg.Bucket}, nil
}

func objectKey(name string, rev docstore.Revision) string {
	return name + "/" + rev.String() + ".json"
}

// Archive implements docstore.Archiver.
func (a *MinIOArchive) Archive(ctx context.Context, name string, rev docstore.Revision, content []byte) error {
	_, err := a.client.PutObject(ctx, a.bucket, objectKey(name, rev), bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType:  "application/json",
		UserMetadata: map[string]string{"document": name, "revision": rev.String()},
	})
	if err != nil {
		return fmt.Errorf("archive %s: %w", objectKey(name, rev), err)
	}
	return nil
}

// Snapshot returns the archived content of one revision.
func (a *MinIOArchive) Snapshot(ctx context.Context, name string, rev docstore.Revision) ([]byte, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, objectKey(name, rev), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}
