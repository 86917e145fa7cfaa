// Package minio provides the raw-batch archive store: every ingested batch is
// written to object storage before scoring so failed or disputed ingestions
// can be replayed byte-for-byte.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/agencypulse/crosssell-intelligence/internal/config"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
)

// objectAPI abstracts the minio client surface the store uses, for testing.
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// ArchiveStore writes and reads raw ingestion batches.
type ArchiveStore struct {
	client objectAPI
	bucket string
	logger logging.Logger
}

// NewArchiveStore connects to object storage and ensures the archive bucket
// exists.
func NewArchiveStore(ctx context.Context, cfg config.MinIOConfig, log logging.Logger) (*ArchiveStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeExternalService, "failed to create object storage client")
	}

	s := &ArchiveStore{client: client, bucket: cfg.Bucket, logger: log}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// newArchiveStoreWithClient is the test seam.
func newArchiveStoreWithClient(client objectAPI, bucket string, log logging.Logger) *ArchiveStore {
	return &ArchiveStore{client: client, bucket: bucket, logger: log}
}

func (s *ArchiveStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, errors.CodeExternalService, "failed to check archive bucket")
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrap(err, errors.CodeExternalService, "failed to create archive bucket")
	}
	s.logger.Info("created archive bucket", logging.String("bucket", s.bucket))
	return nil
}

// objectName lays batches out as ingest/<agency>/<yyyy/mm/dd>/<batch>.json so
// prefix listings by agency and day stay cheap.
func objectName(agencyID, batchID string, at time.Time) string {
	if agencyID == "" {
		agencyID = "default"
	}
	return fmt.Sprintf("ingest/%s/%s/%s.json", agencyID, at.UTC().Format("2006/01/02"), batchID)
}

// ArchiveBatch stores the raw batch payload and returns the object name.
func (s *ArchiveStore) ArchiveBatch(ctx context.Context, agencyID, batchID string, raw []byte) (string, error) {
	name := objectName(agencyID, batchID, time.Now())
	_, err := s.client.PutObject(ctx, s.bucket, name,
		bytes.NewReader(raw), int64(len(raw)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", errors.Wrap(err, errors.CodeIngestionArchiveFailed, "failed to archive raw batch").
			WithDetail("object: " + name)
	}

	s.logger.Info("archived raw batch",
		logging.String("object", name),
		logging.Int("bytes", len(raw)),
	)
	return name, nil
}

// FetchBatch reads an archived batch back for replay.
func (s *ArchiveStore) FetchBatch(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeExternalService, "failed to open archived batch")
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeExternalService, "failed to read archived batch")
	}
	return raw, nil
}
