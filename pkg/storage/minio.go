package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/JaimeStill/attest/pkg/lifecycle"
)

const minioNoSuchKey = "NoSuchKey"

type minioStore struct {
	client *minio.Client
	bucket string
	region string
	logger *slog.Logger
	ready  atomic.Bool
}

func newMinio(cfg *Config, logger *slog.Logger) (*minioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &minioStore{
		client: client,
		bucket: cfg.ContainerName,
		region: cfg.Region,
		logger: logger,
	}, nil
}

func (m *minioStore) Start(lc *lifecycle.Coordinator) error {
	m.logger.Info("starting storage system")

	lc.OnStartup(func() {
		ctx := lc.Context()

		exists, err := m.client.BucketExists(ctx, m.bucket)
		if err != nil {
			m.logger.Error("storage bucket check failed", "error", err)
			return
		}
		if !exists {
			err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region})
			if err != nil {
				m.logger.Error("storage bucket initialization failed", "error", err)
				return
			}
		}
		m.ready.Store(true)
		m.logger.Info("storage bucket ready", "bucket", m.bucket)
	})

	return nil
}

// Ready reports whether the startup hook confirmed the bucket.
func (m *minioStore) Ready() bool {
	return m.ready.Load()
}

func (m *minioStore) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	_, err := m.client.PutObject(ctx, m.bucket, key, reader, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload object %s: %w", key, err)
	}
	return nil
}

func (m *minioStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.mapErr("download", key, err)
	}

	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, m.mapErr("download", key, err)
	}

	return obj, nil
}

func (m *minioStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		return m.mapErr("delete", key, err)
	}

	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return m.mapErr("delete", key, err)
	}
	return nil
}

func (m *minioStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}

	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == minioNoSuchKey {
			return false, nil
		}
		return false, fmt.Errorf("check object existence %s: %w", key, err)
	}
	return true, nil
}

func (m *minioStore) mapErr(op, key string, err error) error {
	if minio.ToErrorResponse(err).Code == minioNoSuchKey {
		return ErrNotFound
	}
	return fmt.Errorf("%s object %s: %w", op, key, err)
}
