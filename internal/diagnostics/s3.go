package diagnostics

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/gauntlet-ci/gauntlet/internal/config"
	"github.com/gauntlet-ci/gauntlet/internal/logging"
)

// Environment variables carrying object-store credentials. They are never
// read from the config file.
const (
	EnvS3AccessKey = "GAUNTLET_S3_ACCESS_KEY"
	EnvS3SecretKey = "GAUNTLET_S3_SECRET_KEY"
)

// S3Sink mirrors bundles to an S3-compatible object store.
type S3Sink struct {
	client *minio.Client
	bucket string
	logger *logging.Logger
}

var _ Sink = (*S3Sink)(nil)

// NewS3Sink builds a sink from the [artifacts.s3] config section, reading
// credentials from the environment.
func NewS3Sink(cfg config.S3Config) (*S3Sink, error) {
	accessKey := os.Getenv(EnvS3AccessKey)
	secretKey := os.Getenv(EnvS3SecretKey)
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("object-store sink configured but %s or %s is unset", EnvS3AccessKey, EnvS3SecretKey)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object-store client: %w", err)
	}

	return &S3Sink{
		client: client,
		bucket: cfg.Bucket,
		logger: logging.New("diagnostics.s3"),
	}, nil
}

// Store uploads every file in the bundle directory under key/<relative
// path>.
func (s *S3Sink) Store(ctx context.Context, key, bundleDir string) error {
	return filepath.WalkDir(bundleDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(bundleDir, path)
		if err != nil {
			return err
		}
		object := key + "/" + filepath.ToSlash(rel)

		if _, err := s.client.FPutObject(ctx, s.bucket, object, path, minio.PutObjectOptions{}); err != nil {
			return fmt.Errorf("uploading %s: %w", object, err)
		}
		s.logger.Debug("uploaded bundle object", "bucket", s.bucket, "object", object)
		return nil
	})
}
