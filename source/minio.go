package source

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig describes a MinIO or S3-compatible endpoint.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Secure    bool   `yaml:"secure"`
}

// Minio streams traces from one bucket of a MinIO server.
type Minio struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinio connects to the endpoint with static V4 credentials.
func NewMinio(cfg MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("source: minio client: %w", err)
	}
	return NewMinioFromClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewMinioFromClient wraps an existing client. prefix is prepended to every
// name.
func NewMinioFromClient(client *minio.Client, bucket, prefix string) *Minio {
	return &Minio{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (m *Minio) key(name string) string {
	return path.Join(m.prefix, name)
}

// Open checks that the object exists and returns a reader over it.
func (m *Minio) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := m.key(name)

	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, fmt.Errorf("%w: minio://%s/%s", ErrNotFound, m.bucket, key)
		}
		return nil, fmt.Errorf("source: stat minio://%s/%s: %w", m.bucket, key, err)
	}

	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("source: get minio://%s/%s: %w", m.bucket, key, err)
	}
	return obj, nil
}
