package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNotFound is returned when a trace does not exist.
// It is os.ErrNotExist, so local and remote misses test the same way.
var ErrNotFound = os.ErrNotExist

// Source opens traces for sequential reading.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Scheme identifies where a trace lives.
type Scheme string

const (
	SchemeFile  Scheme = "file"
	SchemeS3    Scheme = "s3"
	SchemeMinio Scheme = "minio"
)

// ParseURI splits uri into scheme, bucket and key. Plain paths and file://
// URIs have no bucket. minio:// URIs carry only a key; the bucket comes
// from the MinIO configuration.
func ParseURI(uri string) (Scheme, string, string, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return SchemeFile, "", uri, nil
	}

	switch Scheme(scheme) {
	case SchemeFile:
		return SchemeFile, "", rest, nil
	case SchemeMinio:
		if rest == "" {
			return "", "", "", fmt.Errorf("source: empty key in %q", uri)
		}
		return SchemeMinio, "", rest, nil
	case SchemeS3:
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" || key == "" {
			return "", "", "", fmt.Errorf("source: want s3://bucket/key, got %q", uri)
		}
		return SchemeS3, bucket, key, nil
	default:
		return "", "", "", fmt.Errorf("source: unsupported scheme %q", scheme)
	}
}
