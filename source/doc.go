// Package source opens trace files as sequential byte streams.
//
// A Source hands out an io.ReadCloser per trace name. The tokenizer only
// reads forward, so no implementation needs random access:
//
//   - [Local]: local files, read through the file system or memory mapped
//   - [S3]: Amazon S3 objects streamed with GetObject
//   - [Minio]: objects in MinIO and other S3-compatible stores
//
// Missing traces satisfy errors.Is(err, ErrNotFound).
//
// ParseURI splits the names accepted by the command line tool
// ("s3://bucket/key", "minio://key", plain paths) into scheme, bucket and key.
package source
