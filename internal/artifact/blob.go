package artifact

import (
	"context"
	"fmt"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// BlobStore implements Store using gocloud.dev/blob, supporting S3, GCS,
// Azure Blob Storage, local directories, and in-memory buckets
type BlobStore struct {
	bucket *blob.Bucket
	prefix string
}

var _ Store = (*BlobStore)(nil)

// NewBlobStore opens the bucket named by bucketURL. All keys are placed
// under prefix, which scopes one project's artifacts
func NewBlobStore(
	ctx context.Context, bucketURL, prefix string,
) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return &BlobStore{bucket: bucket, prefix: prefix}, nil
}

// NewBlobStoreFromBucket wraps an already-open bucket, used by tests
func NewBlobStoreFromBucket(bucket *blob.Bucket, prefix string) *BlobStore {
	return &BlobStore{bucket: bucket, prefix: prefix}
}

func (s *BlobStore) Read(ctx context.Context, path string) (string, error) {
	data, err := s.bucket.ReadAll(ctx, s.keyFor(path))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", err
	}
	return string(data), nil
}

func (s *BlobStore) Write(ctx context.Context, path, content string) error {
	return s.bucket.WriteAll(ctx, s.keyFor(path), []byte(content), nil)
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}

func (s *BlobStore) keyFor(path string) string {
	if s.prefix == "" {
		return path
	}
	return s.prefix + "/" + path
}
