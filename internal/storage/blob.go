package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	// Drivers for the bucket URL schemes we accept.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

// BlobClient fetches objects through a gocloud.dev bucket. The bucket URL
// picks the backend (gs://, s3://, file://), so GCS and S3 stay
// substitutable behind the same Client contract.
type BlobClient struct {
	bucket *blob.Bucket
}

// NewBlobClient opens the bucket at the given URL.
func NewBlobClient(ctx context.Context, bucketURL string) (*BlobClient, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return &BlobClient{bucket: bucket}, nil
}

// NewBlobClientFromBucket wraps an already-open bucket. Used by tests with
// mem:// buckets.
func NewBlobClientFromBucket(bucket *blob.Bucket) *BlobClient {
	return &BlobClient{bucket: bucket}
}

func (c *BlobClient) Fetch(ctx context.Context, key, localPath string) error {
	r, err := c.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("open object %s: %w", key, err)
	}
	defer r.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("download %s: %w", key, err)
	}

	return f.Close()
}

func (c *BlobClient) Ping(ctx context.Context) error {
	accessible, err := c.bucket.IsAccessible(ctx)
	if err != nil {
		return fmt.Errorf("bucket not accessible: %w", err)
	}
	if !accessible {
		return fmt.Errorf("bucket not accessible")
	}
	return nil
}

func (c *BlobClient) Close() error {
	return c.bucket.Close()
}
