package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"
)

func TestBlobClientFetch(t *testing.T) {
	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	require.NoError(t, err)
	defer bucket.Close()

	require.NoError(t, bucket.WriteAll(ctx, "camA/x1.mp4", []byte("payload"), nil))

	client := NewBlobClientFromBucket(bucket)

	dst := filepath.Join(t.TempDir(), "x1.mp4")
	require.NoError(t, client.Fetch(ctx, "camA/x1.mp4", dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestBlobClientFetchMissingObject(t *testing.T) {
	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	require.NoError(t, err)
	defer bucket.Close()

	client := NewBlobClientFromBucket(bucket)

	err = client.Fetch(ctx, "camA/missing.mp4", filepath.Join(t.TempDir(), "out"))
	assert.ErrorIs(t, err, ErrNotFound)
}
