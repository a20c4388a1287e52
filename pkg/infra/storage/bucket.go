package storage

import (
	"context"
	"io"
	"path"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"gocloud.dev/blob"

	// Supported bucket URL schemes
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// Bucket stores finished archives in a blob bucket
type Bucket struct {
	bucket *blob.Bucket
	prefix string
}

// Open opens the bucket addressed by bucketURL (file://, gs://, s3://, mem://).
// Every key is stored below prefix.
func Open(ctx context.Context, bucketURL, prefix string) (*Bucket, error) {
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open bucket", goerr.V("url", bucketURL))
	}
	return &Bucket{bucket: b, prefix: prefix}, nil
}

// New wraps an already opened bucket
func New(b *blob.Bucket, prefix string) *Bucket {
	return &Bucket{bucket: b, prefix: prefix}
}

// Put uploads r under key
func (b *Bucket) Put(ctx context.Context, key string, r io.Reader) error {
	fullKey := path.Join(b.prefix, key)

	// Cancelling wctx before Close aborts the write instead of committing it
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := b.bucket.NewWriter(wctx, fullKey, &blob.WriterOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		return goerr.Wrap(err, "failed to create object writer", goerr.V("key", fullKey))
	}

	n, err := io.Copy(w, r)
	if err != nil {
		cancel()
		_ = w.Close()
		return goerr.Wrap(err, "failed to upload archive", goerr.V("key", fullKey))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize upload", goerr.V("key", fullKey))
	}

	ctxlog.From(ctx).Info("Uploaded archive", "key", fullKey, "bytes", n)
	return nil
}

// Close releases the bucket
func (b *Bucket) Close() error {
	return b.bucket.Close()
}
