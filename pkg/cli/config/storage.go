package config

import (
	"context"

	"github.com/DevTable/BitBucket-api/pkg/infra/storage"
	"github.com/urfave/cli/v3"
)

// Storage holds archive store configuration
type Storage struct {
	BucketURL string
	Prefix    string
}

// Flags returns CLI flags for storage configuration
func (c *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket-url",
			Usage:       "Blob bucket receiving archives (file://, gs://, s3://, mem://)",
			Destination: &c.BucketURL,
			Sources:     cli.EnvVars("BBREPO_BUCKET_URL"),
		},
		&cli.StringFlag{
			Name:        "bucket-prefix",
			Usage:       "Key prefix of uploaded archives",
			Value:       "archives",
			Destination: &c.Prefix,
			Sources:     cli.EnvVars("BBREPO_BUCKET_PREFIX"),
		},
	}
}

// Enabled reports whether a bucket is configured
func (c *Storage) Enabled() bool {
	return c.BucketURL != ""
}

// Open opens the configured bucket. Callers check Enabled first.
func (c *Storage) Open(ctx context.Context) (*storage.Bucket, error) {
	return storage.Open(ctx, c.BucketURL, c.Prefix)
}
