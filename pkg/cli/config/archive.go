package config

import (
	"github.com/DevTable/BitBucket-api/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Archive holds archive builder configuration
type Archive struct {
	TempDir     string
	MaxDepth    int64
	Concurrency int64
	Lenient     bool
	KeepPartial bool
}

// Flags returns CLI flags for archive configuration
func (c *Archive) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "temp-dir",
			Usage:       "Directory for temporary and output files",
			Destination: &c.TempDir,
			Sources:     cli.EnvVars("BBREPO_TEMP_DIR"),
		},
		&cli.Int64Flag{
			Name:        "max-depth",
			Usage:       "Maximum directory nesting to descend into",
			Value:       usecase.DefaultMaxDepth,
			Destination: &c.MaxDepth,
			Sources:     cli.EnvVars("BBREPO_MAX_DEPTH"),
		},
		&cli.Int64Flag{
			Name:        "concurrency",
			Usage:       "Files of one directory downloaded in parallel",
			Value:       1,
			Destination: &c.Concurrency,
			Sources:     cli.EnvVars("BBREPO_CONCURRENCY"),
		},
		&cli.BoolFlag{
			Name:        "lenient",
			Usage:       "Skip directories whose listing fails instead of aborting",
			Destination: &c.Lenient,
			Sources:     cli.EnvVars("BBREPO_LENIENT"),
		},
		&cli.BoolFlag{
			Name:        "keep-partial",
			Usage:       "Keep the incomplete archive on disk when the build fails",
			Destination: &c.KeepPartial,
			Sources:     cli.EnvVars("BBREPO_KEEP_PARTIAL"),
		},
	}
}

// Options converts the configuration into archive use case options
func (c *Archive) Options() []usecase.ArchiveOption {
	return []usecase.ArchiveOption{
		usecase.WithTempDir(c.TempDir),
		usecase.WithMaxDepth(int(c.MaxDepth)),
		usecase.WithConcurrency(int(c.Concurrency)),
		usecase.WithLenient(c.Lenient),
		usecase.WithKeepPartial(c.KeepPartial),
	}
}
