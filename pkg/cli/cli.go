package cli

import (
	"context"
	"log/slog"

	"github.com/DevTable/BitBucket-api/pkg/cli/config"
	"github.com/DevTable/BitBucket-api/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"
)

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	var (
		loggerCfg    config.Logger
		sentryCfg    config.Sentry
		bitbucketCfg config.Bitbucket
		logger       *slog.Logger
	)

	var flags []cli.Flag
	flags = append(flags, loggerCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)
	flags = append(flags, bitbucketCfg.Flags()...)

	app := &cli.Command{
		Name:    "bbrepo",
		Usage:   "Bitbucket repository client and archiver",
		Version: types.Version,
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			var err error
			logger, err = loggerCfg.Configure()
			if err != nil {
				return nil, err
			}
			if err := sentryCfg.Configure(); err != nil {
				return nil, err
			}

			slog.SetDefault(logger)
			ctx = ctxlog.With(ctx, logger)
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdArchive(&bitbucketCfg),
			cmdRepo(&bitbucketCfg),
			cmdServe(&bitbucketCfg),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("CLI execution failed", slog.Any("error", err))
		sentryCfg.Report(err)
		return err
	}

	return nil
}
