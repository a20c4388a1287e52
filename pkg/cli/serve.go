package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DevTable/BitBucket-api/pkg/cli/config"
	controller "github.com/DevTable/BitBucket-api/pkg/controller/http"
	"github.com/DevTable/BitBucket-api/pkg/usecase"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdServe(bitbucketCfg *config.Bitbucket) *cli.Command {
	var (
		serverCfg  config.Server
		archiveCfg config.Archive
		storageCfg config.Storage
	)

	flags := append(serverCfg.Flags(), archiveCfg.Flags()...)
	flags = append(flags, storageCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting bbrepo server",
				slog.String("addr", serverCfg.Addr),
				slog.Any("bitbucket", bitbucketCfg),
			)

			client, err := bitbucketCfg.NewClient()
			if err != nil {
				return err
			}

			archiveOpts := archiveCfg.Options()
			serverOpts := []controller.Option{
				controller.WithAddr(serverCfg.Addr),
			}
			if storageCfg.Enabled() {
				store, err := storageCfg.Open(ctx)
				if err != nil {
					return err
				}
				defer func() {
					if err := store.Close(); err != nil {
						logger.Warn("Failed to close bucket", "error", err)
					}
				}()
				archiveOpts = append(archiveOpts, usecase.WithStore(store))
				serverOpts = append(serverOpts, controller.WithArchiveJobs())
			}

			server, err := controller.NewServer(
				ctx,
				usecase.NewArchive(client, archiveOpts...),
				usecase.NewRepository(client),
				serverOpts...,
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
