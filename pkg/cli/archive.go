package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/DevTable/BitBucket-api/pkg/cli/config"
	"github.com/DevTable/BitBucket-api/pkg/domain/model"
	"github.com/DevTable/BitBucket-api/pkg/usecase"
	"github.com/fatih/color"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdArchive(bitbucketCfg *config.Bitbucket) *cli.Command {
	var (
		archiveCfg config.Archive
		storageCfg config.Storage
		prefix     string
		output     string
		uploadKey  string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "prefix",
			Usage:       "Prefix prepended to every entry name",
			Destination: &prefix,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Move the finished archive to this path",
			Destination: &output,
		},
		&cli.StringFlag{
			Name:        "upload-key",
			Usage:       "Upload the finished archive to the bucket under this key",
			Destination: &uploadKey,
		},
	}
	flags = append(flags, archiveCfg.Flags()...)
	flags = append(flags, storageCfg.Flags()...)

	return &cli.Command{
		Name:      "archive",
		Aliases:   []string{"a"},
		Usage:     "Download a repository tree into a zip archive",
		ArgsUsage: "[repo-slug]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			client, err := bitbucketCfg.NewClient()
			if err != nil {
				return err
			}

			opts := archiveCfg.Options()
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
				opts = append(opts, usecase.WithStore(store))
			}
			archiveUC := usecase.NewArchive(client, opts...)

			result, err := archiveUC.Archive(ctx, &model.ArchiveRequest{
				RepoSlug: c.Args().First(),
				Prefix:   prefix,
			})
			if err != nil {
				var partial *model.PartialArchiveError
				if errors.As(err, &partial) {
					color.New(color.FgYellow).Fprintf(c.Root().Writer, "incomplete archive kept at %s\n", partial.Path)
				}
				return err
			}

			if uploadKey != "" {
				if err := archiveUC.Publish(ctx, result, uploadKey); err != nil {
					return err
				}
			}

			path := result.Path
			if output != "" {
				if err := moveFile(result.Path, output); err != nil {
					return err
				}
				path = output
			}

			if !result.Complete {
				logger.Warn("Archive is missing directories", slog.Any("skipped", result.Skipped))
				color.New(color.FgYellow).Fprintf(c.Root().Writer, "%s (incomplete, %d directories skipped)\n", path, len(result.Skipped))
				return nil
			}

			color.New(color.FgGreen).Fprintln(c.Root().Writer, path)
			return nil
		},
	}
}

// moveFile renames src to dst, copying when they are on different devices
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return goerr.Wrap(err, "failed to open archive", goerr.V("path", src))
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return goerr.Wrap(err, "failed to create output file", goerr.V("path", dst))
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return goerr.Wrap(err, "failed to copy archive", goerr.V("path", dst))
	}
	if err := out.Close(); err != nil {
		return goerr.Wrap(err, "failed to close output file", goerr.V("path", dst))
	}

	if err := os.Remove(src); err != nil {
		return goerr.Wrap(err, "failed to remove temporary archive", goerr.V("path", src))
	}
	return nil
}
