package cli

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/DevTable/BitBucket-api/pkg/cli/config"
	"github.com/DevTable/BitBucket-api/pkg/domain/interfaces"
	"github.com/DevTable/BitBucket-api/pkg/domain/model"
	"github.com/DevTable/BitBucket-api/pkg/usecase"
	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdRepo(bitbucketCfg *config.Bitbucket) *cli.Command {
	// repoAction builds the use case for each subcommand
	repoAction := func(fn func(ctx context.Context, c *cli.Command, uc interfaces.RepositoryUseCase) error) cli.ActionFunc {
		return func(ctx context.Context, c *cli.Command) error {
			client, err := bitbucketCfg.NewClient()
			if err != nil {
				return err
			}
			return fn(ctx, c, usecase.NewRepository(client))
		}
	}

	var (
		scm       string
		public    bool
		createSet []string
		updateSet []string
	)

	return &cli.Command{
		Name:  "repo",
		Usage: "Manage repositories",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show a repository",
				ArgsUsage: "[repo-slug]",
				Action: repoAction(func(ctx context.Context, c *cli.Command, uc interfaces.RepositoryUseCase) error {
					repo, err := uc.Get(ctx, c.Args().First())
					if err != nil {
						return err
					}
					return printJSON(c.Root().Writer, repo)
				}),
			},
			{
				Name:      "create",
				Usage:     "Create a repository",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "scm",
						Usage:       "Version control system (git or hg)",
						Value:       "git",
						Destination: &scm,
					},
					&cli.BoolFlag{
						Name:        "public",
						Usage:       "Create a public repository",
						Destination: &public,
					},
					&cli.StringSliceFlag{
						Name:        "set",
						Usage:       "Extra form field as key=value",
						Destination: &createSet,
					},
				},
				Action: repoAction(func(ctx context.Context, c *cli.Command, uc interfaces.RepositoryUseCase) error {
					extra, err := parseFields(createSet)
					if err != nil {
						return err
					}
					repo, err := uc.Create(ctx, &model.CreateRepository{
						Name:    c.Args().First(),
						SCM:     scm,
						Private: !public,
						Extra:   extra,
					})
					if err != nil {
						return err
					}
					return printJSON(c.Root().Writer, repo)
				}),
			},
			{
				Name:      "update",
				Usage:     "Update repository fields",
				ArgsUsage: "[repo-slug]",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:        "set",
						Usage:       "Field to update as key=value",
						Required:    true,
						Destination: &updateSet,
					},
				},
				Action: repoAction(func(ctx context.Context, c *cli.Command, uc interfaces.RepositoryUseCase) error {
					fields, err := parseFields(updateSet)
					if err != nil {
						return err
					}
					repo, err := uc.Update(ctx, c.Args().First(), fields)
					if err != nil {
						return err
					}
					return printJSON(c.Root().Writer, repo)
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a repository",
				ArgsUsage: "[repo-slug]",
				Action: repoAction(func(ctx context.Context, c *cli.Command, uc interfaces.RepositoryUseCase) error {
					slug := c.Args().First()
					if err := uc.Delete(ctx, slug); err != nil {
						return err
					}
					if slug == "" {
						slug = bitbucketCfg.RepoSlug
					}
					color.New(color.FgRed).Fprintf(c.Root().Writer, "deleted %s\n", slug)
					return nil
				}),
			},
			{
				Name:  "list",
				Usage: "List repositories of the authenticated user",
				Action: repoAction(func(ctx context.Context, c *cli.Command, uc interfaces.RepositoryUseCase) error {
					repos, err := uc.All(ctx)
					if err != nil {
						return err
					}
					return printJSON(c.Root().Writer, repos)
				}),
			},
			{
				Name:      "public",
				Usage:     "List public repositories of a user",
				ArgsUsage: "[username]",
				Action: repoAction(func(ctx context.Context, c *cli.Command, uc interfaces.RepositoryUseCase) error {
					repos, err := uc.Public(ctx, c.Args().First())
					if err != nil {
						return err
					}
					return printJSON(c.Root().Writer, repos)
				}),
			},
		},
	}
}

// parseFields converts key=value pairs into form fields
func parseFields(pairs []string) (map[string]string, error) {
	fields := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, goerr.New("field must be key=value", goerr.V("field", pair))
		}
		fields[key] = value
	}
	return fields, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to write output")
	}
	return nil
}
