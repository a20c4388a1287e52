package usecase

import (
	"context"

	"github.com/DevTable/BitBucket-api/pkg/domain/interfaces"
	"github.com/DevTable/BitBucket-api/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

type repositoryUseCase struct {
	client interfaces.BitbucketClient
}

// NewRepository creates a new instance of RepositoryUseCase
func NewRepository(client interfaces.BitbucketClient) interfaces.RepositoryUseCase {
	return &repositoryUseCase{
		client: client,
	}
}

func (uc *repositoryUseCase) Get(ctx context.Context, repoSlug string) (*model.Repository, error) {
	repo, err := uc.client.GetRepository(ctx, repoSlug)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get repository", goerr.V("repo_slug", repoSlug))
	}
	return repo, nil
}

func (uc *repositoryUseCase) Create(ctx context.Context, req *model.CreateRepository) (*model.Repository, error) {
	if req.Name == "" {
		return nil, goerr.New("repository name is required")
	}

	repo, err := uc.client.CreateRepository(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository", goerr.V("name", req.Name))
	}

	ctxlog.From(ctx).Info("Created repository", "name", req.Name, "slug", repo.Slug, "private", req.Private)
	return repo, nil
}

func (uc *repositoryUseCase) Update(ctx context.Context, repoSlug string, fields map[string]string) (*model.Repository, error) {
	repo, err := uc.client.UpdateRepository(ctx, repoSlug, fields)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update repository", goerr.V("repo_slug", repoSlug))
	}
	return repo, nil
}

// Delete removes a repository. There is no confirmation and no undo.
func (uc *repositoryUseCase) Delete(ctx context.Context, repoSlug string) error {
	if err := uc.client.DeleteRepository(ctx, repoSlug); err != nil {
		return goerr.Wrap(err, "failed to delete repository", goerr.V("repo_slug", repoSlug))
	}

	ctxlog.From(ctx).Warn("Deleted repository", "repo_slug", repoSlug)
	return nil
}

// All returns the repositories of the authenticated user
func (uc *repositoryUseCase) All(ctx context.Context) ([]*model.Repository, error) {
	repos, err := uc.client.ListRepositories(ctx, "", true)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list own repositories")
	}
	return repos, nil
}

// Public returns the public repositories of username. An empty username
// means the configured user.
func (uc *repositoryUseCase) Public(ctx context.Context, username string) ([]*model.Repository, error) {
	repos, err := uc.client.ListRepositories(ctx, username, false)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list public repositories", goerr.V("username", username))
	}
	return repos, nil
}
