package interfaces

import (
	"context"

	"github.com/DevTable/BitBucket-api/pkg/domain/model"
)

// ArchiveUseCase builds zip archives of remote repositories
type ArchiveUseCase interface {
	// Archive walks the repository tree and returns the finished archive
	Archive(ctx context.Context, req *model.ArchiveRequest) (*model.ArchiveResult, error)

	// Publish uploads a finished archive to the archive store under key
	Publish(ctx context.Context, result *model.ArchiveResult, key string) error
}

// RepositoryUseCase defines repository CRUD operations
type RepositoryUseCase interface {
	Get(ctx context.Context, repoSlug string) (*model.Repository, error)
	Create(ctx context.Context, req *model.CreateRepository) (*model.Repository, error)
	Update(ctx context.Context, repoSlug string, fields map[string]string) (*model.Repository, error)
	Delete(ctx context.Context, repoSlug string) error
	All(ctx context.Context) ([]*model.Repository, error)
	Public(ctx context.Context, username string) ([]*model.Repository, error)
}
