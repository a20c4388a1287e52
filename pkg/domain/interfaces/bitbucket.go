package interfaces

import (
	"context"
	"io"

	"github.com/DevTable/BitBucket-api/pkg/domain/model"
)

// BitbucketClient defines operations for interacting with the Bitbucket API
type BitbucketClient interface {
	// GetTree lists the immediate files and subdirectories of dir
	GetTree(ctx context.Context, repoSlug, dir string) (*model.RemoteTreeNode, error)

	// FetchRaw streams the raw content of a file into dst
	FetchRaw(ctx context.Context, repoSlug, filePath string, dst io.Writer) error

	GetRepository(ctx context.Context, repoSlug string) (*model.Repository, error)
	CreateRepository(ctx context.Context, req *model.CreateRepository) (*model.Repository, error)
	UpdateRepository(ctx context.Context, repoSlug string, fields map[string]string) (*model.Repository, error)
	DeleteRepository(ctx context.Context, repoSlug string) error

	// ListRepositories returns repositories of username. When authenticated
	// is false the request carries no credentials and only public
	// repositories are returned.
	ListRepositories(ctx context.Context, username string, authenticated bool) ([]*model.Repository, error)
}

// ArchiveStore persists finished archives
type ArchiveStore interface {
	Put(ctx context.Context, key string, r io.Reader) error
}
