package usecase_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/DevTable/BitBucket-api/pkg/domain/model"
)

// MockBitbucketClient serves a fixed remote tree and records calls
type MockBitbucketClient struct {
	mu sync.Mutex

	trees    map[string]*model.RemoteTreeNode // keyed by directory, "" is the root
	treeErrs map[string]error
	files    map[string]string
	fileErrs map[string]error

	treeCalls  []string
	fetchCalls []string

	getRepositoryFunc    func(ctx context.Context, repoSlug string) (*model.Repository, error)
	createRepositoryFunc func(ctx context.Context, req *model.CreateRepository) (*model.Repository, error)
	updateRepositoryFunc func(ctx context.Context, repoSlug string, fields map[string]string) (*model.Repository, error)
	deleteRepositoryFunc func(ctx context.Context, repoSlug string) error
	listFunc             func(ctx context.Context, username string, authenticated bool) ([]*model.Repository, error)
}

func (m *MockBitbucketClient) GetTree(ctx context.Context, repoSlug, dir string) (*model.RemoteTreeNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.treeCalls = append(m.treeCalls, dir)
	if err, ok := m.treeErrs[dir]; ok {
		return nil, err
	}
	node, ok := m.trees[dir]
	if !ok {
		return nil, errors.New("no such directory: " + dir)
	}
	return node, nil
}

func (m *MockBitbucketClient) FetchRaw(ctx context.Context, repoSlug, filePath string, dst io.Writer) error {
	m.mu.Lock()
	m.fetchCalls = append(m.fetchCalls, filePath)
	err, failed := m.fileErrs[filePath]
	content, ok := m.files[filePath]
	m.mu.Unlock()

	if failed {
		return err
	}
	if !ok {
		return &model.DownloadError{Kind: model.DownloadNotFound, Status: 404, URL: filePath}
	}
	_, err = io.Copy(dst, strings.NewReader(content))
	return err
}

func (m *MockBitbucketClient) GetRepository(ctx context.Context, repoSlug string) (*model.Repository, error) {
	if m.getRepositoryFunc != nil {
		return m.getRepositoryFunc(ctx, repoSlug)
	}
	return nil, errors.New("mock not configured")
}

func (m *MockBitbucketClient) CreateRepository(ctx context.Context, req *model.CreateRepository) (*model.Repository, error) {
	if m.createRepositoryFunc != nil {
		return m.createRepositoryFunc(ctx, req)
	}
	return nil, errors.New("mock not configured")
}

func (m *MockBitbucketClient) UpdateRepository(ctx context.Context, repoSlug string, fields map[string]string) (*model.Repository, error) {
	if m.updateRepositoryFunc != nil {
		return m.updateRepositoryFunc(ctx, repoSlug, fields)
	}
	return nil, errors.New("mock not configured")
}

func (m *MockBitbucketClient) DeleteRepository(ctx context.Context, repoSlug string) error {
	if m.deleteRepositoryFunc != nil {
		return m.deleteRepositoryFunc(ctx, repoSlug)
	}
	return errors.New("mock not configured")
}

func (m *MockBitbucketClient) ListRepositories(ctx context.Context, username string, authenticated bool) ([]*model.Repository, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, username, authenticated)
	}
	return nil, errors.New("mock not configured")
}

// MockArchiveStore keeps uploaded objects in memory
type MockArchiveStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *MockArchiveStore) Put(ctx context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[key] = data
	return nil
}
