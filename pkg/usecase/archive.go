package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/DevTable/BitBucket-api/pkg/domain/interfaces"
	"github.com/DevTable/BitBucket-api/pkg/domain/model"
	"github.com/klauspost/compress/zip"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxDepth bounds directory nesting of an archived tree
const DefaultMaxDepth = 64

type archiveUseCase struct {
	client      interfaces.BitbucketClient
	store       interfaces.ArchiveStore
	fs          afero.Fs
	tempDir     string
	maxDepth    int
	concurrency int
	lenient     bool
	keepPartial bool
}

// ArchiveOption configures the archive use case
type ArchiveOption func(*archiveUseCase)

// WithFS sets the filesystem holding temporary and output files
func WithFS(fs afero.Fs) ArchiveOption {
	return func(uc *archiveUseCase) {
		uc.fs = fs
	}
}

// WithTempDir sets the directory for temporary and output files. Empty means
// the system default.
func WithTempDir(dir string) ArchiveOption {
	return func(uc *archiveUseCase) {
		uc.tempDir = dir
	}
}

// WithMaxDepth sets how deep below the root the walk may descend
func WithMaxDepth(depth int) ArchiveOption {
	return func(uc *archiveUseCase) {
		uc.maxDepth = depth
	}
}

// WithConcurrency sets how many files of one directory are downloaded at once
func WithConcurrency(n int) ArchiveOption {
	return func(uc *archiveUseCase) {
		uc.concurrency = n
	}
}

// WithLenient makes a failed directory listing skip that directory instead of
// failing the archive. Skipped directories are reported in the result.
func WithLenient(lenient bool) ArchiveOption {
	return func(uc *archiveUseCase) {
		uc.lenient = lenient
	}
}

// WithKeepPartial leaves the incomplete archive on disk when the build fails.
// Its path is reported through *model.PartialArchiveError.
func WithKeepPartial(keep bool) ArchiveOption {
	return func(uc *archiveUseCase) {
		uc.keepPartial = keep
	}
}

// WithStore sets the store used by Publish
func WithStore(store interfaces.ArchiveStore) ArchiveOption {
	return func(uc *archiveUseCase) {
		uc.store = store
	}
}

// NewArchive creates a new instance of ArchiveUseCase
func NewArchive(client interfaces.BitbucketClient, opts ...ArchiveOption) interfaces.ArchiveUseCase {
	uc := &archiveUseCase{
		client:      client,
		fs:          afero.NewOsFs(),
		maxDepth:    DefaultMaxDepth,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(uc)
	}
	if uc.concurrency < 1 {
		uc.concurrency = 1
	}
	return uc
}

// Archive walks the repository tree depth first and packs every file into a
// zip archive. On success the archive file is handed over to the caller.
func (uc *archiveUseCase) Archive(ctx context.Context, req *model.ArchiveRequest) (*model.ArchiveResult, error) {
	logger := ctxlog.From(ctx)

	if req.Format != "" && req.Format != model.ArchiveFormatZip {
		return nil, goerr.Wrap(model.ErrUnsupportedFormat, "cannot archive repository",
			goerr.V("format", req.Format),
		)
	}

	prefix := strings.TrimPrefix(req.Prefix, "/")

	out, err := afero.TempFile(uc.fs, uc.tempDir, "bbrepo-archive-*.zip")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create archive file")
	}

	logger.Info("Building archive",
		"repo_slug", req.RepoSlug,
		"prefix", prefix,
		"archive_path", out.Name(),
	)

	w := &archiveWalk{
		uc:       uc,
		repoSlug: req.RepoSlug,
		prefix:   prefix,
		zw:       zip.NewWriter(out),
		visited:  make(map[string]struct{}),
		result:   &model.ArchiveResult{Path: out.Name()},
	}

	err = w.walk(ctx, "", 0)
	if closeErr := w.zw.Close(); err == nil && closeErr != nil {
		err = goerr.Wrap(closeErr, "failed to finalize archive")
	}
	if err == nil {
		if syncErr := out.Sync(); syncErr != nil {
			err = goerr.Wrap(syncErr, "failed to flush archive")
		}
	}
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = goerr.Wrap(closeErr, "failed to close archive")
	}

	if err != nil {
		if uc.keepPartial {
			logger.Warn("Archive left incomplete", "archive_path", out.Name(), "error", err)
			return nil, &model.PartialArchiveError{Path: out.Name(), Err: err}
		}
		if rmErr := uc.fs.Remove(out.Name()); rmErr != nil {
			logger.Warn("Failed to remove incomplete archive", "archive_path", out.Name(), "error", rmErr)
		}
		return nil, goerr.Wrap(err, "failed to archive repository", goerr.V("repo_slug", req.RepoSlug))
	}

	result := w.result
	result.Complete = len(result.Skipped) == 0

	logger.Info("Archive built",
		"repo_slug", req.RepoSlug,
		"archive_path", result.Path,
		"entries", len(result.Entries),
		"directories", result.Directories,
		"size_bytes", result.Size,
		"complete", result.Complete,
	)

	return result, nil
}

// Publish uploads a finished archive to the archive store under key
func (uc *archiveUseCase) Publish(ctx context.Context, result *model.ArchiveResult, key string) error {
	if uc.store == nil {
		return goerr.Wrap(model.ErrStoreNotConfigured, "cannot publish archive")
	}

	f, err := uc.fs.Open(result.Path)
	if err != nil {
		return goerr.Wrap(err, "failed to open archive", goerr.V("archive_path", result.Path))
	}
	defer func() {
		_ = f.Close()
	}()

	if err := uc.store.Put(ctx, key, f); err != nil {
		return goerr.Wrap(err, "failed to publish archive", goerr.V("key", key))
	}
	return nil
}

// archiveWalk is the state of one Archive call. zw is shared by the file
// workers of a directory and only touched under mu.
type archiveWalk struct {
	uc       *archiveUseCase
	repoSlug string
	prefix   string

	mu      sync.Mutex
	zw      *zip.Writer
	result  *model.ArchiveResult
	visited map[string]struct{}
}

func (w *archiveWalk) walk(ctx context.Context, dir string, depth int) error {
	logger := ctxlog.From(ctx)
	dir = strings.Trim(dir, "/")

	if depth > w.uc.maxDepth {
		return goerr.Wrap(model.ErrTraversalLimit, "directory nesting too deep",
			goerr.V("dir", dir),
			goerr.V("max_depth", w.uc.maxDepth),
		)
	}
	if _, ok := w.visited[dir]; ok {
		return goerr.Wrap(model.ErrTraversalLimit, "directory listed twice", goerr.V("dir", dir))
	}
	w.visited[dir] = struct{}{}
	w.result.Directories++

	node, err := w.uc.client.GetTree(ctx, w.repoSlug, dir)
	if err != nil {
		if !w.uc.lenient {
			return goerr.Wrap(fmt.Errorf("%w: %w", model.ErrTreeListing, err), "walk aborted",
				goerr.V("dir", dir),
			)
		}
		logger.Warn("Skipping directory", "dir", dir, "error", err)
		w.result.Skipped = append(w.result.Skipped, model.SkippedDirectory{
			Path:   dir,
			Reason: err.Error(),
		})
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(w.uc.concurrency)
	for _, file := range node.Files {
		// Go blocks while the limit is reached, so a failure is seen here
		// before the next file is started
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			return w.addFile(egCtx, file)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for _, sub := range node.Directories {
		next := sub
		if dir != "" {
			next = dir + "/" + sub
		}
		if err := w.walk(ctx, next, depth+1); err != nil {
			return err
		}
	}

	return nil
}

// addFile downloads one file into a temporary file and copies it into the
// archive. The temporary file is removed on every path.
func (w *archiveWalk) addFile(ctx context.Context, file model.TreeFile) error {
	fs := w.uc.fs

	tmp, err := afero.TempFile(fs, w.uc.tempDir, "bbrepo-entry-*")
	if err != nil {
		return goerr.Wrap(err, "failed to create temporary file", goerr.V("path", file.Path))
	}
	defer func() {
		_ = tmp.Close()
		_ = fs.Remove(tmp.Name())
	}()

	if err := w.uc.client.FetchRaw(ctx, w.repoSlug, file.Path, tmp); err != nil {
		return goerr.Wrap(err, "failed to fetch file", goerr.V("path", file.Path))
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return goerr.Wrap(err, "failed to rewind temporary file", goerr.V("path", file.Path))
	}

	name := w.prefix + file.Path

	w.mu.Lock()
	defer w.mu.Unlock()

	entry, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return goerr.Wrap(err, "failed to create archive entry", goerr.V("entry", name))
	}

	n, err := io.Copy(entry, tmp)
	if err != nil {
		return goerr.Wrap(err, "failed to write archive entry", goerr.V("entry", name))
	}

	w.result.Entries = append(w.result.Entries, name)
	w.result.Size += n

	ctxlog.From(ctx).Debug("Added archive entry", "entry", name, "bytes", n)
	return nil
}
