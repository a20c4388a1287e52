package http

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/DevTable/BitBucket-api/pkg/domain/interfaces"
	"github.com/DevTable/BitBucket-api/pkg/domain/model"
	"github.com/DevTable/BitBucket-api/pkg/utils/async"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/afero"
)

type archiveHandler struct {
	archiveUC interfaces.ArchiveUseCase
	fs        afero.Fs
	jobs      bool
	runner    *async.Runner
}

func archiveRequest(r *http.Request) *model.ArchiveRequest {
	return &model.ArchiveRequest{
		RepoSlug: chi.URLParam(r, "slug"),
		Prefix:   r.URL.Query().Get("prefix"),
		Format:   r.URL.Query().Get("format"),
	}
}

// handleDownload builds the archive and streams it as the response body
func (h *archiveHandler) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)
	req := archiveRequest(r)

	result, err := h.archiveUC.Archive(ctx, req)
	if err != nil {
		h.discardPartial(ctx, err)
		writeError(w, r, err, statusOf(err))
		return
	}
	defer func() {
		if err := h.fs.Remove(result.Path); err != nil {
			logger.Warn("Failed to remove archive", "archive_path", result.Path, "error", err)
		}
	}()

	f, err := h.fs.Open(result.Path)
	if err != nil {
		writeError(w, r, goerr.Wrap(err, "failed to open archive"), http.StatusInternalServerError)
		return
	}
	defer func() {
		_ = f.Close()
	}()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": req.RepoSlug + ".zip",
	}))
	w.Header().Set("X-Archive-Complete", strconv.FormatBool(result.Complete))
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		logger.Warn("Failed to stream archive", "error", err)
	}
}

// handleJob accepts an archive build that runs in the background and ends in
// the archive store
func (h *archiveHandler) handleJob(w http.ResponseWriter, r *http.Request) {
	if !h.jobs {
		writeError(w, r, goerr.Wrap(model.ErrStoreNotConfigured, "archive jobs are disabled"), http.StatusServiceUnavailable)
		return
	}

	req := archiveRequest(r)
	if req.Format != "" && req.Format != model.ArchiveFormatZip {
		writeError(w, r, goerr.Wrap(model.ErrUnsupportedFormat, "invalid archive job", goerr.V("format", req.Format)), http.StatusBadRequest)
		return
	}

	job := &model.ArchiveJob{
		ID:       uuid.NewString(),
		RepoSlug: req.RepoSlug,
	}
	job.Key = job.RepoSlug + "/" + job.ID + ".zip"

	ctx := ctxlog.With(r.Context(), ctxlog.From(r.Context()).With("job_id", job.ID))
	h.runner.Dispatch(ctx, func(ctx context.Context) error {
		return h.runJob(ctx, req, job)
	})

	writeJSON(w, r, http.StatusAccepted, job)
}

func (h *archiveHandler) runJob(ctx context.Context, req *model.ArchiveRequest, job *model.ArchiveJob) error {
	logger := ctxlog.From(ctx)

	result, err := h.archiveUC.Archive(ctx, req)
	if err != nil {
		h.discardPartial(ctx, err)
		return goerr.Wrap(err, "archive job failed", goerr.V("job_id", job.ID))
	}
	defer func() {
		if err := h.fs.Remove(result.Path); err != nil {
			logger.Warn("Failed to remove archive", "archive_path", result.Path, "error", err)
		}
	}()

	if err := h.archiveUC.Publish(ctx, result, job.Key); err != nil {
		return goerr.Wrap(err, "archive job failed", goerr.V("job_id", job.ID))
	}

	logger.Info("Archive job finished", "key", job.Key, "complete", result.Complete)
	return nil
}

// discardPartial removes an incomplete archive the use case kept on disk.
// The server has no caller to hand it to.
func (h *archiveHandler) discardPartial(ctx context.Context, err error) {
	var partial *model.PartialArchiveError
	if !errors.As(err, &partial) {
		return
	}
	if rmErr := h.fs.Remove(partial.Path); rmErr != nil {
		ctxlog.From(ctx).Warn("Failed to remove incomplete archive", "archive_path", partial.Path, "error", rmErr)
	}
}
