package http

import (
	"net/http"

	"github.com/DevTable/BitBucket-api/pkg/domain/interfaces"
	"github.com/go-chi/chi/v5"
)

type repositoryHandler struct {
	repositoryUC interfaces.RepositoryUseCase
}

func (h *repositoryHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	repo, err := h.repositoryUC.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, err, statusOf(err))
		return
	}
	writeJSON(w, r, http.StatusOK, repo)
}
