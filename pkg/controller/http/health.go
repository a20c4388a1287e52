package http

import (
	"net/http"

	"github.com/DevTable/BitBucket-api/pkg/domain/model"
	"github.com/DevTable/BitBucket-api/pkg/domain/types"
)

// handleHealth handles health check requests
func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, &model.HealthStatus{
		Status:  "healthy",
		Service: "bbrepo",
		Version: types.Version,
	})
}
