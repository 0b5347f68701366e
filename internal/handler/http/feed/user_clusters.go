package feed

import (
	"errors"
	"net/http"

	"feedproxy/internal/handler/http/respond"
	"feedproxy/internal/usecase/feed"
)

// UserClustersHandler implements get_user_clusters: it groups a user's read
// articles by their nearest learned cluster center.
//
// @Summary      Get a user's read articles grouped by cluster
// @Tags         user
// @Produce      json
// @Param        user_id path string true "opaque client-chosen user id"
// @Success      200 {object} map[string][]feed.ClusteredArticle
// @Failure      404 {object} map[string]string "unknown user"
// @Failure      503 {object} map[string]string "clusters not ready yet"
// @Router       /v1/user/{user_id}/clusters [get]
type UserClustersHandler struct {
	Service *feed.Service
}

func (h UserClustersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	clusters, err := h.Service.GetUserClusters(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, feed.ErrUserNotFound):
			respond.Error(w, http.StatusNotFound, err)
		case errors.Is(err, feed.ErrClustersNotReady):
			respond.Error(w, http.StatusServiceUnavailable, err)
		default:
			respond.SafeErrorV2(w, http.StatusInternalServerError, err)
		}
		return
	}
	respond.JSON(w, http.StatusOK, clusters)
}
