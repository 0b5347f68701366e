package feed

import (
	"net/http"

	"feedproxy/internal/domain/entity"
	"feedproxy/internal/handler/http/respond"
	"feedproxy/internal/usecase/feed"
)

// GetFeedHandler implements get_feed: it resolves a personalized, rewritten
// RSS document for a user and upstream feed URL.
//
// @Summary      Fetch a personalized feed
// @Tags         feed
// @Produce      application/xml
// @Param        user_id   path string true "opaque client-chosen user id"
// @Param        feed_url  path string true "upstream feed URL"
// @Success      200 {string} string "RSS 2.0 document"
// @Failure      403 {object} map[string]string "blocked SSRF target"
// @Failure      422 {object} map[string]string "malformed feed URL"
// @Failure      502 {object} map[string]string "upstream fetch failed"
// @Failure      504 {object} map[string]string "refresh timed out"
// @Router       /v1/feed/{user_id}/{feed_url} [get]
type GetFeedHandler struct {
	Service *feed.Service
}

func (h GetFeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	feedURL := r.PathValue("feed_url")
	if r.URL.RawQuery != "" {
		feedURL += "?" + r.URL.RawQuery
	}

	doc, err := h.Service.GetFeed(r.Context(), userID, feedURL)
	if err != nil {
		status := statusForKind(entity.KindOf(err))
		respond.SafeErrorV2(w, status, respond.NewAppError(status, errorMessage(err), err))
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// statusForKind maps a domain error Kind onto the HTTP status contract
// get_feed and its siblings are specified against.
func statusForKind(kind entity.Kind) int {
	switch kind {
	case entity.KindSSRF:
		return http.StatusForbidden
	case entity.KindValidation:
		return http.StatusUnprocessableEntity
	case entity.KindUpstream:
		return http.StatusBadGateway
	case entity.KindTimeout:
		return http.StatusGatewayTimeout
	case entity.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	switch entity.KindOf(err) {
	case entity.KindSSRF:
		return "requested url is not allowed"
	case entity.KindValidation:
		return "invalid feed url"
	case entity.KindUpstream:
		return "upstream feed fetch failed"
	case entity.KindTimeout:
		return "feed refresh timed out"
	case entity.KindNotFound:
		return "not found"
	default:
		return "internal server error"
	}
}
