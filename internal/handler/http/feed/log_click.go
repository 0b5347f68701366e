package feed

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"feedproxy/internal/handler/http/respond"
	"feedproxy/internal/usecase/feed"
)

// LogClickHandler implements log_click: it fires the click-logging job and
// immediately redirects to the original article link, so attribution never
// adds latency to the reader's click.
//
// @Summary      Log a click and redirect to the article
// @Tags         feed
// @Param        user_id    path string true "opaque client-chosen user id"
// @Param        article_id path int    true "article id"
// @Param        link_url   path string true "destination URL"
// @Success      307 {string} string "redirect to link_url"
// @Router       /v1/log/{user_id}/{article_id}/{link_url} [get]
type LogClickHandler struct {
	Service *feed.Service
}

func (h LogClickHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	articleID, err := strconv.ParseInt(r.PathValue("article_id"), 10, 64)
	if err != nil {
		respond.Error(w, http.StatusUnprocessableEntity, err)
		return
	}

	linkURL, err := url.PathUnescape(r.PathValue("link_url"))
	if err != nil {
		linkURL = r.PathValue("link_url")
	}
	if r.URL.RawQuery != "" {
		linkURL += "?" + r.URL.RawQuery
	}

	if err := h.Service.LogClick(r.Context(), userID, articleID, linkURL); err != nil {
		slog.Default().Error("log_click: enqueue failed", slog.Any("error", err))
	}
	http.Redirect(w, r, linkURL, http.StatusTemporaryRedirect)
}
