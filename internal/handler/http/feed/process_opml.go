package feed

import (
	"net/http"

	"feedproxy/internal/handler/http/respond"
	"feedproxy/internal/usecase/feed"
	"feedproxy/internal/usecase/opml"
)

// ProcessOPMLHandler implements process_opml: it accepts a multipart OPML
// upload and returns a copy with every rss outline's xmlUrl rewritten to
// point at this proxy's get_feed endpoint. A user id may be supplied as a
// query parameter; if absent (or unknown) a new user is registered.
//
// @Summary      Rewrite an OPML subscription list to route through this proxy
// @Tags         signup
// @Accept       multipart/form-data
// @Produce      application/xml
// @Param        user_id query string false "existing user id; a new one is created if omitted"
// @Param        opml formData file true "OPML file"
// @Success      200 {string} string "rewritten OPML document"
// @Failure      400 {object} map[string]string "missing or invalid upload"
// @Router       /v1/signup/process_opml [post]
type ProcessOPMLHandler struct {
	Service *feed.Service
	OPML    *opml.Service
}

func (h ProcessOPMLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, opml.MaxUploadSize+1<<10)
	if err := r.ParseMultipartForm(opml.MaxUploadSize); err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}

	file, _, err := r.FormFile("opml")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID, err = h.Service.RegisterUser(r.Context())
		if err != nil {
			respond.SafeErrorV2(w, http.StatusInternalServerError, err)
			return
		}
	} else if err := h.Service.EnsureUser(r.Context(), userID); err != nil {
		respond.SafeErrorV2(w, http.StatusInternalServerError, err)
		return
	}

	rewritten, err := h.OPML.RewriteUpload(file, userID)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rewritten)
}
