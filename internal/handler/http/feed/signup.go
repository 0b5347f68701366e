package feed

import (
	"net/http"

	"feedproxy/internal/handler/http/respond"
	"feedproxy/internal/usecase/feed"
)

// RegisterUserHandler implements register_user: it mints a new opaque user
// id and returns it for the client to use on every subsequent request.
//
// @Summary      Register a new user
// @Tags         signup
// @Produce      json
// @Success      201 {object} map[string]string "user_id"
// @Router       /v1/signup/user [post]
type RegisterUserHandler struct {
	Service *feed.Service
}

func (h RegisterUserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.Service.RegisterUser(r.Context())
	if err != nil {
		respond.SafeErrorV2(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]string{"user_id": userID})
}
