package handler

import (
	"net/http"
)

func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	account := actor(r)
	h.successResponse(w, r, "Fetched account information", map[string]any{
		"account": account,
		"role":    account.Role(),
	})
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"old_password" validate:"required"`
		NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.sessions.ChangePassword(r.Context(), actor(r), req.OldPassword, req.NewPassword); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "Password updated successfully", nil)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logInternalServerError(r, err)
		h.errorResponse(w, r, http.StatusServiceUnavailable, "unavailable")
		return
	}
	h.successResponse(w, r, "ok", nil)
}
