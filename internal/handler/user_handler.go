package handler

import (
	"context"
	"net/http"

	"byd90-backend/internal/middleware"
	"byd90-backend/internal/model"
)

type userService interface {
	GetByID(ctx context.Context, id int64) (model.User, error)
	UpdateProfile(ctx context.Context, id int64, update model.ProfileUpdate) (model.User, error)
	SetActive(ctx context.Context, actorID, id int64, active bool) (model.User, error)
}

type UserHandler struct {
	service userService
}

func NewUserHandler(service userService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	var payload model.ProfileUpdate
	if err := decodeJSON(w, r, &payload, true); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), user.ID, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, updated)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, user)
}

func (h *UserHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var payload model.UserStatusRequest
	if err := decodeJSON(w, r, &payload, true); err != nil {
		writeError(w, r, err)
		return
	}
	if payload.IsActive == nil {
		writeError(w, r, model.NewValidationError("is_active", "is_active is required"))
		return
	}

	user, err := h.service.SetActive(r.Context(), actor.ID, id, *payload.IsActive)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, user)
}
