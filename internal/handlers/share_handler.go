package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/opencrm/rowshare/internal/entities"
	"github.com/opencrm/rowshare/internal/services"
	"github.com/opencrm/rowshare/internal/services/sharing"
)

// ShareHandler serves the record share administration endpoints
type ShareHandler struct {
	shares *services.ShareService
}

// NewShareHandler creates a new ShareHandler
func NewShareHandler(shares *services.ShareService) *ShareHandler {
	return &ShareHandler{shares: shares}
}

// Routes mounts the share endpoints on the router
func (h *ShareHandler) Routes(r chi.Router) {
	r.Post("/shares", h.grant)
	r.Get("/shares", h.list)
	r.Delete("/shares", h.revoke)
}

type grantRequest struct {
	ObjectType    entities.ObjectType  `json:"object_type"`
	ObjectID      string               `json:"object_id"`
	GranteeUserID string               `json:"grantee_user_id"`
	AccessLevel   entities.AccessLevel `json:"access_level"`
	Reason        string               `json:"reason,omitempty"`
}

func (h *ShareHandler) grant(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "missing "+HeaderUserID+" header")
		return
	}
	var req grantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	share, err := h.shares.Grant(r.Context(), &services.GrantInput{
		GrantedBy:     user,
		ObjectType:    req.ObjectType,
		ObjectID:      req.ObjectID,
		GranteeUserID: req.GranteeUserID,
		AccessLevel:   req.AccessLevel,
		Reason:        req.Reason,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, share)
}

func (h *ShareHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	objectType := entities.ObjectType(q.Get("object_type"))
	if err := objectType.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	shares, err := h.shares.ListShares(r.Context(), sharing.ShareFilter{
		ObjectType:    objectType,
		ObjectID:      q.Get("object_id"),
		GranteeUserID: q.Get("grantee_user_id"),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, shares)
}

func (h *ShareHandler) revoke(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	objectType := entities.ObjectType(q.Get("object_type"))
	if err := objectType.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	objectID := q.Get("object_id")
	grantee := q.Get("grantee_user_id")
	if objectID == "" || grantee == "" {
		respondError(w, http.StatusBadRequest, "object_id and grantee_user_id are required")
		return
	}
	if err := h.shares.Revoke(r.Context(), objectType, objectID, grantee); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
