package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/opencrm/rowshare/internal/entities"
	"github.com/opencrm/rowshare/internal/repositories"
	"github.com/opencrm/rowshare/internal/services/sharing"
	"github.com/opencrm/rowshare/internal/tenant"
)

// AccessHandler serves the enforcement endpoints: a single-record access
// check and a listing of the records the caller may access. Denial is a
// normal response here (allowed=false, or a shorter list), never an error
// status; only malformed requests and configuration faults produce errors.
type AccessHandler struct {
	enforcer *sharing.Enforcer
	records  repositories.RecordRepository
}

// NewAccessHandler creates a new AccessHandler
func NewAccessHandler(enforcer *sharing.Enforcer, records repositories.RecordRepository) *AccessHandler {
	return &AccessHandler{enforcer: enforcer, records: records}
}

// Routes mounts the access endpoints on the router
func (h *AccessHandler) Routes(r chi.Router) {
	r.Post("/check", h.check)
	r.Get("/objects/{objectType}", h.listAccessible)
}

type checkRequest struct {
	ObjectType entities.ObjectType `json:"object_type"`
	ObjectID   string              `json:"object_id"`
	Level      sharing.Level       `json:"level,omitempty"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

func (h *AccessHandler) check(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "missing "+HeaderUserID+" header")
		return
	}
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "missing "+HeaderTenantID+" header")
		return
	}
	var req checkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.ObjectType.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.records.GetByID(r.Context(), tenantID, req.ObjectType, req.ObjectID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if record == nil {
		respondError(w, http.StatusNotFound, "record not found")
		return
	}

	allowed, err := h.enforcer.CanAccess(r.Context(), &sharing.CheckRequest{
		User:       user,
		Record:     record,
		ObjectType: req.ObjectType,
		Level:      req.Level,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, checkResponse{Allowed: allowed})
}

func (h *AccessHandler) listAccessible(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "missing "+HeaderUserID+" header")
		return
	}
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "missing "+HeaderTenantID+" header")
		return
	}
	objectType := entities.ObjectType(chi.URLParam(r, "objectType"))
	if err := objectType.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	level := sharing.Level(r.URL.Query().Get("level"))

	records, err := h.enforcer.FilterAccessible(r.Context(),
		h.records.Collection(tenantID, objectType),
		&sharing.FilterRequest{
			User:       user,
			ObjectType: objectType,
			Level:      level,
		})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}
