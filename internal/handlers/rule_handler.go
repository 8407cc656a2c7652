package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/opencrm/rowshare/internal/entities"
	"github.com/opencrm/rowshare/internal/services"
)

// RuleHandler serves the sharing rule administration endpoints
type RuleHandler struct {
	rules *services.RuleService
}

// NewRuleHandler creates a new RuleHandler
func NewRuleHandler(rules *services.RuleService) *RuleHandler {
	return &RuleHandler{rules: rules}
}

// Routes mounts the rule endpoints on the router
func (h *RuleHandler) Routes(r chi.Router) {
	r.Post("/rules", h.create)
	r.Get("/rules", h.list)
	r.Get("/rules/{ruleID}", h.get)
	r.Put("/rules/{ruleID}", h.update)
	r.Post("/rules/{ruleID}/activate", h.setActive(true))
	r.Post("/rules/{ruleID}/deactivate", h.setActive(false))
	r.Delete("/rules/{ruleID}", h.delete)
}

type ruleRequest struct {
	Name        string               `json:"name"`
	ObjectType  entities.ObjectType  `json:"object_type"`
	Predicate   *entities.Predicate  `json:"predicate"`
	AccessLevel entities.AccessLevel `json:"access_level"`
	IsActive    *bool                `json:"is_active,omitempty"`
}

func (h *RuleHandler) create(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	rule, err := h.rules.CreateRule(r.Context(), &services.CreateRuleInput{
		Name:        req.Name,
		ObjectType:  req.ObjectType,
		Predicate:   req.Predicate,
		AccessLevel: req.AccessLevel,
		IsActive:    active,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rule)
}

func (h *RuleHandler) list(w http.ResponseWriter, r *http.Request) {
	objectType := entities.ObjectType(r.URL.Query().Get("object_type"))
	if err := objectType.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rules, err := h.rules.ListRules(r.Context(), objectType)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rules)
}

func (h *RuleHandler) get(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.GetRule(r.Context(), chi.URLParam(r, "ruleID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if rule == nil {
		respondError(w, http.StatusNotFound, "rule not found")
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (h *RuleHandler) update(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	rule, err := h.rules.UpdateRule(r.Context(), chi.URLParam(r, "ruleID"), &services.UpdateRuleInput{
		Name:        req.Name,
		Predicate:   req.Predicate,
		AccessLevel: req.AccessLevel,
		IsActive:    active,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if rule == nil {
		respondError(w, http.StatusNotFound, "rule not found")
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (h *RuleHandler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rule, err := h.rules.SetRuleActive(r.Context(), chi.URLParam(r, "ruleID"), active)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		if rule == nil {
			respondError(w, http.StatusNotFound, "rule not found")
			return
		}
		respondJSON(w, http.StatusOK, rule)
	}
}

func (h *RuleHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.DeleteRule(r.Context(), chi.URLParam(r, "ruleID")); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
