package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/opencrm/rowshare/internal/entities"
	"github.com/opencrm/rowshare/internal/services/sharing"
)

type stubRuleSource struct {
	rules []*entities.SharingRule
}

func (s *stubRuleSource) ListActive(ctx context.Context, tenantID string, objectType entities.ObjectType) ([]*entities.SharingRule, error) {
	out := make([]*entities.SharingRule, 0)
	for _, r := range s.rules {
		if r.TenantID == tenantID && r.ObjectType == objectType && r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

type stubShareSource struct{}

func (s *stubShareSource) ListShares(ctx context.Context, tenantID string, filter sharing.ShareFilter) ([]*entities.RecordShare, error) {
	return nil, nil
}

type stubRecordRepository struct {
	tenantID string
	records  []*entities.Record
}

func (s *stubRecordRepository) GetByID(ctx context.Context, tenantID string, objectType entities.ObjectType, id string) (*entities.Record, error) {
	if tenantID != s.tenantID {
		return nil, nil
	}
	for _, r := range s.records {
		if r.ID == id && r.ObjectType == objectType {
			return r, nil
		}
	}
	return nil, nil
}

func (s *stubRecordRepository) Collection(tenantID string, objectType entities.ObjectType) sharing.Collection {
	if tenantID != s.tenantID {
		return &sharing.MemoryCollection{}
	}
	scoped := make([]*entities.Record, 0)
	for _, r := range s.records {
		if r.ObjectType == objectType {
			scoped = append(scoped, r)
		}
	}
	return &sharing.MemoryCollection{Records: scoped}
}

func accessTestRouter() http.Handler {
	rules := &stubRuleSource{rules: []*entities.SharingRule{{
		ID:         "r1",
		TenantID:   "t1",
		Name:       "qualified leads",
		ObjectType: entities.ObjectTypeLead,
		Predicate: &entities.Predicate{
			Field:    "status",
			Operator: entities.OpEq,
			Value:    "qualified",
		},
		AccessLevel: entities.AccessReadOnly,
		IsActive:    true,
	}}}
	records := &stubRecordRepository{
		tenantID: "t1",
		records: []*entities.Record{
			{ID: "l1", ObjectType: entities.ObjectTypeLead, Fields: map[string]interface{}{"owner": "u1", "status": "new"}},
			{ID: "l2", ObjectType: entities.ObjectTypeLead, Fields: map[string]interface{}{"owner": "u1", "status": "qualified"}},
			{ID: "l3", ObjectType: entities.ObjectTypeLead, Fields: map[string]interface{}{"owner": "u2", "status": "new"}},
		},
	}
	enforcer := sharing.NewEnforcer(rules, &stubShareSource{})
	handler := NewAccessHandler(enforcer, records)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Use(RequestContext)
		handler.Routes(r)
	})
	return r
}

func doAccessRequest(t *testing.T, router http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(HeaderTenantID, "t1")
	req.Header.Set(HeaderUserID, user)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAccessHandler_Check(t *testing.T) {
	router := accessTestRouter()

	tests := []struct {
		name        string
		user        string
		body        string
		wantStatus  int
		wantAllowed bool
	}{
		{
			name:        "owner is allowed",
			user:        "u2",
			body:        `{"object_type":"lead","object_id":"l3"}`,
			wantStatus:  http.StatusOK,
			wantAllowed: true,
		},
		{
			name:        "rule match is allowed",
			user:        "u2",
			body:        `{"object_type":"lead","object_id":"l2"}`,
			wantStatus:  http.StatusOK,
			wantAllowed: true,
		},
		{
			name:        "denied without grant",
			user:        "u2",
			body:        `{"object_type":"lead","object_id":"l1"}`,
			wantStatus:  http.StatusOK,
			wantAllowed: false,
		},
		{
			name:        "write denied through read_only rule",
			user:        "u2",
			body:        `{"object_type":"lead","object_id":"l2","level":"write"}`,
			wantStatus:  http.StatusOK,
			wantAllowed: false,
		},
		{
			name:       "unknown object type rejected",
			user:       "u2",
			body:       `{"object_type":"invoice","object_id":"l1"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing record",
			user:       "u2",
			body:       `{"object_type":"lead","object_id":"nope"}`,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doAccessRequest(t, router, http.MethodPost, "/v1/check", tt.user, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp struct {
				Allowed bool `json:"allowed"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Allowed != tt.wantAllowed {
				t.Errorf("allowed = %v, want %v", resp.Allowed, tt.wantAllowed)
			}
		})
	}
}

func TestAccessHandler_ListAccessible(t *testing.T) {
	router := accessTestRouter()

	rec := doAccessRequest(t, router, http.MethodGet, "/v1/objects/lead", "u2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var records []*entities.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	if len(ids) != 2 || ids[0] != "l2" || ids[1] != "l3" {
		t.Errorf("accessible IDs = %v, want [l2 l3]", ids)
	}
}

func TestAccessHandler_ListAccessibleWriteLevel(t *testing.T) {
	router := accessTestRouter()

	// The only rule is read_only, so write access reduces to ownership.
	rec := doAccessRequest(t, router, http.MethodGet, "/v1/objects/lead?level=write", "u2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var records []*entities.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(records) != 1 || records[0].ID != "l3" {
		t.Errorf("got %d records, want exactly the owned l3", len(records))
	}
}

func TestAccessHandler_UnknownObjectTypeInPath(t *testing.T) {
	router := accessTestRouter()

	rec := doAccessRequest(t, router, http.MethodGet, "/v1/objects/invoice", "u2", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an unknown object type", rec.Code)
	}
}
