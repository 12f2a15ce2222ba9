package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/renovo/backend/internal/models"
	"github.com/renovo/backend/internal/session"
)

type fakeStats struct {
	err error
}

func (f fakeStats) Admin(context.Context) (*models.AdminStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.AdminStats{Homeowners: 2, Contractors: 3, Projects: 4, ProjectsByStatus: map[string]int{"open": 4}}, nil
}

func (f fakeStats) Contractor(_ context.Context, uid uuid.UUID) (*models.ContractorStats, error) {
	return &models.ContractorStats{TotalBids: 5, CreditsSpent: 12, CreditBalance: 8}, f.err
}

func (f fakeStats) Homeowner(_ context.Context, uid uuid.UUID) (*models.HomeownerStats, error) {
	return &models.HomeownerStats{Projects: 1, OpenProjects: 1, BidsReceived: 2}, f.err
}

func call(h http.HandlerFunc, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/analytics", nil)
	if role != "" {
		req = req.WithContext(session.WithSession(req.Context(), &session.Session{UID: uuid.New(), Role: role}))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestRoleGating(t *testing.T) {
	h := NewHandler(fakeStats{}, nil)
	tests := []struct {
		name    string
		handler http.HandlerFunc
		role    string
		want    int
	}{
		{"admin ok", h.Admin, models.RoleAdmin, http.StatusOK},
		{"admin as contractor", h.Admin, models.RoleContractor, http.StatusForbidden},
		{"contractor ok", h.Contractor, models.RoleContractor, http.StatusOK},
		{"contractor as homeowner", h.Contractor, models.RoleHomeowner, http.StatusForbidden},
		{"homeowner ok", h.Homeowner, models.RoleHomeowner, http.StatusOK},
		{"anonymous", h.Homeowner, "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := call(tt.handler, tt.role); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestContractorBody(t *testing.T) {
	h := NewHandler(fakeStats{}, nil)
	rec := call(h.Contractor, models.RoleContractor)
	var got models.ContractorStats
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.TotalBids != 5 || got.CreditsSpent != 12 || got.CreditBalance != 8 {
		t.Errorf("stats = %+v", got)
	}
}

func TestStoreErrorIs500(t *testing.T) {
	h := NewHandler(fakeStats{err: errors.New("boom")}, nil)
	if rec := call(h.Admin, models.RoleAdmin); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}
