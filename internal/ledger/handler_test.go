package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/renovo/backend/internal/models"
	"github.com/renovo/backend/internal/session"
)

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/projects/{id}/unlock", h.Unlock)
	r.Get("/projects/{id}/private", h.PrivateDetails)
	r.Get("/credits", h.Credits)
	r.Post("/credits/purchase", h.Purchase)
	r.Post("/admin/refunds", h.Refund)
	r.Get("/admin/ledger/{uid}/reconcile", h.Reconcile)
	return r
}

func do(t *testing.T, router http.Handler, method, path, body string, actor *models.Actor) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if actor != nil {
		req = req.WithContext(session.WithSession(req.Context(), &session.Session{UID: actor.UID, Role: actor.Role}))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerUnlockStatusCodes(t *testing.T) {
	f := newFixture(t, 4)
	router := newTestRouter(NewHandler(f.svc, nil))
	contractor := &models.Actor{UID: f.contractor, Role: models.RoleContractor}
	cheap := f.addProject("5000_15000")
	pricey := f.addProject("50000_100000")

	rec := do(t, router, http.MethodPost, "/projects/"+cheap.String()+"/unlock", "", contractor)
	if rec.Code != http.StatusCreated {
		t.Fatalf("unlock status = %d, body %s", rec.Code, rec.Body.String())
	}
	var receipt Receipt
	if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if receipt.Balance != 1 {
		t.Errorf("balance = %d, want 1", receipt.Balance)
	}

	if rec := do(t, router, http.MethodPost, "/projects/"+cheap.String()+"/unlock", "", contractor); rec.Code != http.StatusConflict {
		t.Errorf("repeat unlock status = %d, want 409", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/projects/"+pricey.String()+"/unlock", "", contractor); rec.Code != http.StatusPaymentRequired {
		t.Errorf("insufficient status = %d, want 402", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/projects/"+uuid.NewString()+"/unlock", "", contractor); rec.Code != http.StatusNotFound {
		t.Errorf("missing project status = %d, want 404", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/projects/nope/unlock", "", contractor); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/projects/"+cheap.String()+"/unlock", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}
}

func TestHandlerPrivateDetailsEntitlement(t *testing.T) {
	f := newFixture(t, 10)
	router := newTestRouter(NewHandler(f.svc, nil))
	p := f.addProject("under_5000")
	contractor := &models.Actor{UID: f.contractor, Role: models.RoleContractor}

	if rec := do(t, router, http.MethodGet, "/projects/"+p.String()+"/private", "", contractor); rec.Code != http.StatusForbidden {
		t.Fatalf("locked status = %d, want 403", rec.Code)
	}
	if _, err := f.svc.Unlock(context.Background(), f.contractor, p); err != nil {
		t.Fatal(err)
	}
	rec := do(t, router, http.MethodGet, "/projects/"+p.String()+"/private", "", contractor)
	if rec.Code != http.StatusOK {
		t.Fatalf("unlocked status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "fullDescription") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandlerPurchaseAndCredits(t *testing.T) {
	f := newFixture(t, 0)
	router := newTestRouter(NewHandler(f.svc, nil))
	contractor := &models.Actor{UID: f.contractor, Role: models.RoleContractor}

	if rec := do(t, router, http.MethodPost, "/credits/purchase", `{"packageId":"starter"}`, contractor); rec.Code != http.StatusCreated {
		t.Fatalf("purchase status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, router, http.MethodPost, "/credits/purchase", `{"packageId":"gold"}`, contractor); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown package status = %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/credits/purchase", `{"packageId":`, contractor); rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d", rec.Code)
	}

	rec := do(t, router, http.MethodGet, "/credits", "", contractor)
	if rec.Code != http.StatusOK {
		t.Fatalf("credits status = %d", rec.Code)
	}
	var resp CreditsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Balance != 10 || len(resp.Transactions) != 1 {
		t.Errorf("credits = %+v", resp)
	}
}

func TestHandlerRefundAndReconcile(t *testing.T) {
	f := newFixture(t, 0)
	router := newTestRouter(NewHandler(f.svc, nil))
	p := f.addProject("under_5000")
	if _, err := f.svc.BuyCredits(context.Background(), f.contractor, "starter"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Unlock(context.Background(), f.contractor, p); err != nil {
		t.Fatal(err)
	}
	body := `{"contractorUid":"` + f.contractor.String() + `","projectId":"` + p.String() + `","reason":"duplicate listing"}`

	if rec := do(t, router, http.MethodPost, "/admin/refunds", body, &admin); rec.Code != http.StatusCreated {
		t.Fatalf("refund status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, router, http.MethodPost, "/admin/refunds", body, &admin); rec.Code != http.StatusConflict {
		t.Errorf("second refund status = %d, want 409", rec.Code)
	}

	rec := do(t, router, http.MethodGet, "/admin/ledger/"+f.contractor.String()+"/reconcile", "", &admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("reconcile status = %d", rec.Code)
	}
	var r Reconciliation
	if err := json.NewDecoder(rec.Body).Decode(&r); err != nil {
		t.Fatal(err)
	}
	if r.Balance != 10 || r.Drift != 0 {
		t.Errorf("reconciliation = %+v", r)
	}
}

func TestHandlerStoreUnavailable(t *testing.T) {
	f := newFixture(t, 10)
	f.svc.db = mockPool{err: context.DeadlineExceeded}
	router := newTestRouter(NewHandler(f.svc, nil))
	p := f.addProject("under_5000")

	rec := do(t, router, http.MethodPost, "/projects/"+p.String()+"/unlock", "", &models.Actor{UID: f.contractor, Role: models.RoleContractor})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
