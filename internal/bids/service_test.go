package bids

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/renovo/backend/internal/models"
	"github.com/renovo/backend/internal/session"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type memBids struct {
	mu   sync.Mutex
	bids map[uuid.UUID]*models.Bid
}

func (m *memBids) Create(_ context.Context, b *models.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.bids {
		if existing.ContractorUID == b.ContractorUID && existing.ProjectID == b.ProjectID &&
			existing.Status == models.BidStatusSubmitted {
			return &pgconn.PgError{Code: pgerrcode.UniqueViolation}
		}
	}
	b.SubmittedAt = time.Now().UTC()
	cp := *b
	m.bids[b.ID] = &cp
	return nil
}

func (m *memBids) GetByID(_ context.Context, id uuid.UUID) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (m *memBids) Decide(_ context.Context, id uuid.UUID, status string, at time.Time) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[id]
	if !ok || b.Status != models.BidStatusSubmitted {
		return nil, pgx.ErrNoRows
	}
	b.Status = status
	b.DecidedAt = &at
	cp := *b
	return &cp, nil
}

func (m *memBids) filter(keep func(*models.Bid) bool) ([]*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Bid
	for _, b := range m.bids {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBids) ListByProject(_ context.Context, id uuid.UUID) ([]*models.Bid, error) {
	return m.filter(func(b *models.Bid) bool { return b.ProjectID == id })
}

func (m *memBids) ListByContractor(_ context.Context, uid uuid.UUID) ([]*models.Bid, error) {
	return m.filter(func(b *models.Bid) bool { return b.ContractorUID == uid })
}

func (m *memBids) ListByHomeowner(_ context.Context, uid uuid.UUID) ([]*models.Bid, error) {
	return m.filter(func(b *models.Bid) bool { return b.HomeownerUID == uid })
}

type memProjects map[uuid.UUID]*models.Project

func (m memProjects) GetByID(_ context.Context, id uuid.UUID) (*models.Project, error) {
	p, ok := m[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

type memUsers map[uuid.UUID]*models.User

func (m memUsers) GetByID(_ context.Context, uid uuid.UUID) (*models.User, error) {
	u, ok := m[uid]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

type memUnlocks map[[2]uuid.UUID]bool

func (m memUnlocks) Exists(_ context.Context, c, p uuid.UUID) (bool, error) {
	return m[[2]uuid.UUID{c, p}], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (r *recordingPublisher) Publish(_ context.Context, topic, kind, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic+"/"+kind)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type fixture struct {
	svc        *service
	bids       *memBids
	pub        *recordingPublisher
	homeowner  models.Actor
	contractor models.Actor
	project    *models.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	homeowner := models.Actor{UID: uuid.New(), Role: models.RoleHomeowner}
	contractor := models.Actor{UID: uuid.New(), Role: models.RoleContractor}
	project := &models.Project{
		ID:           uuid.New(),
		HomeownerUID: homeowner.UID,
		Category:     "kitchen",
		CategoryName: "Kitchen Renovation",
		Status:       models.ProjectStatusOpen,
	}
	users := memUsers{
		homeowner.UID:  {UID: homeowner.UID, Role: models.RoleHomeowner, FullName: "Jane Doe"},
		contractor.UID: {UID: contractor.UID, Role: models.RoleContractor, CompanyName: "Maple Reno Inc", ContactName: "Sam Lee"},
	}
	unlocks := memUnlocks{{contractor.UID, project.ID}: true}
	bids := &memBids{bids: map[uuid.UUID]*models.Bid{}}
	pub := &recordingPublisher{}
	svc := NewService(bids, memProjects{project.ID: project}, users, unlocks, pub, nil)
	return &fixture{svc: svc, bids: bids, pub: pub, homeowner: homeowner, contractor: contractor, project: project}
}

func validSubmission() Submission {
	return Submission{
		ItemizedCosts: []models.BidItem{
			{Description: "Demolition", Cost: 1500},
			{Description: "Cabinets", Cost: 8200},
			{Description: "Labour", Cost: 4300},
		},
		EstimatedTimeline: "3 weeks",
		Notes:             "Includes disposal.",
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestSubmitBidComputesTotal(t *testing.T) {
	f := newFixture(t)
	sub := validSubmission()

	b, err := f.svc.SubmitBid(context.Background(), f.contractor, f.project.ID, sub)
	if err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}
	if b.TotalCost != 14000 {
		t.Errorf("totalCost = %d, want 14000", b.TotalCost)
	}
	if b.Status != models.BidStatusSubmitted || b.HomeownerUID != f.homeowner.UID {
		t.Errorf("bid = %+v", b)
	}
	if b.ContractorName != "Maple Reno Inc" || b.ProjectCategory != "Kitchen Renovation" {
		t.Errorf("denormalised names = %q / %q", b.ContractorName, b.ProjectCategory)
	}
	want := "bids:" + f.project.ID.String() + "/submitted"
	if len(f.pub.topics) != 1 || f.pub.topics[0] != want {
		t.Errorf("published %v, want [%s]", f.pub.topics, want)
	}
}

func TestSubmitBidRejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(f *fixture) (models.Actor, uuid.UUID, Submission)
		want    error
	}{
		{"homeowner cannot bid", func(f *fixture) (models.Actor, uuid.UUID, Submission) {
			return f.homeowner, f.project.ID, validSubmission()
		}, ErrForbidden},
		{"locked project", func(f *fixture) (models.Actor, uuid.UUID, Submission) {
			other := models.Actor{UID: uuid.New(), Role: models.RoleContractor}
			return other, f.project.ID, validSubmission()
		}, ErrProjectLocked},
		{"closed project", func(f *fixture) (models.Actor, uuid.UUID, Submission) {
			f.project.Status = models.ProjectStatusClosed
			return f.contractor, f.project.ID, validSubmission()
		}, ErrProjectNotOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			actor, pid, sub := tt.prepare(f)
			if _, err := f.svc.SubmitBid(context.Background(), actor, pid, sub); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if len(f.bids.bids) != 0 {
				t.Errorf("bid stored despite rejection")
			}
		})
	}
}

func TestSubmitBidValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Submission)
	}{
		{"no items", func(s *Submission) { s.ItemizedCosts = nil }},
		{"blank description", func(s *Submission) { s.ItemizedCosts[0].Description = "   " }},
		{"negative cost", func(s *Submission) { s.ItemizedCosts[1].Cost = -1 }},
		{"missing timeline", func(s *Submission) { s.EstimatedTimeline = "" }},
		{"cost above item cap", func(s *Submission) { s.ItemizedCosts[0].Cost = models.MaxItemCost + 1 }},
		{"cost would overflow", func(s *Submission) {
			s.ItemizedCosts = []models.BidItem{{Description: "a", Cost: math.MaxInt}, {Description: "b", Cost: 2}}
		}},
		{"total above column range", func(s *Submission) {
			s.ItemizedCosts = nil
			for i := 0; i < 25; i++ {
				s.ItemizedCosts = append(s.ItemizedCosts, models.BidItem{Description: "phase", Cost: models.MaxItemCost})
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			sub := validSubmission()
			tt.mutate(&sub)
			_, err := f.svc.SubmitBid(context.Background(), f.contractor, f.project.ID, sub)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestSubmitBidTwiceIsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.SubmitBid(ctx, f.contractor, f.project.ID, validSubmission()); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SubmitBid(ctx, f.contractor, f.project.ID, validSubmission()); !errors.Is(err, ErrDuplicateBid) {
		t.Errorf("err = %v, want ErrDuplicateBid", err)
	}
}

func TestResubmitAfterRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.svc.SubmitBid(ctx, f.contractor, f.project.ID, validSubmission())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UpdateBidStatus(ctx, f.homeowner, first.ID, models.BidStatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}
	second, err := f.svc.SubmitBid(ctx, f.contractor, f.project.ID, validSubmission())
	if err != nil {
		t.Fatalf("resubmit after rejection: %v", err)
	}
	if second.ID == first.ID || second.Status != models.BidStatusSubmitted {
		t.Errorf("second bid = %+v", second)
	}
	if _, err := f.svc.SubmitBid(ctx, f.contractor, f.project.ID, validSubmission()); !errors.Is(err, ErrDuplicateBid) {
		t.Errorf("third submission err = %v, want ErrDuplicateBid", err)
	}
}

func TestUpdateBidStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.SubmitBid(ctx, f.contractor, f.project.ID, validSubmission())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.UpdateBidStatus(ctx, f.contractor, b.ID, models.BidStatusAccepted); !errors.Is(err, ErrForbidden) {
		t.Errorf("contractor decide err = %v", err)
	}
	if _, err := f.svc.UpdateBidStatus(ctx, f.homeowner, b.ID, models.BidStatusSubmitted); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("back to submitted err = %v", err)
	}

	got, err := f.svc.UpdateBidStatus(ctx, f.homeowner, b.ID, models.BidStatusAccepted)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != models.BidStatusAccepted || got.DecidedAt == nil {
		t.Errorf("bid = %+v", got)
	}

	if _, err := f.svc.UpdateBidStatus(ctx, f.homeowner, b.ID, models.BidStatusRejected); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("accepted->rejected err = %v", err)
	}
	if _, err := f.svc.UpdateBidStatus(ctx, f.homeowner, uuid.New(), models.BidStatusRejected); !errors.Is(err, ErrBidNotFound) {
		t.Errorf("missing bid err = %v", err)
	}
}

func TestGetBidsForProjectOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.SubmitBid(ctx, f.contractor, f.project.ID, validSubmission()); err != nil {
		t.Fatal(err)
	}

	list, err := f.svc.GetBidsForProject(ctx, f.homeowner, f.project.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("owner list = %v, %v", list, err)
	}
	if _, err := f.svc.GetBidsForProject(ctx, f.contractor, f.project.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("contractor err = %v", err)
	}
	admin := models.Actor{UID: uuid.New(), Role: models.RoleAdmin}
	if _, err := f.svc.GetBidsForProject(ctx, admin, f.project.ID); err != nil {
		t.Errorf("admin err = %v", err)
	}

	empty, err := f.svc.GetContractorBids(ctx, uuid.New())
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("empty list = %v, %v", empty, err)
	}
}

func TestHandlerSubmitAndDecide(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, nil)
	r := chi.NewRouter()
	r.Post("/projects/{id}/bids", h.Submit)
	r.Patch("/bids/{id}/status", h.UpdateStatus)

	do := func(actor models.Actor, method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req = req.WithContext(session.WithSession(req.Context(), &session.Session{UID: actor.UID, Role: actor.Role}))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	body := `{"itemizedCosts":[{"description":"Tile","cost":900}],"estimatedTimeline":"1 week"}`
	rec := do(f.contractor, http.MethodPost, "/projects/"+f.project.ID.String()+"/bids", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := do(f.contractor, http.MethodPost, "/projects/"+f.project.ID.String()+"/bids", body); rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d", rec.Code)
	}
	if rec := do(f.contractor, http.MethodPost, "/projects/"+f.project.ID.String()+"/bids", `{"itemizedCosts":[],"estimatedTimeline":"x"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty items status = %d", rec.Code)
	}

	var bidID uuid.UUID
	for id := range f.bids.bids {
		bidID = id
	}
	path := "/bids/" + bidID.String() + "/status"
	if rec := do(f.homeowner, http.MethodPatch, path, `{"status":"rejected"}`); rec.Code != http.StatusOK {
		t.Errorf("decide status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := do(f.homeowner, http.MethodPatch, path, `{"status":"accepted"}`); rec.Code != http.StatusConflict {
		t.Errorf("second decision status = %d", rec.Code)
	}
}
