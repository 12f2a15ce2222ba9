package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/renovo/backend/internal/models"
	"github.com/renovo/backend/internal/realtime"
	"github.com/renovo/backend/internal/session"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

type mockPool struct{}

func (mockPool) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

type memConversations struct {
	mu       sync.Mutex
	convs    map[string]*models.Conversation
	messages map[string][]*models.Message
	creates  int
}

func newMemConversations() *memConversations {
	return &memConversations{convs: map[string]*models.Conversation{}, messages: map[string][]*models.Message{}}
}

func (m *memConversations) CreateIfAbsent(_ context.Context, c *models.Conversation) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.convs[c.ID]; ok {
		cp := *existing
		return &cp, nil
	}
	m.creates++
	cp := *c
	m.convs[c.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memConversations) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m *memConversations) ListForUser(_ context.Context, uid uuid.UUID, role string) ([]*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Conversation
	for _, c := range m.convs {
		if (role == models.RoleHomeowner && c.HomeownerUID == uid) || (role == models.RoleContractor && c.ContractorUID == uid) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageTimestamp.After(out[j].LastMessageTimestamp) })
	return out, nil
}

func (m *memConversations) AppendMessageTx(_ context.Context, _ pgx.Tx, msg *models.Message) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[msg.ConversationID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *msg
	m.messages[c.ID] = append(m.messages[c.ID], &cp)
	c.LastMessage = models.PreviewMessage(msg.Content)
	c.LastMessageTimestamp = msg.Timestamp
	c.MessageCount++
	out := *c
	return &out, nil
}

func (m *memConversations) ListMessages(_ context.Context, id string) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.Message(nil), m.messages[id]...), nil
}

func (m *memConversations) MarkRead(_ context.Context, id string, reader uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, msg := range m.messages[id] {
		if msg.SenderID != reader && !msg.Read {
			msg.Read = true
			n++
		}
	}
	return n, nil
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

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type fixture struct {
	svc        *service
	convs      *memConversations
	hub        *realtime.Hub
	homeowner  models.Actor
	contractor models.Actor
	project    *models.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	homeowner := models.Actor{UID: uuid.New(), Role: models.RoleHomeowner}
	contractor := models.Actor{UID: uuid.New(), Role: models.RoleContractor}
	project := &models.Project{ID: uuid.New(), HomeownerUID: homeowner.UID, CategoryName: "Bathroom Renovation", Status: models.ProjectStatusOpen}
	users := memUsers{
		homeowner.UID:  {UID: homeowner.UID, Role: models.RoleHomeowner, FullName: "Jane Doe"},
		contractor.UID: {UID: contractor.UID, Role: models.RoleContractor, CompanyName: "Maple Reno Inc"},
	}
	convs := newMemConversations()
	hub := realtime.NewHub(nil, nil)
	svc := NewService(mockPool{}, convs, memProjects{project.ID: project}, users, memUnlocks{{contractor.UID, project.ID}: true}, hub, nil)
	return &fixture{svc: svc, convs: convs, hub: hub, homeowner: homeowner, contractor: contractor, project: project}
}

func (f *fixture) open(t *testing.T) *models.Conversation {
	t.Helper()
	c, err := f.svc.GetOrCreateConversation(context.Background(), f.contractor, uuid.Nil, f.project.ID)
	if err != nil {
		t.Fatalf("GetOrCreateConversation: %v", err)
	}
	return c
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestGetOrCreateConversationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.open(t)
	b, err := f.svc.GetOrCreateConversation(context.Background(), f.homeowner, f.contractor.UID, f.project.ID)
	if err != nil {
		t.Fatalf("homeowner open: %v", err)
	}
	if a.ID != b.ID || f.convs.creates != 1 {
		t.Fatalf("ids %s / %s, creates %d", a.ID, b.ID, f.convs.creates)
	}
	if a.ID != f.contractor.UID.String()+"_"+f.project.ID.String() {
		t.Errorf("id = %s", a.ID)
	}
	if a.HomeownerName != "Jane Doe" || a.ContractorName != "Maple Reno Inc" || a.ProjectCategory != "Bathroom Renovation" {
		t.Errorf("names = %+v", a)
	}
}

func TestGetOrCreateConversationRequiresUnlock(t *testing.T) {
	f := newFixture(t)
	stranger := models.Actor{UID: uuid.New(), Role: models.RoleContractor}
	if _, err := f.svc.GetOrCreateConversation(context.Background(), stranger, uuid.Nil, f.project.ID); !errors.Is(err, ErrProjectLocked) {
		t.Errorf("err = %v, want ErrProjectLocked", err)
	}
	otherOwner := models.Actor{UID: uuid.New(), Role: models.RoleHomeowner}
	if _, err := f.svc.GetOrCreateConversation(context.Background(), otherOwner, f.contractor.UID, f.project.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.GetOrCreateConversation(context.Background(), f.contractor, uuid.Nil, uuid.New()); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("err = %v, want ErrProjectNotFound", err)
	}
}

func TestSendMessageUpdatesSummary(t *testing.T) {
	f := newFixture(t)
	c := f.open(t)
	ctx := context.Background()

	long := strings.Repeat("a", 100)
	if _, err := f.svc.SendMessage(ctx, f.contractor, c.ID, "  hello  "); err != nil {
		t.Fatalf("first send: %v", err)
	}
	m, err := f.svc.SendMessage(ctx, f.homeowner, c.ID, long)
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if m.SenderName != "Jane Doe" {
		t.Errorf("sender name = %q", m.SenderName)
	}

	got, _ := f.convs.GetByID(ctx, c.ID)
	if got.MessageCount != 2 {
		t.Errorf("messageCount = %d, want 2", got.MessageCount)
	}
	if want := strings.Repeat("a", 80) + "..."; got.LastMessage != want {
		t.Errorf("lastMessage = %q", got.LastMessage)
	}
	msgs, err := f.svc.ListMessages(ctx, f.contractor, c.ID)
	if err != nil || len(msgs) != 2 || msgs[0].Content != "hello" {
		t.Fatalf("messages = %v, %v", msgs, err)
	}
}

func TestSendMessageRejections(t *testing.T) {
	f := newFixture(t)
	c := f.open(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   models.Actor
		convID  string
		content string
		want    error
	}{
		{"empty", f.contractor, c.ID, "   ", ErrInvalidContent},
		{"too long", f.contractor, c.ID, strings.Repeat("x", MaxMessageLen+1), ErrInvalidContent},
		{"outsider", models.Actor{UID: uuid.New(), Role: models.RoleContractor}, c.ID, "hi", ErrForbidden},
		{"missing", f.contractor, "nope", "hi", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.SendMessage(ctx, tt.actor, tt.convID, tt.content); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := f.svc.SendMessage(ctx, f.contractor, c.ID, strings.Repeat("é", MaxMessageLen)); err != nil {
		t.Errorf("max length multibyte: %v", err)
	}
}

func TestMarkMessagesAsRead(t *testing.T) {
	f := newFixture(t)
	c := f.open(t)
	ctx := context.Background()
	for _, text := range []string{"one", "two"} {
		if _, err := f.svc.SendMessage(ctx, f.contractor, c.ID, text); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.svc.SendMessage(ctx, f.homeowner, c.ID, "three"); err != nil {
		t.Fatal(err)
	}

	n, err := f.svc.MarkMessagesAsRead(ctx, f.homeowner, c.ID)
	if err != nil || n != 2 {
		t.Fatalf("marked = %d, %v; want 2", n, err)
	}
	n, _ = f.svc.MarkMessagesAsRead(ctx, f.homeowner, c.ID)
	if n != 0 {
		t.Errorf("second mark = %d, want 0", n)
	}
}

func TestSubscriptionsReceiveEventsUntilCancelled(t *testing.T) {
	f := newFixture(t)
	c := f.open(t)
	ctx := context.Background()

	var mu sync.Mutex
	var convEvents, msgEvents []realtime.Event
	convSub := f.svc.SubscribeConversations(f.homeowner.UID, func(e realtime.Event) {
		mu.Lock()
		convEvents = append(convEvents, e)
		mu.Unlock()
	})
	msgSub := f.svc.SubscribeMessages(c.ID, func(e realtime.Event) {
		mu.Lock()
		msgEvents = append(msgEvents, e)
		mu.Unlock()
	})

	if _, err := f.svc.SendMessage(ctx, f.contractor, c.ID, "first"); err != nil {
		t.Fatal(err)
	}
	convSub.Cancel()
	msgSub.Cancel()
	msgSub.Cancel()
	if _, err := f.svc.SendMessage(ctx, f.contractor, c.ID, "second"); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(convEvents) != 1 || convEvents[0].ID != c.ID {
		t.Errorf("conversation events = %+v", convEvents)
	}
	if len(msgEvents) != 1 || msgEvents[0].Kind != "message" {
		t.Errorf("message events = %+v", msgEvents)
	}
	if n := f.hub.Subscribers(realtime.ConversationTopic(c.ID)); n != 0 {
		t.Errorf("subscribers after cancel = %d", n)
	}
}

func TestHandlerConversationFlow(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, nil)
	r := chi.NewRouter()
	r.Post("/conversations", h.Open)
	r.Get("/conversations", h.List)
	r.Get("/conversations/{id}/messages", h.Messages)
	r.Post("/conversations/{id}/messages", h.Send)
	r.Post("/conversations/{id}/read", h.MarkRead)

	do := func(actor models.Actor, method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req = req.WithContext(session.WithSession(req.Context(), &session.Session{UID: actor.UID, Role: actor.Role}))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := do(f.contractor, http.MethodPost, "/conversations", `{"projectId":"`+f.project.ID.String()+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("open status = %d, body %s", rec.Code, rec.Body.String())
	}
	id := models.ConversationID(f.contractor.UID, f.project.ID)

	if rec := do(f.contractor, http.MethodPost, "/conversations/"+id+"/messages", `{"content":"Hi there"}`); rec.Code != http.StatusCreated {
		t.Errorf("send status = %d", rec.Code)
	}
	if rec := do(f.contractor, http.MethodPost, "/conversations/"+id+"/messages", `{"content":""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty send status = %d", rec.Code)
	}
	outsider := models.Actor{UID: uuid.New(), Role: models.RoleHomeowner}
	if rec := do(outsider, http.MethodGet, "/conversations/"+id+"/messages", ""); rec.Code != http.StatusForbidden {
		t.Errorf("outsider status = %d", rec.Code)
	}
	rec = do(f.homeowner, http.MethodPost, "/conversations/"+id+"/read", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"marked":1`) {
		t.Errorf("read = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(f.homeowner, http.MethodGet, "/conversations", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), id) {
		t.Errorf("list = %d %s", rec.Code, rec.Body.String())
	}
}
