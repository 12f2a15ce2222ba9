package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/renovo/backend/internal/models"
	"github.com/renovo/backend/internal/realtime"
	"github.com/renovo/backend/internal/session"
)

type convMap map[string]*models.Conversation

func (m convMap) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	c, ok := m[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return c, nil
}

type projectMap map[uuid.UUID]*models.Project

func (m projectMap) GetByID(_ context.Context, id uuid.UUID) (*models.Project, error) {
	p, ok := m[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

func TestTopicAuthorizer(t *testing.T) {
	homeowner, contractor, stranger := uuid.New(), uuid.New(), uuid.New()
	project := &models.Project{ID: uuid.New(), HomeownerUID: homeowner}
	convID := models.ConversationID(contractor, project.ID)
	authorize := TopicAuthorizer(
		convMap{convID: {ID: convID, HomeownerUID: homeowner, ContractorUID: contractor, ProjectID: project.ID}},
		projectMap{project.ID: project},
	)

	check := func(uid uuid.UUID, role, topic string) bool {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if uid != uuid.Nil {
			req = req.WithContext(session.WithSession(req.Context(), &session.Session{UID: uid, Role: role}))
		}
		return authorize(req, topic)
	}

	tests := []struct {
		name  string
		uid   uuid.UUID
		role  string
		topic string
		want  bool
	}{
		{"own user topic", contractor, models.RoleContractor, realtime.UserTopic(contractor), true},
		{"someone else's user topic", stranger, models.RoleContractor, realtime.UserTopic(contractor), false},
		{"own unlocks", contractor, models.RoleContractor, realtime.UnlocksTopic(contractor), true},
		{"conversation participant", homeowner, models.RoleHomeowner, realtime.ConversationTopic(convID), true},
		{"conversation outsider", stranger, models.RoleHomeowner, realtime.ConversationTopic(convID), false},
		{"unknown conversation", contractor, models.RoleContractor, realtime.ConversationTopic("missing"), false},
		{"project is public", stranger, models.RoleContractor, realtime.ProjectTopic(project.ID), true},
		{"bids for owner", homeowner, models.RoleHomeowner, realtime.BidsTopic(project.ID), true},
		{"bids for contractor", contractor, models.RoleContractor, realtime.BidsTopic(project.ID), false},
		{"admin sees all", stranger, models.RoleAdmin, realtime.UserTopic(contractor), true},
		{"unknown kind", contractor, models.RoleContractor, "system:all", false},
		{"no session", uuid.Nil, "", realtime.ProjectTopic(project.ID), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := check(tt.uid, tt.role, tt.topic); got != tt.want {
				t.Errorf("authorize(%s) = %v, want %v", tt.topic, got, tt.want)
			}
		})
	}
}
