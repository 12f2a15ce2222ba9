package router

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/renovo/backend/internal/models"
	"github.com/renovo/backend/internal/realtime"
	"github.com/renovo/backend/internal/session"
)

type ConversationLookup interface {
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
}

type ProjectLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// TopicAuthorizer decides which realtime topics a session may watch. Per-user
// topics belong to their owner, conversations to their two participants and
// bid streams to the project's homeowner. Admins may watch anything.
func TopicAuthorizer(convs ConversationLookup, projects ProjectLookup) realtime.AuthorizeFunc {
	return func(r *http.Request, topic string) bool {
		sess, ok := session.FromContext(r.Context())
		if !ok {
			return false
		}
		if sess.Role == models.RoleAdmin {
			return true
		}
		kind, id, ok := strings.Cut(topic, ":")
		if !ok || id == "" {
			return false
		}

		switch kind {
		case "user", "unlocks", "conversations":
			return id == sess.UID.String()
		case "conversation":
			c, err := convs.GetByID(r.Context(), id)
			return err == nil && c.HasParticipant(sess.UID)
		case "project":
			_, err := uuid.Parse(id)
			return err == nil
		case "bids":
			pid, err := uuid.Parse(id)
			if err != nil {
				return false
			}
			p, err := projects.GetByID(r.Context(), pid)
			return err == nil && p.HomeownerUID == sess.UID
		default:
			return false
		}
	}
}
