package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/renovo/backend/internal/database"
	"github.com/renovo/backend/internal/metrics"
	"github.com/renovo/backend/internal/models"
	"github.com/renovo/backend/internal/realtime"
)

// MaxMessageLen is the longest message body accepted, in characters.
const MaxMessageLen = 2000

var (
	ErrNotFound        = errors.New("conversation not found")
	ErrProjectNotFound = errors.New("project not found")
	ErrProjectLocked   = errors.New("contractor has not unlocked this project")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidContent  = errors.New("message must be 1 to 2000 characters")
)

type ConversationStore interface {
	CreateIfAbsent(ctx context.Context, c *models.Conversation) (*models.Conversation, error)
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	ListForUser(ctx context.Context, uid uuid.UUID, role string) ([]*models.Conversation, error)
	AppendMessageTx(ctx context.Context, tx pgx.Tx, m *models.Message) (*models.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error)
	MarkRead(ctx context.Context, conversationID string, readerID uuid.UUID) (int64, error)
}

type ProjectStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

type UserStore interface {
	GetByID(ctx context.Context, uid uuid.UUID) (*models.User, error)
}

type UnlockChecker interface {
	Exists(ctx context.Context, contractorUID, projectID uuid.UUID) (bool, error)
}

// Bus publishes change events and hands out live subscriptions.
type Bus interface {
	realtime.Publisher
	Subscribe(topic string, fn realtime.Handler) *realtime.Subscription
}

type Service interface {
	GetOrCreateConversation(ctx context.Context, actor models.Actor, contractorUID, projectID uuid.UUID) (*models.Conversation, error)
	SendMessage(ctx context.Context, actor models.Actor, conversationID, content string) (*models.Message, error)
	MarkMessagesAsRead(ctx context.Context, actor models.Actor, conversationID string) (int64, error)
	ListConversations(ctx context.Context, actor models.Actor) ([]*models.Conversation, error)
	ListMessages(ctx context.Context, actor models.Actor, conversationID string) ([]*models.Message, error)
	SubscribeConversations(uid uuid.UUID, fn realtime.Handler) *realtime.Subscription
	SubscribeMessages(conversationID string, fn realtime.Handler) *realtime.Subscription
}

type service struct {
	db            database.TxBeginner
	conversations ConversationStore
	projects      ProjectStore
	users         UserStore
	unlocks       UnlockChecker
	bus           Bus
	now           func() time.Time
	log           *slog.Logger
}

func NewService(db database.TxBeginner, conversations ConversationStore, projects ProjectStore, users UserStore, unlocks UnlockChecker, bus Bus, log *slog.Logger) *service {
	if log == nil {
		log = slog.Default()
	}
	return &service{
		db:            db,
		conversations: conversations,
		projects:      projects,
		users:         users,
		unlocks:       unlocks,
		bus:           bus,
		now:           func() time.Time { return time.Now().UTC() },
		log:           log,
	}
}

var _ Service = (*service)(nil)

// GetOrCreateConversation returns the single conversation between a
// contractor and a project's homeowner, creating it on first use. A
// contractor always talks as themselves; a homeowner names the contractor.
func (s *service) GetOrCreateConversation(ctx context.Context, actor models.Actor, contractorUID, projectID uuid.UUID) (*models.Conversation, error) {
	switch {
	case actor.Is(models.RoleContractor):
		contractorUID = actor.UID
	case actor.Is(models.RoleHomeowner):
		if contractorUID == uuid.Nil {
			return nil, fmt.Errorf("%w: contractor required", ErrForbidden)
		}
	default:
		return nil, ErrForbidden
	}

	id := models.ConversationID(contractorUID, projectID)
	existing, err := s.conversations.GetByID(ctx, id)
	if err == nil {
		if !existing.HasParticipant(actor.UID) {
			return nil, ErrForbidden
		}
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load conversation: %w", database.Classify(err))
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", database.Classify(err))
	}
	if actor.Is(models.RoleHomeowner) && project.HomeownerUID != actor.UID {
		return nil, ErrForbidden
	}

	unlocked, err := s.unlocks.Exists(ctx, contractorUID, projectID)
	if err != nil {
		return nil, fmt.Errorf("probe unlock: %w", database.Classify(err))
	}
	if !unlocked {
		return nil, ErrProjectLocked
	}

	homeowner, err := s.users.GetByID(ctx, project.HomeownerUID)
	if err != nil {
		return nil, fmt.Errorf("load homeowner: %w", database.Classify(err))
	}
	contractor, err := s.users.GetByID(ctx, contractorUID)
	if err != nil {
		return nil, fmt.Errorf("load contractor: %w", database.Classify(err))
	}

	conv, err := s.conversations.CreateIfAbsent(ctx, &models.Conversation{
		ID:              id,
		HomeownerUID:    project.HomeownerUID,
		ContractorUID:   contractorUID,
		ProjectID:       projectID,
		HomeownerName:   homeowner.DisplayName(),
		ContractorName:  contractor.DisplayName(),
		ProjectCategory: project.CategoryName,
	})
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", database.Classify(err))
	}
	s.log.Info("conversation opened", "conversation", id, "by", actor.UID)
	s.bus.Publish(ctx, realtime.ConversationsTopic(conv.HomeownerUID), "created", id)
	s.bus.Publish(ctx, realtime.ConversationsTopic(conv.ContractorUID), "created", id)
	return conv, nil
}

// SendMessage appends to the log and bumps the conversation summary in the
// same transaction.
func (s *service) SendMessage(ctx context.Context, actor models.Actor, conversationID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n == 0 || n > MaxMessageLen {
		return nil, ErrInvalidContent
	}
	conv, err := s.participant(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	sender, err := s.users.GetByID(ctx, actor.UID)
	if err != nil {
		return nil, fmt.Errorf("load sender: %w", database.Classify(err))
	}

	m := &models.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       actor.UID,
		SenderName:     sender.DisplayName(),
		Content:        content,
		Timestamp:      s.now(),
	}
	err = database.InTx(ctx, s.db, func(tx pgx.Tx) error {
		_, err := s.conversations.AppendMessageTx(ctx, tx, m)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("append message: %w", database.Classify(err))
	}

	metrics.IncMessagesSent()
	s.bus.Publish(ctx, realtime.ConversationTopic(conv.ID), "message", m.ID.String())
	s.bus.Publish(ctx, realtime.ConversationsTopic(conv.HomeownerUID), "updated", conv.ID)
	s.bus.Publish(ctx, realtime.ConversationsTopic(conv.ContractorUID), "updated", conv.ID)
	return m, nil
}

func (s *service) MarkMessagesAsRead(ctx context.Context, actor models.Actor, conversationID string) (int64, error) {
	conv, err := s.participant(ctx, actor, conversationID)
	if err != nil {
		return 0, err
	}
	n, err := s.conversations.MarkRead(ctx, conv.ID, actor.UID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", database.Classify(err))
	}
	if n > 0 {
		s.bus.Publish(ctx, realtime.ConversationTopic(conv.ID), "read", actor.UID.String())
	}
	return n, nil
}

func (s *service) ListConversations(ctx context.Context, actor models.Actor) ([]*models.Conversation, error) {
	if !actor.Is(models.RoleHomeowner) && !actor.Is(models.RoleContractor) {
		return nil, ErrForbidden
	}
	list, err := s.conversations.ListForUser(ctx, actor.UID, actor.Role)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", database.Classify(err))
	}
	if list == nil {
		list = []*models.Conversation{}
	}
	return list, nil
}

func (s *service) ListMessages(ctx context.Context, actor models.Actor, conversationID string) ([]*models.Message, error) {
	conv, err := s.participant(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	list, err := s.conversations.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", database.Classify(err))
	}
	if list == nil {
		list = []*models.Message{}
	}
	return list, nil
}

func (s *service) SubscribeConversations(uid uuid.UUID, fn realtime.Handler) *realtime.Subscription {
	return s.bus.Subscribe(realtime.ConversationsTopic(uid), fn)
}

func (s *service) SubscribeMessages(conversationID string, fn realtime.Handler) *realtime.Subscription {
	return s.bus.Subscribe(realtime.ConversationTopic(conversationID), fn)
}

func (s *service) participant(ctx context.Context, actor models.Actor, conversationID string) (*models.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", database.Classify(err))
	}
	if !conv.HasParticipant(actor.UID) {
		return nil, ErrForbidden
	}
	return conv, nil
}
