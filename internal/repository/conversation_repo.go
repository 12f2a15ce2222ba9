package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renovo/backend/internal/models"
)

const conversationColumns = `id, homeowner_uid, contractor_uid, project_id, homeowner_name, contractor_name,
	project_category, last_message, last_message_timestamp, message_count, created_at`

const messageColumns = `id, conversation_id, sender_id, sender_name, content, timestamp, read`

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(&c.ID, &c.HomeownerUID, &c.ContractorUID, &c.ProjectID, &c.HomeownerName, &c.ContractorName,
		&c.ProjectCategory, &c.LastMessage, &c.LastMessageTimestamp, &c.MessageCount, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateIfAbsent inserts the conversation unless one with the same id exists,
// then returns whichever row is stored.
func (r *ConversationRepo) CreateIfAbsent(ctx context.Context, c *models.Conversation) (*models.Conversation, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conversations (id, homeowner_uid, contractor_uid, project_id, homeowner_name, contractor_name, project_category)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, c.ID, c.HomeownerUID, c.ContractorUID, c.ProjectID, c.HomeownerName, c.ContractorName, c.ProjectCategory)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, c.ID)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	return scanConversation(r.pool.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
}

// ListForUser returns conversations where uid is on the given side, most recent activity first.
func (r *ConversationRepo) ListForUser(ctx context.Context, uid uuid.UUID, role string) ([]*models.Conversation, error) {
	column := "homeowner_uid"
	if role == models.RoleContractor {
		column = "contractor_uid"
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+conversationColumns+` FROM conversations WHERE `+column+` = $1
		ORDER BY last_message_timestamp DESC
	`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// AppendMessageTx stores the message and bumps the conversation summary in one statement pair.
func (r *ConversationRepo) AppendMessageTx(ctx context.Context, tx pgx.Tx, m *models.Message) (*models.Conversation, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, sender_name, content, timestamp, read)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING timestamp
	`, m.ID, m.ConversationID, m.SenderID, m.SenderName, m.Content, m.Timestamp).Scan(&m.Timestamp)
	if err != nil {
		return nil, err
	}
	return scanConversation(tx.QueryRow(ctx, `
		UPDATE conversations
		SET last_message = $2, last_message_timestamp = $3, message_count = message_count + 1
		WHERE id = $1
		RETURNING `+conversationColumns, m.ConversationID, models.PreviewMessage(m.Content), m.Timestamp))
}

// ListMessages returns a conversation's messages oldest first.
func (r *ConversationRepo) ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM messages WHERE conversation_id = $1 ORDER BY timestamp ASC, id
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName, &m.Content, &m.Timestamp, &m.Read); err != nil {
			return nil, err
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}

// MarkRead flags unread messages not sent by readerID. Returns how many changed.
func (r *ConversationRepo) MarkRead(ctx context.Context, conversationID string, readerID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages SET read = TRUE
		WHERE conversation_id = $1 AND sender_id <> $2 AND NOT read
	`, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
