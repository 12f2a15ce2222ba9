package models

import (
	"time"

	"github.com/google/uuid"
)

// LastMessagePreviewLen is how much of a message the conversation list shows.
const LastMessagePreviewLen = 80

type Conversation struct {
	ID                   string    `json:"id"`
	HomeownerUID         uuid.UUID `json:"homeownerUid"`
	ContractorUID        uuid.UUID `json:"contractorUid"`
	ProjectID            uuid.UUID `json:"projectId"`
	HomeownerName        string    `json:"homeownerName"`
	ContractorName       string    `json:"contractorName"`
	ProjectCategory      string    `json:"projectCategory"`
	LastMessage          string    `json:"lastMessage"`
	LastMessageTimestamp time.Time `json:"lastMessageTimestamp"`
	MessageCount         int       `json:"messageCount"`
	CreatedAt            time.Time `json:"createdAt"`
}

// ConversationID derives the only possible conversation id for a pair.
func ConversationID(contractorUID, projectID uuid.UUID) string {
	return contractorUID.String() + "_" + projectID.String()
}

// HasParticipant reports whether uid is one of the two sides.
func (c *Conversation) HasParticipant(uid uuid.UUID) bool {
	return c.HomeownerUID == uid || c.ContractorUID == uid
}

type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       uuid.UUID `json:"senderId"`
	SenderName     string    `json:"senderName"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	Read           bool      `json:"read"`
}

// PreviewMessage truncates content for the conversation list.
func PreviewMessage(content string) string {
	r := []rune(content)
	if len(r) > LastMessagePreviewLen {
		return string(r[:LastMessagePreviewLen]) + "..."
	}
	return content
}
