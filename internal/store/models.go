package store

import (
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrFeedbackAlreadySet = errors.New("feedback already recorded")
)

type ConversationStatus string

const (
	StatusActive    ConversationStatus = "Active"
	StatusEnded     ConversationStatus = "Ended"
	StatusEscalated ConversationStatus = "Escalated"
)

type Conversation struct {
	ID               int64              `json:"conversation_id"`
	SessionID        string             `json:"session_id"`
	UserID           *int64             `json:"user_id"` // Nullable, anonymous sessions allowed
	StartedAt        time.Time          `json:"started_at"`
	EndedAt          *time.Time         `json:"ended_at"`
	Status           ConversationStatus `json:"status"`
	TicketID         *int64             `json:"ticket_id,omitempty"`
	EscalationReason *string            `json:"escalation_reason,omitempty"`
}

type MessageType string

const (
	MessageUser   MessageType = "user"
	MessageBot    MessageType = "bot"
	MessageSystem MessageType = "system"
)

type Message struct {
	ID               string      `json:"id"` // Using UUID for external ID
	ConversationID   int64       `json:"conversation_id"`
	Body             string      `json:"body"`
	Type             MessageType `json:"type"`
	SentAt           time.Time   `json:"sent_at"`
	RelatedArticleID *int64      `json:"related_article_id,omitempty"`
	Confidence       *float64    `json:"confidence,omitempty"`
	IsHelpful        bool        `json:"is_helpful"`
	FeedbackAt       *time.Time  `json:"feedback_at,omitempty"`
}

// Article is a knowledge base entry. The chatbot only reads these.
type Article struct {
	ID           int64     `json:"id" yaml:"-"`
	Title        string    `json:"title" yaml:"title"`
	Body         string    `json:"body" yaml:"body"`
	CategoryName string    `json:"category_name" yaml:"category"`
	CreatedAt    time.Time `json:"created_at" yaml:"-"`
}

type Ticket struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	UserID         *int64    `json:"user_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
}
