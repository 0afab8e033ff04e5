package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// KnowledgeDocument is a single knowledge-base file prepared for the vector
// store. ID is a deterministic hash of filename+content, so re-ingesting the
// same file never produces a second copy.
type KnowledgeDocument struct {
	ID         string
	Content    string
	SourcePath string
}

// RetrievedChunk is a transient similarity-search hit. Distance is the
// store's closeness metric, lower is more similar.
type RetrievedChunk struct {
	Content  string
	Distance float64
}

// MessageEntry is one query/response exchange inside a conversation.
type MessageEntry struct {
	Query     string    `bson:"query"`
	Response  string    `bson:"response"`
	Timestamp time.Time `bson:"timestamp"`
}

// ConversationRecord holds all exchanges for one user. One record per
// user_id, created on the first message and appended to afterwards.
type ConversationRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	UserID     string             `bson:"user_id"`
	CreatedAt  time.Time          `bson:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at"`
	LastActive time.Time          `bson:"last_active"`
	Messages   []MessageEntry     `bson:"messages"`
}

// ContactSubmission is a stored contact-form entry, immutable once written.
type ContactSubmission struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Message   string             `bson:"message"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// ChatRequest is the qns-ans payload. UserID keys the persisted
// conversation and may be empty for anonymous visitors.
type ChatRequest struct {
	Query  string `json:"query" validate:"required"`
	UserID string `json:"userId"`
}

// ChatResponse carries the formatted answer back to the frontend.
type ChatResponse struct {
	Response string `json:"response"`
}

// ContactRequest is the contact-form payload.
type ContactRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required"`
}

// ContactResponse acknowledges a delivered submission.
type ContactResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
