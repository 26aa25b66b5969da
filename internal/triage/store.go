// Package triage implements the support-email pipeline: persisting
// reconstructed tickets, LLM classification, grouping, drafting and the
// human review and send loop.
package triage

import (
	"context"

	"responder/internal/models"
)

// Insights is one conversation's classification result
type Insights struct {
	Category       models.GroupType `json:"category"`
	Urgency        int              `json:"urgency"`
	Sentiment      string           `json:"sentiment"`
	CustomerName   string           `json:"customerName"`
	OrderNumber    string           `json:"orderNumber"`
	KeyIssues      []string         `json:"keyIssues"`
	SuggestedTone  string           `json:"suggestedTone"`
	SimilarityTags []string         `json:"similarityTags"`
}

// ConversationWriter is the part of the store used while replacing a
// user's conversations
type ConversationWriter interface {
	DeleteUserData(ctx context.Context, userID string) error
	InsertConversation(ctx context.Context, c *models.Conversation) error
}

// Store persists pipeline state. Every read and write is scoped to the
// owning user; rows owned by someone else behave as missing.
type Store interface {
	// ReplaceConversations runs fn atomically. A failed InsertConversation
	// must not poison the remaining inserts.
	ReplaceConversations(ctx context.Context, userID string, fn func(w ConversationWriter) error) error

	GetConversations(ctx context.Context, userID string, ids []string) ([]models.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	GroupConversations(ctx context.Context, userID, groupID string) ([]models.Conversation, error)

	// SaveInsights overwrites classification fields. Name and order number
	// are only filled when the conversation has none.
	SaveInsights(ctx context.Context, userID, id string, in Insights) error

	// FindOrCreateGroup returns the single group for (user, type), creating
	// it on first use.
	FindOrCreateGroup(ctx context.Context, userID string, g *models.Group) (*models.Group, error)
	AssignGroup(ctx context.Context, userID, groupID string, ids []string) error
	ListGroups(ctx context.Context, userID string) ([]models.Group, error)

	SaveDraft(ctx context.Context, userID, id, response string, needsAction bool) error
	SaveEditedResponse(ctx context.Context, userID, id, response string) error
	MarkSent(ctx context.Context, userID, id string) error

	ListComments(ctx context.Context, userID, emailID string) ([]models.Comment, error)
	AddComment(ctx context.Context, c *models.Comment) error
	DeleteComment(ctx context.Context, userID, commentID string) error

	GetMailAccount(ctx context.Context, userID string) (*models.MailAccount, error)
	SaveMailAccount(ctx context.Context, a *models.MailAccount) error

	// SaveOrderData stores a commerce snapshot; source is "shopify" or "shipstation"
	SaveOrderData(ctx context.Context, userID, emailID, source string, data []byte) error
}
