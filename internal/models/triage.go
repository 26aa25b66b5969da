package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// GroupType is the classification category a conversation is queued under
type GroupType string

const (
	GroupPriority    GroupType = "PRIORITY"
	GroupOrderStatus GroupType = "ORDER_STATUS"
	GroupWholesale   GroupType = "WHOLESALE"
	GroupNoAction    GroupType = "NO_ACTION"
	GroupOther       GroupType = "OTHER"
)

// GroupTypes lists every category in canonical order
var GroupTypes = []GroupType{GroupPriority, GroupOrderStatus, GroupWholesale, GroupNoAction, GroupOther}

// ParseGroupType maps free text onto a known category. Unknown values map to OTHER.
func ParseGroupType(s string) GroupType {
	for _, t := range GroupTypes {
		if string(t) == s {
			return t
		}
	}
	return GroupOther
}

// Sentiment values accepted from classification
const (
	SentimentPositive   = "positive"
	SentimentNeutral    = "neutral"
	SentimentNegative   = "negative"
	SentimentFrustrated = "frustrated"
)

// Conversation is one reconstructed support ticket owned by one user
// @Description Persisted support conversation
type Conversation struct {
	ID              string             `db:"id" json:"id"`
	UserID          string             `db:"user_id" json:"userId"`
	GroupID         *string            `db:"group_id" json:"groupId,omitempty"`
	TicketID        string             `db:"ticket_id" json:"ticketId"`
	ConversationID  string             `db:"conversation_id" json:"conversationId"`
	ConversationURL *string            `db:"conversation_url" json:"conversationUrl,omitempty"`
	Subject         string             `db:"subject" json:"subject"`
	FromEmail       string             `db:"from_email" json:"fromEmail"`
	FromName        *string            `db:"from_name" json:"fromName,omitempty"`
	MessageText     string             `db:"message_text" json:"messageText"`
	Labels          pq.StringArray     `db:"labels" json:"labels" swaggertype:"array,string"`
	Inbox           *string            `db:"inbox" json:"inbox,omitempty"`
	CreationDate    time.Time          `db:"creation_date" json:"creationDate"`
	ClosedDate      *time.Time         `db:"closed_date" json:"closedDate,omitempty"`
	Assignee        *string            `db:"assignee" json:"assignee,omitempty"`
	OrderNumber     *string            `db:"order_number" json:"orderNumber,omitempty"`
	NeedsAction     bool               `db:"needs_action" json:"needsAction"`
	IsEdited        bool               `db:"is_edited" json:"isEdited"`
	AutoResponse    *string            `db:"auto_response" json:"autoResponse,omitempty"`
	Category        *string            `db:"category" json:"category,omitempty"`
	Urgency         *int               `db:"urgency" json:"urgency,omitempty"`
	Sentiment       *string            `db:"sentiment" json:"sentiment,omitempty"`
	KeyIssues       pq.StringArray     `db:"key_issues" json:"keyIssues" swaggertype:"array,string"`
	SuggestedTone   *string            `db:"suggested_tone" json:"suggestedTone,omitempty"`
	SimilarityTags  pq.StringArray     `db:"similarity_tags" json:"similarityTags" swaggertype:"array,string"`
	ShopifyData     types.NullJSONText `db:"shopify_data" json:"shopifyData" swaggertype:"object"`
	ShipStationData types.NullJSONText `db:"shipstation_data" json:"shipstationData" swaggertype:"object"`
	CreatedAt       time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updatedAt"`
}

// UrgencyOrDefault returns the classified urgency, or 0 when unclassified
func (c *Conversation) UrgencyOrDefault() int {
	if c.Urgency == nil {
		return 0
	}
	return *c.Urgency
}

// Group is a named queue of conversations sharing one category
// @Description Conversation group
type Group struct {
	ID          string         `db:"id" json:"id"`
	UserID      string         `db:"user_id" json:"userId"`
	Type        GroupType      `db:"type" json:"type"`
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description"`
	Priority    int            `db:"priority" json:"priority"`
	IsExpanded  bool           `db:"is_expanded" json:"isExpanded"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
	Emails      []Conversation `db:"-" json:"emails"`
}

// Comment is an internal note on a conversation
// @Description Internal comment
type Comment struct {
	ID         string    `db:"id" json:"id"`
	EmailID    string    `db:"email_id" json:"emailId"`
	UserID     string    `db:"user_id" json:"userId"`
	Content    string    `db:"content" json:"content"`
	IsInternal bool      `db:"is_internal" json:"isInternal"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// ResponseRule is an operator-authored drafting rule, as sent by the client
// @Description Response drafting rule
type ResponseRule struct {
	ID        string `json:"id"`
	Trigger   string `json:"trigger" example:"keyword"` // keyword, product or order_status
	Condition string `json:"condition" example:"refund|return"`
	Response  string `json:"response"`
	Priority  int    `json:"priority" example:"1"`
	IsActive  bool   `json:"isActive" example:"true"`
}

// MailAccount is a linked outbound mailbox for one user
type MailAccount struct {
	UserID       string     `db:"user_id" json:"userId"`
	Provider     string     `db:"provider" json:"provider"`
	EmailAddress string     `db:"email_address" json:"emailAddress"`
	AccessToken  string     `db:"access_token" json:"-"`
	RefreshToken *string    `db:"refresh_token" json:"-"`
	ExpiresAt    *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// AuditEvent is one recorded operator or pipeline action
type AuditEvent struct {
	ID        int64              `db:"id" json:"id"`
	UserID    string             `db:"user_id" json:"userId"`
	EventType string             `db:"event_type" json:"eventType"`
	EmailID   *string            `db:"email_id" json:"emailId,omitempty"`
	Metadata  types.NullJSONText `db:"metadata" json:"metadata" swaggertype:"object"`
	CreatedAt time.Time          `db:"created_at" json:"createdAt"`
}
