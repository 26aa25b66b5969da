package models

import (
	"time"

	"responder/internal/logbuffer"
)

// HealthResponse represents a basic health check response
// @Description Health check response
type HealthResponse struct {
	Status    string    `json:"status" example:"healthy"`                 // Health status
	Timestamp time.Time `json:"timestamp" example:"2023-01-01T00:00:00Z"` // Timestamp of the check
	Version   string    `json:"version" example:"1.0.0"`                  // Application version
}

// DBHealthResponse represents a database health check response
// @Description Database health check response
type DBHealthResponse struct {
	Status    string        `json:"status" example:"healthy"`                   // Health status
	Timestamp time.Time     `json:"timestamp" example:"2023-01-01T00:00:00Z"`   // Timestamp of the check
	Connected bool          `json:"connected" example:"true"`                   // Database connection status
	Latency   time.Duration `json:"latency" swaggertype:"string" example:"1ms"` // Database ping latency
	Error     string        `json:"error,omitempty" example:""`                 // Error message if any
}

// APIResponse is the generic success/error envelope
// @Description Generic API response
type APIResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message,omitempty" example:""`
	Error   string `json:"error,omitempty" example:""`
}

// LoginRequest carries operator credentials
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse returns a signed session token
type LoginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// UploadRequest is a list of header-keyed rows parsed by the client
// @Description Upload request payload
type UploadRequest struct {
	Emails []map[string]interface{} `json:"emails"`
}

// UploadResponse reports what an upload created
// @Description Upload response payload
type UploadResponse struct {
	Success  bool           `json:"success" example:"true"`
	Count    int            `json:"count" example:"42"`     // Conversations created
	Filtered int            `json:"filtered" example:"118"` // Rows that did not become conversations
	Skipped  int            `json:"skipped" example:"0"`    // Tickets that failed to persist
	EmailIDs []string       `json:"emailIds"`
	Emails   []Conversation `json:"emails"`
	Groups   []Group        `json:"groups,omitempty"` // Present when auto-classification ran
	Error    string         `json:"error,omitempty"`
}

// GroupRequest selects conversations to classify and group
type GroupRequest struct {
	EmailIDs []string `json:"emailIds"`
}

// GroupsResponse returns groups with their conversations
// @Description Groups response payload
type GroupsResponse struct {
	Success bool    `json:"success" example:"true"`
	Groups  []Group `json:"groups"`
	Error   string  `json:"error,omitempty"`
}

// GenerateRequest asks for drafted replies
// @Description Draft generation request
type GenerateRequest struct {
	EmailIDs           []string       `json:"emailIds"`
	GroupID            string         `json:"groupId"`
	CustomInstructions string         `json:"customInstructions"`
	ResponseRules      []ResponseRule `json:"responseRules"`
}

// DraftResult pairs a conversation with its new draft
type DraftResult struct {
	EmailID  string `json:"emailId"`
	Response string `json:"response"`
}

// GenerateResponse reports drafted replies
// @Description Draft generation response
type GenerateResponse struct {
	Success   bool          `json:"success" example:"true"`
	Count     int           `json:"count" example:"5"`
	Responses []DraftResult `json:"responses"`
	Error     string        `json:"error,omitempty"`
}

// SaveResponseRequest carries a human-edited draft
type SaveResponseRequest struct {
	EmailID  string `json:"emailId"`
	Response string `json:"response"`
}

// CommentRequest adds a comment to a conversation
type CommentRequest struct {
	EmailID    string `json:"emailId"`
	Content    string `json:"content"`
	IsInternal *bool  `json:"isInternal,omitempty"`
}

// CommentsResponse lists a conversation's comments
type CommentsResponse struct {
	Success  bool      `json:"success"`
	Comments []Comment `json:"comments"`
	Comment  *Comment  `json:"comment,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// BulkReplyRequest sends replies for several conversations
// @Description Bulk reply request
type BulkReplyRequest struct {
	EmailIDs      []string `json:"emailIds"`
	CustomMessage string   `json:"customMessage"`
}

// SendResult is the outcome for one conversation in a bulk send
type SendResult struct {
	EmailID   string `json:"emailId"`
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BulkReplyResponse reports per-item send outcomes
// @Description Bulk reply response
type BulkReplyResponse struct {
	Success bool         `json:"success"`
	Sent    int          `json:"sent"`
	Failed  int          `json:"failed"`
	Results []SendResult `json:"results"`
	Errors  []string     `json:"errors"`
	Error   string       `json:"error,omitempty"`
}

// MailAccountRequest links an OAuth mailbox to the caller
type MailAccountRequest struct {
	Provider     string     `json:"provider" example:"google"`
	EmailAddress string     `json:"emailAddress"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// OrderResponse wraps an order snapshot from a commerce collaborator
type OrderResponse struct {
	Success bool        `json:"success"`
	Order   interface{} `json:"order,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// TagRequest adds or removes a fulfillment tag
type TagRequest struct {
	OrderNumber string `json:"orderNumber"`
	Tag         string `json:"tag" example:"HOLD"`
	EmailID     string `json:"emailId"`
}

// LogsResponse returns buffered log lines, oldest first
type LogsResponse struct {
	Success  bool              `json:"success"`
	Count    int               `json:"count"`
	Capacity int               `json:"capacity"`
	Logs     []logbuffer.Entry `json:"logs"`
}

// AuditResponse lists audit events
type AuditResponse struct {
	Success bool         `json:"success"`
	Events  []AuditEvent `json:"events"`
	Error   string       `json:"error,omitempty"`
}
