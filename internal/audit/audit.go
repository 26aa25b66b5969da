// Package audit records per-user pipeline and operator actions.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"responder/internal/database"
	"responder/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/rs/zerolog"
)

// Event types
const (
	EventUpload        = "upload"
	EventClassify      = "classify"
	EventRegroup       = "regroup"
	EventDraft         = "draft"
	EventEdit          = "edit"
	EventSend          = "send"
	EventComment       = "comment"
	EventCommentDelete = "comment_delete"
	EventTag           = "tag"
	EventUntag         = "untag"
	EventMailAccount   = "mail_account"
	EventOrderLookup   = "order_lookup"
)

const (
	// DefaultListLimit is used when the caller does not ask for a page size
	DefaultListLimit = 100
	maxListLimit     = 1000
)

// Store persists audit events
type Store interface {
	Insert(ctx context.Context, e *models.AuditEvent) error
	List(ctx context.Context, userID string, limit int) ([]models.AuditEvent, error)
}

// Service records events without failing the caller
type Service struct {
	store  Store
	logger zerolog.Logger
}

// NewService creates an audit service
func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Record stores one event. Failures are logged and swallowed so auditing
// never breaks the action being audited.
func (s *Service) Record(ctx context.Context, userID, eventType, emailID string, metadata map[string]interface{}) {
	if s == nil {
		return
	}

	event := &models.AuditEvent{
		UserID:    userID,
		EventType: eventType,
		CreatedAt: time.Now().UTC(),
	}
	if emailID != "" {
		event.EmailID = &emailID
	}
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err == nil {
			event.Metadata = types.NullJSONText{JSONText: b, Valid: true}
		}
	}

	if err := s.store.Insert(ctx, event); err != nil {
		s.logger.Warn().Err(err).
			Str("user_id", userID).
			Str("event_type", eventType).
			Msg("Failed to record audit event")
	}
}

// List returns the user's latest events, newest first
func (s *Service) List(ctx context.Context, userID string, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.store.List(ctx, userID, limit)
}

// MaskEmail hides most of an address for event metadata
func MaskEmail(email string) string {
	if len(email) < 3 {
		return "***"
	}
	return email[:2] + "***" + email[len(email)-3:]
}

// PostgresStore keeps events in audit_events
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a store on an open pool
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Insert(ctx context.Context, e *models.AuditEvent) error {
	var metadata interface{}
	if e.Metadata.Valid {
		metadata = string(e.Metadata.JSONText)
	}
	err := p.db.GetContext(ctx, &e.ID, `
		INSERT INTO audit_events (user_id, event_type, email_id, metadata, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
		RETURNING id`,
		e.UserID, e.EventType, e.EmailID, metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, userID string, limit int) ([]models.AuditEvent, error) {
	events := []models.AuditEvent{}
	err := database.ExecuteReadOnlyQuery(ctx, p.db, &events, `
		SELECT id, user_id, event_type, email_id, metadata, created_at
		FROM audit_events
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// MemoryStore keeps events in process for dry runs and tests
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	events []models.AuditEvent
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Insert(ctx context.Context, e *models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	e.ID = m.nextID
	m.events = append(m.events, *e)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, userID string, limit int) ([]models.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.AuditEvent{}
	for _, e := range m.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
