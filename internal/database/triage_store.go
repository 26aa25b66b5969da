package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"responder/internal/models"
	"responder/internal/triage"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

const insertConversationSQL = `
	INSERT INTO email_correspondence (
		id, user_id, group_id, ticket_id, conversation_id, conversation_url,
		subject, from_email, from_name, message_text, labels, inbox,
		creation_date, closed_date, assignee, order_number, needs_action,
		is_edited, created_at, updated_at
	) VALUES (
		:id, :user_id, :group_id, :ticket_id, :conversation_id, :conversation_url,
		:subject, :from_email, :from_name, :message_text, :labels, :inbox,
		:creation_date, :closed_date, :assignee, :order_number, :needs_action,
		:is_edited, :created_at, :updated_at
	)`

// TriageStore is the PostgreSQL implementation of triage.Store
type TriageStore struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

// NewTriageStore creates a store on an open pool
func NewTriageStore(db *sqlx.DB, logger zerolog.Logger) *TriageStore {
	return &TriageStore{
		db:     db,
		logger: logger.With().Str("component", "triage_store").Logger(),
	}
}

type txWriter struct {
	tx *sqlx.Tx
}

func (w txWriter) DeleteUserData(ctx context.Context, userID string) error {
	// Comments go with their conversations through ON DELETE CASCADE
	if _, err := w.tx.ExecContext(ctx, `DELETE FROM email_correspondence WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete conversations: %w", err)
	}
	if _, err := w.tx.ExecContext(ctx, `DELETE FROM email_groups WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete groups: %w", err)
	}
	return nil
}

// InsertConversation wraps the insert in a savepoint so a rejected row does
// not abort the surrounding transaction
func (w txWriter) InsertConversation(ctx context.Context, c *models.Conversation) error {
	if _, err := w.tx.ExecContext(ctx, `SAVEPOINT insert_conversation`); err != nil {
		return err
	}
	if _, err := w.tx.NamedExecContext(ctx, insertConversationSQL, c); err != nil {
		if _, rbErr := w.tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT insert_conversation`); rbErr != nil {
			return fmt.Errorf("%w (savepoint rollback failed: %v)", err, rbErr)
		}
		return err
	}
	_, err := w.tx.ExecContext(ctx, `RELEASE SAVEPOINT insert_conversation`)
	return err
}

func (s *TriageStore) ReplaceConversations(ctx context.Context, userID string, fn func(w triage.ConversationWriter) error) error {
	return WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(txWriter{tx: tx})
	})
}

func (s *TriageStore) GetConversations(ctx context.Context, userID string, ids []string) ([]models.Conversation, error) {
	convs := []models.Conversation{}
	if len(ids) == 0 {
		return convs, nil
	}
	err := s.db.SelectContext(ctx, &convs, `
		SELECT * FROM email_correspondence
		WHERE user_id = $1 AND id = ANY($2::text[])
		ORDER BY array_position($2::text[], id::text)`,
		userID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get conversations: %w", err)
	}
	return convs, nil
}

func (s *TriageStore) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	convs := []models.Conversation{}
	err := s.db.SelectContext(ctx, &convs, `
		SELECT * FROM email_correspondence
		WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

func (s *TriageStore) GroupConversations(ctx context.Context, userID, groupID string) ([]models.Conversation, error) {
	convs := []models.Conversation{}
	err := s.db.SelectContext(ctx, &convs, `
		SELECT * FROM email_correspondence
		WHERE user_id = $1 AND group_id = $2
		ORDER BY created_at, id`, userID, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group conversations: %w", err)
	}
	return convs, nil
}

// exec runs a single-row update and maps zero affected rows to ErrNotFound
func (s *TriageStore) exec(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return triage.ErrNotFound
	}
	return nil
}

func (s *TriageStore) SaveInsights(ctx context.Context, userID, id string, in triage.Insights) error {
	return s.exec(ctx, `
		UPDATE email_correspondence SET
			category = $3,
			urgency = $4,
			sentiment = $5,
			suggested_tone = $6,
			key_issues = $7,
			similarity_tags = $8,
			from_name = COALESCE(from_name, NULLIF($9, '')),
			order_number = COALESCE(order_number, NULLIF($10, '')),
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2`,
		id, userID, string(in.Category), in.Urgency, in.Sentiment, in.SuggestedTone,
		pq.Array(in.KeyIssues), pq.Array(in.SimilarityTags), in.CustomerName, in.OrderNumber)
}

func (s *TriageStore) FindOrCreateGroup(ctx context.Context, userID string, g *models.Group) (*models.Group, error) {
	id := g.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO email_groups (id, user_id, type, name, description, priority, is_expanded)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, type) DO NOTHING`,
		id, userID, string(g.Type), g.Name, g.Description, g.Priority, g.IsExpanded)
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	var group models.Group
	if err := s.db.GetContext(ctx, &group, `SELECT * FROM email_groups WHERE user_id = $1 AND type = $2`, userID, string(g.Type)); err != nil {
		return nil, fmt.Errorf("failed to load group: %w", err)
	}
	return &group, nil
}

func (s *TriageStore) AssignGroup(ctx context.Context, userID, groupID string, ids []string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE email_correspondence SET group_id = $1, updated_at = NOW()
		WHERE user_id = $2 AND id = ANY($3::text[])`,
		groupID, userID, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to assign group: %w", err)
	}
	return nil
}

func (s *TriageStore) ListGroups(ctx context.Context, userID string) ([]models.Group, error) {
	groups := []models.Group{}
	if err := s.db.SelectContext(ctx, &groups, `SELECT * FROM email_groups WHERE user_id = $1 ORDER BY priority`, userID); err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	if len(groups) == 0 {
		return groups, nil
	}

	var convs []models.Conversation
	err := s.db.SelectContext(ctx, &convs, `
		SELECT * FROM email_correspondence
		WHERE user_id = $1 AND group_id IS NOT NULL
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grouped conversations: %w", err)
	}

	byGroup := make(map[string][]models.Conversation, len(groups))
	for _, c := range convs {
		byGroup[*c.GroupID] = append(byGroup[*c.GroupID], c)
	}
	for i := range groups {
		groups[i].Emails = byGroup[groups[i].ID]
		if groups[i].Emails == nil {
			groups[i].Emails = []models.Conversation{}
		}
	}
	return groups, nil
}

func (s *TriageStore) SaveDraft(ctx context.Context, userID, id, response string, needsAction bool) error {
	return s.exec(ctx, `
		UPDATE email_correspondence SET auto_response = $3, needs_action = $4, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`, id, userID, response, needsAction)
}

func (s *TriageStore) SaveEditedResponse(ctx context.Context, userID, id, response string) error {
	return s.exec(ctx, `
		UPDATE email_correspondence SET auto_response = $3, is_edited = TRUE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`, id, userID, response)
}

func (s *TriageStore) MarkSent(ctx context.Context, userID, id string) error {
	return s.exec(ctx, `
		UPDATE email_correspondence SET needs_action = FALSE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`, id, userID)
}

func (s *TriageStore) ListComments(ctx context.Context, userID, emailID string) ([]models.Comment, error) {
	var owned bool
	if err := s.db.GetContext(ctx, &owned, `SELECT EXISTS (SELECT 1 FROM email_correspondence WHERE id = $1 AND user_id = $2)`, emailID, userID); err != nil {
		return nil, fmt.Errorf("failed to check conversation: %w", err)
	}
	if !owned {
		return nil, triage.ErrNotFound
	}

	comments := []models.Comment{}
	if err := s.db.SelectContext(ctx, &comments, `SELECT * FROM email_comments WHERE email_id = $1 ORDER BY created_at ASC`, emailID); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// AddComment inserts only when the conversation belongs to the comment's author
func (s *TriageStore) AddComment(ctx context.Context, c *models.Comment) error {
	return s.exec(ctx, `
		INSERT INTO email_comments (id, email_id, user_id, content, is_internal, created_at)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE EXISTS (SELECT 1 FROM email_correspondence WHERE id = $2 AND user_id = $3)`,
		c.ID, c.EmailID, c.UserID, c.Content, c.IsInternal, c.CreatedAt)
}

func (s *TriageStore) DeleteComment(ctx context.Context, userID, commentID string) error {
	return s.exec(ctx, `DELETE FROM email_comments WHERE id = $1 AND user_id = $2`, commentID, userID)
}

func (s *TriageStore) GetMailAccount(ctx context.Context, userID string) (*models.MailAccount, error) {
	var account models.MailAccount
	err := s.db.GetContext(ctx, &account, `SELECT * FROM mail_accounts WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, triage.ErrMailAccountNotLinked
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mail account: %w", err)
	}
	return &account, nil
}

func (s *TriageStore) SaveMailAccount(ctx context.Context, a *models.MailAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mail_accounts (user_id, provider, email_address, access_token, refresh_token, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			provider = EXCLUDED.provider,
			email_address = EXCLUDED.email_address,
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(EXCLUDED.refresh_token, mail_accounts.refresh_token),
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`,
		a.UserID, a.Provider, a.EmailAddress, a.AccessToken, a.RefreshToken, a.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to save mail account: %w", err)
	}
	return nil
}

func (s *TriageStore) SaveOrderData(ctx context.Context, userID, emailID, source string, data []byte) error {
	var column string
	switch source {
	case "shopify":
		column = "shopify_data"
	case "shipstation":
		column = "shipstation_data"
	default:
		return fmt.Errorf("unknown order source %q", source)
	}
	return s.exec(ctx,
		`UPDATE email_correspondence SET `+column+` = $3::jsonb, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
		emailID, userID, string(data))
}

var _ triage.Store = (*TriageStore)(nil)
