package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"responder/internal/email"
	"responder/internal/metrics"
	"responder/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNoResponse is reported per item when neither an override nor a stored
// draft exists
var ErrNoResponse = errors.New("no response available for this email")

// SendReport summarizes one bulk send
type SendReport struct {
	Sent    int
	Failed  int
	Results []models.SendResult
	Errors  []string
}

// Responder covers human review: edits, comments and sending
type Responder struct {
	store     Store
	transport email.Transport
	logger    zerolog.Logger
}

// NewResponder creates a responder. transport may be nil when sending is
// not configured.
func NewResponder(store Store, transport email.Transport, logger zerolog.Logger) *Responder {
	return &Responder{
		store:     store,
		transport: transport,
		logger:    logger.With().Str("component", "responder").Logger(),
	}
}

// SaveEdit replaces the stored draft with human text and marks it edited
func (r *Responder) SaveEdit(ctx context.Context, userID, emailID, response string) error {
	if emailID == "" {
		return fmt.Errorf("%w: emailId is required", ErrInvalidInput)
	}
	return r.store.SaveEditedResponse(ctx, userID, emailID, response)
}

// Comments lists a conversation's comments, oldest first
func (r *Responder) Comments(ctx context.Context, userID, emailID string) ([]models.Comment, error) {
	if emailID == "" {
		return nil, fmt.Errorf("%w: emailId is required", ErrInvalidInput)
	}
	return r.store.ListComments(ctx, userID, emailID)
}

// AddComment appends a comment. Comments are internal unless isInternal is
// explicitly false.
func (r *Responder) AddComment(ctx context.Context, userID, emailID, content string, isInternal *bool) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if emailID == "" || content == "" {
		return nil, fmt.Errorf("%w: emailId and content are required", ErrInvalidInput)
	}

	comment := &models.Comment{
		ID:         uuid.NewString(),
		EmailID:    emailID,
		UserID:     userID,
		Content:    content,
		IsInternal: isInternal == nil || *isInternal,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.store.AddComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes a comment written by userID
func (r *Responder) DeleteComment(ctx context.Context, userID, commentID string) error {
	if commentID == "" {
		return fmt.Errorf("%w: commentId is required", ErrInvalidInput)
	}
	return r.store.DeleteComment(ctx, userID, commentID)
}

// LinkMailAccount stores the mailbox replies are sent from
func (r *Responder) LinkMailAccount(ctx context.Context, account *models.MailAccount) error {
	if account.UserID == "" || account.AccessToken == "" {
		return fmt.Errorf("%w: accessToken is required", ErrInvalidInput)
	}
	if account.Provider == "" {
		account.Provider = "google"
	}
	return r.store.SaveMailAccount(ctx, account)
}

// BulkSend replies to each conversation with override, or with its stored
// draft when override is empty. Items fail individually; a successful send
// clears needsAction.
func (r *Responder) BulkSend(ctx context.Context, userID string, ids []string, override string) (*SendReport, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: emailIds are required", ErrInvalidInput)
	}

	convs, err := r.store.GetConversations(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}
	if len(convs) == 0 {
		return nil, ErrNoConversations
	}

	account, err := r.store.GetMailAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrMailAccountNotLinked) || errors.Is(err, ErrNotFound) {
			return nil, ErrMailAccountNotLinked
		}
		return nil, fmt.Errorf("failed to load mail account: %w", err)
	}
	if r.transport == nil {
		return nil, errors.New("mail transport not configured")
	}

	report := &SendReport{Results: []models.SendResult{}, Errors: []string{}}
	fail := func(id string, err error) {
		report.Failed++
		report.Results = append(report.Results, models.SendResult{EmailID: id, Error: err.Error()})
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", id, err))
		metrics.RepliesSent.WithLabelValues(r.transport.Name(), "failed").Inc()
	}

	for i := range convs {
		conv := &convs[i]

		body := strings.TrimSpace(override)
		if body == "" && conv.AutoResponse != nil {
			body = strings.TrimSpace(*conv.AutoResponse)
		}
		if body == "" {
			fail(conv.ID, ErrNoResponse)
			continue
		}

		messageID, err := r.transport.Send(ctx, account, email.BuildReply(conv, body, account.EmailAddress))
		if err != nil {
			r.logger.Warn().Err(err).Str("email_id", conv.ID).Msg("Failed to send reply")
			fail(conv.ID, err)
			continue
		}

		if err := r.store.MarkSent(ctx, userID, conv.ID); err != nil {
			r.logger.Warn().Err(err).Str("email_id", conv.ID).Msg("Reply sent but needsAction not cleared")
		}

		report.Sent++
		report.Results = append(report.Results, models.SendResult{EmailID: conv.ID, Success: true, MessageID: messageID})
		metrics.RepliesSent.WithLabelValues(r.transport.Name(), "sent").Inc()
	}

	r.logger.Info().
		Str("user_id", userID).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Msg("Bulk send finished")

	return report, nil
}
