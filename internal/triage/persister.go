package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"responder/internal/ingest"
	"responder/internal/metrics"
	"responder/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultInsertBatchSize bounds how many tickets are written per progress step
const DefaultInsertBatchSize = 50

// UploadResult reports what one upload created
type UploadResult struct {
	Created       int
	Filtered      int
	Skipped       int
	IDs           []string
	Conversations []models.Conversation
	Stats         ingest.Stats
}

// Persister replaces a user's conversations with a freshly reconstructed export
type Persister struct {
	store     Store
	batchSize int
	logger    zerolog.Logger
	now       func() time.Time
}

// NewPersister creates a persister writing batchSize tickets per step
func NewPersister(store Store, batchSize int, logger zerolog.Logger) *Persister {
	if batchSize <= 0 {
		batchSize = DefaultInsertBatchSize
	}
	return &Persister{
		store:     store,
		batchSize: batchSize,
		logger:    logger.With().Str("component", "persister").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Ingest normalizes header-keyed records and persists them for userID
func (p *Persister) Ingest(ctx context.Context, userID string, records []map[string]string) (*UploadResult, error) {
	if len(records) == 0 {
		return nil, ErrNoRows
	}
	return p.IngestRows(ctx, userID, ingest.Normalize(records))
}

// IngestRows reconstructs tickets from rows in export order and replaces all
// of userID's conversations and groups with them. Tickets that fail to
// persist are skipped and counted.
func (p *Persister) IngestRows(ctx context.Context, userID string, rows []ingest.RawRow) (*UploadResult, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	tickets, stats := ingest.Reconstruct(rows)
	recordFiltered(stats)

	p.logger.Info().
		Str("user_id", userID).
		Int("rows", stats.Rows).
		Int("tickets", len(tickets)).
		Int("spam_tickets", stats.SpamTickets).
		Int("system_messages", stats.SystemMessages).
		Int("empty_tickets", stats.EmptyTickets).
		Int("orphan_rows", stats.OrphanRows).
		Msg("Reconstructed tickets")

	result := &UploadResult{
		Filtered: len(rows) - len(tickets),
		Stats:    stats,
		IDs:      []string{},
	}

	err := p.store.ReplaceConversations(ctx, userID, func(w ConversationWriter) error {
		if err := w.DeleteUserData(ctx, userID); err != nil {
			return fmt.Errorf("failed to clear previous upload: %w", err)
		}

		batches := (len(tickets) + p.batchSize - 1) / p.batchSize
		for start := 0; start < len(tickets); start += p.batchSize {
			end := start + p.batchSize
			if end > len(tickets) {
				end = len(tickets)
			}

			for _, t := range tickets[start:end] {
				conv := p.toConversation(userID, t)
				if err := w.InsertConversation(ctx, conv); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					result.Skipped++
					p.logger.Warn().Err(err).
						Str("ticket_id", t.TicketID).
						Msg("Skipping ticket that failed to persist")
					continue
				}
				result.IDs = append(result.IDs, conv.ID)
				result.Conversations = append(result.Conversations, *conv)
			}

			p.logger.Debug().
				Int("batch", start/p.batchSize+1).
				Int("batches", batches).
				Msg("Persisted ticket batch")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Created = len(result.IDs)
	metrics.ConversationsIngested.Add(float64(result.Created))

	p.logger.Info().
		Str("user_id", userID).
		Int("created", result.Created).
		Int("filtered", result.Filtered).
		Int("skipped", result.Skipped).
		Msg("Upload persisted")

	return result, nil
}

func (p *Persister) toConversation(userID string, t ingest.Ticket) *models.Conversation {
	now := p.now()
	conv := &models.Conversation{
		ID:              uuid.NewString(),
		UserID:          userID,
		TicketID:        t.TicketID,
		ConversationID:  t.ConversationID,
		ConversationURL: optional(t.ConversationURL),
		Subject:         t.Subject,
		FromEmail:       strings.TrimSpace(t.CustomerEmail),
		FromName:        optional(t.CustomerName),
		MessageText:     t.MessageText(),
		Labels:          ingest.SplitLabels(t.Labels),
		Inbox:           optional(t.Inbox),
		Assignee:        optional(t.Assignee),
		NeedsAction:     true,
		KeyIssues:       []string{},
		SimilarityTags:  []string{},
		CreationDate:    now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if created, ok := ingest.ParseDate(t.CreationDate); ok {
		conv.CreationDate = created
	}
	if closed, ok := ingest.ParseDate(t.ClosedDate); ok {
		conv.ClosedDate = &closed
	}
	if order, ok := ingest.TicketOrderNumber(t); ok {
		conv.OrderNumber = &order
	}
	return conv
}

func recordFiltered(stats ingest.Stats) {
	metrics.RowsFiltered.WithLabelValues("spam").Add(float64(stats.SpamTickets))
	metrics.RowsFiltered.WithLabelValues("system").Add(float64(stats.SystemMessages))
	metrics.RowsFiltered.WithLabelValues("empty_ticket").Add(float64(stats.EmptyTickets))
	metrics.RowsFiltered.WithLabelValues("orphan").Add(float64(stats.OrphanRows))
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
