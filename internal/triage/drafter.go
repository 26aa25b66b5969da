package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"responder/internal/llm"
	"responder/internal/metrics"
	"responder/internal/models"

	"github.com/rs/zerolog"
)

const (
	// DefaultDraftBatchSize keeps one drafting prompt within context limits
	DefaultDraftBatchSize = 5

	draftMaxTokens = 4000
)

const draftGuidelines = `IMPORTANT GUIDELINES:
1. Extract customer names from emails when available and use them
2. Identify order numbers (formats: #12345, Order 12345, or just 12345)
3. Be empathetic and professional
4. Keep responses concise but helpful
5. Acknowledge specific concerns mentioned in the email
6. For product stock issues (elastics, charms), use appropriate explanations
7. Always maintain a helpful and solution-oriented tone
`

const draftOutputFormat = `
OUTPUT FORMAT:
Return a JSON array where each element corresponds to an email with this structure:
[
  {
    "response": "The personalized response text",
    "needsAction": true/false (false for thank you messages or confirmations)
  }
]`

// DraftRequest selects conversations and steers drafting
type DraftRequest struct {
	EmailIDs           []string
	GroupID            string
	CustomInstructions string
	Rules              []models.ResponseRule
}

// Draft is one stored reply
type Draft struct {
	EmailID     string
	Response    string
	NeedsAction bool
}

type draftReply struct {
	Response    string `json:"response"`
	NeedsAction *bool  `json:"needsAction"`
}

// Drafter requests reply drafts from the LLM in fixed-size batches
type Drafter struct {
	store     Store
	client    llm.Client
	batchSize int
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewDrafter creates a drafter
func NewDrafter(store Store, client llm.Client, batchSize int, timeout time.Duration, logger zerolog.Logger) *Drafter {
	if batchSize <= 0 {
		batchSize = DefaultDraftBatchSize
	}
	return &Drafter{
		store:     store,
		client:    client,
		batchSize: batchSize,
		timeout:   timeout,
		logger:    logger.With().Str("component", "drafter").Logger(),
	}
}

// Generate drafts replies for the requested conversations and stores them.
// A batch whose request or response fails is skipped entirely; the returned
// drafts are the ones that were stored.
func (d *Drafter) Generate(ctx context.Context, userID string, req DraftRequest) ([]Draft, error) {
	rules, err := CompileRules(req.Rules)
	if err != nil {
		return nil, err
	}
	if d.client == nil {
		return nil, llm.ErrNotConfigured
	}

	convs, err := d.resolve(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	system := BuildSystemPrompt(req.CustomInstructions, rules)
	drafts := []Draft{}
	batches := (len(convs) + d.batchSize - 1) / d.batchSize

	for start := 0; start < len(convs); start += d.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + d.batchSize
		if end > len(convs) {
			end = len(convs)
		}
		batch := convs[start:end]
		batchNum := start/d.batchSize + 1

		replies, err := d.draftBatch(ctx, system, BuildUserPrompt(batch, rules))
		if err != nil {
			metrics.PipelineBatches.WithLabelValues("draft", "skipped").Inc()
			d.logger.Error().Err(err).
				Int("batch", batchNum).
				Int("batches", batches).
				Msg("Draft batch failed, skipping")
			continue
		}
		metrics.PipelineBatches.WithLabelValues("draft", "ok").Inc()

		for i := 0; i < len(batch) && i < len(replies); i++ {
			reply := replies[i]
			if strings.TrimSpace(reply.Response) == "" {
				continue
			}
			needsAction := reply.NeedsAction == nil || *reply.NeedsAction
			if err := d.store.SaveDraft(ctx, userID, batch[i].ID, reply.Response, needsAction); err != nil {
				d.logger.Warn().Err(err).Str("email_id", batch[i].ID).Msg("Failed to save draft")
				continue
			}
			drafts = append(drafts, Draft{EmailID: batch[i].ID, Response: reply.Response, NeedsAction: needsAction})
		}
	}

	d.logger.Info().
		Str("user_id", userID).
		Int("conversations", len(convs)).
		Int("drafted", len(drafts)).
		Msg("Draft generation finished")

	return drafts, nil
}

func (d *Drafter) resolve(ctx context.Context, userID string, req DraftRequest) ([]models.Conversation, error) {
	var (
		convs []models.Conversation
		err   error
	)
	switch {
	case req.GroupID != "":
		convs, err = d.store.GroupConversations(ctx, userID, req.GroupID)
	case len(req.EmailIDs) > 0:
		convs, err = d.store.GetConversations(ctx, userID, req.EmailIDs)
	default:
		return nil, fmt.Errorf("%w: emailIds or groupId is required", ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}
	if len(convs) == 0 {
		return nil, ErrNoConversations
	}
	return convs, nil
}

func (d *Drafter) draftBatch(ctx context.Context, system, user string) ([]draftReply, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	resp, err := d.client.Complete(ctx, llm.UserPrompt(system, user, draftMaxTokens))
	if err != nil {
		return nil, err
	}
	return llm.DecodeArray[draftReply](resp.Content)
}

// BuildSystemPrompt renders the base guidance, the caller's instructions and
// the active rules in precedence order
func BuildSystemPrompt(customInstructions string, rules []Rule) string {
	var b strings.Builder
	b.WriteString("You are an expert customer service representative helping to respond to customer emails.\n\n")
	if custom := strings.TrimSpace(customInstructions); custom != "" {
		fmt.Fprintf(&b, "CUSTOM INSTRUCTIONS:\n%s\n\n", custom)
	}
	b.WriteString(draftGuidelines)

	if len(rules) > 0 {
		b.WriteString("\nSPECIAL RESPONSE RULES (apply these when conditions match):\n")
		for _, r := range rules {
			fmt.Fprintf(&b, "- If %s matches %q: %s\n", r.Trigger(), r.Condition, r.Response)
		}
	}

	b.WriteString(draftOutputFormat)
	return b.String()
}

// BuildUserPrompt enumerates one batch with classification context and the
// rules each conversation matches
func BuildUserPrompt(batch []models.Conversation, rules []Rule) string {
	var b strings.Builder
	b.WriteString("Generate personalized customer service responses for these emails:\n\n")

	for i := range batch {
		conv := &batch[i]
		fmt.Fprintf(&b, "EMAIL %d:\n", i+1)

		from := conv.FromEmail
		if from == "" {
			from = "Unknown"
		}
		b.WriteString("From: " + from)
		if conv.FromName != nil {
			b.WriteString(" (" + *conv.FromName + ")")
		}
		b.WriteString("\n")

		if conv.Subject != "" {
			fmt.Fprintf(&b, "Subject: %s\n", conv.Subject)
		}
		if conv.OrderNumber != nil {
			fmt.Fprintf(&b, "Order Number: %s\n", *conv.OrderNumber)
		}
		if conv.Category != nil {
			fmt.Fprintf(&b, "Category: %s (urgency %d", *conv.Category, conv.UrgencyOrDefault())
			if conv.Sentiment != nil {
				fmt.Fprintf(&b, ", sentiment %s", *conv.Sentiment)
			}
			b.WriteString(")\n")
		}
		if len(conv.KeyIssues) > 0 {
			fmt.Fprintf(&b, "Key Issues: %s\n", strings.Join(conv.KeyIssues, "; "))
		}
		if conv.SuggestedTone != nil && *conv.SuggestedTone != "" {
			fmt.Fprintf(&b, "Suggested Tone: %s\n", *conv.SuggestedTone)
		}

		message := conv.MessageText
		if message == "" {
			message = "No message"
		}
		fmt.Fprintf(&b, "Message: %s\n", message)

		if matched := MatchingRules(rules, conv); len(matched) > 0 {
			names := make([]string, len(matched))
			for j, r := range matched {
				names[j] = fmt.Sprintf("%s %q", r.Trigger(), r.Condition)
			}
			fmt.Fprintf(&b, "Matching Rules: %s\n", strings.Join(names, ", "))
		}
		b.WriteString("\n---\n\n")
	}

	b.WriteString("\nGenerate appropriate responses for each email. For \"thank you\" messages or confirmations, set needsAction to false.")
	return b.String()
}
