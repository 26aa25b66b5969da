package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"responder/internal/llm"
	"responder/internal/metrics"
	"responder/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// DefaultClassifyBatchSize keeps one classification prompt within context limits
	DefaultClassifyBatchSize = 15

	classifyMaxTokens = 4000
	summaryMaxChars   = 1000
	defaultUrgency    = 5
)

const classifySystemPrompt = `You are a customer support triage assistant for an online store.
Classify each customer email conversation you are given.

CATEGORIES:
- PRIORITY: damaged, broken, wrong or missing items, refunds and returns
- ORDER_STATUS: where is my order, tracking, shipping and delivery questions
- WHOLESALE: wholesale, bulk, reseller or distributor inquiries
- NO_ACTION: thank-you notes, confirmations, messages that need no reply
- OTHER: anything else

For every conversation extract:
- urgency: integer 1 (can wait) to 10 (angry customer, time critical)
- sentiment: one of positive, neutral, negative, frustrated
- customerName: the customer's name if it appears, else ""
- orderNumber: the order number if it appears (digits only), else ""
- keyIssues: up to 5 short phrases
- suggestedTone: a few words describing how to reply
- similarityTags: 1 to 3 short lowercase tags naming the underlying issue, reused
  across conversations about the same issue

OUTPUT FORMAT:
Return only a JSON array with one element per conversation, in input order:
[
  {
    "id": "conversation id",
    "category": "ORDER_STATUS",
    "urgency": 6,
    "sentiment": "negative",
    "customerName": "Jane Doe",
    "orderNumber": "12345",
    "keyIssues": ["package not delivered"],
    "suggestedTone": "apologetic and reassuring",
    "similarityTags": ["late delivery"]
  }
]`

type classification struct {
	ID             string       `json:"id"`
	Category       string       `json:"category"`
	Urgency        urgencyScore `json:"urgency"`
	Sentiment      string       `json:"sentiment"`
	CustomerName   string       `json:"customerName"`
	OrderNumber    string       `json:"orderNumber"`
	KeyIssues      []string     `json:"keyIssues"`
	SuggestedTone  string       `json:"suggestedTone"`
	SimilarityTags []string     `json:"similarityTags"`
}

// urgencyScore accepts 7, 7.5 and "7". Anything else reads as unset so one
// odd field does not fail the whole batch.
type urgencyScore float64

func (u *urgencyScore) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil || n == "" {
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil
	}
	*u = urgencyScore(f)
	return nil
}

// DefaultInsights is applied when a batch cannot be classified
func DefaultInsights() Insights {
	return Insights{
		Category:       models.GroupOther,
		Urgency:        defaultUrgency,
		Sentiment:      models.SentimentNeutral,
		KeyIssues:      []string{},
		SimilarityTags: []string{},
	}
}

// Classifier annotates conversations with LLM insights in fixed-size batches
type Classifier struct {
	store     Store
	client    llm.Client
	batchSize int
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewClassifier creates a classifier. A zero timeout leaves batches bounded
// only by the caller's context.
func NewClassifier(store Store, client llm.Client, batchSize int, timeout time.Duration, logger zerolog.Logger) *Classifier {
	if batchSize <= 0 {
		batchSize = DefaultClassifyBatchSize
	}
	return &Classifier{
		store:     store,
		client:    client,
		batchSize: batchSize,
		timeout:   timeout,
		logger:    logger.With().Str("component", "classifier").Logger(),
	}
}

// Classify annotates the given conversations of userID and returns them with
// insights applied. A failed batch falls back to DefaultInsights and does
// not stop later batches.
func (c *Classifier) Classify(ctx context.Context, userID string, ids []string) ([]models.Conversation, error) {
	if c.client == nil {
		return nil, llm.ErrNotConfigured
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: email ids are required", ErrInvalidInput)
	}

	convs, err := c.store.GetConversations(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}
	if len(convs) == 0 {
		return nil, ErrNoConversations
	}

	batches := (len(convs) + c.batchSize - 1) / c.batchSize
	for start := 0; start < len(convs); start += c.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + c.batchSize
		if end > len(convs) {
			end = len(convs)
		}
		batch := convs[start:end]
		batchNum := start/c.batchSize + 1

		results := c.classifyBatch(ctx, batch, batchNum, batches)
		for i := range batch {
			in := results[i]
			if batch[i].FromName != nil {
				in.CustomerName = ""
			}
			if batch[i].OrderNumber != nil {
				in.OrderNumber = ""
			}
			if err := c.store.SaveInsights(ctx, userID, batch[i].ID, in); err != nil {
				c.logger.Warn().Err(err).Str("email_id", batch[i].ID).Msg("Failed to save insights")
				continue
			}
			applyInsights(&batch[i], in)
		}
	}

	return convs, nil
}

// classifyBatch always returns one Insights per conversation
func (c *Classifier) classifyBatch(ctx context.Context, batch []models.Conversation, batchNum, batches int) []Insights {
	results := make([]Insights, len(batch))
	for i := range results {
		results[i] = DefaultInsights()
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.Complete(ctx, llm.UserPrompt(classifySystemPrompt, buildClassifyPrompt(batch), classifyMaxTokens))
	if err != nil {
		metrics.PipelineBatches.WithLabelValues("classify", "fallback").Inc()
		c.logger.Error().Err(err).
			Int("batch", batchNum).
			Int("batches", batches).
			Msg("Classification request failed, using defaults")
		return results
	}

	parsed, err := llm.DecodeArray[classification](resp.Content)
	if err != nil {
		metrics.PipelineBatches.WithLabelValues("classify", "fallback").Inc()
		c.logger.Error().Err(err).
			Int("batch", batchNum).
			Str("provider", resp.Provider).
			Msg("Unparseable classification, using defaults")
		return results
	}

	byID := make(map[string]classification, len(parsed))
	for _, p := range parsed {
		if p.ID != "" {
			byID[p.ID] = p
		}
	}
	for i, conv := range batch {
		if p, ok := byID[conv.ID]; ok {
			results[i] = sanitize(p)
		} else if i < len(parsed) {
			results[i] = sanitize(parsed[i])
		}
	}

	metrics.PipelineBatches.WithLabelValues("classify", "ok").Inc()
	c.logger.Info().
		Int("batch", batchNum).
		Int("batches", batches).
		Int("conversations", len(batch)).
		Int("tokens_in", resp.TokensIn).
		Int("tokens_out", resp.TokensOut).
		Msg("Classified batch")
	return results
}

func buildClassifyPrompt(batch []models.Conversation) string {
	var b strings.Builder
	b.WriteString("Classify these customer email conversations:\n\n")
	for i, conv := range batch {
		fmt.Fprintf(&b, "CONVERSATION %d\n", i+1)
		fmt.Fprintf(&b, "ID: %s\n", conv.ID)
		fmt.Fprintf(&b, "Subject: %s\n", conv.Subject)
		from := conv.FromEmail
		if from == "" {
			from = "Unknown"
		}
		if conv.FromName != nil {
			from += " (" + *conv.FromName + ")"
		}
		fmt.Fprintf(&b, "From: %s\n", from)
		if conv.OrderNumber != nil {
			fmt.Fprintf(&b, "Known Order Number: %s\n", *conv.OrderNumber)
		}
		fmt.Fprintf(&b, "Message: %s\n\n---\n\n", truncate(conv.MessageText, summaryMaxChars))
	}
	return b.String()
}

func sanitize(p classification) Insights {
	in := DefaultInsights()
	in.Category = models.ParseGroupType(strings.ToUpper(strings.TrimSpace(p.Category)))

	if p.Urgency != 0 {
		in.Urgency = int(float64(p.Urgency) + 0.5)
		if in.Urgency < 1 {
			in.Urgency = 1
		}
		if in.Urgency > 10 {
			in.Urgency = 10
		}
	}

	switch s := strings.ToLower(strings.TrimSpace(p.Sentiment)); s {
	case models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative, models.SentimentFrustrated:
		in.Sentiment = s
	}

	in.CustomerName = displayName(p.CustomerName)
	in.OrderNumber = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(p.OrderNumber), "#"))
	in.SuggestedTone = strings.TrimSpace(p.SuggestedTone)

	for _, issue := range p.KeyIssues {
		if issue = strings.TrimSpace(issue); issue != "" {
			in.KeyIssues = append(in.KeyIssues, issue)
		}
	}
	in.SimilarityTags = normalizeTags(p.SimilarityTags)
	return in
}

// displayName title-cases names written in a single case and leaves mixed
// case alone ("McDonald", "DeShawn")
func displayName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name != strings.ToLower(name) && name != strings.ToUpper(name) {
		return name
	}
	// Caser keeps state between calls, so one per name
	return cases.Title(language.English).String(name)
}

// normalizeTags lowercases, trims and dedupes tags, keeping first-seen order
func normalizeTags(tags []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func applyInsights(conv *models.Conversation, in Insights) {
	category := string(in.Category)
	urgency := in.Urgency
	sentiment := in.Sentiment
	tone := in.SuggestedTone
	conv.Category = &category
	conv.Urgency = &urgency
	conv.Sentiment = &sentiment
	conv.SuggestedTone = &tone
	conv.KeyIssues = in.KeyIssues
	conv.SimilarityTags = in.SimilarityTags
	if conv.FromName == nil && in.CustomerName != "" {
		name := in.CustomerName
		conv.FromName = &name
	}
	if conv.OrderNumber == nil && in.OrderNumber != "" {
		order := in.OrderNumber
		conv.OrderNumber = &order
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}

// tagKey identifies a tag set regardless of order
func tagKey(tags []string) string {
	norm := normalizeTags(tags)
	sort.Strings(norm)
	return strings.Join(norm, "\x1f")
}
