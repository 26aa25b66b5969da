package triage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"responder/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// MemoryStore is an in-process Store used for dry runs and tests
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]models.Conversation
	order         []string
	groups        map[string]models.Group
	comments      []models.Comment
	accounts      map[string]models.MailAccount
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]models.Conversation),
		groups:        make(map[string]models.Group),
		accounts:      make(map[string]models.MailAccount),
	}
}

type memWriter struct {
	s *MemoryStore
}

func (w memWriter) DeleteUserData(ctx context.Context, userID string) error {
	s := w.s
	kept := s.order[:0:0]
	for _, id := range s.order {
		if s.conversations[id].UserID == userID {
			delete(s.conversations, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept

	comments := s.comments[:0:0]
	for _, c := range s.comments {
		if _, ok := s.conversations[c.EmailID]; ok {
			comments = append(comments, c)
		}
	}
	s.comments = comments

	for id, g := range s.groups {
		if g.UserID == userID {
			delete(s.groups, id)
		}
	}
	return nil
}

func (w memWriter) InsertConversation(ctx context.Context, c *models.Conversation) error {
	if strings.TrimSpace(c.MessageText) == "" {
		return errors.New("message_text must not be empty")
	}
	if _, exists := w.s.conversations[c.ID]; exists {
		return errors.New("duplicate conversation id")
	}
	w.s.conversations[c.ID] = *c
	w.s.order = append(w.s.order, c.ID)
	return nil
}

// ReplaceConversations applies fn to a copy and keeps it only when fn succeeds
func (s *MemoryStore) ReplaceConversations(ctx context.Context, userID string, fn func(w ConversationWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := &MemoryStore{
		conversations: make(map[string]models.Conversation, len(s.conversations)),
		order:         append([]string(nil), s.order...),
		groups:        make(map[string]models.Group, len(s.groups)),
		comments:      append([]models.Comment(nil), s.comments...),
		accounts:      s.accounts,
	}
	for k, v := range s.conversations {
		draft.conversations[k] = v
	}
	for k, v := range s.groups {
		draft.groups[k] = v
	}

	if err := fn(memWriter{s: draft}); err != nil {
		return err
	}

	s.conversations = draft.conversations
	s.order = draft.order
	s.groups = draft.groups
	s.comments = draft.comments
	return nil
}

func (s *MemoryStore) GetConversations(ctx context.Context, userID string, ids []string) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Conversation, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.conversations[id]; ok && c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Conversation
	for _, id := range s.order {
		if c := s.conversations[id]; c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) GroupConversations(ctx context.Context, userID, groupID string) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Conversation
	for _, id := range s.order {
		c := s.conversations[id]
		if c.UserID == userID && c.GroupID != nil && *c.GroupID == groupID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) update(userID, id string, fn func(c *models.Conversation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	fn(&c)
	c.UpdatedAt = time.Now().UTC()
	s.conversations[id] = c
	return nil
}

func (s *MemoryStore) SaveInsights(ctx context.Context, userID, id string, in Insights) error {
	return s.update(userID, id, func(c *models.Conversation) {
		category := string(in.Category)
		urgency := in.Urgency
		sentiment := in.Sentiment
		tone := in.SuggestedTone
		c.Category = &category
		c.Urgency = &urgency
		c.Sentiment = &sentiment
		c.SuggestedTone = &tone
		c.KeyIssues = append([]string{}, in.KeyIssues...)
		c.SimilarityTags = append([]string{}, in.SimilarityTags...)
		if c.FromName == nil && in.CustomerName != "" {
			name := in.CustomerName
			c.FromName = &name
		}
		if c.OrderNumber == nil && in.OrderNumber != "" {
			order := in.OrderNumber
			c.OrderNumber = &order
		}
	})
}

func (s *MemoryStore) FindOrCreateGroup(ctx context.Context, userID string, g *models.Group) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.groups {
		if existing.UserID == userID && existing.Type == g.Type {
			found := existing
			return &found, nil
		}
	}

	created := *g
	created.ID = uuid.NewString()
	created.UserID = userID
	created.CreatedAt = time.Now().UTC()
	created.UpdatedAt = created.CreatedAt
	created.Emails = nil
	s.groups[created.ID] = created
	return &created, nil
}

func (s *MemoryStore) AssignGroup(ctx context.Context, userID, groupID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		c, ok := s.conversations[id]
		if !ok || c.UserID != userID {
			continue
		}
		gid := groupID
		c.GroupID = &gid
		s.conversations[id] = c
	}
	return nil
}

func (s *MemoryStore) ListGroups(ctx context.Context, userID string) ([]models.Group, error) {
	s.mu.RLock()
	var out []models.Group
	for _, g := range s.groups {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	for i := range out {
		emails, err := s.GroupConversations(ctx, userID, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Emails = emails
	}
	return out, nil
}

func (s *MemoryStore) SaveDraft(ctx context.Context, userID, id, response string, needsAction bool) error {
	return s.update(userID, id, func(c *models.Conversation) {
		r := response
		c.AutoResponse = &r
		c.NeedsAction = needsAction
	})
}

func (s *MemoryStore) SaveEditedResponse(ctx context.Context, userID, id, response string) error {
	return s.update(userID, id, func(c *models.Conversation) {
		r := response
		c.AutoResponse = &r
		c.IsEdited = true
	})
}

func (s *MemoryStore) MarkSent(ctx context.Context, userID, id string) error {
	return s.update(userID, id, func(c *models.Conversation) {
		c.NeedsAction = false
	})
}

func (s *MemoryStore) ListComments(ctx context.Context, userID, emailID string) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.conversations[emailID]; !ok || c.UserID != userID {
		return nil, ErrNotFound
	}
	out := []models.Comment{}
	for _, c := range s.comments {
		if c.EmailID == emailID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) AddComment(ctx context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.conversations[c.EmailID]; !ok || conv.UserID != c.UserID {
		return ErrNotFound
	}
	s.comments = append(s.comments, *c)
	return nil
}

func (s *MemoryStore) DeleteComment(ctx context.Context, userID, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.comments {
		if c.ID == commentID && c.UserID == userID {
			s.comments = append(s.comments[:i], s.comments[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) GetMailAccount(ctx context.Context, userID string) (*models.MailAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[userID]
	if !ok {
		return nil, ErrMailAccountNotLinked
	}
	return &a, nil
}

func (s *MemoryStore) SaveMailAccount(ctx context.Context, a *models.MailAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.UpdatedAt = time.Now().UTC()
	s.accounts[a.UserID] = *a
	return nil
}

func (s *MemoryStore) SaveOrderData(ctx context.Context, userID, emailID, source string, data []byte) error {
	return s.update(userID, emailID, func(c *models.Conversation) {
		snapshot := types.NullJSONText{JSONText: types.JSONText(append([]byte(nil), data...)), Valid: true}
		switch source {
		case "shopify":
			c.ShopifyData = snapshot
		case "shipstation":
			c.ShipStationData = snapshot
		}
	})
}
