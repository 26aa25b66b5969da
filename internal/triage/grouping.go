package triage

import (
	"context"
	"fmt"
	"sort"

	"responder/internal/models"

	"github.com/rs/zerolog"
)

// GroupMeta is the fixed display metadata of one category
type GroupMeta struct {
	Name        string
	Description string
	Priority    int
	Expanded    bool
}

var groupMetadata = map[models.GroupType]GroupMeta{
	models.GroupPriority: {
		Name:        "Priority Messages (Damaged/Wrong Items)",
		Description: "Urgent issues requiring immediate attention",
		Priority:    1,
		Expanded:    true,
	},
	models.GroupOrderStatus: {
		Name:        "Order Status Messages",
		Description: "Questions about order status and tracking",
		Priority:    2,
	},
	models.GroupWholesale: {
		Name:        "Wholesale Inquiries",
		Description: "Business and wholesale inquiries",
		Priority:    3,
	},
	models.GroupOther: {
		Name:        "Other Messages",
		Description: "General inquiries and other messages",
		Priority:    4,
	},
	models.GroupNoAction: {
		Name:        "No Action Needed",
		Description: "Messages that don't require a response",
		Priority:    5,
	},
}

// MetadataFor returns the display metadata of a category
func MetadataFor(t models.GroupType) GroupMeta {
	if meta, ok := groupMetadata[t]; ok {
		return meta
	}
	return groupMetadata[models.GroupOther]
}

// Bucket is one non-empty category with its members in display order
type Bucket struct {
	Type          models.GroupType
	Conversations []models.Conversation
}

// Partition splits classified conversations by category. Buckets come in
// category priority order and empty categories are omitted. Inside a
// bucket, conversations sharing the same tag set form a cluster; clusters
// keep first-appearance order and each is sorted by descending urgency.
func Partition(convs []models.Conversation) []Bucket {
	byType := make(map[models.GroupType][]models.Conversation)
	for _, conv := range convs {
		t := categoryOf(conv)
		byType[t] = append(byType[t], conv)
	}

	buckets := make([]Bucket, 0, len(byType))
	for t, members := range byType {
		buckets = append(buckets, Bucket{Type: t, Conversations: clusterByTags(members)})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return MetadataFor(buckets[i].Type).Priority < MetadataFor(buckets[j].Type).Priority
	})
	return buckets
}

func categoryOf(conv models.Conversation) models.GroupType {
	if conv.Category == nil {
		return models.GroupOther
	}
	return models.ParseGroupType(*conv.Category)
}

func clusterByTags(members []models.Conversation) []models.Conversation {
	if len(members) < 2 {
		return members
	}

	var keys []string
	clusters := make(map[string][]models.Conversation)
	for _, conv := range members {
		key := tagKey(conv.SimilarityTags)
		if _, ok := clusters[key]; !ok {
			keys = append(keys, key)
		}
		clusters[key] = append(clusters[key], conv)
	}

	out := make([]models.Conversation, 0, len(members))
	for _, key := range keys {
		cluster := clusters[key]
		sort.SliceStable(cluster, func(i, j int) bool {
			return cluster[i].UrgencyOrDefault() > cluster[j].UrgencyOrDefault()
		})
		out = append(out, cluster...)
	}
	return out
}

// Grouper persists category buckets as groups
type Grouper struct {
	store  Store
	logger zerolog.Logger
}

// NewGrouper creates a grouper
func NewGrouper(store Store, logger zerolog.Logger) *Grouper {
	return &Grouper{
		store:  store,
		logger: logger.With().Str("component", "grouper").Logger(),
	}
}

// Group assigns every conversation to the user's group for its category,
// overwriting any previous assignment, and returns the groups in display order
func (g *Grouper) Group(ctx context.Context, userID string, convs []models.Conversation) ([]models.Group, error) {
	buckets := Partition(convs)
	groups := make([]models.Group, 0, len(buckets))

	for _, bucket := range buckets {
		meta := MetadataFor(bucket.Type)
		group, err := g.store.FindOrCreateGroup(ctx, userID, &models.Group{
			UserID:      userID,
			Type:        bucket.Type,
			Name:        meta.Name,
			Description: meta.Description,
			Priority:    meta.Priority,
			IsExpanded:  meta.Expanded,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s group: %w", bucket.Type, err)
		}

		ids := make([]string, len(bucket.Conversations))
		for i := range bucket.Conversations {
			ids[i] = bucket.Conversations[i].ID
			groupID := group.ID
			bucket.Conversations[i].GroupID = &groupID
		}
		if err := g.store.AssignGroup(ctx, userID, group.ID, ids); err != nil {
			return nil, fmt.Errorf("failed to assign %s group: %w", bucket.Type, err)
		}

		group.Emails = bucket.Conversations
		groups = append(groups, *group)
	}

	g.logger.Info().
		Str("user_id", userID).
		Int("conversations", len(convs)).
		Int("groups", len(groups)).
		Msg("Grouped conversations")

	return groups, nil
}

// Regroup reruns grouping over the user's stored classifications without
// calling the LLM. Unclassified conversations are left where they are.
func (g *Grouper) Regroup(ctx context.Context, userID string) ([]models.Group, error) {
	all, err := g.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	classified := make([]models.Conversation, 0, len(all))
	for _, conv := range all {
		if conv.Category != nil {
			classified = append(classified, conv)
		}
	}
	if len(classified) == 0 {
		return nil, ErrNoConversations
	}
	return g.Group(ctx, userID, classified)
}
