package triage

import (
	"regexp"
	"sort"
	"strings"

	"responder/internal/models"
)

// Rule triggers accepted from clients
const (
	TriggerKeyword     = "keyword"
	TriggerProduct     = "product"
	TriggerOrderStatus = "order_status"
)

// Matcher decides whether a rule applies to a conversation. The set of
// implementations is closed: KeywordMatcher, ProductMatcher and
// OrderStatusMatcher.
type Matcher interface {
	Match(conv *models.Conversation) bool
	trigger() string
}

// KeywordMatcher matches the message body against a case-insensitive
// pattern. Conditions that do not compile as a pattern are split on commas
// and matched as plain substrings. An empty pattern matches everything.
type KeywordMatcher struct {
	Pattern *regexp.Regexp
	Terms   []string
}

func (m KeywordMatcher) trigger() string { return TriggerKeyword }

// Match implements Matcher
func (m KeywordMatcher) Match(conv *models.Conversation) bool {
	text := strings.ToLower(conv.MessageText)
	if m.Pattern != nil {
		return m.Pattern.MatchString(text)
	}
	return containsAny(text, m.Terms)
}

// ProductMatcher matches when any product name appears in the message body.
// With no product names it matches everything.
type ProductMatcher struct {
	Terms []string
}

func (m ProductMatcher) trigger() string { return TriggerProduct }

// Match implements Matcher
func (m ProductMatcher) Match(conv *models.Conversation) bool {
	if len(m.Terms) == 0 {
		return true
	}
	return containsAny(strings.ToLower(conv.MessageText), m.Terms)
}

// OrderStatusMatcher matches every conversation with a known order number
type OrderStatusMatcher struct{}

func (OrderStatusMatcher) trigger() string { return TriggerOrderStatus }

// Match implements Matcher
func (OrderStatusMatcher) Match(conv *models.Conversation) bool {
	return conv.OrderNumber != nil && *conv.OrderNumber != ""
}

// Rule is an active, compiled response rule
type Rule struct {
	ID        string
	Condition string
	Response  string
	Priority  int
	Matcher   Matcher
}

// Trigger returns the rule's trigger name
func (r Rule) Trigger() string {
	return r.Matcher.trigger()
}

// CompileRules drops inactive rules and orders the rest by ascending
// priority, keeping input order between equal priorities
func CompileRules(in []models.ResponseRule) ([]Rule, error) {
	var rules []Rule
	for _, r := range in {
		if !r.IsActive {
			continue
		}
		matcher, err := compileMatcher(r)
		if err != nil {
			return nil, err
		}
		rules = append(rules, Rule{
			ID:        r.ID,
			Condition: r.Condition,
			Response:  r.Response,
			Priority:  r.Priority,
			Matcher:   matcher,
		})
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })
	return rules, nil
}

func compileMatcher(r models.ResponseRule) (Matcher, error) {
	condition := strings.TrimSpace(r.Condition)
	switch strings.ToLower(strings.TrimSpace(r.Trigger)) {
	case TriggerKeyword:
		if re, err := regexp.Compile("(?i)" + condition); err == nil {
			return KeywordMatcher{Pattern: re}, nil
		}
		return KeywordMatcher{Terms: splitTerms(condition)}, nil
	case TriggerProduct:
		return ProductMatcher{Terms: splitTerms(condition)}, nil
	case TriggerOrderStatus:
		return OrderStatusMatcher{}, nil
	default:
		return nil, &RuleError{RuleID: r.ID, Reason: "unknown trigger " + r.Trigger}
	}
}

// MatchingRules returns the rules that apply to conv, in precedence order
func MatchingRules(rules []Rule, conv *models.Conversation) []Rule {
	var out []Rule
	for _, r := range rules {
		if r.Matcher.Match(conv) {
			out = append(out, r)
		}
	}
	return out
}

// splitTerms lowercases comma-separated terms and drops empty ones
func splitTerms(condition string) []string {
	var terms []string
	for _, t := range strings.Split(condition, ",") {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
