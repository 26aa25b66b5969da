package ingest

import "strings"

// ContactSenderType is the senderType the export uses for customer-authored messages
const ContactSenderType = "Contact"

var blockedSenders = []string{
	"noreply@",
	"no-reply@",
	"@linkedin.com",
	"@facebookmail.com",
	"flow@shopify.com",
	"@judge.me",
	"@klaviyo.com",
	"pkginfo@ups.com",
	"@chitchats.com",
	"@canva.com",
}

var notificationSubjects = []string{
	"is low in stock",
	"shopify apps",
	"automatic reply",
	"out of office",
}

var automationSenders = map[string]bool{
	"AIAgent":           true,
	"H&O Team":          true,
	"Automation System": true,
}

var systemPhrases = []string{
	"auto-labels added",
	"ai agent was removed",
	"ai agent processing summary",
	"conversation was marked",
	"conversation was snoozed",
	"automation system added",
}

// IsSpam reports whether a ticket-starting row comes from an automated sender
// or is a system notification. Rows without a usable customer address are
// treated as spam.
func IsSpam(row RawRow) bool {
	subject := strings.ToLower(row.Subject)
	from := strings.ToLower(row.CustomerEmail)

	for _, blocked := range blockedSenders {
		if strings.Contains(from, blocked) {
			return true
		}
	}

	if strings.Contains(subject, "left a") && strings.Contains(subject, "star review") {
		return true
	}
	for _, pattern := range notificationSubjects {
		if strings.Contains(subject, pattern) {
			return true
		}
	}

	if strings.Contains(from, "@") && !strings.Contains(from, "noreply") {
		return false
	}
	return true
}

// IsSystemMessage reports whether a message was written by an agent, bot or
// the helpdesk itself. An empty senderType is only rejected on positive
// evidence; anything ambiguous is kept.
func IsSystemMessage(row RawRow) bool {
	if row.SenderType != "" {
		return row.SenderType != ContactSenderType
	}

	if automationSenders[row.SenderName] {
		return true
	}

	text := strings.ToLower(row.MessageText)
	for _, phrase := range systemPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// KeepMessage reports whether a row's message belongs in the ticket thread
func KeepMessage(row RawRow) bool {
	return strings.TrimSpace(row.MessageText) != "" && !IsSystemMessage(row)
}
