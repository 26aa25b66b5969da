package email

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"responder/internal/config"
	"responder/internal/models"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Message is one outbound reply
type Message struct {
	From       string
	To         string
	Subject    string
	Body       string
	InReplyTo  string
	References string
}

// Transport delivers replies from a user's linked mailbox
type Transport interface {
	Name() string
	Send(ctx context.Context, account *models.MailAccount, msg *Message) (messageID string, err error)
}

// NewTransport returns the transport selected by MAIL_TRANSPORT
func NewTransport(cfg *config.Config) (Transport, error) {
	switch strings.ToLower(cfg.MailTransport) {
	case "", "gmail":
		return NewGmailTransport(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GmailAPIBase), nil
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("SendGrid API key not configured")
		}
		return NewSendGridTransport(cfg.SendGridAPIKey, cfg.SupportEmail, ""), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
	}
}

// BuildReply threads a reply onto the original conversation
func BuildReply(conv *models.Conversation, body, from string) *Message {
	subject := headerValue(conv.Subject)
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	return &Message{
		From:       from,
		To:         headerValue(conv.FromEmail),
		Subject:    subject,
		Body:       body,
		InReplyTo:  headerValue(conv.ConversationID),
		References: headerValue(conv.ConversationID),
	}
}

// headerValue folds a value onto one line so it cannot start a new header
func headerValue(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// encodedWord Q-encodes non-ASCII header text
func encodedWord(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return mime.QEncoding.Encode("utf-8", s)
		}
	}
	return s
}

// RFC2822 renders the message with CRLF line endings
func (m *Message) RFC2822() []byte {
	var lines []string
	if from := headerValue(m.From); from != "" {
		lines = append(lines, "From: "+from)
	}
	lines = append(lines,
		"To: "+headerValue(m.To),
		"Subject: "+encodedWord(headerValue(m.Subject)),
	)
	if inReplyTo := headerValue(m.InReplyTo); inReplyTo != "" {
		lines = append(lines, "In-Reply-To: "+inReplyTo)
	}
	if references := headerValue(m.References); references != "" {
		lines = append(lines, "References: "+references)
	}
	lines = append(lines,
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		m.Body,
	)
	return []byte(strings.Join(lines, "\r\n"))
}

// SendGridTransport sends replies through SendGrid using the linked
// mailbox address as sender
type SendGridTransport struct {
	apiKey       string
	supportEmail string
	host         string
}

// NewSendGridTransport creates a SendGrid transport. host overrides the API
// host when non-empty.
func NewSendGridTransport(apiKey, supportEmail, host string) *SendGridTransport {
	return &SendGridTransport{
		apiKey:       apiKey,
		supportEmail: supportEmail,
		host:         host,
	}
}

// Name returns the transport name.
func (t *SendGridTransport) Name() string {
	return "sendgrid"
}

// Send delivers msg and returns SendGrid's message id
func (t *SendGridTransport) Send(ctx context.Context, account *models.MailAccount, msg *Message) (string, error) {
	if t.apiKey == "" {
		return "", fmt.Errorf("SendGrid API key not configured")
	}

	sender := t.supportEmail
	if account != nil && account.EmailAddress != "" {
		sender = account.EmailAddress
	}

	from := mail.NewEmail("Customer Support", sender)
	to := mail.NewEmail("", msg.To)
	message := mail.NewSingleEmailPlainText(from, msg.Subject, to, msg.Body)
	if msg.InReplyTo != "" {
		message.SetHeader("In-Reply-To", msg.InReplyTo)
	}
	if msg.References != "" {
		message.SetHeader("References", msg.References)
	}

	client := sendgrid.NewSendClient(t.apiKey)
	if t.host != "" {
		client.BaseURL = strings.TrimRight(t.host, "/") + "/v3/mail/send"
	}

	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return "", fmt.Errorf("SendGrid API error: status %d, body: %s", response.StatusCode, response.Body)
	}

	for key, values := range response.Headers {
		if strings.EqualFold(key, "X-Message-Id") && len(values) > 0 {
			return values[0], nil
		}
	}
	return "", nil
}
