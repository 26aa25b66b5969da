package email

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"responder/internal/config"
	"responder/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReply(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{name: "adds prefix", subject: "Where is my order?", want: "Re: Where is my order?"},
		{name: "keeps existing prefix", subject: "Re: Where is my order?", want: "Re: Where is my order?"},
		{name: "case insensitive prefix", subject: "RE: damaged box", want: "RE: damaged box"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := &models.Conversation{Subject: tt.subject, FromEmail: "jane@example.com", ConversationID: "conv-1"}
			msg := BuildReply(conv, "Hi Jane", "support@example.com")
			assert.Equal(t, tt.want, msg.Subject)
			assert.Equal(t, "jane@example.com", msg.To)
			assert.Equal(t, "conv-1", msg.InReplyTo)
			assert.Equal(t, "conv-1", msg.References)
		})
	}
}

func TestMessage_RFC2822(t *testing.T) {
	msg := &Message{To: "jane@example.com", Subject: "Re: Hi", Body: "Thanks!", InReplyTo: "c1", References: "c1"}
	raw := string(msg.RFC2822())

	assert.True(t, strings.HasPrefix(raw, "To: jane@example.com\r\nSubject: Re: Hi\r\n"))
	assert.Contains(t, raw, "In-Reply-To: c1\r\nReferences: c1\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nThanks!"))
}

func TestMessage_RFC2822HeaderFolding(t *testing.T) {
	tests := []struct {
		name    string
		conv    models.Conversation
		subject string
	}{
		{
			name:    "crlf in subject",
			conv:    models.Conversation{Subject: "Help\r\nBcc: attacker@evil.test", FromEmail: "jane@example.com", ConversationID: "c1"},
			subject: "Subject: Re: Help Bcc: attacker@evil.test",
		},
		{
			name:    "bare newline in address",
			conv:    models.Conversation{Subject: "Refund", FromEmail: "jane@example.com\nCc: other@evil.test", ConversationID: "c2"},
			subject: "Subject: Re: Refund",
		},
		{
			name:    "newline in thread id",
			conv:    models.Conversation{Subject: "Refund", FromEmail: "jane@example.com", ConversationID: "c3\r\nBcc: x@evil.test"},
			subject: "Subject: Re: Refund",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := string(BuildReply(&tt.conv, "Hi", "").RFC2822())
			headers := strings.SplitN(raw, "\r\n\r\n", 2)[0]

			for _, line := range strings.Split(headers, "\r\n") {
				assert.False(t, strings.HasPrefix(line, "Bcc:"), line)
				assert.False(t, strings.HasPrefix(line, "Cc:"), line)
				assert.NotContains(t, line, "\n")
			}
			assert.Contains(t, headers, tt.subject)
		})
	}
}

func TestMessage_RFC2822EncodesSubject(t *testing.T) {
	msg := &Message{To: "jose@example.com", Subject: "Re: Pedido atrasado, ¿dónde está?", Body: "Hola"}
	raw := string(msg.RFC2822())

	assert.Contains(t, raw, "Subject: =?utf-8?q?")
	assert.NotContains(t, raw, "¿")

	decoded, err := new(mime.WordDecoder).DecodeHeader(strings.TrimPrefix(strings.Split(raw, "\r\n")[1], "Subject: "))
	require.NoError(t, err)
	assert.Equal(t, "Re: Pedido atrasado, ¿dónde está?", decoded)
}

func TestNewTransport(t *testing.T) {
	tr, err := NewTransport(&config.Config{})
	require.NoError(t, err)
	assert.Equal(t, "gmail", tr.Name())

	_, err = NewTransport(&config.Config{MailTransport: "sendgrid"})
	assert.Error(t, err)

	tr, err = NewTransport(&config.Config{MailTransport: "sendgrid", SendGridAPIKey: "SG.key"})
	require.NoError(t, err)
	assert.Equal(t, "sendgrid", tr.Name())

	_, err = NewTransport(&config.Config{MailTransport: "pigeon"})
	assert.Error(t, err)
}

func TestGmailTransport_Send(t *testing.T) {
	var raw string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/messages/send", r.URL.Path)
		assert.Equal(t, "Bearer access-123", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		decoded, err := base64.URLEncoding.DecodeString(body["raw"].(string))
		require.NoError(t, err)
		raw = string(decoded)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"gmail-msg-1"}`))
	}))
	defer server.Close()

	tr := NewGmailTransport("client", "secret", server.URL)
	account := &models.MailAccount{UserID: "u1", Provider: "google", AccessToken: "access-123"}
	msg := BuildReply(&models.Conversation{Subject: "Hello", FromEmail: "jane@example.com", ConversationID: "c9"}, "Hi there", "")

	id, err := tr.Send(context.Background(), account, msg)
	require.NoError(t, err)
	assert.Equal(t, "gmail-msg-1", id)
	assert.Contains(t, raw, "Subject: Re: Hello")
	assert.Contains(t, raw, "In-Reply-To: c9")
}

func TestGmailTransport_SendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"Insufficient Permission"}}`))
	}))
	defer server.Close()

	tr := NewGmailTransport("client", "secret", server.URL)
	_, err := tr.Send(context.Background(), &models.MailAccount{AccessToken: "t"}, &Message{To: "a@b.c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Insufficient Permission")

	_, err = tr.Send(context.Background(), &models.MailAccount{}, &Message{To: "a@b.c"})
	assert.Error(t, err)
}

func TestSendGridTransport_Send(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer SG.key", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &payload))

		w.Header().Set("X-Message-Id", "sg-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	tr := NewSendGridTransport("SG.key", "support@example.com", server.URL)
	msg := &Message{To: "jane@example.com", Subject: "Re: Hi", Body: "Thanks", InReplyTo: "c1", References: "c1"}

	id, err := tr.Send(context.Background(), &models.MailAccount{EmailAddress: "agent@example.com"}, msg)
	require.NoError(t, err)
	assert.Equal(t, "sg-1", id)

	from := payload["from"].(map[string]interface{})
	assert.Equal(t, "agent@example.com", from["email"])
	headers := payload["headers"].(map[string]interface{})
	assert.Equal(t, "c1", headers["In-Reply-To"])
}

func TestSendGridTransport_MissingKey(t *testing.T) {
	tr := NewSendGridTransport("", "", "")
	_, err := tr.Send(context.Background(), nil, &Message{})
	assert.Error(t, err)
}
