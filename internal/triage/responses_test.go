package triage

import (
	"context"
	"errors"
	"testing"

	"responder/internal/email"
	"responder/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	sent   []*email.Message
	failTo string
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Send(ctx context.Context, account *models.MailAccount, msg *email.Message) (string, error) {
	if msg.To == f.failTo {
		return "", errors.New("mailbox unavailable")
	}
	f.sent = append(f.sent, msg)
	return "msg-" + msg.To, nil
}

func TestResponder_SaveEdit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seed(t, store, makeConversations("user-1", 1)...)
	r := NewResponder(store, nil, zerolog.Nop())

	require.NoError(t, r.SaveEdit(ctx, "user-1", "user-1-conv-00", "Edited reply"))

	stored, err := store.GetConversations(ctx, "user-1", []string{"user-1-conv-00"})
	require.NoError(t, err)
	assert.Equal(t, "Edited reply", *stored[0].AutoResponse)
	assert.True(t, stored[0].IsEdited)

	assert.ErrorIs(t, r.SaveEdit(ctx, "user-2", "user-1-conv-00", "hijack"), ErrNotFound)
	assert.ErrorIs(t, r.SaveEdit(ctx, "user-1", "", "x"), ErrInvalidInput)
}

func TestResponder_Comments(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seed(t, store, makeConversations("user-1", 1)...)
	r := NewResponder(store, nil, zerolog.Nop())
	emailID := "user-1-conv-00"

	internal, err := r.AddComment(ctx, "user-1", emailID, "  check the warehouse  ", nil)
	require.NoError(t, err)
	assert.True(t, internal.IsInternal)
	assert.Equal(t, "check the warehouse", internal.Content)

	public := false
	shared, err := r.AddComment(ctx, "user-1", emailID, "customer notified", &public)
	require.NoError(t, err)
	assert.False(t, shared.IsInternal)

	comments, err := r.Comments(ctx, "user-1", emailID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, internal.ID, comments[0].ID)

	_, err = r.AddComment(ctx, "user-1", emailID, "   ", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.Comments(ctx, "user-2", emailID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, r.DeleteComment(ctx, "user-2", internal.ID), ErrNotFound)
	require.NoError(t, r.DeleteComment(ctx, "user-1", internal.ID))

	comments, err = r.Comments(ctx, "user-1", emailID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, shared.ID, comments[0].ID)
}

func TestResponder_BulkSend(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	convs := makeConversations("user-1", 3)
	seed(t, store, convs...)
	require.NoError(t, store.SaveDraft(ctx, "user-1", convs[0].ID, "Your order shipped", true))
	require.NoError(t, store.SaveDraft(ctx, "user-1", convs[2].ID, "Refund issued", true))

	transport := &fakeTransport{failTo: convs[2].FromEmail}
	r := NewResponder(store, transport, zerolog.Nop())

	_, err := r.BulkSend(ctx, "user-1", ids(convs), "")
	assert.ErrorIs(t, err, ErrMailAccountNotLinked)

	require.NoError(t, r.LinkMailAccount(ctx, &models.MailAccount{
		UserID:       "user-1",
		EmailAddress: "support@shop.example",
		AccessToken:  "token",
	}))

	report, err := r.BulkSend(ctx, "user-1", ids(convs), "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Results, 3)

	assert.True(t, report.Results[0].Success)
	assert.Equal(t, "msg-"+convs[0].FromEmail, report.Results[0].MessageID)
	assert.Equal(t, ErrNoResponse.Error(), report.Results[1].Error)
	assert.Equal(t, "mailbox unavailable", report.Results[2].Error)
	assert.Len(t, report.Errors, 2)

	require.Len(t, transport.sent, 1)
	assert.Equal(t, "Re: Question 0", transport.sent[0].Subject)
	assert.Equal(t, "support@shop.example", transport.sent[0].From)
	assert.Equal(t, convs[0].ConversationID, transport.sent[0].InReplyTo)

	stored, err := store.GetConversations(ctx, "user-1", ids(convs))
	require.NoError(t, err)
	assert.False(t, stored[0].NeedsAction)
	assert.True(t, stored[1].NeedsAction)
	assert.True(t, stored[2].NeedsAction)
}

func TestResponder_BulkSendOverride(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	convs := makeConversations("user-1", 2)
	seed(t, store, convs...)

	transport := &fakeTransport{}
	r := NewResponder(store, transport, zerolog.Nop())
	require.NoError(t, r.LinkMailAccount(ctx, &models.MailAccount{UserID: "user-1", AccessToken: "token"}))

	report, err := r.BulkSend(ctx, "user-1", ids(convs), "We are on it!")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Sent)
	for _, msg := range transport.sent {
		assert.Equal(t, "We are on it!", msg.Body)
	}
}

func TestResponder_BulkSendErrors(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := NewResponder(store, &fakeTransport{}, zerolog.Nop())

	_, err := r.BulkSend(ctx, "user-1", nil, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.BulkSend(ctx, "user-1", []string{"missing"}, "")
	assert.ErrorIs(t, err, ErrNoConversations)

	assert.ErrorIs(t, r.LinkMailAccount(ctx, &models.MailAccount{UserID: "user-1"}), ErrInvalidInput)
}
