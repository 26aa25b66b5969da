package email

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"responder/internal/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// DefaultGmailAPIBase is the public Gmail REST host
const DefaultGmailAPIBase = "https://gmail.googleapis.com"

// GmailTransport sends replies through the Gmail API with the user's OAuth
// token, refreshing it when a refresh token is present
type GmailTransport struct {
	oauth   *oauth2.Config
	baseURL string
}

// NewGmailTransport creates a Gmail transport
func NewGmailTransport(clientID, clientSecret, baseURL string) *GmailTransport {
	if baseURL == "" {
		baseURL = DefaultGmailAPIBase
	}
	return &GmailTransport{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmail.GmailSendScope},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the transport name.
func (t *GmailTransport) Name() string {
	return "gmail"
}

func (t *GmailTransport) service(ctx context.Context, account *models.MailAccount) (*gmail.Service, error) {
	token := &oauth2.Token{AccessToken: account.AccessToken, TokenType: "Bearer"}
	if account.RefreshToken != nil {
		token.RefreshToken = *account.RefreshToken
	}
	if account.ExpiresAt != nil {
		token.Expiry = *account.ExpiresAt
	}

	return gmail.NewService(ctx,
		option.WithHTTPClient(t.oauth.Client(ctx, token)),
		option.WithEndpoint(t.baseURL+"/"),
	)
}

// Send posts msg to users/me/messages/send and returns the Gmail message id
func (t *GmailTransport) Send(ctx context.Context, account *models.MailAccount, msg *Message) (string, error) {
	if account == nil || account.AccessToken == "" {
		return "", fmt.Errorf("gmail account has no access token")
	}

	svc, err := t.service(ctx, account)
	if err != nil {
		return "", fmt.Errorf("failed to create gmail service: %w", err)
	}

	sent, err := svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(msg.RFC2822()),
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail API error: %w", err)
	}
	return sent.Id, nil
}
