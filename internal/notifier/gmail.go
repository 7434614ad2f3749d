package notifier

import (
	"context"
	"encoding/base64"
	"fmt"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"po-notifier-go/internal/gauth"
)

// SendError wraps a mail transport failure
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send email: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Transport hands a raw RFC 5322 message to a mail service
type Transport interface {
	Send(ctx context.Context, raw []byte) error
}

// AddressSource reports the address of the authenticated mailbox
type AddressSource interface {
	Address(ctx context.Context) (string, error)
}

// Gmail sends mail with the Gmail API
type Gmail struct {
	service *gmail.Service
	userID  string
	retry   *gauth.Retrier
}

var (
	_ Transport     = (*Gmail)(nil)
	_ AddressSource = (*Gmail)(nil)
)

// NewGmail creates a Gmail transport for userID ("me" for the token owner)
func NewGmail(ctx context.Context, userID string, opts ...option.ClientOption) (*Gmail, error) {
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	if userID == "" {
		userID = "me"
	}
	return &Gmail{service: service, userID: userID, retry: gauth.NewRetrier()}, nil
}

// Send delivers raw, retrying only on quota errors
func (g *Gmail) Send(ctx context.Context, raw []byte) error {
	message := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}

	err := g.retry.Do(ctx, "send email", func() error {
		_, err := g.service.Users.Messages.Send(g.userID, message).Context(ctx).Do()
		return err
	})
	if err != nil {
		return &SendError{Err: err}
	}
	return nil
}

// Address returns the mailbox address of the authenticated user
func (g *Gmail) Address(ctx context.Context) (string, error) {
	profile, err := g.service.Users.GetProfile(g.userID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get Gmail profile: %w", err)
	}
	return profile.EmailAddress, nil
}
