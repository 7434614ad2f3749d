// Package gauth builds the Google API client options shared by the Sheets,
// Gmail and Drive clients.
package gauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"po-notifier-go/internal/config"
)

// Scopes requested by the notifier
var Scopes = []string{
	sheets.SpreadsheetsScope,
	gmail.GmailSendScope,
	gmail.GmailReadonlyScope,
	drive.DriveReadonlyScope,
}

// OAuthConfig returns the installed-app OAuth2 configuration
func OAuthConfig(cfg config.GoogleConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}

// ClientOptions returns credentials for the configured account. A
// credentials file takes precedence over the refresh token.
func ClientOptions(ctx context.Context, cfg config.GoogleConfig) ([]option.ClientOption, error) {
	if cfg.CredentialsFile != "" {
		return []option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(Scopes...),
		}, nil
	}
	if cfg.RefreshToken == "" {
		return nil, fmt.Errorf("no Google credentials configured")
	}

	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	tokenSource := OAuthConfig(cfg).TokenSource(ctx, token)
	return []option.ClientOption{option.WithTokenSource(tokenSource)}, nil
}
