package gauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"po-notifier-go/internal/config"
)

func TestClientOptions(t *testing.T) {
	ctx := context.Background()

	_, err := ClientOptions(ctx, config.GoogleConfig{})
	assert.Error(t, err)

	opts, err := ClientOptions(ctx, config.GoogleConfig{ClientID: "id", ClientSecret: "secret", RefreshToken: "token"})
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	opts, err = ClientOptions(ctx, config.GoogleConfig{CredentialsFile: "/etc/sa.json"})
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}

func TestOAuthConfig(t *testing.T) {
	c := OAuthConfig(config.GoogleConfig{ClientID: "id", ClientSecret: "secret"})
	assert.Equal(t, "id", c.ClientID)
	assert.Contains(t, c.Scopes, "https://www.googleapis.com/auth/gmail.send")
	assert.Contains(t, c.Scopes, "https://www.googleapis.com/auth/spreadsheets")
}
