package graph

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/microsoft"
)

// graphDefaultScope requests every application permission granted to the
// app registration (Contacts.ReadWrite, User.Read.All, GroupMember.Read.All).
const graphDefaultScope = "https://graph.microsoft.com/.default"

// ClientCredentials acquires app-only tokens with the OAuth2 client
// credentials grant. It performs no caching; Session decides when to call it.
type ClientCredentials struct {
	cfg        *clientcredentials.Config
	httpClient *http.Client
	logger     *slog.Logger
	nowFunc    func() time.Time
}

// NewClientCredentials builds a provider for the given Entra ID tenant and
// app registration. httpClient may be nil to use http.DefaultClient.
func NewClientCredentials(
	tenantID, clientID, clientSecret string,
	httpClient *http.Client,
	logger *slog.Logger,
) *ClientCredentials {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     microsoft.AzureADEndpoint(tenantID).TokenURL,
		Scopes:       []string{graphDefaultScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	return newClientCredentials(cfg, httpClient, logger)
}

// newClientCredentials accepts a pre-built config so tests can point the
// token URL at an httptest server.
func newClientCredentials(cfg *clientcredentials.Config, httpClient *http.Client, logger *slog.Logger) *ClientCredentials {
	if logger == nil {
		logger = slog.Default()
	}

	return &ClientCredentials{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
		nowFunc:    time.Now,
	}
}

// Acquire requests a new access token from the token endpoint.
func (c *ClientCredentials) Acquire(ctx context.Context) (Token, error) {
	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}

	c.logger.Debug("requesting app-only token",
		slog.String("client_id", c.cfg.ClientID),
	)

	tok, err := c.cfg.Token(ctx)
	if err != nil {
		c.logger.Warn("token acquisition failed", slog.String("error", err.Error()))
		return Token{}, fmt.Errorf("client credentials grant: %w", err)
	}

	var expiresIn time.Duration
	if !tok.Expiry.IsZero() {
		expiresIn = tok.Expiry.Sub(c.nowFunc())
	}

	c.logger.Info("token acquired",
		slog.Time("expiry", tok.Expiry),
		slog.Duration("expires_in", expiresIn),
	)

	return Token{Value: tok.AccessToken, ExpiresIn: expiresIn}, nil
}
