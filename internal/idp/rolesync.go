// Package idp updates role claims held by the external identity provider.
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2/clientcredentials"

	"coparent/internal/models"
)

// RoleSync pushes a user's family role to the identity provider
type RoleSync interface {
	SetRole(ctx context.Context, subject string, role models.ParentRole) error
}

// HTTPRoleSync calls PUT {base}/users/{subject}/roles with a client
// credentials token.
type HTTPRoleSync struct {
	baseURL string
	client  *http.Client
}

// Config holds the identity provider client settings
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// NewHTTPRoleSync creates a role sync client. ctx scopes token refreshes
// and may carry an *http.Client under oauth2.HTTPClient for tests.
func NewHTTPRoleSync(ctx context.Context, cfg Config) *HTTPRoleSync {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	return &HTTPRoleSync{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  cc.Client(ctx),
	}
}

type roleRequest struct {
	Role string `json:"role"`
}

// SetRole replaces the subject's role claim. Any non-2xx answer is an error.
func (s *HTTPRoleSync) SetRole(ctx context.Context, subject string, role models.ParentRole) error {
	body, err := json.Marshal(roleRequest{Role: string(role)})
	if err != nil {
		return fmt.Errorf("failed to encode role: %w", err)
	}

	endpoint := fmt.Sprintf("%s/users/%s/roles", s.baseURL, url.PathEscape(subject))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build role request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("role update for %s: %w", subject, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("role update for %s: identity provider returned %d", subject, resp.StatusCode)
	}
	return nil
}

// Noop accepts every role change. It is used when no identity provider
// endpoint is configured.
type Noop struct{}

func (Noop) SetRole(context.Context, string, models.ParentRole) error { return nil }
