package supabase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/supabase-community/gotrue-go"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator validates user credentials against the identity provider and
// returns the provider's user ID on success.
type Authenticator interface {
	ValidateCredentials(email, password string) (string, error)
}

// Client wraps the Supabase GoTrue auth client. It is constructed once at
// process start and injected into the API server.
type Client struct {
	auth gotrue.Client
}

// extractProjectRef extracts just the project reference ID from a Supabase URL
// From: akrqbuajqkirdekonpzy.supabase.co
// To: akrqbuajqkirdekonpzy
func extractProjectRef(url string) string {
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")

	parts := strings.Split(url, ".")
	return parts[0]
}

// NewClient creates a Supabase auth client for the given project URL and key.
func NewClient(supabaseURL, supabaseKey string) *Client {
	projectRef := extractProjectRef(supabaseURL)

	slog.Info("Initializing Supabase client", "project_ref", projectRef)

	return &Client{auth: gotrue.New(projectRef, supabaseKey)}
}

// Ping verifies the connection by fetching the project's auth settings.
func (c *Client) Ping() error {
	if _, err := c.auth.GetSettings(); err != nil {
		return fmt.Errorf("failed to connect to Supabase: %w", err)
	}
	return nil
}

// isInvalidGrant reports whether a sign-in failure was a credential rejection
// rather than a transport or service problem. GoTrue answers wrong credentials
// with a 400 invalid_grant response, which the client surfaces in the error
// text.
func isInvalidGrant(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "response status code 400")
}

// ValidateCredentials signs the user in with email and password. A successful
// sign-in yields the Supabase auth user ID, which is also the profile ID.
func (c *Client) ValidateCredentials(email, password string) (string, error) {
	res, err := c.auth.SignInWithEmailPassword(email, password)
	if err != nil {
		if isInvalidGrant(err) {
			return "", ErrInvalidCredentials
		}
		slog.Error("Authentication error", "email", email, "error", err)
		return "", fmt.Errorf("authentication failed: %w", err)
	}

	if res == nil || res.AccessToken == "" {
		return "", ErrInvalidCredentials
	}

	return res.User.ID.String(), nil
}
