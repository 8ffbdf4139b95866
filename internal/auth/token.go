// ABOUTME: Bearer token resolution and inspection for the serverless-pdf-chat API
// ABOUTME: Resolves Cognito ID tokens from env or XDG config and peeks at their claims

package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrNoToken        = errors.New("no token configured")
	ErrMalformedToken = errors.New("malformed token")
	ErrExpiredToken   = errors.New("token expired")
)

// EnvToken is the environment variable checked first for a bearer token.
const EnvToken = "PDF_CHAT_TOKEN"

// Resolve returns the bearer token from the PDF_CHAT_TOKEN env var or the
// ~/.config/pdf-chat/token file. Returns ErrNoToken when neither is set.
func Resolve() (string, error) {
	if token := os.Getenv(EnvToken); token != "" {
		return strings.TrimSpace(token), nil
	}

	path, err := tokenPath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("reading token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// ResolveFrom returns a bearer token by precedence: the inline token, the
// configured token file, then the Resolve fallback chain.
func ResolveFrom(token, tokenFile string) (string, error) {
	if token != "" {
		return strings.TrimSpace(token), nil
	}
	if tokenFile != "" {
		data, err := os.ReadFile(tokenFile)
		if err != nil {
			return "", fmt.Errorf("reading token file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return Resolve()
}

// tokenPath returns the XDG path of the token file.
func tokenPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "pdf-chat", "token"), nil
}

// StaticToken is a fixed bearer token implementing api.TokenSource.
type StaticToken string

// Token returns the underlying token string.
func (t StaticToken) Token() (string, error) {
	return string(t), nil
}

// TokenInfo is the subset of JWT claims the front ends display.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the token's expiry has passed. Tokens without an
// exp claim never report expired.
func (i *TokenInfo) Expired() bool {
	return !i.ExpiresAt.IsZero() && time.Now().After(i.ExpiresAt)
}

// Inspect decodes a token's claims without verifying its signature. The API
// verifies tokens server-side; the client only needs subject and expiry so it
// can warn before issuing requests that would be rejected.
func Inspect(token string) (*TokenInfo, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	info := &TokenInfo{}
	if sub, err := parsed.Claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}
