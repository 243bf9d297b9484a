// Package auth exchanges Tonal account credentials for an API token
// using the OAuth2 resource-owner password grant against Tonal's Auth0
// tenant. This is the same flow the official mobile app performs.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/toneget/toneget/internal/config"
	"github.com/toneget/toneget/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Credentials holds one login attempt. Instances are built immediately
// before Login and passed by value; nothing else stores them.
type Credentials struct {
	Email    string `json:"-"`
	Password string `json:"-"`
}

// Error reports a failed token exchange. The message is fixed per
// status class and never contains the submitted credentials.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("authentication failed: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config identifies the Auth0 tenant and client the exchange talks to.
type Config struct {
	Domain   string
	ClientID string
	Audience string
	Scope    string
	Timeout  time.Duration
}

// DefaultConfig returns the fixed Tonal tenant settings.
func DefaultConfig(timeout time.Duration) Config {
	return Config{
		Domain:   config.Auth0Domain,
		ClientID: config.ClientID,
		Audience: config.Audience,
		Scope:    config.OAuthScope,
		Timeout:  timeout,
	}
}

type Client struct {
	cfg        Config
	tokenURL   string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	base := cfg.Domain
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return &Client{
		cfg:      cfg,
		tokenURL: base + "/oauth/token",
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// tokenRequest is the Auth0 password-grant body. Auth0 accepts JSON on
// /oauth/token.
type tokenRequest struct {
	GrantType string `json:"grant_type"`
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Audience  string `json:"audience,omitempty"`
	Scope     string `json:"scope"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

type tokenError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// Login performs a single password-grant exchange. There is no retry: a
// failed attempt is terminal for the run. The credentials do not
// outlive the call; the returned token is all later stages see.
func (c *Client) Login(ctx context.Context, creds Credentials) (*oauth2.Token, error) {
	body, err := json.Marshal(tokenRequest{
		GrantType: "password",
		ClientID:  c.cfg.ClientID,
		Username:  creds.Email,
		Password:  creds.Password,
		Audience:  c.cfg.Audience,
		Scope:     c.cfg.Scope,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Message: "could not reach the identity provider", Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "failed to read token response", Err: err}
	}

	var tok tokenResponse
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "malformed token response", Err: err}
	}
	if tok.IDToken == "" && tok.AccessToken == "" {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "token response missing a usable token"}
	}

	// Attach the raw response so Extra("id_token") works the way the
	// oauth2 package's own exchange does.
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "malformed token response", Err: err}
	}

	token := &oauth2.Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}
	if tok.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return token.WithExtra(raw), nil
}

// newStatusError maps a non-200 exchange to a sanitized Error. The
// vendor error code is kept; the description is not, since only the
// code is guaranteed free of user input.
func newStatusError(resp *http.Response) *Error {
	var body tokenError
	_ = json.NewDecoder(resp.Body).Decode(&body)

	e := &Error{StatusCode: resp.StatusCode, Code: body.Code}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		e.Message = "invalid email or password"
	case http.StatusForbidden:
		e.Message = "access denied; the account may be locked or require verification"
	case http.StatusTooManyRequests:
		e.Message = "too many login attempts, try again later"
	default:
		e.Message = fmt.Sprintf("identity provider returned status %d", resp.StatusCode)
	}
	return e
}

// BearerToken returns the value the Tonal API authorizes against: the
// OIDC id_token when present, otherwise the access token.
func BearerToken(tok *oauth2.Token) string {
	if id, ok := tok.Extra("id_token").(string); ok && id != "" {
		return id
	}
	return tok.AccessToken
}
