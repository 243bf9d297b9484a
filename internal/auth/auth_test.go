package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testConfig(serverURL string) Config {
	return Config{
		Domain:   serverURL,
		ClientID: "test-client",
		Audience: "https://api.example.com",
		Scope:    "openid profile email offline_access",
		Timeout:  5 * time.Second,
	}
}

func TestLogin_Success(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/oauth/token", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "access-xyz",
			"id_token":     "id-abc",
			"token_type":   "Bearer",
			"expires_in":   86400,
		})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	token, err := client.Login(context.Background(), Credentials{
		Email:    "user@example.com",
		Password: "s3cret",
	})
	require.NoError(t, err)

	assert.Equal(t, "password", gotBody["grant_type"])
	assert.Equal(t, "test-client", gotBody["client_id"])
	assert.Equal(t, "user@example.com", gotBody["username"])
	assert.Equal(t, "s3cret", gotBody["password"])
	assert.Equal(t, "https://api.example.com", gotBody["audience"])
	assert.Equal(t, "openid profile email offline_access", gotBody["scope"])

	assert.Equal(t, "access-xyz", token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, "id-abc", token.Extra("id_token"))
	assert.True(t, token.Expiry.After(time.Now()))
	assert.NotContains(t, token.AccessToken, "s3cret")
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    string
		wantMessage string
	}{
		{
			name:        "invalid credentials",
			status:      http.StatusUnauthorized,
			body:        `{"error":"invalid_grant","error_description":"Wrong email or password."}`,
			wantCode:    "invalid_grant",
			wantMessage: "invalid email or password",
		},
		{
			name:        "account locked",
			status:      http.StatusForbidden,
			body:        `{"error":"unauthorized","error_description":"Account blocked."}`,
			wantCode:    "unauthorized",
			wantMessage: "access denied",
		},
		{
			name:        "rate limited",
			status:      http.StatusTooManyRequests,
			body:        `{"error":"too_many_attempts"}`,
			wantCode:    "too_many_attempts",
			wantMessage: "too many login attempts",
		},
		{
			name:        "server error",
			status:      http.StatusInternalServerError,
			body:        `oops`,
			wantMessage: "status 500",
		},
		{
			name:        "missing token fields",
			status:      http.StatusOK,
			body:        `{"token_type":"Bearer"}`,
			wantMessage: "missing a usable token",
		},
		{
			name:        "malformed body",
			status:      http.StatusOK,
			body:        `{not json`,
			wantMessage: "malformed token response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(testConfig(server.URL))
			token, err := client.Login(context.Background(), Credentials{
				Email:    "user@example.com",
				Password: "hunter2-very-secret",
			})
			require.Error(t, err)
			assert.Nil(t, token)

			var authErr *Error
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, tt.wantCode, authErr.Code)
			assert.Contains(t, authErr.Error(), tt.wantMessage)

			// Redaction: the error must never echo the credentials.
			assert.NotContains(t, err.Error(), "hunter2-very-secret")
			assert.NotContains(t, err.Error(), "user@example.com")
		})
	}
}

func TestLogin_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse every connection

	client := NewClient(testConfig(server.URL))
	_, err := client.Login(context.Background(), Credentials{Email: "a@b.c", Password: "x"})
	require.Error(t, err)

	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, authErr.StatusCode)
	assert.Error(t, errors.Unwrap(authErr))
}

func TestBearerToken(t *testing.T) {
	t.Run("prefers the id_token", func(t *testing.T) {
		tok := (&oauth2.Token{AccessToken: "access"}).WithExtra(map[string]interface{}{
			"id_token": "id",
		})
		assert.Equal(t, "id", BearerToken(tok))
	})

	t.Run("falls back to the access token", func(t *testing.T) {
		tok := &oauth2.Token{AccessToken: "access"}
		assert.Equal(t, "access", BearerToken(tok))
	})
}
