// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name      string
		configure func(*http.Request)
		want      string
	}{
		{
			name:      "no token",
			configure: func(r *http.Request) {},
			want:      "",
		},
		{
			name: "bearer header",
			configure: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer abc123")
			},
			want: "abc123",
		},
		{
			name: "malformed header",
			configure: func(r *http.Request) {
				r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
			},
			want: "",
		},
		{
			name: "cookie",
			configure: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
			},
			want: "cookie-token",
		},
		{
			name: "header wins over cookie",
			configure: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer header-token")
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
			},
			want: "header-token",
		},
		{
			name: "non-bearer header does not fall back to cookie",
			configure: func(r *http.Request) {
				r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.configure(req)
			assert.Equal(t, tt.want, extractToken(req))
		})
	}
}

func TestSessionMiddlewarePutsUserInContext(t *testing.T) {
	server := newTestServer(t)

	token, err := server.tokens.Mint("alice")
	require.NoError(t, err)

	var gotUserID string
	handler := server.SessionMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", gotUserID)
}

func TestRecoveryMiddleware(t *testing.T) {
	server := newTestServer(t)

	handler := server.RecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestUserIDFromContextMissing(t *testing.T) {
	userID, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)
	assert.Empty(t, userID)
}
