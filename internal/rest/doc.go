// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package rest provides the TapLock HTTP API server.
//
// The API exposes passkey registration, login, and account recovery
// ceremonies plus a session-protected store of client-encrypted secrets.
//
// # Server Setup
//
//	svc, _ := passkey.NewService(passkey.ServiceParams{ ... })
//	tokens, _ := sessiontoken.New(secret)
//
//	server, _ := rest.NewServer(&rest.Config{
//	    Port:     8443,
//	    Passkeys: svc,
//	    Secrets:  memory.NewSecretStore(),
//	    Tokens:   tokens,
//	})
//
//	go server.Start()
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	server.Stop(ctx)
//
// # API Endpoints
//
// Health and metrics:
//   - GET /api/health - Returns server health status
//   - GET /metrics - Prometheus metrics (when enabled)
//
// Ceremonies (no session required):
//   - POST /api/auth/register-start - Begin passkey registration
//   - POST /api/auth/register-finish - Complete registration, returns recovery codes and a session token
//   - POST /api/auth/login-start - Begin passkey login
//   - POST /api/auth/login-finish - Complete login, returns a session token
//   - POST /api/auth/recover-start - Redeem a recovery code for a registration ceremony
//   - POST /api/auth/recover-finish - Complete recovery, returns a fresh recovery code set
//
// Secrets (session token required, via Authorization: Bearer or cookie):
//   - GET /api/secrets - List the caller's secrets
//   - POST /api/secrets - Store a secret
//   - GET /api/secrets/{id} - Fetch a secret
//   - PUT /api/secrets/{id} - Update a secret
//   - DELETE /api/secrets/{id} - Delete a secret
//
// Secret values arrive already encrypted by the client; the server stores
// and returns ciphertext without ever holding the key.
//
// # Error Handling
//
// The server returns standard HTTP status codes:
//   - 400 Bad Request - Malformed request body or missing fields
//   - 401 Unauthorized - Failed ceremony verification, bad recovery code, or missing/invalid session
//   - 404 Not Found - Unknown user, no registered credentials, or unknown secret
//   - 500 Internal Server Error - Server error
//
// Error responses include a JSON body:
//
//	{
//	  "error": "unauthorized",
//	  "message": "Authentication required",
//	  "code": 401
//	}
//
// Responses deliberately do not distinguish why a ceremony or recovery
// attempt failed.
package rest
