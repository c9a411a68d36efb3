// Package client is the transport layer between the ExpertEase app and the
// marketplace REST backend.
//
// # Overview
//
// The package provides:
//  1. The Client contract for the identity endpoints: signup, OTP verify and
//     resend, user login, user profile, worker login, plus a liveness Ping.
//  2. HTTPClient, a JSON-over-HTTP implementation. A request interceptor
//     signs calls with the persisted bearer token, tags them with an
//     X-Request-ID, and raises the unauthorized signal on 401 responses
//     of signed requests.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     sqlite database and applying embedded goose migrations.
//
// # Error Handling
//
// Failures are *APIError values whose Kind is one of the package sentinels
// (ErrValidation, ErrInvalidCredentials, ErrNotFound, ErrUnavailable, ...).
// Match them with errors.Is; show Message to the user.
package client
