// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

// Package auth provides credential and session handling for GeoElevate.
//
// # Components
//
//   - Argon2idHasher - salted, memory-hard password digests
//   - TokenService - signed, time-limited HS256 session tokens
//   - Gate - resolves a bearer token to the live Player record
//   - Service - register, login and profile lookup
//
// Tokens carry only the player ID. Whether the account is still active is
// read from the repository on every Gate.Resolve, so deactivation applies to
// the next request without a revocation list.
//
// Services are created with New* constructors that validate dependencies.
package auth
