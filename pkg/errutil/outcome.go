// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package errutil

import (
	"errors"
)

// Caller-visible error kinds. Services wrap one of these so that transports
// can map any failure to a stable outcome without inspecting storage errors.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrAccountInactive = errors.New("account inactive")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
)

// Outcome codes returned to callers.
const (
	CodeInvalidInput    = "INVALID_INPUT"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeAccountInactive = "ACCOUNT_INACTIVE"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternal        = "INTERNAL"
)

// Outcome is the stable classification of an error plus a message that is
// safe to show to an end user.
type Outcome struct {
	Code    string
	Message string
}

var kinds = []struct {
	err     error
	code    string
	message string
}{
	{ErrInvalidInput, CodeInvalidInput, "invalid input"},
	{ErrUnauthenticated, CodeUnauthenticated, "could not validate credentials"},
	{ErrAccountInactive, CodeAccountInactive, "inactive user"},
	{ErrNotFound, CodeNotFound, "not found"},
	{ErrConflict, CodeConflict, "already exists"},
	{ErrRateLimited, CodeRateLimited, "too many attempts, try again later"},
}

// PublicError attaches an end-user message to an error kind.
type PublicError struct {
	kind    error
	message string
}

// Public returns an error of the given kind carrying msg as its public message.
func Public(kind error, msg string) error {
	return &PublicError{kind: kind, message: msg}
}

func (e *PublicError) Error() string { return e.message }

// Unwrap exposes the kind to errors.Is.
func (e *PublicError) Unwrap() error { return e.kind }

// Classify maps err to its Outcome. Unknown errors are INTERNAL and never
// carry the underlying error text.
func Classify(err error) Outcome {
	if err == nil {
		return Outcome{}
	}
	for _, k := range kinds {
		if !errors.Is(err, k.err) {
			continue
		}
		msg := k.message
		var pub *PublicError
		if errors.As(err, &pub) && errors.Is(pub.kind, k.err) {
			msg = pub.message
		}
		return Outcome{Code: k.code, Message: msg}
	}
	return Outcome{Code: CodeInternal, Message: "internal error"}
}
