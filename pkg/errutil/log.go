// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

// Package errutil holds the caller-visible error taxonomy and helpers for
// logging and asserting samber/oops errors.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
func LogError(logger *slog.Logger, msg string, err error) {
	LogErrorContext(context.Background(), logger, msg, err)
}

// LogErrorContext is LogError with a request context, so trace ids reach the
// log record. The outcome code is logged next to the oops code.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	attrs := []any{"outcome", Classify(err).Code}
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs = append(attrs, "error", oopsErr.Error())
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if oc := oopsErr.Context(); len(oc) > 0 {
			attrs = append(attrs, "context", oc)
		}
	} else {
		attrs = append(attrs, "error", err)
	}
	logger.ErrorContext(ctx, msg, attrs...)
}
