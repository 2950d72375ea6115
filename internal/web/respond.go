// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/samber/oops"

	"github.com/geoelevate/geoelevate/pkg/errutil"
)

// maxBodyBytes bounds request bodies. A full migration batch fits well
// below it.
const maxBodyBytes = 1 << 20

var statusByCode = map[string]int{
	errutil.CodeInvalidInput:    http.StatusBadRequest,
	errutil.CodeUnauthenticated: http.StatusUnauthorized,
	errutil.CodeAccountInactive: http.StatusForbidden,
	errutil.CodeNotFound:        http.StatusNotFound,
	errutil.CodeConflict:        http.StatusConflict,
	errutil.CodeRateLimited:     http.StatusTooManyRequests,
	errutil.CodeInternal:        http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for an outcome code.
func StatusFor(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	outcome := errutil.Classify(err)
	status := StatusFor(outcome.Code)
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), s.logger, "request failed", err)
	} else {
		s.logger.DebugContext(r.Context(), "request rejected",
			"outcome", outcome.Code,
			"error", err.Error())
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, ErrorResponse{Code: outcome.Code, Detail: outcome.Message})
}

// decode reads the body, validates it against the named schema and
// unmarshals it into dst.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema string, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return oops.Code("REQUEST_TOO_LARGE").
				With("limit", tooLarge.Limit).
				Wrap(errutil.Public(errutil.ErrInvalidInput, "request body too large"))
		}
		return oops.Code("REQUEST_READ_FAILED").Wrap(err)
	}
	if err := s.validator.check(schema, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return oops.Code("REQUEST_MALFORMED").
			Wrap(errutil.Public(errutil.ErrInvalidInput, "request body does not match the expected shape"))
	}
	return nil
}
