// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/check-the-vibe/vibestack/internal/session"
	"github.com/check-the-vibe/vibestack/internal/templates"
)

// errorBody is the error payload shape for every failed request.
type errorBody struct {
	Detail string `json:"detail"`
}

// writeJSON writes data as a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeDetail writes an error response with the given message.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// writeError maps a core error onto its HTTP status.
func writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *session.ValidationError
		existsErr     *session.AlreadyExistsError
		notFoundErr   *session.NotFoundError
		templateErr   *templates.Error
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &existsErr), errors.As(err, &templateErr):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFoundErr):
		writeDetail(w, http.StatusNotFound, err.Error())
	default:
		writeDetail(w, http.StatusInternalServerError, err.Error())
	}
}
