// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hearthd/hearthd/pkg/errutil"
)

// maxJSONBodyBytes is the maximum allowed size for a JSON request body (1 MB).
const maxJSONBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeMessage writes the {"message": ...} body used by every
// non-state response.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeError maps an error to its HTTP status and writes it in message
// shape. Server-side failures are logged; client mistakes are not.
func writeError(w http.ResponseWriter, err error) {
	status := errutil.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		errutil.LogError(slog.Default(), "api request failed", err)
	}
	writeMessage(w, status, err.Error())
}

// decodeJSONBody decodes the request body as JSON into dst. The body is
// limited to maxJSONBodyBytes. On failure it writes a 400 response and
// returns false.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON specified.")
		return false
	}
	return true
}
