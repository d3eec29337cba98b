// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package errutil

import "net/http"

// HTTPStatus maps an error to the HTTP status code the REST API should
// answer with. Validation failures become 400, reservation conflicts 409,
// unavailable stores 503, everything else 500.
func HTTPStatus(err error) int {
	switch Code(err) {
	case "INVALID_ENTITY_ID", "INVALID_STATE", "INVALID_ENTITY_GLOB",
		"SCENE_INVALID", "CONFIG_INVALID", "UNSUPPORTED_ATTRIBUTE":
		return http.StatusBadRequest
	case "ENTITY_RESERVED":
		return http.StatusConflict
	case "STORE_UNAVAILABLE":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
