package handlers

import (
	"errors"
	"fmt"
	"net/http"

	e "github.com/gartstein/onboard/internal/onboarding/errors"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// mapServiceError translates a controller or store error into an HTTP
// status and a user-facing body. Store errors keep their raw message only
// for unclassified failures.
func mapServiceError(err error) (int, errorBody) {
	var verr *e.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, errorBody{
			Error:   "invalid_input",
			Message: "Please fix the highlighted fields",
			Fields:  verr.Fields,
		}
	}

	switch {
	case errors.Is(err, e.ErrUnauthenticated):
		return http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: "Please sign in"}
	case errors.Is(err, e.ErrForbidden):
		return http.StatusForbidden, errorBody{Error: "forbidden", Message: "You do not have access to this page"}
	case errors.Is(err, e.ErrInvalidTransition):
		return http.StatusConflict, errorBody{Error: "invalid_transition", Message: err.Error()}
	case errors.Is(err, e.ErrInvalidInput):
		return http.StatusBadRequest, errorBody{Error: "invalid_input", Message: err.Error()}
	}

	var se *e.StoreError
	if !errors.As(err, &se) {
		if errors.Is(err, e.ErrNotFound) {
			return http.StatusNotFound, errorBody{Error: "not_found", Message: "Not found"}
		}
		return http.StatusInternalServerError, errorBody{Error: "internal", Message: "Internal server error"}
	}

	body := errorBody{Error: se.Kind.String()}
	switch se.Kind {
	case e.KindNotFound:
		body.Message = "Not found"
		return http.StatusNotFound, body
	case e.KindConflict:
		body.Message = "A vendor with this phone number already exists"
		if se.Op == "create category" {
			body.Message = "A category with this name already exists"
		}
		return http.StatusConflict, body
	case e.KindInvalidReference:
		body.Message = "Invalid data provided. Please check your inputs"
		return http.StatusBadRequest, body
	case e.KindPolicyDenied:
		body.Message = "Authentication error. Please sign in again"
		return http.StatusForbidden, body
	case e.KindNotConfigured:
		body.Message = "The service is not set up yet. Please run migrations"
		return http.StatusServiceUnavailable, body
	case e.KindTooLarge:
		body.Message = "Request is too large"
		return http.StatusRequestEntityTooLarge, body
	}

	body.Error = "internal"
	if se.Op == "create vendor" {
		body.Message = fmt.Sprintf("Failed to save vendor: %v", se.Err)
	} else {
		body.Message = fmt.Sprintf("Failed to %s: %v", se.Op, se.Err)
	}
	return http.StatusInternalServerError, body
}
