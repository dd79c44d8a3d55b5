package apperr

import (
	"errors"
	"net/http"
)

var codeMessages = map[Code]string{
	CodeNotEnabled:    "Storage not enabled. Enable the storage service for this project and try again.",
	CodeUnauthorized:  "You do not have permission for this operation. Check the storage access rules.",
	CodeQuotaExceeded: "Storage quota exceeded. Free some space or upgrade the plan.",
	CodeCanceled:      "The operation was canceled.",
	CodeInvalidFormat: "Invalid file format.",
	CodeUnavailable:   "The backend is not reachable right now. Try again in a moment.",
	CodeTimedOut:      "The upload timed out. Check your connection and try again.",
	CodeUnknown:       "Unknown error while talking to the backend.",
}

// UserMessage returns a human-readable explanation of err meant for a
// non-technical admin, never a raw backend error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		if len(ve.Errors) == 1 {
			return ve.Errors[0].Field + ": " + ve.Errors[0].Message
		}
		return "Some fields are invalid."
	case errors.Is(err, ErrAuthenticationRequired):
		return "You must sign in to do this."
	case errors.Is(err, ErrForbidden):
		return "Your account is not allowed to do this."
	case errors.Is(err, ErrNotFound):
		return "The requested item does not exist."
	case errors.Is(err, ErrConfiguration):
		return "The backend is not configured. Check the server environment."
	case errors.Is(err, ErrTransport):
		return codeMessages[CodeOf(err)]
	}
	return codeMessages[CodeUnknown]
}

// HTTPStatus maps err to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthenticationRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTimedOut):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTransport):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
