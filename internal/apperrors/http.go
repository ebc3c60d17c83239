package apperrors

import "net/http"

// StatusCode maps err to the HTTP status returned to API clients.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindInvalidTransition, KindInsufficientStock, KindBadRequest:
		return http.StatusUnprocessableEntity
	case KindValidation, KindInvalidSignature:
		return http.StatusBadRequest
	case KindProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
