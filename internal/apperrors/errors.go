package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindInvalidTransition   Kind = "invalid_transition"
	KindInsufficientStock   Kind = "insufficient_stock"
	KindInvalidSignature    Kind = "invalid_signature"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindValidation          Kind = "validation"
	KindBadRequest          Kind = "bad_request"
	KindUnauthorized        Kind = "unauthorized"
	KindConflict            Kind = "conflict"
)

// Sentinels for errors.Is matching. Only the Kind is compared.
var (
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden           = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition, Message: "invalid status transition"}
	ErrInsufficientStock   = &Error{Kind: KindInsufficientStock, Message: "insufficient stock"}
	ErrInvalidSignature    = &Error{Kind: KindInvalidSignature, Message: "invalid signature"}
	ErrProviderUnavailable = &Error{Kind: KindProviderUnavailable, Message: "payment provider unavailable"}
	ErrValidation          = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrBadRequest          = &Error{Kind: KindBadRequest, Message: "bad request"}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrConflict            = &Error{Kind: KindConflict, Message: "conflict"}
)

// Error is the typed error returned by the order and payment services.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Shortfall describes one item that cannot be covered by current stock.
type Shortfall struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func NotFound(entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s with ID %s not found", entity, id),
		Details: map[string]any{"entity": entity, "id": id},
	}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// InvalidTransition reports the current status and the rejected target.
func InvalidTransition(from, to string) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("cannot transition order from %s to %s", from, to),
		Details: map[string]any{"current_status": from, "requested_status": to},
	}
}

func InsufficientStock(shortfalls []Shortfall) *Error {
	msg := "insufficient stock"
	if len(shortfalls) == 1 {
		s := shortfalls[0]
		msg = fmt.Sprintf("insufficient stock for product %s (requested: %d, available: %d)", s.ProductID, s.Requested, s.Available)
	} else if len(shortfalls) > 1 {
		msg = fmt.Sprintf("insufficient stock for %d products", len(shortfalls))
	}
	return &Error{
		Kind:    KindInsufficientStock,
		Message: msg,
		Details: map[string]any{"shortfalls": shortfalls},
	}
}

func InvalidSignature(provider string) *Error {
	return &Error{
		Kind:    KindInvalidSignature,
		Message: "invalid payment notification signature",
		Details: map[string]any{"provider": provider},
	}
}

func ProviderUnavailable(provider string, err error) *Error {
	return &Error{
		Kind:    KindProviderUnavailable,
		Message: fmt.Sprintf("payment provider %s unavailable", provider),
		Details: map[string]any{"provider": provider},
		Err:     err,
	}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// WrongStatus is returned when an action requires the order to be in a specific status.
func WrongStatus(current, required string) *Error {
	return &Error{
		Kind:    KindBadRequest,
		Message: fmt.Sprintf("order is %s, only %s orders allow this action", current, required),
		Details: map[string]any{"current_status": current, "required_status": required},
	}
}

func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }
