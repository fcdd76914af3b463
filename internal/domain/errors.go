package domain

import (
	"errors"
	"fmt"
)

// DomainError keeps backward compatibility for generic codes.
type DomainError struct {
	Code string
	Err  error
}

func (e DomainError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	if e.Code == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e DomainError) Unwrap() error {
	return e.Err
}

type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

// ConflictError signals a uniqueness violation (e.g. a second active
// reservation for the same user and trip).
type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

// ReconciliationConflict is an invalid state transition, e.g. refunding an
// already refunded payment or confirming a trip someone else holds.
type ReconciliationConflict struct {
	Resource string
	From     string
	To       string
	Msg      string
}

func (e ReconciliationConflict) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = "invalid transition"
	}
	if e.From != "" || e.To != "" {
		return fmt.Sprintf("%s %s: %s -> %s", e.Resource, msg, e.From, e.To)
	}
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s", e.Resource, msg)
	}
	return msg
}

// AuthorizationError is a missing or wrong credential.
type AuthorizationError struct {
	Msg string
}

func (e AuthorizationError) Error() string {
	if e.Msg == "" {
		return "unauthorized"
	}
	return e.Msg
}

// ForbiddenError is a valid identity acting on something it does not own.
type ForbiddenError struct {
	Msg string
}

func (e ForbiddenError) Error() string {
	if e.Msg == "" {
		return "forbidden"
	}
	return e.Msg
}

// GatewayError wraps a failed call to the payment processor. StatusCode 0
// means the request never produced a response (network error or timeout),
// so the remote outcome is unknown.
type GatewayError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("gateway %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("gateway %s failed with status %d", e.Op, e.StatusCode)
	}
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Ambiguous reports whether the remote side may have applied the request.
func (e *GatewayError) Ambiguous() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsReconciliationConflict(err error) bool {
	var target ReconciliationConflict
	return errors.As(err, &target)
}

func IsAuthorization(err error) bool {
	var target AuthorizationError
	return errors.As(err, &target)
}

func IsForbidden(err error) bool {
	var target ForbiddenError
	return errors.As(err, &target)
}

func IsInternal(err error) bool {
	var target InternalError
	return errors.As(err, &target)
}

// AsGatewayError extracts a gateway failure from err.
func AsGatewayError(err error) (*GatewayError, bool) {
	var target *GatewayError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
