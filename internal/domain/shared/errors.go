// Package shared contains the error kinds, domain events and value objects
// shared by every progression domain package. It has no external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds, matched with errors.Is.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidID       = errors.New("invalid ID")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	ErrInvalidState = errors.New("invalid state")
	ErrExpired      = errors.New("expired")

	ErrUnrecognizedActivity = errors.New("unrecognized activity")

	ErrPersistence = errors.New("persistence failure")
	ErrTimeout     = errors.New("operation timeout")
)

// DomainError carries the domain and operation in which a failure happened.
type DomainError struct {
	Domain  string // e.g. "quest", "powerup", "store"
	Op      string // e.g. "Apply", "Put"
	Kind    error  // base kind for errors.Is
	Message string
	Err     error // underlying cause, optional
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the cause, or the kind when there is none.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches against both the kind and the cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

// NewDomainError creates a DomainError without a cause.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError creates a DomainError around err.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// Learner errors
var (
	ErrInvalidLearnerID   = NewDomainError("learner", "Validate", ErrInvalidID, "learner ID cannot be empty")
	ErrNegativeExperience = NewDomainError("learner", "Validate", ErrNegativeValue, "experience cannot be negative")
)

// Quest errors
var (
	ErrQuestNotFound  = NewDomainError("quest", "Find", ErrNotFound, "quest not found")
	ErrQuestCompleted = NewDomainError("quest", "Apply", ErrInvalidState, "quest already completed")
	ErrQuestExpired   = NewDomainError("quest", "Apply", ErrExpired, "quest expired")
	ErrQuestLocked    = NewDomainError("quest", "Apply", ErrInvalidState, "quest requirements not met")
	ErrInvalidQuest   = NewDomainError("quest", "Validate", ErrInvalidInput, "quest needs an id and at least one objective")
)

// Power-up errors
var (
	ErrPowerUpNotFound = NewDomainError("powerup", "Find", ErrNotFound, "power-up not in catalog")
	ErrPowerUpLimited  = NewDomainError("powerup", "Use", ErrInvalidState, "power-up usage limit reached")
	ErrPowerUpNoStock  = NewDomainError("powerup", "Use", ErrInvalidState, "no power-up left in inventory")
	ErrPowerUpCooling  = NewDomainError("powerup", "Use", ErrInvalidState, "power-up is cooling down")
)

// Badge errors
var (
	ErrBadgeNotFound = NewDomainError("badge", "Find", ErrNotFound, "badge not in catalog")
)

// IsNotFound reports whether err is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidState reports whether err is an expected rule rejection.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState) || errors.Is(err, ErrExpired)
}

// IsValidation reports whether err was caused by bad input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsPersistence reports whether err came from the progress store.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsRetryable reports whether a failed operation may succeed when repeated.
// Only storage and timeout failures qualify; rule rejections never do.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrTimeout)
}
