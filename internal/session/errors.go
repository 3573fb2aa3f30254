package session

import (
	"errors"
	"fmt"
)

// RuntimeError reports a problem detected while settling a session.
//
// Runtime errors never abort an interaction. The model is still committed
// and dispatched; the error describes why it may be incomplete.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// SessionID identifies the affected session.
	SessionID string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeRulesUnsettled indicates the default rules kept changing the
	// model after the maximum number of passes.
	ErrCodeRulesUnsettled RuntimeErrorCode = "RULES_UNSETTLED"

	// ErrCodeStopped indicates an event was submitted to a stopped loop.
	ErrCodeStopped RuntimeErrorCode = "STOPPED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s: %s (session=%s)", e.Code, e.Message, e.SessionID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnsettled reports whether err is a RULES_UNSETTLED error.
// Uses errors.As to handle wrapped errors.
func IsUnsettled(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeRulesUnsettled
	}
	return false
}

// IsStopped reports whether err is a STOPPED error.
func IsStopped(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStopped
	}
	return false
}

// newUnsettledError creates a RuntimeError for a settle loop that hit its
// pass limit.
func newUnsettledError(sessionID string, passes int, last []string) *RuntimeError {
	details := map[string]string{
		"max_passes": fmt.Sprintf("%d", passes),
	}
	if len(last) > 0 {
		details["last_rule"] = last[len(last)-1]
	}
	return &RuntimeError{
		Code:      ErrCodeRulesUnsettled,
		Message:   fmt.Sprintf("rules still changing the model after %d passes", passes),
		SessionID: sessionID,
		Details:   details,
	}
}
