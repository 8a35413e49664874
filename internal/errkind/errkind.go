// Package errkind implements the typed error-kind taxonomy of spec §7.
package errkind

import (
	"errors"
	"fmt"
)

// Kind names one of the recognized error kinds.
type Kind string

const (
	VpcConfigurationValidation   Kind = "VpcConfigurationValidation"
	DiscoveryAlreadyRunning      Kind = "DiscoveryAlreadyRunning"
	AggregatorNotFound           Kind = "AggregatorNotFound"
	OrgAggregatorValidation      Kind = "OrgAggregatorValidation"
	AccessDenied                 Kind = "AccessDenied"
	UnprocessedSearchIndexResources Kind = "UnprocessedSearchIndexResources"
	PayloadTooLarge              Kind = "PayloadTooLarge"
	ConnectionClosedPrematurely  Kind = "ConnectionClosedPrematurely"
	ResolverCodeSize             Kind = "ResolverCodeSize"
)

// Fatal reports whether an error of this kind must abort the crawl.
func (k Kind) Fatal() bool {
	switch k {
	case VpcConfigurationValidation, AggregatorNotFound, OrgAggregatorValidation:
		return true
	default:
		return false
	}
}

// Error is a kind-tagged error. Wrap with fmt.Errorf("...: %w", err) and
// unwrap with errors.As to recover the Kind.
type Error struct {
	Kind    Kind
	Message string
	// FailedSubset carries the item ids a partial-failure kind applies to
	// (UnprocessedSearchIndexResources), empty otherwise.
	FailedSubset []string
	cause        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a kind-tagged error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a kind-tagged error around an underlying cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithFailedSubset attaches a failed-item subset (for
// UnprocessedSearchIndexResources).
func (e *Error) WithFailedSubset(ids []string) *Error {
	e.FailedSubset = ids
	return e
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind == kind
	}
	return false
}

// As recovers the *Error from err, if any.
func As(err error) (*Error, bool) {
	var ke *Error
	ok := errors.As(err, &ke)
	return ke, ok
}
