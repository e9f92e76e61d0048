// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for the basex-query extension.
// Every failure surfaced to a caller carries a machine-readable Kind telling which
// phase of a call produced it: argument resolution, session opening, result
// retrieval or session release.
//
// The package supports wrapping underlying errors while maintaining error kind
// information, so sentinel checks with the standard errors.Is keep working through
// the wrapper.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// ArgumentError indicates a call site problem: wrong arity, wrong value types
	// or a malformed connection element. Raised before any I/O.
	ArgumentError Kind = "argument_error"
	// ConnectionError indicates the session could not be opened: malformed port,
	// unreachable host or rejected credentials.
	ConnectionError Kind = "connection_error"
	// QueryError indicates the server rejected the query or an item could not be
	// fetched or parsed while pulling results.
	QueryError Kind = "query_error"
	// ReleaseWarning indicates closing the session failed. It is logged, never returned.
	ReleaseWarning Kind = "release_warning"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the outermost *E in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
