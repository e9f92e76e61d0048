// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package basex

import "errors"

var (
	// ErrAccessDenied is returned by Dial when the server rejects the credentials.
	ErrAccessDenied = errors.New("access denied")
	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
	// ErrQueryClosed is returned for operations on a closed query.
	ErrQueryClosed = errors.New("query closed")
	// ErrBusy is returned when a session is asked to start a second result
	// stream while another one is still being read.
	ErrBusy = errors.New("session has an active result stream")
	// ErrNoItem is returned by Next when the result stream has no further item.
	ErrNoItem = errors.New("no more items")
)

// ServerError is an error message reported by the server in a failed status.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server: " + e.Message
}
