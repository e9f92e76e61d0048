// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package args

import (
	"errors"
	"fmt"
	"net"
)

// Child element names recognized under a connection element.
const (
	ChildServer   = "server"
	ChildPort     = "port"
	ChildUser     = "user"
	ChildPassword = "password"
)

var (
	// ErrArity is wrapped by errors raised for a call with neither 2 nor 5 arguments.
	ErrArity = errors.New("basex-query expects 2 or 5 arguments")
	// ErrArgumentType is wrapped when a value does not have the type its position requires.
	ErrArgumentType = errors.New("argument has wrong type")
	// ErrUnknownChild is wrapped when a connection element has a child other than
	// server, port, user and password.
	ErrUnknownChild = errors.New("child elements of basex must be server, port, user and password")
	// ErrMissingChild is wrapped when one of the four connection children is absent.
	ErrMissingChild = errors.New("connection element is missing a child")
)

// Descriptor holds the resolved connection parameters of one call.
// Port stays textual here; it is converted when the session is opened.
type Descriptor struct {
	Host     string
	Port     string
	User     string
	Password string
}

// Address returns host:port suitable for dialing.
func (d Descriptor) Address() string {
	return net.JoinHostPort(d.Host, d.Port)
}

// String renders the descriptor with the password masked.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s@%s (password: ***)", d.User, d.Address())
}

// Request is the canonical form of a basex-query call.
type Request struct {
	Query string
	Conn  Descriptor
}
