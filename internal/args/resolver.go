// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package args resolves the actual arguments of a basex-query call into a
// canonical Request. Two call shapes are accepted:
//
//	basex-query($query, $connection)                     (2 arguments)
//	basex-query($query, $host, $port, $user, $password)  (5 arguments)
//
// where $connection is an element with server, port, user and password
// children. Resolution is pure: no network access, no parsing of the query.
package args

import (
	"fmt"

	bxerrors "github.com/cmarchand/xpath-basex-ext/internal/errors"
	"github.com/cmarchand/xpath-basex-ext/internal/xmlnode"

	"github.com/beevik/etree"
)

// form is the outcome of inspecting the call shape, before the descriptor is extracted.
type form interface {
	descriptor() (Descriptor, error)
}

// structuredForm is the 2-argument shape carrying a connection element.
type structuredForm struct {
	conn *etree.Element
}

// flatForm is the 5-argument shape carrying discrete strings.
type flatForm struct {
	host, port, user, password string
}

// Resolve validates values and returns the canonical request.
// Errors are ArgumentError kinds wrapping ErrArity, ErrArgumentType,
// ErrUnknownChild or ErrMissingChild.
func Resolve(values []any) (Request, error) {
	if len(values) != 2 && len(values) != 5 {
		return Request{}, argumentError(fmt.Sprintf("got %d arguments", len(values)), ErrArity)
	}

	query, ok := values[0].(string)
	if !ok {
		return Request{}, typeError(1, "a string", values[0])
	}

	f, err := inspect(values)
	if err != nil {
		return Request{}, err
	}

	conn, err := f.descriptor()
	if err != nil {
		return Request{}, err
	}

	return Request{Query: query, Conn: conn}, nil
}

// inspect classifies the call shape; values has length 2 or 5.
func inspect(values []any) (form, error) {
	if len(values) == 2 {
		switch v := values[1].(type) {
		case *etree.Element:
			if v == nil {
				return nil, typeError(2, "an element node", v)
			}
			return structuredForm{conn: v}, nil
		case *etree.Document:
			if v == nil || v.Root() == nil {
				return nil, typeError(2, "an element node", v)
			}
			return structuredForm{conn: v.Root()}, nil
		default:
			return nil, typeError(2, "an element node", v)
		}
	}

	strs := make([]string, 4)
	for i := range strs {
		s, ok := values[i+1].(string)
		if !ok {
			return nil, typeError(i+2, "a string", values[i+1])
		}
		strs[i] = s
	}
	return flatForm{host: strs[0], port: strs[1], user: strs[2], password: strs[3]}, nil
}

// descriptor reads the four recognized children. Duplicated children are not
// rejected: the last occurrence wins.
func (f structuredForm) descriptor() (Descriptor, error) {
	var (
		d    Descriptor
		seen = map[string]bool{}
	)
	for _, child := range f.conn.ChildElements() {
		value := xmlnode.StringValue(child)
		switch child.Tag {
		case ChildServer:
			d.Host = value
		case ChildPort:
			d.Port = value
		case ChildUser:
			d.User = value
		case ChildPassword:
			d.Password = value
		default:
			return Descriptor{}, argumentError(fmt.Sprintf("unexpected child <%s>", child.FullTag()), ErrUnknownChild)
		}
		seen[child.Tag] = true
	}

	for _, name := range []string{ChildServer, ChildPort, ChildUser, ChildPassword} {
		if !seen[name] {
			return Descriptor{}, argumentError(fmt.Sprintf("no <%s> child", name), ErrMissingChild)
		}
	}
	return d, nil
}

func (f flatForm) descriptor() (Descriptor, error) {
	return Descriptor{Host: f.host, Port: f.port, User: f.user, Password: f.password}, nil
}

func argumentError(msg string, sentinel error) error {
	return bxerrors.Wrap(bxerrors.ArgumentError, msg, sentinel)
}

func typeError(position int, want string, got any) error {
	return argumentError(fmt.Sprintf("argument %d must be %s, got %T", position, want, got), ErrArgumentType)
}
