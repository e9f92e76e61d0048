// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package basex is a client for the BaseX server protocol. A Session is one
// authenticated TCP connection; it runs database commands and opens queries
// whose results are read one item at a time straight from the socket.
//
// Every string on the wire is UTF-8 terminated by a NUL byte. The client
// imposes no timeouts of its own: each blocking call takes a context whose
// deadline and cancellation apply to the socket for that exchange.
//
// A Session is not safe for concurrent use.
package basex

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/cmarchand/xpath-basex-ext/internal/logging"

	"github.com/pterm/pterm"
)

// Config describes how to reach and authenticate with a server.
type Config struct {
	// Address is host:port.
	Address  string
	User     string
	Password string
	// Logger receives protocol traces at debug level. Nil discards them.
	Logger *pterm.Logger
}

// CommandResult is the reply to a database command.
type CommandResult struct {
	Output string
	Info   string
}

// Session is an authenticated connection to a BaseX server.
type Session struct {
	w   *wire
	log *pterm.Logger

	active *Query
	// desync is set once the byte stream can no longer be trusted to be at a
	// message boundary: an abandoned result stream or a failed exchange.
	desync bool
	closed bool
}

// Dial connects to cfg.Address and authenticates. Credentials the server
// rejects yield an error wrapping ErrAccessDenied.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, err
	}

	s := &Session{w: newWire(conn), log: log}
	if err := s.authenticate(ctx, cfg.User, cfg.Password); err != nil {
		_ = conn.Close()
		return nil, interrupted(ctx, err)
	}

	log.Debug("session opened", log.Args("address", cfg.Address, "user", cfg.User))
	return s, nil
}

func (s *Session) authenticate(ctx context.Context, user, password string) error {
	if err := checkText("user", user); err != nil {
		return err
	}

	done := s.w.guard(ctx)
	defer done()

	challenge, err := s.w.readString()
	if err != nil {
		return fmt.Errorf("reading server greeting: %w", err)
	}
	if err := s.w.writeString(user); err != nil {
		return err
	}
	if err := s.w.writeString(authToken(user, password, challenge)); err != nil {
		return err
	}
	if err := s.w.flush(); err != nil {
		return err
	}

	st, err := s.w.readByte()
	if err != nil {
		return fmt.Errorf("reading authentication status: %w", err)
	}
	if st != statusOK {
		return fmt.Errorf("user %q: %w", user, ErrAccessDenied)
	}
	return nil
}

// usable reports why the session cannot start a new exchange, if it cannot.
func (s *Session) usable() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.desync {
		return errors.New("session is out of sync with the server")
	}
	if s.active != nil && s.active.state == stateStreaming {
		return ErrBusy
	}
	return nil
}

// Execute runs a database command and returns its output and info text.
// A command the server refuses returns a *ServerError carrying the info text.
func (s *Session) Execute(ctx context.Context, command string) (CommandResult, error) {
	if err := s.usable(); err != nil {
		return CommandResult{}, err
	}
	if command == "" {
		return CommandResult{}, errors.New("empty command")
	}
	if err := checkText("command", command); err != nil {
		return CommandResult{}, err
	}

	done := s.w.guard(ctx)
	defer done()

	var res CommandResult
	err := func() error {
		if err := s.w.writeString(command); err != nil {
			return err
		}
		if err := s.w.flush(); err != nil {
			return err
		}
		var err error
		if res.Output, err = s.w.readString(); err != nil {
			return err
		}
		if res.Info, err = s.w.readString(); err != nil {
			return err
		}
		st, err := s.w.readByte()
		if err != nil {
			return err
		}
		if st != statusOK {
			return &ServerError{Message: res.Info}
		}
		return nil
	}()
	if err != nil {
		err = interrupted(ctx, err)
		s.failed(err)
		return CommandResult{}, err
	}

	s.log.Debug("command executed", s.log.Args("command", command))
	return res, nil
}

// Query registers text as a query on the server and returns its handle.
// A query the server refuses (for example a syntax error) returns a *ServerError.
func (s *Session) Query(ctx context.Context, text string) (*Query, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	if err := checkText("query", text); err != nil {
		return nil, err
	}

	done := s.w.guard(ctx)
	defer done()

	id, err := s.w.exec(codeQuery, text)
	if err != nil {
		err = interrupted(ctx, err)
		s.failed(err)
		return nil, err
	}

	s.log.Debug("query opened", s.log.Args("id", id))
	return &Query{s: s, id: id}, nil
}

// failed records that an exchange broke off. Server-reported errors arrive
// after a complete reply, so they leave the session usable.
func (s *Session) failed(err error) {
	var se *ServerError
	if errors.As(err, &se) {
		return
	}
	s.desync = true
}

// Close ends the session. It sends the exit command when the connection is
// still at a message boundary, then closes the socket. Further calls are no-ops.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.active != nil && s.active.state == stateStreaming {
		s.desync = true
	}

	var exitErr error
	if !s.desync {
		exitErr = s.w.writeString("exit")
		if exitErr == nil {
			exitErr = s.w.flush()
		}
	} else {
		s.log.Debug("closing out-of-sync session without exit handshake")
	}

	closeErr := s.w.conn.Close()
	s.log.Debug("session closed")
	return errors.Join(exitErr, closeErr)
}
