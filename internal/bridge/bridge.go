// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package bridge streams the results of a remote query into native XML
// documents. Open resolves the connection, opens one session, registers the
// query and returns a Sequence; each pull on the Sequence then reads exactly one
// item from the server and builds one document from it.
//
// The package abstracts the transport behind the Session and Stream interfaces
// so the session lifecycle can be exercised without a server. The default
// Dialer speaks the BaseX protocol.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/cmarchand/xpath-basex-ext/internal/args"
	"github.com/cmarchand/xpath-basex-ext/internal/basex"
	bxerrors "github.com/cmarchand/xpath-basex-ext/internal/errors"
	"github.com/cmarchand/xpath-basex-ext/internal/logging"

	"github.com/pterm/pterm"
)

// ErrInvalidPort is wrapped by the connection error raised for a port that is
// not a number between 1 and 65535.
var ErrInvalidPort = errors.New("invalid port")

// Session is an open connection to a query server, owned by one Sequence.
type Session interface {
	// Query registers text and returns its result stream.
	Query(ctx context.Context, text string) (Stream, error)
	// Close ends the session.
	Close() error
}

// Stream is a server-side cursor over a query's serialized result items.
type Stream interface {
	More(ctx context.Context) (bool, error)
	Next(ctx context.Context) ([]byte, error)
	Close(ctx context.Context) error
}

// Dialer opens and authenticates a session.
type Dialer func(ctx context.Context, cfg basex.Config) (Session, error)

// DialBaseX is the default Dialer.
func DialBaseX(ctx context.Context, cfg basex.Config) (Session, error) {
	s, err := basex.Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return baseXSession{s: s}, nil
}

type baseXSession struct {
	s *basex.Session
}

func (b baseXSession) Query(ctx context.Context, text string) (Stream, error) {
	q, err := b.s.Query(ctx, text)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (b baseXSession) Close() error { return b.s.Close() }

type options struct {
	dial    Dialer
	builder DocumentBuilder
	log     *pterm.Logger
}

// Option customizes Open.
type Option func(*options)

// WithDialer replaces the transport.
func WithDialer(d Dialer) Option {
	return func(o *options) { o.dial = d }
}

// WithBuilder replaces the document builder applied to each item.
func WithBuilder(b DocumentBuilder) Option {
	return func(o *options) { o.builder = b }
}

// WithLogger sets the logger receiving protocol traces and release warnings.
func WithLogger(l *pterm.Logger) Option {
	return func(o *options) { o.log = l }
}

// ParsePort converts textual port into a TCP port number.
func ParsePort(port string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(port))
	if err != nil {
		return 0, fmt.Errorf("%w %q: not a number", ErrInvalidPort, port)
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("%w %d: out of range 1-65535", ErrInvalidPort, n)
	}
	return n, nil
}

// Open connects to the server described by req.Conn and registers req.Query.
// Both steps happen before Open returns: a bad port, an unreachable server or
// rejected credentials produce a ConnectionError, a query the server refuses
// produces a QueryError, and in every failing case the session is already
// released. On success the caller owns the returned Sequence and must Close it.
func Open(ctx context.Context, req args.Request, opts ...Option) (*Sequence, error) {
	o := options{dial: DialBaseX, builder: EtreeBuilder{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.Default()
	}

	port, err := ParsePort(req.Conn.Port)
	if err != nil {
		return nil, bxerrors.Wrap(bxerrors.ConnectionError, "resolving server address", err)
	}
	addr := net.JoinHostPort(req.Conn.Host, strconv.Itoa(port))

	session, err := o.dial(ctx, basex.Config{
		Address:  addr,
		User:     req.Conn.User,
		Password: req.Conn.Password,
		Logger:   o.log,
	})
	if err != nil {
		return nil, bxerrors.Wrap(bxerrors.ConnectionError, "opening session with "+addr, err)
	}

	seq := &Sequence{session: session, builder: o.builder, log: o.log}

	stream, err := session.Query(ctx, req.Query)
	if err != nil {
		seq.release()
		return nil, bxerrors.Wrap(bxerrors.QueryError, "registering query", err)
	}
	seq.stream = stream

	o.log.Debug("result sequence opened", o.log.Args("address", addr, "user", req.Conn.User))
	return seq, nil
}
