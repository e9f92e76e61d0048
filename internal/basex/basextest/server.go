// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package basextest provides an in-process BaseX server speaking the client
// protocol over loopback TCP, for tests. It does not evaluate XQuery: a
// Handler maps each query text to the items the server should stream back.
// The server records what clients did (connections, exits, query closes) so
// tests can assert on resource release.
package basextest

import (
	"bufio"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
)

const (
	realm = "BaseX"
	nonce = "1234567890"
)

// Result is what the server streams for one query.
type Result struct {
	Items []string
	// Err, when set, is reported as an evaluation error after Items.
	Err error
	// Drop closes the connection right after Items, without terminating the stream.
	Drop bool
	// Stall leaves the stream open after Items and sends nothing more until
	// the client disconnects or the server is closed.
	Stall bool
}

// Handler decides the result of a query. A non-nil error rejects the query
// when it is registered, before any result is requested.
type Handler func(query string) (Result, error)

// Static returns a Handler that answers every query with items.
func Static(items ...string) Handler {
	return func(string) (Result, error) { return Result{Items: items}, nil }
}

// Option configures a Server.
type Option func(*Server)

// WithCredentials sets the accepted user and password (default admin/admin).
func WithCredentials(user, password string) Option {
	return func(s *Server) { s.user, s.password = user, password }
}

// WithLegacyAuth makes the server send a bare timestamp challenge instead of realm:nonce.
func WithLegacyAuth() Option {
	return func(s *Server) { s.legacy = true }
}

// WithCommands sets the handler for database commands.
func WithCommands(fn func(command string) (output, info string, err error)) Option {
	return func(s *Server) { s.commands = fn }
}

// Server is a fake BaseX server.
type Server struct {
	ln       net.Listener
	handler  Handler
	commands func(string) (string, string, error)
	user     string
	password string
	legacy   bool

	wg sync.WaitGroup

	mu          sync.Mutex
	conns       map[net.Conn]struct{}
	connections int
	exits       int
	disconnects int
	queryCloses int
	queries     []string
	bindings    map[string]string
	nextID      int
}

// NewServer starts a server on an ephemeral loopback port. It panics if it
// cannot listen. Call Close when done.
func NewServer(h Handler, opts ...Option) *Server {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(fmt.Sprintf("basextest: failed to listen: %v", err))
	}
	s := &Server{
		ln:       ln,
		handler:  h,
		user:     "admin",
		password: "admin",
		conns:    map[net.Conn]struct{}{},
		bindings: map[string]string{},
		commands: func(string) (string, string, error) { return "", "Command executed.", nil },
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.serve()
	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Host returns the listening host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listening port as text.
func (s *Server) Port() string {
	_, port, _ := net.SplitHostPort(s.Addr())
	return port
}

// Connections returns how many connections were accepted.
func (s *Server) Connections() int { return s.count(&s.connections) }

// Exits returns how many sessions ended with the exit command.
func (s *Server) Exits() int { return s.count(&s.exits) }

// Disconnects returns how many connections have ended, with or without exit.
func (s *Server) Disconnects() int { return s.count(&s.disconnects) }

// QueryCloses returns how many query close requests were received.
func (s *Server) QueryCloses() int { return s.count(&s.queryCloses) }

// Queries returns the query texts registered so far.
func (s *Server) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// Binding returns the value bound to name by any query.
func (s *Server) Binding(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindings[name]
}

func (s *Server) count(n *int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *n
}

// Close stops listening, drops open connections and waits for handlers to return.
func (s *Server) Close() {
	_ = s.ln.Close()
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.connections++
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				_ = conn.Close()
				s.mu.Lock()
				delete(s.conns, conn)
				s.disconnects++
				s.mu.Unlock()
			}()
			_ = s.handle(conn)
		}()
	}
}

type query struct {
	text   string
	result Result
}

func (s *Server) handle(conn net.Conn) error {
	c := &peer{r: bufio.NewReader(conn), w: bufio.NewWriter(conn)}

	challenge := realm + ":" + nonce
	if s.legacy {
		challenge = nonce
	}
	c.text(challenge)
	if err := c.w.Flush(); err != nil {
		return err
	}

	user, err := c.read()
	if err != nil {
		return err
	}
	token, err := c.read()
	if err != nil {
		return err
	}
	if user != s.user || token != s.token(challenge) {
		c.put(1)
		return c.w.Flush()
	}
	c.put(0)
	if err := c.w.Flush(); err != nil {
		return err
	}

	queries := map[string]*query{}
	for {
		code, err := c.r.ReadByte()
		if err != nil {
			return err
		}

		switch code {
		case 0x00:
			text, err := c.read()
			if err != nil {
				return err
			}
			res, herr := s.handler(text)
			if herr != nil {
				c.text("")
				c.fail(herr.Error())
				break
			}
			s.mu.Lock()
			s.nextID++
			id := strconv.Itoa(s.nextID)
			s.queries = append(s.queries, text)
			s.mu.Unlock()
			queries[id] = &query{text: text, result: res}
			c.text(id)
			c.put(0)

		case 0x02:
			id, err := c.read()
			if err != nil {
				return err
			}
			delete(queries, id)
			s.mu.Lock()
			s.queryCloses++
			s.mu.Unlock()
			c.text("")
			c.put(0)

		case 0x03:
			fields := make([]string, 4)
			for i := range fields {
				if fields[i], err = c.read(); err != nil {
					return err
				}
			}
			s.mu.Lock()
			s.bindings[strings.TrimPrefix(fields[1], "$")] = fields[2]
			s.mu.Unlock()
			c.text("")
			c.put(0)

		case 0x04:
			id, err := c.read()
			if err != nil {
				return err
			}
			q, ok := queries[id]
			if !ok {
				c.put(0)
				c.fail("Unknown query id: " + id)
				break
			}
			for _, item := range q.result.Items {
				c.put(0x0E)
				c.escaped(item)
				// one flush per item so clients really read incrementally
				if err := c.w.Flush(); err != nil {
					return err
				}
			}
			if q.result.Drop {
				return errors.New("dropped")
			}
			if q.result.Stall {
				_, err := io.Copy(io.Discard, c.r)
				return err
			}
			c.put(0)
			if q.result.Err != nil {
				c.fail(q.result.Err.Error())
			} else {
				c.put(0)
			}

		case 0x05:
			id, err := c.read()
			if err != nil {
				return err
			}
			q, ok := queries[id]
			if !ok {
				c.text("")
				c.fail("Unknown query id: " + id)
				break
			}
			c.escaped(strings.Join(q.result.Items, ""))
			c.put(0)

		case 0x06:
			id, err := c.read()
			if err != nil {
				return err
			}
			text := ""
			if q, ok := queries[id]; ok {
				text = q.text
			}
			c.text("Query: " + text)
			c.put(0)

		default:
			rest, err := c.read()
			if err != nil {
				return err
			}
			command := string(code) + rest
			if command == "exit" {
				s.mu.Lock()
				s.exits++
				s.mu.Unlock()
				return nil
			}
			out, info, cerr := s.commands(command)
			c.escaped(out)
			if cerr != nil {
				c.text(cerr.Error())
				c.put(1)
			} else {
				c.text(info)
				c.put(0)
			}
		}

		if err := c.w.Flush(); err != nil {
			return err
		}
	}
}

func (s *Server) token(challenge string) string {
	if s.legacy {
		return md5hex(md5hex(s.password) + challenge)
	}
	return md5hex(md5hex(s.user+":"+realm+":"+s.password) + nonce)
}

func md5hex(v string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(v)))
}

// peer writes protocol frames; write errors surface on the next Flush.
type peer struct {
	r *bufio.Reader
	w *bufio.Writer
}

func (p *peer) read() (string, error) {
	s, err := p.r.ReadString(0)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimSuffix(s, "\x00"), nil
}

func (p *peer) put(b byte) { _ = p.w.WriteByte(b) }

func (p *peer) text(v string) {
	_, _ = p.w.WriteString(v)
	_ = p.w.WriteByte(0)
}

func (p *peer) escaped(v string) {
	for i := 0; i < len(v); i++ {
		if v[i] == 0x00 || v[i] == 0xFF {
			_ = p.w.WriteByte(0xFF)
		}
		_ = p.w.WriteByte(v[i])
	}
	_ = p.w.WriteByte(0)
}

func (p *peer) fail(msg string) {
	p.put(1)
	p.text(msg)
}
