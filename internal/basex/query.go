// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package basex

import (
	"context"
	"fmt"
)

type queryState int

const (
	stateIdle queryState = iota
	stateStreaming
	stateDone
)

// Query is a query registered on the server. Its results are read as a
// single forward pass: More reports whether another item follows and Next
// returns it. Only one query per session can be streaming at a time.
type Query struct {
	s     *Session
	id    string
	state queryState
	// pending is set when More has consumed an item's type byte but Next has
	// not read the item yet.
	pending bool
	closed  bool
}

// ID returns the server-side query identifier.
func (q *Query) ID() string { return q.id }

// Bind binds an external variable before results are requested.
// typ may be empty to let the server infer the type.
func (q *Query) Bind(ctx context.Context, name, value, typ string) error {
	if err := q.idle(); err != nil {
		return err
	}
	for what, s := range map[string]string{"variable name": name, "value": value, "type": typ} {
		if err := checkText(what, s); err != nil {
			return err
		}
	}

	done := q.s.w.guard(ctx)
	defer done()

	if _, err := q.s.w.exec(codeBind, q.id, name, value, typ); err != nil {
		err = interrupted(ctx, err)
		q.s.failed(err)
		return err
	}
	return nil
}

// Info returns the server's compilation and timing information for the query.
func (q *Query) Info(ctx context.Context) (string, error) {
	if err := q.usable(); err != nil {
		return "", err
	}
	if q.state == stateStreaming {
		return "", ErrBusy
	}

	done := q.s.w.guard(ctx)
	defer done()

	info, err := q.s.w.exec(codeInfo, q.id)
	if err != nil {
		err = interrupted(ctx, err)
		q.s.failed(err)
		return "", err
	}
	return info, nil
}

// Execute evaluates the query and returns its whole serialized result at once.
func (q *Query) Execute(ctx context.Context) (string, error) {
	if err := q.idle(); err != nil {
		return "", err
	}

	done := q.s.w.guard(ctx)
	defer done()

	out, err := q.s.w.exec(codeExecute, q.id)
	if err != nil {
		err = interrupted(ctx, err)
		q.s.failed(err)
		return "", err
	}
	return out, nil
}

// More reports whether another item is available. The first call asks the
// server for the results; each call then reads at most one type byte.
// Once it returns false the stream is exhausted and stays so.
func (q *Query) More(ctx context.Context) (bool, error) {
	if err := q.usable(); err != nil {
		return false, err
	}
	if q.pending {
		return true, nil
	}

	switch q.state {
	case stateDone:
		return false, nil
	case stateIdle:
		if err := q.s.usable(); err != nil {
			return false, err
		}
	}

	done := q.s.w.guard(ctx)
	defer done()

	if q.state == stateIdle {
		if err := q.requestResults(); err != nil {
			return false, q.broken(interrupted(ctx, err))
		}
	}

	typ, err := q.s.w.readByte()
	if err != nil {
		return false, q.broken(interrupted(ctx, err))
	}
	if typ != terminator {
		q.pending = true
		return true, nil
	}

	q.state = stateDone
	q.s.active = nil
	if err := q.s.w.readStatus(); err != nil {
		err = interrupted(ctx, err)
		q.s.failed(err)
		return false, err
	}
	return false, nil
}

// Next returns the next item's serialized bytes. It calls More if needed and
// returns ErrNoItem once the stream is exhausted.
func (q *Query) Next(ctx context.Context) ([]byte, error) {
	if !q.pending {
		more, err := q.More(ctx)
		if err != nil {
			return nil, err
		}
		if !more {
			return nil, ErrNoItem
		}
	}

	done := q.s.w.guard(ctx)
	defer done()

	item, err := q.s.w.readBytes()
	if err != nil {
		return nil, q.broken(interrupted(ctx, err))
	}
	q.pending = false
	return item, nil
}

// Close releases the query on the server. A query closed in the middle of its
// result stream cannot be released in-band; the session is then marked out of
// sync and its own Close drops the connection. Further calls are no-ops.
func (q *Query) Close(ctx context.Context) error {
	if q.closed {
		return nil
	}
	q.closed = true

	if q.state == stateStreaming {
		q.s.log.Debug("query abandoned mid-stream", q.s.log.Args("id", q.id))
		q.s.desync = true
		q.s.active = nil
		return nil
	}
	if q.s.closed || q.s.desync {
		return nil
	}

	done := q.s.w.guard(ctx)
	defer done()

	if _, err := q.s.w.exec(codeClose, q.id); err != nil {
		err = interrupted(ctx, err)
		q.s.failed(err)
		return fmt.Errorf("closing query %s: %w", q.id, err)
	}
	q.s.log.Debug("query closed", q.s.log.Args("id", q.id))
	return nil
}

func (q *Query) requestResults() error {
	if err := q.s.w.writeByte(codeResults); err != nil {
		return err
	}
	if err := q.s.w.writeString(q.id); err != nil {
		return err
	}
	if err := q.s.w.flush(); err != nil {
		return err
	}
	q.state = stateStreaming
	q.s.active = q
	return nil
}

// broken ends the stream after an I/O failure.
func (q *Query) broken(err error) error {
	q.state = stateDone
	q.pending = false
	q.s.desync = true
	if q.s.active == q {
		q.s.active = nil
	}
	return err
}

func (q *Query) usable() error {
	if q.closed {
		return ErrQueryClosed
	}
	if q.s.closed {
		return ErrSessionClosed
	}
	return nil
}

func (q *Query) idle() error {
	if err := q.usable(); err != nil {
		return err
	}
	if q.state != stateIdle {
		return fmt.Errorf("query %s: results already requested", q.id)
	}
	return q.s.usable()
}
