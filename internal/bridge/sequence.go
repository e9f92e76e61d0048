// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bridge

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	bxerrors "github.com/cmarchand/xpath-basex-ext/internal/errors"

	"github.com/beevik/etree"
	"github.com/pterm/pterm"
)

var (
	// ErrNotRestartable is returned by Another. It matches errors.ErrUnsupported.
	ErrNotRestartable = fmt.Errorf("result sequence is single-pass: %w", errors.ErrUnsupported)
	// ErrClosed is returned by Next after the caller closed an unfinished sequence.
	ErrClosed = errors.New("result sequence closed")
)

// Sequence is a lazy, forward-only sequence of documents built from a query's
// results. It owns the remote session and releases it exactly once: when the
// results are exhausted, when a pull fails, or when Close is called, whichever
// happens first.
//
// A Sequence is not safe for concurrent use.
type Sequence struct {
	session Session
	stream  Stream
	builder DocumentBuilder
	log     *pterm.Logger

	pos    int
	done   bool
	closed bool
	err    error

	once sync.Once
}

// Next pulls one item. It returns (doc, true, nil) for an item and
// (nil, false, nil) once the results are exhausted; exhaustion is final.
// A failure to fetch or build the item is returned as a QueryError and
// returned again by every later call.
func (s *Sequence) Next(ctx context.Context) (*etree.Document, bool, error) {
	switch {
	case s.err != nil:
		return nil, false, s.err
	case s.done:
		return nil, false, nil
	case s.closed:
		return nil, false, ErrClosed
	}

	more, err := s.stream.More(ctx)
	if err != nil {
		return nil, false, s.fail(fmt.Sprintf("reading item %d", s.pos+1), err)
	}
	if !more {
		s.done = true
		s.log.Debug("result sequence exhausted", s.log.Args("items", s.pos))
		s.release()
		return nil, false, nil
	}

	data, err := s.stream.Next(ctx)
	if err != nil {
		return nil, false, s.fail(fmt.Sprintf("fetching item %d", s.pos+1), err)
	}
	doc, err := s.builder.Build(data)
	if err != nil {
		return nil, false, s.fail(fmt.Sprintf("parsing item %d", s.pos+1), err)
	}

	s.pos++
	return doc, true, nil
}

// Position returns how many items have been yielded so far.
func (s *Sequence) Position() int { return s.pos }

// All returns an iterator over the remaining items. The sequence is closed when
// the loop ends, including when it is left early. A failing pull is yielded as
// (nil, err) and ends the iteration.
func (s *Sequence) All(ctx context.Context) iter.Seq2[*etree.Document, error] {
	return func(yield func(*etree.Document, error) bool) {
		defer s.Close()
		for {
			doc, ok, err := s.Next(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok || !yield(doc, nil) {
				return
			}
		}
	}
}

// Another would return an independent copy positioned at the start. Result
// streams cannot be replayed, so it always fails with ErrNotRestartable.
func (s *Sequence) Another() (*Sequence, error) {
	return nil, ErrNotRestartable
}

// Close releases the session. It can be called any number of times, before or
// after exhaustion. Release failures are logged as warnings; Close always
// returns nil.
func (s *Sequence) Close() error {
	if !s.done && s.err == nil && !s.closed {
		s.closed = true
		s.log.Debug("result sequence abandoned", s.log.Args("items", s.pos))
	}
	s.release()
	return nil
}

func (s *Sequence) fail(msg string, err error) error {
	s.err = bxerrors.Wrap(bxerrors.QueryError, msg, err)
	s.release()
	return s.err
}

// release closes the stream, then the session, once.
func (s *Sequence) release() {
	s.once.Do(func() {
		var errs []error
		if s.stream != nil {
			if err := s.stream.Close(context.Background()); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.session.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := errors.Join(errs...); err != nil {
			s.log.Warn("releasing session failed",
				s.log.Args("kind", bxerrors.ReleaseWarning, "error", err.Error()))
		}
	})
}
