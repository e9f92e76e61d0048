// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package basex

import (
	"bufio"
	"bytes"
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// Query protocol codes, sent as the first byte of a query request.
const (
	codeQuery   byte = 0x00
	codeClose   byte = 0x02
	codeBind    byte = 0x03
	codeResults byte = 0x04
	codeExecute byte = 0x05
	codeInfo    byte = 0x06
)

const (
	statusOK    byte = 0x00
	statusError byte = 0x01

	terminator byte = 0x00
	escape     byte = 0xFF
)

// wire frames NUL-terminated strings over a connection.
type wire struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

func newWire(conn net.Conn) *wire {
	return &wire{conn: conn, r: bufio.NewReader(conn), w: bufio.NewWriter(conn)}
}

// guard applies ctx to the connection for the duration of one exchange: the
// deadline becomes the socket deadline and cancellation unblocks pending I/O.
// The returned function must be called when the exchange is over.
func (w *wire) guard(ctx context.Context) func() {
	deadline, _ := ctx.Deadline()
	_ = w.conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = w.conn.SetDeadline(time.Unix(1, 0))
	})
	return func() {
		if !stop() {
			// the callback ran or is running; leave the connection unusable
			return
		}
		_ = w.conn.SetDeadline(time.Time{})
	}
}

// writeString sends s followed by the terminator. s must not contain NUL.
func (w *wire) writeString(s string) error {
	if _, err := w.w.WriteString(s); err != nil {
		return err
	}
	return w.w.WriteByte(terminator)
}

func (w *wire) writeByte(b byte) error {
	return w.w.WriteByte(b)
}

func (w *wire) flush() error {
	return w.w.Flush()
}

// readBytes reads one terminated string, resolving escaped bytes.
func (w *wire) readBytes() ([]byte, error) {
	var buf bytes.Buffer
	for {
		b, err := w.r.ReadByte()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		if b == terminator {
			return buf.Bytes(), nil
		}
		if b == escape {
			if b, err = w.r.ReadByte(); err != nil {
				return nil, unexpectedEOF(err)
			}
		}
		buf.WriteByte(b)
	}
}

func (w *wire) readString() (string, error) {
	b, err := w.readBytes()
	return string(b), err
}

func (w *wire) readByte() (byte, error) {
	b, err := w.r.ReadByte()
	return b, unexpectedEOF(err)
}

// readStatus reads a status byte; on failure the error message that follows
// is returned as a *ServerError.
func (w *wire) readStatus() error {
	st, err := w.readByte()
	if err != nil {
		return err
	}
	if st == statusOK {
		return nil
	}
	msg, err := w.readString()
	if err != nil {
		return err
	}
	return &ServerError{Message: msg}
}

// exec sends code followed by the given terminated arguments, then reads one
// result string and the status.
func (w *wire) exec(code byte, args ...string) (string, error) {
	if err := w.writeByte(code); err != nil {
		return "", err
	}
	for _, a := range args {
		if err := w.writeString(a); err != nil {
			return "", err
		}
	}
	if err := w.flush(); err != nil {
		return "", err
	}
	result, err := w.readString()
	if err != nil {
		return "", err
	}
	if err := w.readStatus(); err != nil {
		return "", err
	}
	return result, nil
}

// interrupted attributes an I/O failure to ctx when ctx ended during the
// exchange, so callers can match context.Canceled or DeadlineExceeded.
// Server-reported errors are returned unchanged.
func interrupted(ctx context.Context, err error) error {
	if err == nil || ctx.Err() == nil {
		return err
	}
	var se *ServerError
	if errors.As(err, &se) {
		return err
	}
	return fmt.Errorf("%w: %w", context.Cause(ctx), err)
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// checkText rejects strings that cannot be framed.
func checkText(what, s string) error {
	if strings.IndexByte(s, terminator) >= 0 {
		return fmt.Errorf("%s contains a NUL byte", what)
	}
	return nil
}

func md5hex(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// authToken computes the hash sent after the user name. challenge is either
// "realm:nonce" (digest) or a bare timestamp (legacy CRAM-MD5).
func authToken(user, password, challenge string) string {
	realm, nonce, digest := strings.Cut(challenge, ":")
	if digest {
		return md5hex(md5hex(user+":"+realm+":"+password) + nonce)
	}
	return md5hex(md5hex(password) + challenge)
}
