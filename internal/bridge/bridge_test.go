// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/cmarchand/xpath-basex-ext/internal/args"
	"github.com/cmarchand/xpath-basex-ext/internal/basex"
	"github.com/cmarchand/xpath-basex-ext/internal/basex/basextest"
	bxerrors "github.com/cmarchand/xpath-basex-ext/internal/errors"
	"github.com/cmarchand/xpath-basex-ext/internal/logging"
	"github.com/cmarchand/xpath-basex-ext/internal/xmlnode"

	"github.com/beevik/etree"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStream replays items and records how it is driven.
type fakeStream struct {
	items    [][]byte
	pos      int
	pending  bool
	failAt   int // 1-based item whose fetch fails; 0 disables
	failErr  error
	closes   int
	closeErr error
}

func (f *fakeStream) More(context.Context) (bool, error) {
	if f.pending {
		return true, nil
	}
	if f.pos >= len(f.items) {
		return false, nil
	}
	f.pending = true
	return true, nil
}

func (f *fakeStream) Next(context.Context) ([]byte, error) {
	if f.failAt == f.pos+1 {
		return nil, f.failErr
	}
	item := f.items[f.pos]
	f.pos++
	f.pending = false
	return item, nil
}

func (f *fakeStream) Close(context.Context) error {
	f.closes++
	return f.closeErr
}

type fakeSession struct {
	stream   *fakeStream
	queryErr error
	closeErr error
	queries  []string
	closes   int
}

func (f *fakeSession) Query(_ context.Context, text string) (Stream, error) {
	f.queries = append(f.queries, text)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.stream, nil
}

func (f *fakeSession) Close() error {
	f.closes++
	return f.closeErr
}

type recordingDialer struct {
	session *fakeSession
	err     error
	calls   []basex.Config
}

func (d *recordingDialer) dial(_ context.Context, cfg basex.Config) (Session, error) {
	d.calls = append(d.calls, cfg)
	if d.err != nil {
		return nil, d.err
	}
	return d.session, nil
}

func testItems(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte(fmt.Sprintf("<test>%d</test>", i+1))
	}
	return out
}

func testRequest(port string) args.Request {
	return args.Request{
		Query: "for $i in 1 to 10 return <test>{$i}</test>",
		Conn:  args.Descriptor{Host: "localhost", Port: port, User: "admin", Password: "admin"},
	}
}

func openFake(t *testing.T, stream *fakeStream, opts ...Option) (*Sequence, *fakeSession, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	sess := &fakeSession{stream: stream}
	d := &recordingDialer{session: sess}
	opts = append([]Option{WithDialer(d.dial), WithLogger(logging.New(&logs, pterm.LogLevelDebug).WithFormatter(pterm.LogFormatterJSON))}, opts...)

	seq, err := Open(context.Background(), testRequest("1984"), opts...)
	require.NoError(t, err)
	require.Len(t, d.calls, 1)
	assert.Equal(t, basex.Config{Address: "localhost:1984", User: "admin", Password: "admin", Logger: d.calls[0].Logger}, d.calls[0])
	return seq, sess, &logs
}

func TestSequence_YieldsAllItemsInOrder(t *testing.T) {
	for _, n := range []int{0, 1, 10} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			stream := &fakeStream{items: testItems(n)}
			seq, sess, _ := openFake(t, stream)
			ctx := context.Background()

			for i := 1; i <= n; i++ {
				doc, ok, err := seq.Next(ctx)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, strconv.Itoa(i), xmlnode.DocumentStringValue(doc))
				assert.Equal(t, 0, sess.closes, "session released before exhaustion")
			}

			for i := 0; i < 2; i++ {
				doc, ok, err := seq.Next(ctx)
				require.NoError(t, err)
				assert.False(t, ok)
				assert.Nil(t, doc)
			}
			assert.Equal(t, n, seq.Position())
			assert.Equal(t, 1, sess.closes)
			assert.Equal(t, 1, stream.closes)

			require.NoError(t, seq.Close())
			assert.Equal(t, 1, sess.closes, "close after exhaustion must not release twice")
		})
	}
}

func TestSequence_EarlyAbandonReleasesOnce(t *testing.T) {
	stream := &fakeStream{items: testItems(10)}
	seq, sess, _ := openFake(t, stream)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, ok, err := seq.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.NoError(t, seq.Close())
	require.NoError(t, seq.Close())
	assert.Equal(t, 1, sess.closes)
	assert.Equal(t, 1, stream.closes)
	assert.Equal(t, 3, stream.pos, "no item may be fetched after close")

	_, ok, err := seq.Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 1, sess.closes)
}

func TestSequence_FetchFailureIsNotExhaustion(t *testing.T) {
	stream := &fakeStream{items: testItems(5), failAt: 3, failErr: io.ErrUnexpectedEOF}
	seq, sess, _ := openFake(t, stream)
	ctx := context.Background()

	var got []string
	for i := 0; i < 2; i++ {
		doc, ok, err := seq.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		got = append(got, xmlnode.DocumentStringValue(doc))
	}
	assert.Equal(t, []string{"1", "2"}, got)

	_, ok, err := seq.Next(ctx)
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, bxerrors.IsKind(err, bxerrors.QueryError))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "item 3")
	assert.Equal(t, 1, sess.closes)

	_, _, again := seq.Next(ctx)
	assert.Equal(t, err, again, "failure must be sticky")

	require.NoError(t, seq.Close())
	assert.Equal(t, 1, sess.closes)
}

func TestSequence_ParseFailure(t *testing.T) {
	stream := &fakeStream{items: [][]byte{[]byte("<ok/>"), []byte("<broken>"), []byte("<never/>")}}
	seq, sess, _ := openFake(t, stream)
	ctx := context.Background()

	_, ok, err := seq.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, _, err = seq.Next(ctx)
	require.Error(t, err)
	assert.True(t, bxerrors.IsKind(err, bxerrors.QueryError))
	assert.Contains(t, err.Error(), "parsing item 2")
	assert.Equal(t, 1, sess.closes)
}

func TestSequence_NonElementItemRejected(t *testing.T) {
	stream := &fakeStream{items: [][]byte{[]byte("42")}}
	seq, _, _ := openFake(t, stream)

	_, _, err := seq.Next(context.Background())
	assert.ErrorIs(t, err, xmlnode.ErrNoRoot)
}

func TestSequence_CustomBuilder(t *testing.T) {
	var built [][]byte
	builder := BuilderFunc(func(data []byte) (*etree.Document, error) {
		built = append(built, data)
		doc := etree.NewDocument()
		doc.CreateElement("wrapped").SetText(string(data))
		return doc, nil
	})

	stream := &fakeStream{items: [][]byte{[]byte("raw")}}
	seq, _, _ := openFake(t, stream, WithBuilder(builder))

	doc, ok, err := seq.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "wrapped", doc.Root().Tag)
	assert.Equal(t, [][]byte{[]byte("raw")}, built)
}

func TestSequence_ReleaseFailureIsLogged(t *testing.T) {
	stream := &fakeStream{items: testItems(2), closeErr: errors.New("close handshake failed")}
	seq, sess, logs := openFake(t, stream)
	sess.closeErr = errors.New("socket already closed")

	_, _, err := seq.Next(context.Background())
	require.NoError(t, err)

	assert.NoError(t, seq.Close())
	assert.NoError(t, seq.Close())
	assert.Contains(t, logs.String(), "close handshake failed")
	assert.Contains(t, logs.String(), "socket already closed")
	assert.Contains(t, logs.String(), string(bxerrors.ReleaseWarning))
}

func TestSequence_AnotherUnsupported(t *testing.T) {
	stream := &fakeStream{items: testItems(1)}
	seq, _, _ := openFake(t, stream)
	defer seq.Close()

	other, err := seq.Another()
	assert.Nil(t, other)
	assert.ErrorIs(t, err, errors.ErrUnsupported)

	for {
		_, ok, err := seq.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
	}
	other, err = seq.Another()
	assert.Nil(t, other)
	assert.ErrorIs(t, err, ErrNotRestartable)
}

func TestSequence_AllClosesOnBreak(t *testing.T) {
	stream := &fakeStream{items: testItems(10)}
	seq, sess, _ := openFake(t, stream)

	var got []string
	for doc, err := range seq.All(context.Background()) {
		require.NoError(t, err)
		got = append(got, xmlnode.DocumentStringValue(doc))
		if len(got) == 4 {
			break
		}
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, got)
	assert.Equal(t, 1, sess.closes)
}

func TestSequence_AllYieldsError(t *testing.T) {
	stream := &fakeStream{items: testItems(3), failAt: 2, failErr: errors.New("reset by peer")}
	seq, sess, _ := openFake(t, stream)

	var (
		count   int
		lastErr error
	)
	for _, err := range seq.All(context.Background()) {
		if err != nil {
			lastErr = err
			continue
		}
		count++
	}
	assert.Equal(t, 1, count)
	assert.True(t, bxerrors.IsKind(lastErr, bxerrors.QueryError))
	assert.Equal(t, 1, sess.closes)
}

func TestOpen_InvalidPort(t *testing.T) {
	for _, port := range []string{"abc", "", "0", "65536", "-1", "19 84"} {
		t.Run(port, func(t *testing.T) {
			d := &recordingDialer{session: &fakeSession{stream: &fakeStream{}}}

			seq, err := Open(context.Background(), testRequest(port), WithDialer(d.dial), WithLogger(logging.Discard()))
			assert.Nil(t, seq)
			assert.True(t, bxerrors.IsKind(err, bxerrors.ConnectionError))
			assert.ErrorIs(t, err, ErrInvalidPort)
			assert.Empty(t, d.calls, "no connection attempt for a malformed port")
		})
	}
}

func TestOpen_DialFailure(t *testing.T) {
	d := &recordingDialer{err: basex.ErrAccessDenied}

	seq, err := Open(context.Background(), testRequest("1984"), WithDialer(d.dial), WithLogger(logging.Discard()))
	assert.Nil(t, seq)
	assert.True(t, bxerrors.IsKind(err, bxerrors.ConnectionError))
	assert.ErrorIs(t, err, basex.ErrAccessDenied)
}

func TestOpen_QueryRejected(t *testing.T) {
	sess := &fakeSession{queryErr: &basex.ServerError{Message: "Stopped at 1/1: Unexpected end of query"}}
	d := &recordingDialer{session: sess}

	seq, err := Open(context.Background(), testRequest("1984"), WithDialer(d.dial), WithLogger(logging.Discard()))
	assert.Nil(t, seq)
	assert.True(t, bxerrors.IsKind(err, bxerrors.QueryError))
	assert.Equal(t, 1, sess.closes, "session must be released when the query is refused")
	assert.Equal(t, []string{testRequest("1984").Query}, sess.queries)
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "1984", want: 1984},
		{input: " 8984\n", want: 8984},
		{input: "1", want: 1},
		{input: "65535", want: 65535},
		{input: "0", wantErr: true},
		{input: "port", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePort(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPort)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_AgainstServer(t *testing.T) {
	items := make([]string, 10)
	for i := range items {
		items[i] = fmt.Sprintf("<test>%d</test>", i+1)
	}
	srv := basextest.NewServer(basextest.Static(items...))
	defer srv.Close()

	req := testRequest(srv.Port())
	req.Conn.Host = srv.Host()

	seq, err := Open(context.Background(), req, WithLogger(logging.Discard()))
	require.NoError(t, err)

	var got []string
	for doc, err := range seq.All(context.Background()) {
		require.NoError(t, err)
		got = append(got, xmlnode.DocumentStringValue(doc))
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}, got)

	require.Eventually(t, func() bool { return srv.Disconnects() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, srv.Exits())
	assert.Equal(t, 1, srv.QueryCloses())
}

func TestOpen_AgainstServerAbandoned(t *testing.T) {
	srv := basextest.NewServer(basextest.Static("<a/>", "<b/>", "<c/>"))
	defer srv.Close()

	req := testRequest(srv.Port())
	req.Conn.Host = srv.Host()

	seq, err := Open(context.Background(), req, WithLogger(logging.Discard()))
	require.NoError(t, err)

	_, ok, err := seq.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, seq.Close())
	require.NoError(t, seq.Close())

	require.Eventually(t, func() bool { return srv.Disconnects() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, srv.Connections())
}

func TestSequence_MalformedItemIsQueryError(t *testing.T) {
	for _, item := range []string{"<a/><b/>", "<a>1</a>junk"} {
		t.Run(item, func(t *testing.T) {
			stream := &fakeStream{items: [][]byte{[]byte("<ok/>"), []byte(item)}}
			seq, sess, _ := openFake(t, stream)
			ctx := context.Background()

			_, ok, err := seq.Next(ctx)
			require.NoError(t, err)
			require.True(t, ok)

			doc, ok, err := seq.Next(ctx)
			assert.Nil(t, doc)
			assert.False(t, ok)
			assert.True(t, bxerrors.IsKind(err, bxerrors.QueryError))
			assert.ErrorIs(t, err, xmlnode.ErrNotWellFormed)
			assert.Contains(t, err.Error(), "parsing item 2")
			assert.Equal(t, 1, sess.closes)
		})
	}
}

func TestSequence_CancelDuringPull(t *testing.T) {
	srv := basextest.NewServer(func(string) (basextest.Result, error) {
		return basextest.Result{Items: []string{"<test>1</test>"}, Stall: true}, nil
	})
	defer srv.Close()

	req := testRequest(srv.Port())
	req.Conn.Host = srv.Host()

	seq, err := Open(context.Background(), req, WithLogger(logging.Discard()))
	require.NoError(t, err)

	doc, ok, err := seq.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", xmlnode.DocumentStringValue(doc))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, ok, err = seq.Next(ctx)
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, bxerrors.IsKind(err, bxerrors.QueryError))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "item 2")
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Eventually(t, func() bool { return srv.Disconnects() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, seq.Close())
	require.NoError(t, seq.Close())
	assert.Equal(t, 1, srv.Connections())
	assert.Equal(t, 0, srv.Exits())
	assert.Equal(t, 0, srv.QueryCloses())
}
