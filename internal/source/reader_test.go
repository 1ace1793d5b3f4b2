package source

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suda/leno/pkg/types"
)

func TestReader_SplitsLines(t *testing.T) {
	r := New(strings.NewReader("one\ntwo\r\n\nthree"))

	var got []types.Line
	for {
		l, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, l)
	}

	assert.Equal(t, []types.Line{"one", "two", "", "three"}, got)
}

func TestReader_EmptyInput(t *testing.T) {
	_, err := New(strings.NewReader("")).Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_LineTooLong(t *testing.T) {
	r := New(strings.NewReader(strings.Repeat("x", MaxLineSize+1) + "\n"))
	_, err := r.Next()
	assert.ErrorIs(t, err, bufio.ErrTooLong)
}

func TestPump_DeliversInOrderAndStopsAtEOF(t *testing.T) {
	in := `{"level":"info","msg":"start"}` + "\n" + `{"level":"error","msg":"boom"}` + "\n"

	var got []types.Line
	err := Pump(context.Background(), New(strings.NewReader(in)), func(l types.Line) {
		got = append(got, l)
	})

	require.NoError(t, err)
	assert.Equal(t, []types.Line{
		`{"level":"info","msg":"start"}`,
		`{"level":"error","msg":"boom"}`,
	}, got)
}

type failingReader struct {
	data string
	err  error
	done bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.done {
		return 0, f.err
	}
	f.done = true
	return copy(p, f.data), nil
}

func TestPump_PropagatesReadError(t *testing.T) {
	boom := errors.New("disk on fire")
	fr := &failingReader{data: "first\n", err: boom}

	var got []types.Line
	err := Pump(context.Background(), New(fr), func(l types.Line) { got = append(got, l) })

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []types.Line{"first"}, got)
}

func TestPump_ContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Pump(ctx, New(pr), func(types.Line) {})
	}()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Pump did not return after cancel")
	}
}
