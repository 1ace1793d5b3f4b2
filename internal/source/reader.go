package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/suda/leno/pkg/types"
)

// MaxLineSize is the longest line Reader accepts. Longer lines fail with
// bufio.ErrTooLong.
const MaxLineSize = 1 << 20

// Reader splits an io.Reader into lines. It is not safe for concurrent use.
type Reader struct {
	sc *bufio.Scanner
}

// New returns a Reader over r.
func New(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return &Reader{sc: sc}
}

// Next blocks until a full line is available and returns it without its line
// terminator. It returns io.EOF at end of input and any other read error as is.
func (r *Reader) Next() (types.Line, error) {
	if r.sc.Scan() {
		return types.Line(r.sc.Text()), nil
	}
	if err := r.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

type result struct {
	line types.Line
	err  error
}

// Pump reads lines from r and calls fn for each one, in order, on the calling
// goroutine. It returns nil at end of input, a wrapped error if reading fails,
// and ctx.Err() if ctx is cancelled first.
//
// A read blocked in the underlying stream cannot be interrupted; on
// cancellation the reading goroutine exits after its current read returns.
func Pump(ctx context.Context, r *Reader, fn func(types.Line)) error {
	next := make(chan result)

	go func() {
		for {
			line, err := r.Next()
			select {
			case next <- result{line: line, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-next:
			if errors.Is(res.err, io.EOF) {
				return nil
			}
			if res.err != nil {
				return fmt.Errorf("source: read: %w", res.err)
			}
			fn(res.line)
		}
	}
}
