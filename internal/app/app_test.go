package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suda/leno/internal/api"
	"github.com/suda/leno/internal/app"
	"github.com/suda/leno/internal/config"
)

// --- test helpers -----------------------------------------------------------

func testConfig(lineFormat string) *config.Config {
	return &config.Config{
		HTTPPort:        3000,
		LineFormat:      lineFormat,
		ShutdownTimeout: 2 * time.Second,
		Log:             config.LogConfig{Level: "info", Format: "text"},
		WebSocket:       config.WebSocketConfig{QueueSize: 16},
	}
}

type running struct {
	addr  string
	stdin *io.PipeWriter
	done  chan error
}

func start(t *testing.T, cfg *config.Config, opts app.Options) *running {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	opts.Listener = ln
	if opts.Assets == nil {
		opts.Assets = fstest.MapFS{"index.html": {Data: []byte("dashboard")}}
	}

	pr, pw := io.Pipe()
	r := &running{addr: ln.Addr().String(), stdin: pw, done: make(chan error, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { r.done <- app.Run(ctx, cfg, pr, opts) }()

	t.Cleanup(func() {
		cancel()
		_ = pw.Close()
		select {
		case <-r.done:
		case <-time.After(5 * time.Second):
			t.Error("Run did not return during cleanup")
		}
	})
	return r
}

func (r *running) subscribers(t *testing.T) int {
	t.Helper()
	resp, err := http.Get("http://" + r.addr + "/healthz")
	if err != nil {
		return -1
	}
	defer resp.Body.Close()
	var h api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return -1
	}
	return h.Subscribers
}

func (r *running) dial(t *testing.T, want int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+r.addr+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return r.subscribers(t) == want },
		2*time.Second, 10*time.Millisecond)
	return conn
}

func (r *running) write(t *testing.T, lines ...string) {
	t.Helper()
	for _, l := range lines {
		_, err := fmt.Fprintln(r.stdin, l)
		require.NoError(t, err)
	}
}

func (r *running) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.done:
		r.done <- err
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func read(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(msg)
}

// --- tests ------------------------------------------------------------------

func TestRun_BroadcastsStdinInOrder(t *testing.T) {
	r := start(t, testConfig(""), app.Options{})
	a := r.dial(t, 1)
	b := r.dial(t, 2)

	lines := []string{`{"msg":"one"}`, `{"msg":"two"}`, "not json"}
	r.write(t, lines...)

	for _, conn := range []*websocket.Conn{a, b} {
		for _, want := range lines {
			assert.Equal(t, want, read(t, conn))
		}
	}
}

func TestRun_EndOfInputClosesSubscribers(t *testing.T) {
	r := start(t, testConfig(""), app.Options{})
	conn := r.dial(t, 1)

	r.write(t, "last")
	assert.Equal(t, "last", read(t, conn))

	require.NoError(t, r.stdin.Close())
	assert.NoError(t, r.wait(t))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestRun_EndOfInputDeliversTrailingLines(t *testing.T) {
	r := start(t, testConfig(""), app.Options{})
	conn := r.dial(t, 1)

	_, err := io.WriteString(r.stdin, "a\nb\n")
	require.NoError(t, err)
	require.NoError(t, r.stdin.Close())
	assert.NoError(t, r.wait(t))

	assert.Equal(t, "a", read(t, conn))
	assert.Equal(t, "b", read(t, conn))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestRun_ReadErrorIsReturned(t *testing.T) {
	r := start(t, testConfig(""), app.Options{})
	r.dial(t, 1)

	boom := errors.New("boom")
	require.NoError(t, r.stdin.CloseWithError(boom))

	err := r.wait(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRun_CancelReturnsNil(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.Run(ctx, testConfig(""), pr, app.Options{Listener: ln, Assets: fstest.MapFS{}})
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type recordingReader struct{ read bool }

func (r *recordingReader) Read([]byte) (int, error) {
	r.read = true
	return 0, io.EOF
}

func TestRun_BindFailureDoesNotReadInput(t *testing.T) {
	taken, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := testConfig("")
	cfg.HTTPPort = taken.Addr().(*net.TCPAddr).Port

	in := &recordingReader{}
	err = app.Run(context.Background(), cfg, in, app.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
	assert.False(t, in.read)
}

func TestRun_UnknownLineFormat(t *testing.T) {
	in := &recordingReader{}
	err := app.Run(context.Background(), testConfig("csv"), in, app.Options{})
	require.Error(t, err)
	assert.False(t, in.read)
}

func TestRun_LogfmtLines(t *testing.T) {
	r := start(t, testConfig("logfmt"), app.Options{})
	conn := r.dial(t, 1)

	r.write(t, `level=info msg="hello world" status=200`)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(read(t, conn)), &got))
	assert.Equal(t, "info", got["level"])
	assert.Equal(t, "hello world", got["msg"])
	assert.EqualValues(t, 200, got["status"])
}

func TestRun_UnparsedLinesPassThroughAndAreCounted(t *testing.T) {
	r := start(t, testConfig("nginx"), app.Options{})
	conn := r.dial(t, 1)

	r.write(t, "plain text")
	assert.Equal(t, "plain text", read(t, conn))

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + r.addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(b), "leno_broadcast_lines_unparsed_total 1")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRun_ServesDashboardAndMetrics(t *testing.T) {
	r := start(t, testConfig(""), app.Options{})
	r.dial(t, 1)
	r.write(t, "one", "two")

	resp, err := http.Get("http://" + r.addr + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "dashboard", string(body))

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + r.addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(b), "leno_broadcast_lines_read_total 2")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRun_HotReloadSwitchesLineFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leno.yaml")
	require.NoError(t, os.WriteFile(path, []byte("line_format: none\n"), 0o600))

	r := start(t, testConfig(""), app.Options{ConfigPath: path})
	conn := r.dial(t, 1)

	r.write(t, "a=1")
	assert.Equal(t, "a=1", read(t, conn))

	// Keep rewriting the file until a line comes back transformed.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("line_format: logfmt\n"), 0o600)
		time.Sleep(20 * time.Millisecond)
		if _, err := fmt.Fprintln(r.stdin, "a=1"); err != nil {
			return false
		}
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := conn.ReadMessage()
		return err == nil && string(msg) == `{"a":1}`
	}, 5*time.Second, 50*time.Millisecond)
}
