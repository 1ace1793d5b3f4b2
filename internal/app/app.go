// Package app wires the line source, the broadcast core and the HTTP server
// into one process lifetime.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/suda/leno/internal/api"
	"github.com/suda/leno/internal/broadcast"
	"github.com/suda/leno/internal/config"
	"github.com/suda/leno/internal/logging"
	"github.com/suda/leno/internal/metrics"
	"github.com/suda/leno/internal/parser"
	"github.com/suda/leno/internal/source"
	"github.com/suda/leno/internal/version"
	"github.com/suda/leno/internal/ws"
	"github.com/suda/leno/pkg/types"
	"github.com/suda/leno/web"
)

// Options overrides process-level collaborators. The zero value binds
// cfg.Addr() and serves the embedded dashboard.
type Options struct {
	// Listener is served instead of binding cfg.Addr().
	Listener net.Listener

	// ConfigPath enables hot reload of the log level and line format.
	ConfigPath string

	// Assets replaces the embedded dashboard.
	Assets fs.FS
}

// Run serves the dashboard and broadcasts every line of stdin to the
// connected subscribers. The listener is bound before stdin is read, so a
// bind failure returns without consuming input.
//
// Run returns nil when stdin ends or ctx is cancelled, and the read error
// when stdin fails. In every case all subscribers are closed and the HTTP
// server is shut down before Run returns.
func Run(ctx context.Context, cfg *config.Config, stdin io.Reader, opts Options) error {
	format, err := parser.ParseFormat(cfg.LineFormat)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	ln := opts.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", cfg.Addr())
		if err != nil {
			return fmt.Errorf("app: listen on %s: %w", cfg.Addr(), err)
		}
	}

	assets := opts.Assets
	if assets == nil {
		assets = web.FS()
	}

	promReg := metrics.NewRegistry()
	reg := broadcast.NewRegistry()
	bm := metrics.NewBroadcastMetrics(promReg, reg.Len)

	dispatcher := broadcast.NewDispatcher(reg, broadcast.WithObserver(bm))
	hub := ws.New(reg, ws.Options{
		QueueSize:         cfg.WebSocket.QueueSize,
		MaxConnections:    cfg.WebSocket.MaxConnections,
		UpgradesPerSecond: cfg.WebSocket.UpgradesPerSecond,
		UpgradeBurst:      cfg.WebSocket.UpgradeBurst,
		Observer:          bm,
	})
	selector := parser.NewSelector(format)

	srv := &http.Server{
		Handler: api.New(hub, api.Options{
			Assets:      assets,
			Metrics:     metrics.Handler(promReg),
			HTTPMetrics: metrics.NewHTTPMetrics(promReg),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	slog.Info("leno listening",
		"addr", ln.Addr().String(),
		"version", version.Get().Version,
		"line_format", format.String())

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("app: shutdown: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if opts.ConfigPath != "" {
		g.Go(func() error {
			err := config.Watch(gctx, opts.ConfigPath, func(c *config.Config) {
				reload(c, selector)
			})
			if err != nil {
				slog.Warn("app: config hot reload disabled", "path", opts.ConfigPath, "err", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		// End of input winds the whole process down.
		defer cancel()

		err := source.Pump(gctx, source.New(stdin), func(line types.Line) {
			bm.LinesRead.Inc()
			out, ok := selector.Transform(line)
			if !ok {
				bm.LinesUnparsed.Inc()
			}
			dispatcher.Broadcast(out)
		})
		switch {
		case err == nil:
			slog.Info("app: end of input, shutting down")
			return nil
		case errors.Is(err, context.Canceled):
			return nil
		default:
			slog.Error("app: input failed, shutting down", "err", err)
			return err
		}
	})

	return g.Wait()
}

// reload applies the settings that may change while running.
func reload(c *config.Config, selector *parser.Selector) {
	if err := logging.SetLevel(c.Log.Level); err != nil {
		slog.Warn("app: reload log level", "err", err)
	}
	format, err := parser.ParseFormat(c.LineFormat)
	if err != nil {
		slog.Warn("app: reload line format", "err", err)
		return
	}
	if selector.Format() != format {
		selector.Set(format)
		slog.Info("app: line format changed", "line_format", format.String())
	}
}
