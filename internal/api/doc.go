// Package api builds the leno HTTP router.
//
// New(hub, opts) returns a chi router that serves:
//
//	GET /ws        — WebSocket subscription to the line stream
//	GET /version   — version as text/plain; ?format=json returns build info
//	GET /healthz   — {"status":"ok","subscribers":N}
//	GET /metrics   — Prometheus exposition (when Options.Metrics is set)
//	GET /*         — embedded dashboard; unknown paths fall back to index.html
//
// Every route gets RequestID, RealIP, Recoverer and a slog access log.
// Responses other than /ws are gzip-compressed when the client accepts it;
// the WebSocket route stays uncompressed because the connection is hijacked.
package api
