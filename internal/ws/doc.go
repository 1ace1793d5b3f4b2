// Package ws is the WebSocket transport for the line broadcaster.
//
// Hub owns the lifecycle of every connection. Hub.ServeHTTP upgrades the
// request, registers a broadcast.Subscriber for it (OnConnect) and runs two
// goroutines per connection:
//
//   - writePump drains Subscriber.Queue into text frames and sends pings. It is
//     the only writer on the connection. When the subscriber is closed (by the
//     dispatcher after a send failure, by the read pump, or by shutdown) it
//     writes a close frame and closes the connection.
//   - readPump discards client frames, handles pongs and removes the
//     subscriber from the registry as soon as the connection closes.
//
// Removal goes through broadcast.Registry.Remove, which is idempotent and
// pointer-exact, so double close events are harmless and a close observed
// before registration keeps the subscriber out of the registry.
//
// Hub.Run blocks until ctx is cancelled, then closes every subscriber, refuses
// new upgrades and waits for all connections to finish.
//
// Upgrades can be capped (Options.MaxConnections, answered with 503) and rate
// limited (Options.UpgradesPerSecond, answered with 429). The upgrader accepts
// all origins unless Options.CheckOrigin is set.
package ws
