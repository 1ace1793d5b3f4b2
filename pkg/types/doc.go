// Package types defines the Go types shared by the line source, the parsers,
// the broadcast bridge and the WebSocket transport.
package types
