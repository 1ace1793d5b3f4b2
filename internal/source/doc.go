// Package source turns a byte stream (normally stdin) into a sequence of
// types.Line values.
//
// Reader.Next returns one line at a time in arrival order and io.EOF once the
// stream is exhausted. Pump drives a Reader until end of input, a read error or
// context cancellation, handing each line to a callback. At most one line is
// held between the reader goroutine and the callback.
package source
