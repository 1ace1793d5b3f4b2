// Package broadcast implements the transport-agnostic core of the line
// broadcaster: the Subscriber, the Registry of open subscribers, and the
// Dispatcher that fans every Line out to them.
//
// A Subscriber moves through three states:
//
//	Connecting -> Open   (Registry.Add)
//	Open       -> Closed (Registry.Remove, send failure, Registry.CloseAll)
//	Connecting -> Closed (Registry.Remove before Add, e.g. immediate disconnect)
//
// Every state transition happens under the Registry mutex, so a subscriber is
// present in the Registry if and only if it is Open. A Remove that races ahead
// of Add always wins: Add refuses a subscriber that is already Closed.
//
// Dispatcher.Broadcast holds the same mutex while it enqueues the line on each
// subscriber's bounded queue. Enqueueing never blocks; a full queue or a closed
// subscriber is a send failure, and the subscriber is removed before Broadcast
// returns. Broadcast calls are therefore serialized and each subscriber sees
// lines in production order.
//
// The transport (see internal/ws) drains Subscriber.Queue and watches
// Subscriber.Done to learn that the subscriber has been closed.
package broadcast
