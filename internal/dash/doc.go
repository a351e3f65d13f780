// Package dash owns the client side of the companion exchange.
//
// Ownership boundary:
// - the single outstanding request slot and its completion
// - the send-delay and reply-timeout timers
// - inbound reply routing and the process-wide error handler
// - deterministic fake responses for tests
//
// An Engine is not safe for concurrent use. Every method and every transport
// or timer callback must run on the same goroutine, normally an
// eventloop.Loop. Session wraps an Engine for callers on other goroutines.
package dash
