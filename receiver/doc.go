// Package receiver is the HTTP endpoint that accepts signed webhook deliveries,
// verifies them, drops duplicates and hands them to an inbound.Dispatcher or a
// job queue.
package receiver
