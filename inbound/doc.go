// Package inbound routes verified webhook envelopes to typed handlers.
//
// Handlers is a table with one typed field per event kind. A Dispatcher
// freezes that table at construction; unknown kinds and kinds without a
// handler are logged and reported as not handled, never as errors.
package inbound
