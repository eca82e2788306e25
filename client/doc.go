// Package client is a typed Go client for the WhatsFlow public API.
//
// Errors are go-errors envelopes with WHATSFLOW_* text codes. A 429 carries
// the server's retry hint, readable with RetryAfter. Nothing is retried.
package client
