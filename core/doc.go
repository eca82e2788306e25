// Package core holds the WhatsFlow domain types, configuration, error taxonomy
// and logging helpers shared by the client, the receiver and the stores. It
// depends on no other package in this module.
package core
