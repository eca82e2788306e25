// Package webhooks signs, verifies, records and sends WhatsFlow webhook
// deliveries.
//
// Signatures are `sha256=` followed by the lowercase hex HMAC-SHA256 of the
// body. Receivers verify the raw body; Sign and Verify also accept decoded
// values and work over their canonical (key-sorted) JSON form.
//
// A DeliveryLedger keeps each X-Webhook-Delivery-Id through
// pending -> processed|failed so redeliveries of processed events are
// acknowledged without running handlers twice.
package webhooks
