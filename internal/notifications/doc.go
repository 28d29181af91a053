// Package notifications publishes conversion events to ntfy.
//
// NewService returns a no-op Service when no topic is configured, so callers
// publish unconditionally. Delivery failures are returned to the caller,
// which logs them; a missed notification never fails a conversion.
package notifications
