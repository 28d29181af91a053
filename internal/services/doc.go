// Package services defines shared utilities consumed by the agent client and
// the site-facing components built on top of it.
//
// Key responsibilities:
//   - Context helpers that stamp site IDs, operation names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures keep one
//     classification (invalid request, not connected, unreachable, rejected,
//     malformed) no matter how many layers wrap them.
//   - UserMessage, which turns a classified error into the sentence shown to
//     operators.
package services
