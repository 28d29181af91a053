// Package media exposes read-through views of a connector's media library and
// the AI optimize action.
//
// Nothing here is stored. Every call resolves the site, asks the connector,
// and normalizes its WordPress-style payload into Stats or Item values. Reads
// degrade to empty results when the site is disconnected or the connector
// misbehaves; AIOptimize mutates the site and reports failures.
package media
