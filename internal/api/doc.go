// Package api serves the HTTP boundary over the site registry, conversion
// coordinator, redirect registry, media views, and tool settings.
//
// # Routing
//
// Routes are mounted on a chi router under /api. Every site-scoped route
// resolves {siteID} first, so an unknown site is a 404 before any connector
// traffic happens.
//
// # Errors
//
// Failures are rendered as {"error": "<user message>", "code": "<kind>"}
// where kind is one of the services.Kind* values. Status codes:
//
//	invalid_request     400
//	missing/bad bearer  401
//	site_not_connected  403
//	not_found           404
//	everything else     500
//
// Network, rejection, and malformed-response failures all map to 500 but keep
// distinct codes and messages so clients can tell them apart.
//
// # Design Notes
//
// Read endpoints for queue status, redirects, and media inherit the soft
// semantics of the services below them: they answer 200 with empty or zero
// values when the site is disconnected or unreachable. Mutations surface the
// failure.
//
// Request bodies are decoded strictly and checked with validator tags.
// Connector acknowledgements are passed through as raw JSON.
package api
