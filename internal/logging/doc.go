// Package logging assembles structured slog loggers for sitekeeper.
//
// It owns the console and JSON handlers, level parsing, and optional log file
// teeing. Both handlers stamp records with the site, operation, and request
// identifiers carried on the context, so component code only needs to call the
// *Context logging methods. A no-op logger is provided for tests.
package logging
