// Package logs pages through the daemon log file.
//
// Read returns whole lines plus the byte offset to resume from, so callers
// can poll (the CLI's --follow and the HTTP API's ?offset=) without holding
// the file open between calls.
package logs
