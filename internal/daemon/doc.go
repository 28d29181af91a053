// Package daemon coordinates the long-running sitekeeper process.
//
// It wires configuration, the site store, the agent client, and the
// site-facing components into a single lifecycle with flock-based locking to
// prevent multiple instances from serving the same data directory. The
// daemon owns the HTTP API server and prunes expired log files on start.
//
// Keep orchestration logic here: per-site behavior belongs in the component
// packages while the daemon focuses on startup, shutdown, and wiring.
package daemon
