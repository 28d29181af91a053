// Command sitekeeper manages connector-equipped sites from the terminal.
//
// Every command works directly against the local site store and talks to
// connectors itself; `sitekeeper serve` exposes the same operations over
// HTTP. Most commands accept --json for machine-readable output.
package main
