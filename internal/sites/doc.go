// Package sites stores managed websites and owns their connection state.
//
// A site is connected exactly when it holds both a connector key and secret.
// The Registry is the only writer of credentials: Register and Connect issue
// fresh pairs, Disconnect clears key, secret, and versions in one statement.
// Every component that talks to a connector gates on IsConnected before doing
// any network I/O.
package sites
