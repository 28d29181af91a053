// Package preflight provides readiness checks for the filesystem paths,
// daemon, and connectors that sitekeeper depends on.
//
// The CLI "sitekeeper status" command runs RunAll for local checks and
// CheckSite for each registered site. Checks never fail hard: every outcome
// is a Result with a human-readable detail.
package preflight
