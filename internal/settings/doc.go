// Package settings stores per-site tool settings as an open JSON map.
package settings
