// Package config loads, normalizes, and validates sitekeeper configuration.
//
// Configuration is TOML. Load starts from Default, decodes the file when one
// exists, expands paths, applies the SITEKEEPER_API_TOKEN override, and then
// validates every section, reporting all problems together.
package config
