// Package config defines operator settings for a provisioning target and
// helpers to load, validate and save them as YAML (or TOML by extension).
//
// NewBootstrapConfig freezes validated settings together with the remote
// Layout derived from base_dir; everything downstream reads that value only.
package config
