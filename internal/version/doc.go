// Package version exposes build metadata of bosh-bootstrap.
//
// Version, Commit and BuildTime are injected with -ldflags "-X ..." and
// default to development values.
package version
