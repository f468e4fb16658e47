// Package release turns a locally buildable release into one that lives on
// the remote machine.
//
// A Resolver optionally builds a fresh dev release with the configured
// create release command (Builder), then mirrors the release's build caches
// and dev release manifests to the guest (Syncer).
package release
