// Package release models release references found in a deployment manifest.
//
// A reference is either Local (its url names a host directory that can be
// built and synced) or Remote (anything else, passed through untouched).
// The split is decided once by ParseReference.
package release
