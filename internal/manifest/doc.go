// Package manifest reads and rewrites deployment manifests.
//
// The document is kept as a yaml.v3 node tree so keys this package does not
// know about survive a rewrite verbatim. Only the release list has typed
// accessors.
package manifest
