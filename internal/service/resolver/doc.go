// Package resolver rewrites a deployment manifest so that releases built
// from local directories point at their synced copies on the guest.
package resolver
