// Package progress turns the remote installer's output into lifecycle events.
//
// Stdout carries one JSON record per line ({"state","stage","task"}); every
// other channel is diagnostic noise forwarded verbatim. Lines that do not
// decode are reported as invalid events and never stop the stream.
package progress
