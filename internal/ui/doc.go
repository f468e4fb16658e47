// Package ui is the single operator-facing event sink of a provisioning run.
//
// Components receive a Sink explicitly instead of writing to the terminal on
// their own. Console renders messages with an elapsed-time prefix and mirrors
// every message into the context logger.
package ui
