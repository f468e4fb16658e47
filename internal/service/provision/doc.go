// Package provision is the entry point behind the CLI subcommands.
//
// It loads settings, connects to the remote machine over SSH and wires the
// release, manifest, upload and bootstrap services together.
package provision
