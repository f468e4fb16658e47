// Package ssh runs commands on and uploads content to a remote machine over SSH.
//
// Every command line runs under a bash login shell; privileged ones go
// through sudo. Directories are uploaded as a gzip-compressed tar stream
// unpacked by the remote tar.
package ssh
