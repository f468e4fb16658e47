// Package uploader places local files and directories on the remote machine
// atomically: content is uploaded to a random temporary path first, then
// moved into place and handed over to root.
package uploader
