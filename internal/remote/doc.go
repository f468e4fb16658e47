// Package remote defines the boundary to the machine being provisioned.
//
// Executor runs command lines and streams their output as Chunks over a
// channel owned by the caller. Transferer copies local files or directories
// to a remote path. Communicator layers the privileged filesystem helpers
// every other component needs on top of the two.
package remote
