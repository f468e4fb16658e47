// Package bootstrap drives one provisioning run of a remote machine.
//
// The run uploads the asset bundle, resolves and uploads the deployment
// manifest when there is one, writes the installer configuration and then
// runs the installer while decoding its progress output. Every step must
// succeed before the next one starts.
package bootstrap
