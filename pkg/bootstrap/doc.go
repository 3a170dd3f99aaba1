// Package bootstrap fetches the Solana source tree the tooling is built against.
//
// Ensure checks whether the target checkout directory is already present and
// only clones the remote when it is not. Cloning is delegated to a Cloner:
// either go-git running in-process, or the git binary found on the PATH.
package bootstrap
