// Package fhevm is the encryption client used by the identity workflows:
// encrypted input creation, user decryption, and the cache of signed
// decryption authorizations.
//
// LocalClient serves a single development chain from an in-process
// coprocessor. Provider reports the client as loading until the FHE engine
// has been built in the background.
package fhevm
