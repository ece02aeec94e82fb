// Package workflow implements the encrypted identity flows on top of the
// collaborator interfaces in package interfaces.
//
// Register and Verify are sequential chains: preconditions are checked in a
// fixed order, the identity is encrypted locally, submitted to the contract
// and awaited. Verify additionally replays the call to obtain the encrypted
// comparison result and decrypts it with a cached decryption authorization.
//
// Controller gates both flows behind a single in-flight flag and keeps the
// last snapshot for presentation. StatusChecker reads the registration state
// and degrades transport failures to a warning.
package workflow
