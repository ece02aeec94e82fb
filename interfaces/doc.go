// Package interfaces defines the core interfaces and types for the encrypted
// identity client.
//
// The package is the seam between the components of the system:
//
//   - IdentityRegistry: the EncryptedIdentityAuth contract (isRegistered,
//     getRegistrationTimestamp, register, verify)
//   - EncryptionClient / EncryptionProvider: the FHE encryption and user
//     decryption client and its readiness
//   - Signer: the connected wallet
//   - KeyValueStorage: the decryption authorization cache
//
// Failures crossing these interfaces are classified with the ErrorKind
// taxonomy. Collaborators wrap the sentinel errors (ErrUserRejected,
// ErrInsufficientFunds, ErrTransport, ErrEncryptionService,
// ErrAlreadyRegistered, ErrNotRegistered) so that workflows never depend on
// message text; ClassifyMessage exists only for errors produced by libraries
// outside this module.
package interfaces
