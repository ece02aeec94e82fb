// Package main (cmd/identity-cli) runs the encrypted identity workflows from a
// terminal.
//
// Commands:
//
//	identity-cli networks                 list supported networks and contracts
//	identity-cli status                   registration status of the wallet account
//	identity-cli register <identity>      encrypt and register an identity
//	identity-cli verify <identity>        verify an identity against the registered one
//
// Transactions and the decryption authorization signature are confirmed on the
// terminal unless --yes is given. The decryption authorization is cached in
// --auth-storage and reused until it expires.
package main
