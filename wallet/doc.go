// Package wallet provides the account that signs identity transactions and
// decryption authorizations. Keys come from a hex string or a V3 keystore
// file; an optional confirm hook stands in for the wallet approval prompt.
package wallet
