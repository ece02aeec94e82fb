// Package main (cmd/identity-agent) serves the encrypted identity workflows to
// a local UI.
//
// The agent holds one wallet, resolves the EncryptedIdentityAuth contract for
// the network of its RPC node and exposes session, status, register and verify
// endpoints under /api/v1. The FHE engine loads in the background; /readyz
// reports not ready until it is done.
//
// Decryption authorizations are cached in the storage backends given with
// --auth-storage and can be sealed with --seal-passphrase.
//
// Example usage against an in-process devnet:
//
//	identity-agent --devnet --fhe-engine plaintext \
//	  --private-key ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80 \
//	  --auth-storage memory://auth
//
// Example usage against Sepolia:
//
//	identity-agent --rpc-addr https://sepolia.example --deployments-file deployments.json \
//	  --keystore ./wallet.json --keystore-password "$PASSWORD" \
//	  --auth-storage file:///var/lib/identity --seal-passphrase "$SEAL"
package main
