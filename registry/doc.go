// Package registry provides clients for the EncryptedIdentityAuth contract.
//
// The package implements the interfaces.IdentityRegistry interface in three
// ways:
//
//   - OnchainIdentityClient talks to a deployed contract through go-ethereum
//   - SimulatedIdentityRegistry keeps contract state in memory and evaluates
//     comparisons on a development coprocessor
//   - MockIdentityRegistry is a testify mock for unit tests
//
// # Error Mapping
//
// Contract reverts and RPC failures are translated at this boundary by
// MapError: revert reasons mentioning an existing or missing registration
// become interfaces.ErrAlreadyRegistered / interfaces.ErrNotRegistered,
// funding problems become interfaces.ErrInsufficientFunds and unreachable
// endpoints become interfaces.ErrTransport.
//
// # Verify Result
//
// verify returns the encrypted comparison result as a bytes32 handle, which a
// transaction cannot hand back to the caller. After the transaction is mined
// the handle is obtained by replaying verify with eth_call from the same
// account (VerifyResult). The replay never changes contract state.
//
// # Usage Example
//
//	client, _ := ethclient.Dial("http://127.0.0.1:8545")
//	reg, _ := registry.NewOnchainIdentityClient(client, client, contractAddress)
//
//	privateKey, _ := crypto.HexToECDSA("your-private-key")
//	auth, _ := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
//
//	tx, err := reg.Register(ctx, auth, input.Handles[0], input.InputProof)
//	receipt, err := reg.WaitConfirmed(ctx, tx)
package registry
