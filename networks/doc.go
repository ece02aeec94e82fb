// Package networks resolves the active network to the deployed
// EncryptedIdentityAuth contract.
//
// The resolver is a static table (optionally extended from a deployments file)
// and has no side effects. Unsupported networks and networks where the
// contract is recorded with the zero address resolve to "unavailable"; callers
// render a deployment-missing view instead of issuing contract calls.
package networks
