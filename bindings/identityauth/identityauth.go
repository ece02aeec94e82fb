// Package identityauth contains Go bindings for the EncryptedIdentityAuth contract.
package identityauth

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EncryptedIdentityAuthMetaData contains all meta data concerning the EncryptedIdentityAuth contract.
var EncryptedIdentityAuthMetaData = &bind.MetaData{
	ABI: `[
	{"type":"function","name":"register","stateMutability":"nonpayable",
	 "inputs":[{"name":"encryptedIdentity","type":"bytes32","internalType":"externalEuint32"},{"name":"inputProof","type":"bytes","internalType":"bytes"}],
	 "outputs":[]},
	{"type":"function","name":"verify","stateMutability":"nonpayable",
	 "inputs":[{"name":"encryptedIdentity","type":"bytes32","internalType":"externalEuint32"},{"name":"inputProof","type":"bytes","internalType":"bytes"}],
	 "outputs":[{"name":"","type":"bytes32","internalType":"ebool"}]},
	{"type":"function","name":"isRegistered","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address","internalType":"address"}],
	 "outputs":[{"name":"","type":"bool","internalType":"bool"}]},
	{"type":"function","name":"getRegistrationTimestamp","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address","internalType":"address"}],
	 "outputs":[{"name":"","type":"uint256","internalType":"uint256"}]},
	{"type":"event","name":"IdentityRegistered","anonymous":false,
	 "inputs":[{"name":"user","type":"address","indexed":true,"internalType":"address"},{"name":"timestamp","type":"uint256","indexed":false,"internalType":"uint256"}]},
	{"type":"event","name":"IdentityVerified","anonymous":false,
	 "inputs":[{"name":"user","type":"address","indexed":true,"internalType":"address"}]}
]`,
}

// EncryptedIdentityAuthABI is the input ABI used to generate the binding from.
var EncryptedIdentityAuthABI = EncryptedIdentityAuthMetaData.ABI

// EncryptedIdentityAuth is an auto generated Go binding around an Ethereum contract.
type EncryptedIdentityAuth struct {
	EncryptedIdentityAuthCaller     // Read-only binding to the contract
	EncryptedIdentityAuthTransactor // Write-only binding to the contract
}

// EncryptedIdentityAuthCaller is a read-only binding around the contract.
type EncryptedIdentityAuthCaller struct {
	contract *bind.BoundContract
}

// EncryptedIdentityAuthTransactor is a write-only binding around the contract.
type EncryptedIdentityAuthTransactor struct {
	contract *bind.BoundContract
}

// NewEncryptedIdentityAuth creates a new instance of EncryptedIdentityAuth, bound to a specific deployed contract.
func NewEncryptedIdentityAuth(address common.Address, backend bind.ContractBackend) (*EncryptedIdentityAuth, error) {
	contract, err := bindEncryptedIdentityAuth(address, backend, backend, backend)
	if err != nil {
		return nil, err
	}
	return &EncryptedIdentityAuth{
		EncryptedIdentityAuthCaller:     EncryptedIdentityAuthCaller{contract: contract},
		EncryptedIdentityAuthTransactor: EncryptedIdentityAuthTransactor{contract: contract},
	}, nil
}

// bindEncryptedIdentityAuth binds a generic wrapper to an already deployed contract.
func bindEncryptedIdentityAuth(address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor, filterer bind.ContractFilterer) (*bind.BoundContract, error) {
	parsed, err := EncryptedIdentityAuthMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		return nil, errors.New("GetABI returned nil")
	}
	return bind.NewBoundContract(address, *parsed, caller, transactor, filterer), nil
}

// ParsedABI returns the parsed contract ABI.
func ParsedABI() (*abi.ABI, error) {
	return EncryptedIdentityAuthMetaData.GetAbi()
}

// IsRegistered is a free data retrieval call binding the contract method.
//
// Solidity: function isRegistered(address user) view returns(bool)
func (_c *EncryptedIdentityAuthCaller) IsRegistered(opts *bind.CallOpts, user common.Address) (bool, error) {
	var out []interface{}
	err := _c.contract.Call(opts, &out, "isRegistered", user)
	if err != nil {
		return *new(bool), err
	}

	out0 := *abi.ConvertType(out[0], new(bool)).(*bool)
	return out0, err
}

// GetRegistrationTimestamp is a free data retrieval call binding the contract method.
//
// Solidity: function getRegistrationTimestamp(address user) view returns(uint256)
func (_c *EncryptedIdentityAuthCaller) GetRegistrationTimestamp(opts *bind.CallOpts, user common.Address) (*big.Int, error) {
	var out []interface{}
	err := _c.contract.Call(opts, &out, "getRegistrationTimestamp", user)
	if err != nil {
		return *new(*big.Int), err
	}

	out0 := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return out0, err
}

// VerifyCall executes verify as an eth_call and decodes its return value
// without sending a transaction.
//
// Solidity: function verify(bytes32 encryptedIdentity, bytes inputProof) returns(bytes32)
func (_c *EncryptedIdentityAuthCaller) VerifyCall(opts *bind.CallOpts, encryptedIdentity [32]byte, inputProof []byte) ([32]byte, error) {
	var out []interface{}
	err := _c.contract.Call(opts, &out, "verify", encryptedIdentity, inputProof)
	if err != nil {
		return *new([32]byte), err
	}

	out0 := *abi.ConvertType(out[0], new([32]byte)).(*[32]byte)
	return out0, err
}

// Register is a paid mutator transaction binding the contract method.
//
// Solidity: function register(bytes32 encryptedIdentity, bytes inputProof) returns()
func (_t *EncryptedIdentityAuthTransactor) Register(opts *bind.TransactOpts, encryptedIdentity [32]byte, inputProof []byte) (*types.Transaction, error) {
	return _t.contract.Transact(opts, "register", encryptedIdentity, inputProof)
}

// Verify is a paid mutator transaction binding the contract method.
//
// Solidity: function verify(bytes32 encryptedIdentity, bytes inputProof) returns(bytes32)
func (_t *EncryptedIdentityAuthTransactor) Verify(opts *bind.TransactOpts, encryptedIdentity [32]byte, inputProof []byte) (*types.Transaction, error) {
	return _t.contract.Transact(opts, "verify", encryptedIdentity, inputProof)
}
