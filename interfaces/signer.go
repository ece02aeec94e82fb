package interfaces

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Signer is the connected wallet. Implementations return ErrUserRejected when
// the user declines a prompt.
type Signer interface {
	Address() common.Address
	TransactOpts(ctx context.Context, chainID ChainID) (*bind.TransactOpts, error)
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
}
