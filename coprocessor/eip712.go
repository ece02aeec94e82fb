package coprocessor

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/ruteri/fhe-identity-auth/interfaces"
)

const userDecryptPrimaryType = "UserDecryptRequestVerification"

var ErrInvalidSignature = errors.New("invalid user decryption signature")

// UserDecryptTypedData builds the EIP-712 message a user signs to let the
// holder of publicKey decrypt handles of contracts during the given window.
func UserDecryptTypedData(chainID interfaces.ChainID, verifyingContract common.Address, publicKey []byte, contracts []common.Address, startTimestamp, durationDays int64) apitypes.TypedData {
	addrs := make([]interface{}, len(contracts))
	for i, c := range contracts {
		addrs[i] = c.Hex()
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			userDecryptPrimaryType: {
				{Name: "publicKey", Type: "bytes"},
				{Name: "contractAddresses", Type: "address[]"},
				{Name: "startTimestamp", Type: "uint256"},
				{Name: "durationDays", Type: "uint256"},
			},
		},
		PrimaryType: userDecryptPrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              "Decryption",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(int64(chainID)),
			VerifyingContract: verifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"publicKey":         hexutil.Encode(publicKey),
			"contractAddresses": addrs,
			"startTimestamp":    strconv.FormatInt(startTimestamp, 10),
			"durationDays":      strconv.FormatInt(durationDays, 10),
		},
	}
}

// RecoverTypedDataSigner returns the address that produced sig over data.
// Both 0/1 and 27/28 recovery ids are accepted.
func RecoverTypedDataSigner(data apitypes.TypedData, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}

	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return common.Address{}, fmt.Errorf("could not hash typed data: %w", err)
	}

	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
