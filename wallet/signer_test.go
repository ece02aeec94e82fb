package wallet

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/fhe-identity-auth/coprocessor"
	"github.com/ruteri/fhe-identity-auth/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// First default hardhat account.
const hardhatKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestNewKeySignerFromHex(t *testing.T) {
	signer, err := NewKeySignerFromHex(hardhatKey, nil)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), signer.Address())

	_, err = NewKeySignerFromHex("not-a-key", nil)
	assert.Error(t, err)
}

func TestNewKeySignerFromKeystore(t *testing.T) {
	dir := t.TempDir()
	ks := keystore.NewKeyStore(dir, keystore.LightScryptN, keystore.LightScryptP)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	account, err := ks.ImportECDSA(key, "secret")
	require.NoError(t, err)

	signer, err := NewKeySignerFromKeystore(account.URL.Path, "secret", nil)
	require.NoError(t, err)
	assert.Equal(t, account.Address, signer.Address())

	_, err = NewKeySignerFromKeystore(account.URL.Path, "wrong", nil)
	assert.Error(t, err)

	_, err = NewKeySignerFromKeystore(filepath.Join(dir, "missing"), "secret", nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSignTypedData_RecoversSigner(t *testing.T) {
	signer, err := NewKeySignerFromHex(hardhatKey, nil)
	require.NoError(t, err)

	data := coprocessor.UserDecryptTypedData(interfaces.HardhatChainID, common.HexToAddress("0xdd"), []byte{0x04, 0x01}, []common.Address{common.HexToAddress("0x01")}, 1700000000, 10)
	sig, err := signer.SignTypedData(context.Background(), data)
	require.NoError(t, err)
	assert.Contains(t, []byte{27, 28}, sig[crypto.RecoveryIDOffset])

	recovered, err := coprocessor.RecoverTypedDataSigner(data, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), recovered)
}

func TestConfirmHook_Rejects(t *testing.T) {
	var prompts []Prompt
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := NewKeySigner(key, func(_ context.Context, p Prompt) bool {
		prompts = append(prompts, p)
		return false
	})

	data := coprocessor.UserDecryptTypedData(interfaces.HardhatChainID, common.Address{}, []byte{0x01}, nil, 0, 1)
	_, err = signer.SignTypedData(context.Background(), data)
	assert.ErrorIs(t, err, interfaces.ErrUserRejected)
	assert.Equal(t, interfaces.KindUserRejected, interfaces.KindOf(err))

	opts, err := signer.TransactOpts(context.Background(), interfaces.HardhatChainID)
	require.NoError(t, err)
	to := common.HexToAddress("0x02")
	tx := types.NewTx(&types.LegacyTx{Nonce: 3, To: &to, Value: big.NewInt(0), Gas: 21000, GasPrice: big.NewInt(1)})
	_, err = opts.Signer(opts.From, tx)
	assert.ErrorIs(t, err, interfaces.ErrUserRejected)

	require.Len(t, prompts, 2)
	assert.Equal(t, PromptTypedData, prompts[0].Kind)
	assert.Equal(t, PromptTransaction, prompts[1].Kind)
	assert.Contains(t, prompts[1].Detail, "nonce=3")
}

func TestTransactOpts_Signs(t *testing.T) {
	signer, err := NewKeySignerFromHex(hardhatKey, func(context.Context, Prompt) bool { return true })
	require.NoError(t, err)

	opts, err := signer.TransactOpts(context.Background(), interfaces.HardhatChainID)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), opts.From)

	to := common.HexToAddress("0x02")
	tx := types.NewTx(&types.LegacyTx{To: &to, Value: big.NewInt(0), Gas: 21000, GasPrice: big.NewInt(1)})
	signed, err := opts.Signer(opts.From, tx)
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(31337)), signed)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), sender)
}
