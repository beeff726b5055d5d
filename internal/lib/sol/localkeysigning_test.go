package sol

import (
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalKeyStoreLoadsKeysInNameOrder(t *testing.T) {
	first := solana.NewWallet()
	second := solana.NewWallet()
	t.Setenv("HATM_WALLET_KEY2", second.PrivateKey.String())
	t.Setenv("HATM_WALLET_KEY1", first.PrivateKey.String())

	store := NewLocalKeyStore(slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.True(t, store.HasAccount(first.PublicKey()))
	assert.True(t, store.HasAccount(second.PublicKey()))
	assert.False(t, store.HasAccount(solana.NewWallet().PublicKey()))

	lister, ok := store.(AccountLister)
	require.True(t, ok, "the local key store enumerates its wallets")
	accounts := lister.Accounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, first.PublicKey(), accounts[0], "KEY1 is the default wallet regardless of env order")
	assert.Equal(t, second.PublicKey(), accounts[1])
}
