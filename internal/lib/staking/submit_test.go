package staking

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatmlabs/hatm-staker/internal/lib/sol"
)

func buildStakeIntent(t *testing.T, client *Client, chain *fakeChain, owner *solana.Wallet) *TransactionIntent {
	t.Helper()
	seedVault(t, chain, testVault())
	seedTokenAccount(t, chain, owner.PublicKey())
	intent, err := client.BuildStake(context.Background(), owner.PublicKey(), 2_000_000_000, nil)
	require.NoError(t, err)
	return intent
}

func TestSubmitStrictPath(t *testing.T) {
	chain := newFakeChain()
	owner := solana.NewWallet()
	client := newTestClient(t, chain, newFakeSigner(owner), nil, nil)
	intent := buildStakeIntent(t, client, chain, owner)

	sig, err := client.SubmitIntent(context.Background(), intent)
	require.NoError(t, err)
	assert.False(t, sig.IsZero())
	assert.Equal(t, StateConfirmed, intent.State)
	assert.True(t, intent.TookPath(StateSubmitted, "strict submission accepted"))

	require.Len(t, chain.sendOpts, 1)
	assert.False(t, chain.sendOpts[0].SkipPreflight, "first attempt runs full preflight")
	assert.EqualValues(t, 2_000_000_000, chain.totalStaked, "staking A moves the ledger by exactly A")
}

func TestSubmitRetriesRelaxedOnTransientFailure(t *testing.T) {
	chain := newFakeChain()
	chain.sendErrs = []error{errors.New("Blockhash not found")}
	owner := solana.NewWallet()
	client := newTestClient(t, chain, newFakeSigner(owner), nil, nil)
	intent := buildStakeIntent(t, client, chain, owner)

	sig, err := client.SubmitIntent(context.Background(), intent)
	require.NoError(t, err)
	assert.False(t, sig.IsZero())
	assert.Equal(t, StateConfirmed, intent.State)
	assert.True(t, intent.TookPath(StateSubmitted, "relaxed submission accepted"))

	require.Len(t, chain.sendOpts, 2)
	assert.False(t, chain.sendOpts[0].SkipPreflight)
	assert.True(t, chain.sendOpts[1].SkipPreflight, "retry skips preflight")
	assert.GreaterOrEqual(t, chain.blockhashCalls, 2, "retry re-fetches the blockhash")
	assert.EqualValues(t, 2_000_000_000, chain.totalStaked, "the amount must land exactly once across the retry")
}

func TestSubmitFatalRejectionDoesNotRetry(t *testing.T) {
	chain := newFakeChain()
	chain.sendErrs = []error{errors.New("Transaction signature verification failure")}
	owner := solana.NewWallet()
	client := newTestClient(t, chain, newFakeSigner(owner), nil, nil)
	intent := buildStakeIntent(t, client, chain, owner)

	_, err := client.SubmitIntent(context.Background(), intent)
	var rejected *SubmissionRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.ErrorContains(t, rejected.Err, "signature verification")
	assert.Equal(t, StateFailed, intent.State)
	assert.Len(t, chain.sendOpts, 1, "fatal rejection must not be retried")
}

func TestSubmitReportsOnChainExecutionError(t *testing.T) {
	chain := newFakeChain()
	chain.statusErr = map[string]any{"InstructionError": []any{float64(0), "Custom"}}
	owner := solana.NewWallet()
	client := newTestClient(t, chain, newFakeSigner(owner), nil, nil)
	intent := buildStakeIntent(t, client, chain, owner)

	_, err := client.SubmitIntent(context.Background(), intent)
	var execErr *OnChainExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.NotEmpty(t, execErr.Signature)
	assert.NotNil(t, execErr.Detail, "program error payload must survive intact")
	assert.Equal(t, StateFailed, intent.State)
}

func TestSubmitSigningDeclinedIsTerminal(t *testing.T) {
	chain := newFakeChain()
	owner := solana.NewWallet()
	signer := newFakeSigner(owner)
	client := newTestClient(t, chain, signer, nil, nil)
	intent := buildStakeIntent(t, client, chain, owner)

	signer.decline = true
	_, err := client.SubmitIntent(context.Background(), intent)
	require.ErrorIs(t, err, ErrUserRejected)
	assert.Equal(t, StateFailed, intent.State)
	assert.Empty(t, chain.sendOpts, "a declined signature must never reach the network")
}

// remoteReturning runs a remote API stub whose every operation endpoint
// responds with the given envelope.
func remoteReturning(t *testing.T, envelope map[string]any) *RemoteClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(envelope))
	}))
	t.Cleanup(srv.Close)
	return NewRemoteClient(slog.Default(), sol.NetworkConfig{RemoteAPIUrl: srv.URL})
}

func TestSubmitFallsBackToRemoteWhenExhausted(t *testing.T) {
	var remoteSig solana.Signature
	remoteSig[0] = 9
	remote := remoteReturning(t, map[string]any{
		"success":         true,
		"resultSignature": remoteSig.String(),
	})

	chain := newFakeChain()
	chain.sendErrs = []error{errors.New("timed out"), errors.New("timed out")}
	owner := solana.NewWallet()
	client := newTestClient(t, chain, newFakeSigner(owner), remote, nil)
	intent := buildStakeIntent(t, client, chain, owner)

	sig, err := client.SubmitIntent(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, remoteSig, sig)
	assert.Equal(t, StateConfirmed, intent.State)
	assert.True(t, intent.TookPath(StateConfirmed, "remote executed operation"))
	assert.Len(t, chain.sendOpts, 2, "remote-executed result needs no further local submission")
}

func TestSubmitDegradedGoesStraightToRemote(t *testing.T) {
	var remoteSig solana.Signature
	remoteSig[0] = 3
	remote := remoteReturning(t, map[string]any{
		"success":         true,
		"resultSignature": remoteSig.String(),
	})

	chain := newFakeChain()
	owner := solana.NewWallet()
	client := newTestClient(t, chain, newFakeSigner(owner), remote, nil)

	intent, err := client.BuildStake(context.Background(), owner.PublicKey(), 2_000_000_000, nil)
	require.NoError(t, err)
	require.True(t, intent.Degraded, "no global state account means degraded construction")

	sig, err := client.SubmitIntent(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, remoteSig, sig)
	assert.Empty(t, chain.sendOpts, "degraded intents skip local submission entirely")
}

func TestPurchaseAndStakeSignsRemoteBuiltTransaction(t *testing.T) {
	owner := solana.NewWallet()
	remote := remoteReturning(t, map[string]any{
		"success":     true,
		"transaction": serializedTestTransaction(t, owner.PublicKey()),
	})

	chain := newFakeChain()
	client := newTestClient(t, chain, newFakeSigner(owner), remote, nil)

	intent, err := client.PurchaseAndStake(context.Background(), owner.PublicKey(), 1_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, intent.State)
	assert.True(t, intent.TookPath(StateSigned, "signing remote-built transaction"))

	require.Len(t, chain.sendOpts, 1, "the server-built transaction is sent exactly once")
	assert.True(t, chain.sendOpts[0].SkipPreflight)

	_, err = client.PurchaseAndStake(context.Background(), owner.PublicKey(), 0)
	var amountErr *InvalidAmountError
	assert.ErrorAs(t, err, &amountErr)
}

func TestSubmitExhaustedWithoutRemoteFails(t *testing.T) {
	chain := newFakeChain()
	chain.sendErrs = []error{errors.New("timed out"), errors.New("timed out")}
	owner := solana.NewWallet()
	client := newTestClient(t, chain, newFakeSigner(owner), nil, nil)
	intent := buildStakeIntent(t, client, chain, owner)

	_, err := client.SubmitIntent(context.Background(), intent)
	var fallbackErr *RemoteFallbackError
	require.ErrorAs(t, err, &fallbackErr)
	assert.Equal(t, StateFailed, intent.State)
}

func TestIsTransientSubmitError(t *testing.T) {
	assert.True(t, isTransientSubmitError(errors.New("Blockhash not found")))
	assert.True(t, isTransientSubmitError(errors.New("429 Too Many Requests")))
	assert.True(t, isTransientSubmitError(errors.New("dial tcp: connection refused")))
	assert.False(t, isTransientSubmitError(errors.New("Transaction signature verification failure")))
	assert.False(t, isTransientSubmitError(errors.New("custom program error: 0x1")))
}
