package staking

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/hatmlabs/hatm-staker/internal/lib/sol"
)

var testProgramID = solana.MustPublicKeyFromBase58("EnGhdovdYhHk4nsHEJr6gmV5cYfrx53ky19RD56eRRGm")
var testTokenMint = solana.MustPublicKeyFromBase58("59TF7G5NqMdqjHvpsBPojuhvksHiHVUkaNkaiVvozDrk")

// fakeChain is an in-memory stand-in for the RPC node. Accounts are looked
// up from a map; submissions and confirmations play back scripted results.
type fakeChain struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey][]byte

	blockhash      solana.Hash
	blockhashCalls int

	// sendErrs[i] is returned from submission i (nil = accept)
	sendErrs  []error
	sendOpts  []rpc.TransactionOpts
	nextSig   byte
	fetchHits int

	// statusErr, when set, is reported as the transaction's on-chain error
	statusErr any

	// totalStaked accumulates the amounts of stake instructions from
	// accepted submissions, once per acceptance.
	totalStaked uint64
}

func newFakeChain() *fakeChain {
	var hash solana.Hash
	hash[0] = 42
	return &fakeChain{
		accounts:  map[solana.PublicKey][]byte{},
		blockhash: hash,
	}
}

func (f *fakeChain) setAccount(addr solana.PublicKey, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[addr] = data
}

func (f *fakeChain) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchHits++
	data, found := f.accounts[account]
	if !found {
		return nil, rpc.ErrNotFound
	}
	var djson rpc.DataBytesOrJSON
	raw, err := json.Marshal([]string{base64.StdEncoding.EncodeToString(data), "base64"})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &djson); err != nil {
		return nil, err
	}
	return &rpc.GetAccountInfoResult{Value: &rpc.Account{Owner: testProgramID, Data: &djson}}, nil
}

func (f *fakeChain) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockhashCalls++
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{Blockhash: f.blockhash, LastValidBlockHeight: 1000},
	}, nil
}

func (f *fakeChain) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := len(f.sendOpts)
	f.sendOpts = append(f.sendOpts, opts)
	if call < len(f.sendErrs) && f.sendErrs[call] != nil {
		return solana.Signature{}, f.sendErrs[call]
	}
	f.applyStakeEffects(tx)
	f.nextSig++
	var sig solana.Signature
	sig[0] = f.nextSig
	return sig, nil
}

// applyStakeEffects mirrors what the program would do with an accepted
// stake transaction, so tests can assert the ledger moved exactly once.
func (f *fakeChain) applyStakeEffects(tx *solana.Transaction) {
	stakeDisc := InstructionDiscriminator(InstrStake)
	for _, inst := range tx.Message.Instructions {
		if int(inst.ProgramIDIndex) >= len(tx.Message.AccountKeys) {
			continue
		}
		if !tx.Message.AccountKeys[inst.ProgramIDIndex].Equals(testProgramID) {
			continue
		}
		if len(inst.Data) != 16 || !bytes.Equal(inst.Data[:8], stakeDisc) {
			continue
		}
		f.totalStaked += binary.LittleEndian.Uint64(inst.Data[8:])
	}
}

func (f *fakeChain) GetSignatureStatuses(ctx context.Context, searchHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &rpc.GetSignatureStatusesResult{
		Value: []*rpc.SignatureStatusesResult{
			{ConfirmationStatus: rpc.ConfirmationStatusConfirmed, Err: f.statusErr},
		},
	}, nil
}

type fakeSigner struct {
	keys    map[solana.PublicKey]solana.PrivateKey
	decline bool
}

func newFakeSigner(wallets ...*solana.Wallet) *fakeSigner {
	fs := &fakeSigner{keys: map[solana.PublicKey]solana.PrivateKey{}}
	for _, w := range wallets {
		fs.keys[w.PublicKey()] = w.PrivateKey
	}
	return fs
}

func (f *fakeSigner) HasAccount(publicKey solana.PublicKey) bool {
	_, found := f.keys[publicKey]
	return found
}

func (f *fakeSigner) SignWithAccount(ctx context.Context, tx *solana.Transaction, publicKey solana.PublicKey) error {
	if f.decline {
		return sol.ErrSigningDeclined
	}
	if _, found := f.keys[publicKey]; !found {
		return sol.ErrSigningDeclined
	}
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if priv, found := f.keys[key]; found {
			return &priv
		}
		return nil
	})
	return err
}

func newTestClient(t *testing.T, chain ChainClient, signer sol.MultipleWalletSigner, remote *RemoteClient, clock clockwork.Clock) *Client {
	t.Helper()
	client, err := New(sol.NetworkConfig{
		StakingProgramID: testProgramID,
		TokenMint:        testTokenMint,
	}, slog.Default(), chain, signer, remote, clock)
	require.NoError(t, err)
	return client
}

// stakeAccountBytes serializes a StakeRecord the way the program lays out
// its user accounts.
func stakeAccountBytes(rec StakeRecord) []byte {
	data := AccountDiscriminator("UserInfo")
	data = append(data, rec.Owner.Bytes()...)
	data = binary.LittleEndian.AppendUint64(data, rec.AmountStaked)
	data = binary.LittleEndian.AppendUint64(data, rec.Rewards)
	data = binary.LittleEndian.AppendUint64(data, uint64(rec.StakedAt))
	data = binary.LittleEndian.AppendUint64(data, uint64(rec.LastClaimAt))
	if rec.Referrer != nil {
		data = append(data, 1)
		data = append(data, rec.Referrer.Bytes()...)
	} else {
		data = append(data, 0)
	}
	data = binary.LittleEndian.AppendUint64(data, rec.ReferralCount)
	data = binary.LittleEndian.AppendUint64(data, rec.TotalReferralRewards)
	if rec.Referrer == nil {
		// account space is allocated for the widest layout
		data = append(data, make([]byte, 32)...)
	}
	return data
}

func vaultAccountBytes(rec VaultRecord) []byte {
	data := AccountDiscriminator("GlobalState")
	data = append(data, rec.Authority.Bytes()...)
	data = append(data, rec.TokenMint.Bytes()...)
	data = append(data, rec.Vault.Bytes()...)
	data = binary.LittleEndian.AppendUint64(data, rec.RewardRateBps)
	data = binary.LittleEndian.AppendUint64(data, uint64(rec.UnlockDuration))
	data = binary.LittleEndian.AppendUint64(data, rec.EarlyUnstakePenaltyBps)
	data = binary.LittleEndian.AppendUint64(data, rec.MinStakeAmount)
	data = binary.LittleEndian.AppendUint64(data, rec.ReferralRewardRateBps)
	data = binary.LittleEndian.AppendUint64(data, rec.TotalStaked)
	data = binary.LittleEndian.AppendUint64(data, rec.StakersCount)
	data = binary.LittleEndian.AppendUint64(data, rec.RewardPool)
	data = binary.LittleEndian.AppendUint64(data, uint64(rec.LastUpdateTime))
	data = append(data, rec.Bump)
	return data
}

