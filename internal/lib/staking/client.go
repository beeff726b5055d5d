package staking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"
	"github.com/mailgun/holster/v4/syncutil"

	"github.com/hatmlabs/hatm-staker/internal/lib/misc"
	"github.com/hatmlabs/hatm-staker/internal/lib/sol"
)

// ChainClient is the slice of the Solana RPC surface the staking client
// uses. *rpc.Client satisfies it; tests substitute fakes.
type ChainClient interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// Client is the chain-state synchronization and transaction-construction
// layer for the HATM staking program. State is loaded from the chain on
// demand; mutating operations are serialized per wallet for the duration of
// build, sign, submit and confirm.
type Client struct {
	Logger *slog.Logger

	chain   ChainClient
	signer  sol.MultipleWalletSigner
	remote  *RemoteClient
	decoder *Decoder
	clock   clockwork.Clock

	ProgramID solana.PublicKey
	TokenMint solana.PublicKey

	cache *snapshotCache

	opMu    sync.Mutex
	opLocks map[solana.PublicKey]*sync.Mutex
}

func New(
	cfg sol.NetworkConfig,
	logger *slog.Logger,
	chain ChainClient,
	signer sol.MultipleWalletSigner,
	remote *RemoteClient,
	clock clockwork.Clock,
) (*Client, error) {
	if cfg.StakingProgramID.IsZero() {
		return nil, fmt.Errorf("staking program id not defined")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	client := &Client{
		Logger:    logger,
		chain:     chain,
		signer:    signer,
		remote:    remote,
		decoder:   NewDecoder(logger),
		clock:     clock,
		ProgramID: cfg.StakingProgramID,
		TokenMint: cfg.TokenMint,
		cache:     newSnapshotCache(clock),
		opLocks:   map[solana.PublicKey]*sync.Mutex{},
	}
	misc.Infof(logger, "client initialized, program:%s, mint:%s", cfg.StakingProgramID, cfg.TokenMint)
	return client, nil
}

func (c *Client) Decoder() *Decoder { return c.decoder }

func (c *Client) Clock() clockwork.Clock { return c.clock }

// Remote returns the remote API client, nil when none is configured.
func (c *Client) Remote() *RemoteClient { return c.remote }

// LoadState fetches and decodes the vault's global state and the owner's
// stake account in parallel, caches the snapshot, and refreshes the exported
// metrics from what was observed.
func (c *Client) LoadState(ctx context.Context, owner solana.PublicKey) (Snapshot, error) {
	globalAddr, err := GlobalStateAddress(c.ProgramID)
	if err != nil {
		return Snapshot{}, err
	}
	userAddr, err := UserInfoAddress(c.ProgramID, owner)
	if err != nil {
		return Snapshot{}, err
	}

	var (
		wg       syncutil.WaitGroup
		dataLock sync.Mutex
		rawData  = map[solana.PublicKey][]byte{}
	)
	for _, addr := range []solana.PublicKey{globalAddr, userAddr} {
		wg.Run(func(val interface{}) error {
			address := val.(solana.PublicKey)
			data, err := sol.GetAccountDataIfExists(ctx, c.chain, address)
			if err != nil {
				return err
			}
			dataLock.Lock()
			rawData[address] = data
			dataLock.Unlock()
			return nil
		}, addr)
	}
	if errs := wg.Wait(); errs != nil {
		return Snapshot{}, fmt.Errorf("error loading chain state: %w", errs[0])
	}

	vault, err := c.decoder.DecodeVaultRecord(anyData(rawData[globalAddr]))
	if err != nil {
		return Snapshot{}, fmt.Errorf("global state account is malformed: %w", err)
	}
	stake, err := c.decoder.DecodeStakeRecord(anyData(rawData[userAddr]))
	if err != nil {
		return Snapshot{}, fmt.Errorf("user stake account is malformed: %w", err)
	}

	if vault.Exists {
		promTotalStaked.Set(float64(vault.TotalStaked) / sol.BaseUnitsPerToken)
		promNumStakers.Set(float64(vault.StakersCount))
		promRewardPool.Set(float64(vault.RewardPool) / sol.BaseUnitsPerToken)
	}
	c.Logger.Debug("state re-loaded", "owner", owner.String())
	return c.cache.put(owner, stake, vault), nil
}

// anyData keeps the decoder's nil-means-missing contract intact - a nil
// []byte inside an interface is not an interface nil.
func anyData(data []byte) any {
	if data == nil {
		return nil
	}
	return data
}

// State returns the cached snapshot for the owner, fetching when the cache
// is cold or stale.
func (c *Client) State(ctx context.Context, owner solana.PublicKey) (Snapshot, error) {
	if snap, ok := c.cache.get(owner); ok {
		return snap, nil
	}
	return c.LoadState(ctx, owner)
}

// ForceRefresh discards the cached snapshot for the owner and refetches.
func (c *Client) ForceRefresh(ctx context.Context, owner solana.PublicKey) (Snapshot, error) {
	c.cache.invalidate(owner)
	return c.LoadState(ctx, owner)
}

// Referral summarizes the owner's referral standing from the snapshot.
func (c *Client) Referral(ctx context.Context, owner solana.PublicKey) (ReferralRecord, error) {
	snap, err := c.State(ctx, owner)
	if err != nil {
		return ReferralRecord{}, err
	}
	return ReferralRecord{
		Code:             ReferralCode(owner),
		ReferredCount:    snap.Stake.ReferralCount,
		TotalEarnings:    snap.Stake.TotalReferralRewards,
		ClaimableRewards: snap.Stake.Rewards,
	}, nil
}

// lockIdentity serializes mutating operations per wallet - at most one
// in-flight build/sign/submit/confirm per Identity; a second back-to-back
// call blocks until the first reaches a terminal state.
func (c *Client) lockIdentity(owner solana.PublicKey) func() {
	c.opMu.Lock()
	mu, found := c.opLocks[owner]
	if !found {
		mu = &sync.Mutex{}
		c.opLocks[owner] = mu
	}
	c.opMu.Unlock()
	mu.Lock()
	return mu.Unlock
}
