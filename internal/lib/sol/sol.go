package sol

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/ssgreg/repeat"

	"github.com/hatmlabs/hatm-staker/internal/lib/misc"
)

// TokenDecimals is the decimal exponent of the HATM mint - all on-chain
// amounts are base units scaled by 10^TokenDecimals.
const TokenDecimals = 9

// BaseUnitsPerToken is the number of base units in one whole token.
const BaseUnitsPerToken = 1_000_000_000

// FormattedTokenAmount renders a base-unit amount as a human readable
// token amount, chopping trailing zeroes.
func FormattedTokenAmount(baseUnits uint64) string {
	formattedAmount := fmt.Sprintf("%.9f", float64(baseUnits)/BaseUnitsPerToken)
	// chop trailing 0's and decimal (if nothing else)
	formattedAmount = strings.TrimRight(formattedAmount, "0")
	formattedAmount = strings.TrimRight(formattedAmount, ".")
	return formattedAmount
}

func GetRPCClient(log *slog.Logger, config NetworkConfig) (*rpc.Client, error) {
	url := strings.TrimRight(config.NodeURL, "/")
	misc.Infof(log, "Connecting to Solana RPC node at:%s", url)

	client := rpc.New(url)
	// Immediately hit the node to verify connectivity
	health, err := client.GetHealth(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to reach RPC node (url:%s), error:%w", url, err)
	}
	if health != rpc.HealthOk {
		misc.Warnf(log, "RPC node reported health:%s - proceeding anyway", health)
	}
	return client, nil
}

// LatestBlockhash fetches a recent blockhash, retrying with backoff - the
// blockhash endpoint is the one call everything else depends on, so don't
// accept no for an answer until the context gives up.
func LatestBlockhash(ctx context.Context, logger *slog.Logger, client BlockhashGetter) (solana.Hash, uint64, error) {
	var (
		hash            solana.Hash
		lastValidHeight uint64
	)
	err := repeat.Repeat(
		repeat.Fn(func() error {
			out, err := client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
			if err != nil {
				return repeat.HintTemporary(err)
			}
			hash = out.Value.Blockhash
			lastValidHeight = out.Value.LastValidBlockHeight
			return nil
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(5),
		repeat.FnOnError(func(err error) error {
			misc.Infof(logger, "retrying getLatestBlockhash call, error:%s", err.Error())
			return err
		}),
		repeat.WithDelay(repeat.ExponentialBackoff(500*time.Millisecond).Set()),
	)
	if err != nil {
		return solana.Hash{}, 0, fmt.Errorf("unable to fetch latest blockhash: %w", err)
	}
	return hash, lastValidHeight, nil
}

// BlockhashGetter is the slice of the RPC surface LatestBlockhash needs.
type BlockhashGetter interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
}

// GetAccountDataIfExists returns the raw data of an account, or nil (with no
// error) when the account simply doesn't exist on the ledger yet - a common,
// expected state for wallets that never staked.
func GetAccountDataIfExists(ctx context.Context, client AccountFetcher, address solana.PublicKey) ([]byte, error) {
	out, err := client.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		if err == rpc.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("account fetch for %s failed: %w", address, err)
	}
	if out.Value == nil {
		return nil, nil
	}
	return out.Value.Data.GetBinary(), nil
}

// AccountFetcher is the slice of the RPC surface account lookups need.
type AccountFetcher interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
}
