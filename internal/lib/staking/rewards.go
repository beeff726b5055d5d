package staking

import (
	"math/big"
	"time"
)

// PendingRewards computes the continuously accrued reward at 'now' for a
// stake against the vault's current APY. Accrual runs from the last claim
// (or the stake time when never claimed) and floors to whole base units.
// Pure function - callers own fetching fresh records.
func PendingRewards(stake StakeRecord, vault VaultRecord, now time.Time) uint64 {
	if stake.AmountStaked == 0 || vault.RewardRateBps == 0 {
		return stake.Rewards
	}
	accrualStart := stake.StakedAt
	if stake.LastClaimAt > accrualStart {
		accrualStart = stake.LastClaimAt
	}
	elapsed := now.Unix() - accrualStart
	if elapsed <= 0 {
		return stake.Rewards
	}

	// amount * bps * elapsed / (10000 * secondsPerYear), all in big.Int so
	// large stakes can't overflow the intermediate product
	accrued := new(big.Int).SetUint64(stake.AmountStaked)
	accrued.Mul(accrued, new(big.Int).SetUint64(vault.RewardRateBps))
	accrued.Mul(accrued, big.NewInt(elapsed))
	accrued.Div(accrued, big.NewInt(BasisPointsDivisor*SecondsPerYear))

	total := new(big.Int).Add(accrued, new(big.Int).SetUint64(stake.Rewards))
	if !total.IsUint64() {
		return stake.Rewards
	}
	return total.Uint64()
}

// TimeUntilUnlock returns the seconds remaining until the stake's lock
// expires, or nil once unlocked (or when there is nothing staked).
func TimeUntilUnlock(stake StakeRecord, lockDurationSeconds int64, now time.Time) *int64 {
	if stake.AmountStaked == 0 || lockDurationSeconds <= 0 {
		return nil
	}
	unlockAt := stake.StakedAt + lockDurationSeconds
	remaining := unlockAt - now.Unix()
	if remaining <= 0 {
		return nil
	}
	return &remaining
}

// EarlyUnstakePenalty computes the base-unit penalty an unstake of 'amount'
// would incur at 'now', zero once the lock has expired.
func EarlyUnstakePenalty(stake StakeRecord, vault VaultRecord, amount uint64, now time.Time) uint64 {
	if TimeUntilUnlock(stake, vault.UnlockDuration, now) == nil {
		return 0
	}
	penalty := new(big.Int).SetUint64(amount)
	penalty.Mul(penalty, new(big.Int).SetUint64(vault.EarlyUnstakePenaltyBps))
	penalty.Div(penalty, big.NewInt(BasisPointsDivisor))
	if !penalty.IsUint64() {
		return amount
	}
	return penalty.Uint64()
}

// ReferralReward computes the one-shot reward a referrer earns when a
// referred wallet makes its first stake.
func ReferralReward(stakeAmount, referralRateBps uint64) uint64 {
	reward := new(big.Int).SetUint64(stakeAmount)
	reward.Mul(reward, new(big.Int).SetUint64(referralRateBps))
	reward.Div(reward, big.NewInt(BasisPointsDivisor))
	if !reward.IsUint64() {
		return 0
	}
	return reward.Uint64()
}
