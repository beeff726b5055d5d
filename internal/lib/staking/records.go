package staking

import (
	"github.com/gagliardetto/solana-go"
)

// StakeRecord is the canonical decoded form of a user's on-chain staking
// account. A wallet that never staked decodes to the zero record.
type StakeRecord struct {
	Owner                solana.PublicKey
	AmountStaked         uint64
	Rewards              uint64
	StakedAt             int64
	LastClaimAt          int64 // 0 when never claimed
	Referrer             *solana.PublicKey
	ReferralCount        uint64
	TotalReferralRewards uint64

	// Exists is false when the account wasn't on the ledger at decode time,
	// which callers use to decide whether registration must precede staking.
	Exists bool
}

// VaultRecord is the canonical decoded form of the deployment's singleton
// global state account.
type VaultRecord struct {
	Authority solana.PublicKey
	TokenMint solana.PublicKey
	Vault     solana.PublicKey

	RewardRateBps          uint64 // current APY in basis points
	UnlockDuration         int64  // seconds
	EarlyUnstakePenaltyBps uint64
	MinStakeAmount         uint64
	ReferralRewardRateBps  uint64

	TotalStaked    uint64
	StakersCount   uint64
	RewardPool     uint64
	LastUpdateTime int64
	Bump           uint8

	Exists bool
}

// ReferralRecord summarizes a wallet's referral standing. The code is a pure
// function of the owner key so independent clients agree without coordination.
type ReferralRecord struct {
	Code             string
	ReferredCount    uint64
	TotalEarnings    uint64
	ClaimableRewards uint64
}
