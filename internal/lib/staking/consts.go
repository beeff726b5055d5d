package staking

import (
	"crypto/sha256"
)

const (
	// PDA seed labels used by the staking program
	SeedGlobalState    = "global_state"
	SeedUserInfo       = "user_info"
	SeedVaultAuthority = "vault_auth"

	// Reward math units
	BasisPointsDivisor = 10_000
	SecondsPerYear     = 365 * 86_400

	// Serialized account sizes (anchor discriminator included); user
	// accounts can be shorter when no referrer was recorded
	GlobalStateLen = 177
	UserInfoLen    = 121
	userInfoMinLen = UserInfoLen - 32
)

// Instruction names as declared by the staking program
const (
	InstrRegisterUser     = "register_user"
	InstrStake            = "stake"
	InstrUnstake          = "unstake"
	InstrClaimRewards     = "claim_rewards"
	InstrCompoundRewards  = "compound_rewards"
	InstrAddToRewardPool  = "add_to_reward_pool"
	InstrUpdateParameters = "update_parameters"
)

// InstructionDiscriminator returns the 8-byte anchor-style method
// discriminator for a program instruction.
func InstructionDiscriminator(name string) []byte {
	hash := sha256.Sum256([]byte("global:" + name))
	return hash[:8]
}

// AccountDiscriminator returns the 8-byte discriminator prefixed to all
// program-owned account data for the named account struct.
func AccountDiscriminator(name string) []byte {
	hash := sha256.Sum256([]byte("account:" + name))
	return hash[:8]
}
