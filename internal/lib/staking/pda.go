package staking

import (
	"github.com/gagliardetto/solana-go"
)

// Derive computes the program-derived address for a seed label plus any
// number of key parts. Same label and key parts always yield the same
// address - this is a pure computation and never touches the network.
func Derive(programID solana.PublicKey, seedLabel string, keyParts ...solana.PublicKey) (solana.PublicKey, error) {
	if seedLabel == "" {
		return solana.PublicKey{}, &InvalidSeedError{Label: seedLabel, Reason: "empty seed label"}
	}
	if programID.IsZero() {
		return solana.PublicKey{}, &InvalidSeedError{Label: seedLabel, Reason: "zero program id"}
	}
	seeds := [][]byte{[]byte(seedLabel)}
	for _, part := range keyParts {
		if part.IsZero() {
			return solana.PublicKey{}, &InvalidSeedError{Label: seedLabel, Reason: "zero key part"}
		}
		seeds = append(seeds, part.Bytes())
	}
	addr, _, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, &InvalidSeedError{Label: seedLabel, Reason: err.Error()}
	}
	return addr, nil
}

// GlobalStateAddress is the singleton state account for the deployment.
func GlobalStateAddress(programID solana.PublicKey) (solana.PublicKey, error) {
	return Derive(programID, SeedGlobalState)
}

// UserInfoAddress is the per-user stake account, keyed by the owner's wallet.
func UserInfoAddress(programID, owner solana.PublicKey) (solana.PublicKey, error) {
	return Derive(programID, SeedUserInfo, owner)
}

// VaultAuthorityAddress is the token-vault authority, keyed by the mint.
func VaultAuthorityAddress(programID, mint solana.PublicKey) (solana.PublicKey, error) {
	return Derive(programID, SeedVaultAuthority, mint)
}
