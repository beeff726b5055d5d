package staking

import (
	"crypto/sha256"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ReferralCodeLength is the length of the short code shown to users.
const ReferralCodeLength = 8

// ReferralCode derives a wallet's referral code. Deterministic and pure so
// independent client instances agree on the code without any coordination -
// hash the owner key, base58 the digest, take a fixed prefix.
func ReferralCode(owner solana.PublicKey) string {
	digest := sha256.Sum256(owner.Bytes())
	encoded := base58.Encode(digest[:])
	return strings.ToUpper(encoded[:ReferralCodeLength])
}
