package staking

import (
	"encoding/json"
	"log/slog"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNumericEncodings(t *testing.T) {
	dec := NewDecoder(slog.Default())

	testCases := []struct {
		name     string
		raw      any
		expected string
	}{
		{"nil is zero", nil, "0"},
		{"plain float", float64(1500), "1500"},
		{"plain int", 42, "42"},
		{"uint64", uint64(18446744073709551615), "18446744073709551615"},
		{"decimal string", "123456789012345678901234567890", "123456789012345678901234567890"},
		{"json number", json.Number("777"), "777"},
		{"big int passthrough", big.NewInt(99), "99"},
		{"hex object", map[string]any{"hex": "0x64"}, "100"},
		{"underscore hex object", map[string]any{"_hex": "0x0de0b6b3a7640000"}, "1000000000000000000"},
		{"value wrapper", map[string]any{"value": "250"}, "250"},
		{"word array single", map[string]any{"words": []any{float64(100)}}, "100"},
		// 2 * 2^26 + 5 = 134217733
		{"word array multi", map[string]any{"words": []any{float64(5), float64(2)}, "length": float64(2)}, "134217733"},
		{"word array trailing garbage ignored", map[string]any{"words": []any{float64(7), float64(0), float64(123)}, "length": float64(1)}, "7"},
		{"negative word array", map[string]any{"words": []any{float64(9)}, "negative": float64(1)}, "-9"},
		{"byte slice LE", []byte{0x40, 0x42, 0x0f, 0x00, 0x00, 0x00, 0x00, 0x00}, "1000000"},
		{"json byte array LE", []any{float64(0x10), float64(0x27), float64(0), float64(0), float64(0), float64(0), float64(0), float64(0)}, "10000"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			num := dec.DecodeNumeric(tc.raw)
			assert.Equal(t, tc.expected, num.BigInt().String())
		})
	}
}

func TestDecodeNumericFailuresResolveToZero(t *testing.T) {
	dec := NewDecoder(slog.Default())

	testCases := []struct {
		name string
		raw  any
	}{
		{"fractional number", float64(1.5)},
		{"garbage string", "not-a-number"},
		{"hex field wrong type", map[string]any{"hex": float64(12)}},
		{"unparseable hex", map[string]any{"_hex": "0xZZZ"}},
		{"words wrong type", map[string]any{"words": "abc"}},
		{"unknown object shape", map[string]any{"foo": "bar"}},
		{"unsupported type", struct{}{}},
		{"oversized byte array", make([]byte, 32)},
		{"float beyond int64", float64(1e19)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			before := testutil.ToFloat64(promDecodeFailures)
			num := dec.DecodeNumeric(tc.raw)
			assert.True(t, num.IsZero(), "expected zero for %v", tc.raw)
			assert.Equal(t, before+1, testutil.ToFloat64(promDecodeFailures),
				"each malformed field must record exactly one failure")
		})
	}
}

func TestNumericConversions(t *testing.T) {
	dec := NewDecoder(slog.Default())

	num := dec.DecodeNumeric("18446744073709551616") // 2^64
	_, ok := num.Uint64()
	assert.False(t, ok, "2^64 must not fit a uint64")

	num = dec.DecodeNumeric(uint64(500))
	val, ok := num.Uint64()
	require.True(t, ok)
	assert.EqualValues(t, 500, val)
}

func TestDecodeStakeRecordBinary(t *testing.T) {
	dec := NewDecoder(slog.Default())
	owner := solana.NewWallet().PublicKey()
	referrer := solana.NewWallet().PublicKey()

	t.Run("missing account is empty record", func(t *testing.T) {
		rec, err := dec.DecodeStakeRecord(nil)
		require.NoError(t, err)
		assert.False(t, rec.Exists)
		assert.Zero(t, rec.AmountStaked)
	})

	t.Run("with referrer", func(t *testing.T) {
		original := StakeRecord{
			Owner:                owner,
			AmountStaked:         2_500_000_000,
			Rewards:              10_000,
			StakedAt:             1_700_000_000,
			LastClaimAt:          1_700_050_000,
			Referrer:             &referrer,
			ReferralCount:        3,
			TotalReferralRewards: 777,
		}
		rec, err := dec.DecodeStakeRecord(stakeAccountBytes(original))
		require.NoError(t, err)
		assert.True(t, rec.Exists)
		assert.Equal(t, owner, rec.Owner)
		assert.EqualValues(t, 2_500_000_000, rec.AmountStaked)
		assert.EqualValues(t, 1_700_050_000, rec.LastClaimAt)
		require.NotNil(t, rec.Referrer)
		assert.Equal(t, referrer, *rec.Referrer)
		assert.EqualValues(t, 3, rec.ReferralCount)
	})

	t.Run("without referrer", func(t *testing.T) {
		rec, err := dec.DecodeStakeRecord(stakeAccountBytes(StakeRecord{
			Owner: owner, AmountStaked: 1, StakedAt: 100,
		}))
		require.NoError(t, err)
		assert.Nil(t, rec.Referrer)
		assert.EqualValues(t, 1, rec.AmountStaked)
	})

	t.Run("discriminator mismatch", func(t *testing.T) {
		data := stakeAccountBytes(StakeRecord{Owner: owner})
		copy(data[:8], AccountDiscriminator("GlobalState"))
		_, err := dec.DecodeStakeRecord(data)
		assert.Error(t, err)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := dec.DecodeStakeRecord(stakeAccountBytes(StakeRecord{Owner: owner})[:40])
		assert.Error(t, err)
	})
}

func TestDecodeStakeRecordJSON(t *testing.T) {
	dec := NewDecoder(slog.Default())
	owner := solana.NewWallet().PublicKey()

	// mixed encodings in one payload, the way the remote API has actually
	// drifted across versions
	rec, err := dec.DecodeStakeRecord(map[string]any{
		"owner":         owner.String(),
		"stakedAmount":  map[string]any{"_hex": "0x3b9aca00"}, // 1000000000
		"rewards":       "250",
		"lastStakeTime": float64(1_700_000_000),
		"referralCount": map[string]any{"words": []any{float64(2)}},
	})
	require.NoError(t, err)
	assert.Equal(t, owner, rec.Owner)
	assert.EqualValues(t, 1_000_000_000, rec.AmountStaked)
	assert.EqualValues(t, 250, rec.Rewards)
	assert.EqualValues(t, 1_700_000_000, rec.StakedAt)
	assert.EqualValues(t, 2, rec.ReferralCount)

	t.Run("one bad column does not block the rest", func(t *testing.T) {
		rec, err := dec.DecodeStakeRecord(map[string]any{
			"stakedAmount": "garbage",
			"rewards":      float64(99),
		})
		require.NoError(t, err)
		assert.Zero(t, rec.AmountStaked)
		assert.EqualValues(t, 99, rec.Rewards)
	})
}

func TestDecodeVaultRecordBinary(t *testing.T) {
	dec := NewDecoder(slog.Default())
	original := VaultRecord{
		Authority:              solana.NewWallet().PublicKey(),
		TokenMint:              testTokenMint,
		Vault:                  solana.NewWallet().PublicKey(),
		RewardRateBps:          1200,
		UnlockDuration:         30 * 86_400,
		EarlyUnstakePenaltyBps: 500,
		MinStakeAmount:         1_000_000_000,
		ReferralRewardRateBps:  100,
		TotalStaked:            5_000_000_000_000,
		StakersCount:           321,
		RewardPool:             9_000_000_000,
		LastUpdateTime:         1_700_100_000,
		Bump:                   254,
	}
	data := vaultAccountBytes(original)
	require.Len(t, data, GlobalStateLen)

	rec, err := dec.DecodeVaultRecord(data)
	require.NoError(t, err)
	assert.True(t, rec.Exists)
	original.Exists = true
	assert.Equal(t, original, rec)

	t.Run("missing account is empty record", func(t *testing.T) {
		rec, err := dec.DecodeVaultRecord(nil)
		require.NoError(t, err)
		assert.False(t, rec.Exists)
	})
}
