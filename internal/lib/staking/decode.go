package staking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/hatmlabs/hatm-staker/internal/lib/misc"
)

// Numeric is an arbitrary-precision integer normalized from whichever
// encoding the ledger stack produced - a plain number, a big-integer-like
// object, a word-array decomposition, a byte array, or a string.
type Numeric struct {
	value *big.Int
}

func (n Numeric) BigInt() *big.Int {
	if n.value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(n.value)
}

func (n Numeric) String() string {
	return n.BigInt().String()
}

func (n Numeric) IsZero() bool {
	return n.value == nil || n.value.Sign() == 0
}

// Uint64 returns the exact integer value. The second return is false when
// the value doesn't fit, which callers treat the same as a decode failure.
func (n Numeric) Uint64() (uint64, bool) {
	if n.value == nil {
		return 0, true
	}
	if !n.value.IsUint64() {
		return 0, false
	}
	return n.value.Uint64(), true
}

func (n Numeric) Int64() (int64, bool) {
	if n.value == nil {
		return 0, true
	}
	if !n.value.IsInt64() {
		return 0, false
	}
	return n.value.Int64(), true
}

// Decoder normalizes raw account payloads into typed records. Decode
// failures on individual numeric fields are recorded (log + metric) and
// resolved to zero rather than propagated - a single malformed column must
// not block callers that still need to render defaults.
type Decoder struct {
	log *slog.Logger
}

func NewDecoder(log *slog.Logger) *Decoder {
	return &Decoder{log: log}
}

// DecodeNumeric attempts, in order: direct numeric/string coercion,
// extraction of an embedded big-integer field, reconstruction from a
// word-array decomposition, byte-array assembly, and a generic Stringer
// fallback. A step is only skipped when its shape doesn't apply - a shape
// that applies but can't be parsed is a hard failure, resolved to zero with
// exactly one recorded diagnostic.
func (d *Decoder) DecodeNumeric(raw any) Numeric {
	val, err := classifyNumeric(raw)
	if err != nil {
		misc.Warnf(d.log, "numeric decode failure (defaulting to 0): %v", err)
		promDecodeFailures.Inc()
		return Numeric{}
	}
	return Numeric{value: val}
}

func classifyNumeric(raw any) (*big.Int, error) {
	switch v := raw.(type) {
	case nil:
		// absent field, zero value by definition
		return new(big.Int), nil

	// strategy 1: direct numeric / string coercion
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-integral number %v", v)
		}
		// int64(v) is undefined once v leaves the int64 range.
		if v >= float64(1<<63) || v < -float64(1<<63) {
			return nil, fmt.Errorf("number %v exceeds the int64 range", v)
		}
		return new(big.Int).SetInt64(int64(v)), nil
	case json.Number:
		return parseNumericString(v.String())
	case string:
		return parseNumericString(v)
	case *big.Int:
		return new(big.Int).Set(v), nil

	// byte-array representations (little-endian, as serialized on chain)
	case []byte:
		return bytesToBigInt(v)
	case []any:
		buf := make([]byte, 0, len(v))
		for i, el := range v {
			f, ok := el.(float64)
			if !ok || f != math.Trunc(f) || f < 0 || f > 255 {
				return nil, fmt.Errorf("byte array element %d is not a byte: %v", i, el)
			}
			buf = append(buf, byte(f))
		}
		return bytesToBigInt(buf)

	case map[string]any:
		return classifyNumericObject(v)
	}

	// strategy 4 applies last: anything that can render itself as a string
	if s, ok := raw.(fmt.Stringer); ok {
		return parseNumericString(s.String())
	}
	return nil, fmt.Errorf("unrecognized numeric encoding %T", raw)
}

// classifyNumericObject handles the object shapes ledger client libraries
// have produced across versions. Field presence decides which strategy
// applies; a present field that fails to parse is an error, not a
// fallthrough.
func classifyNumericObject(obj map[string]any) (*big.Int, error) {
	// strategy 2: embedded big-integer field
	for _, key := range []string{"hex", "_hex"} {
		if hexVal, present := obj[key]; present {
			s, ok := hexVal.(string)
			if !ok {
				return nil, fmt.Errorf("big-integer field %q is %T, not string", key, hexVal)
			}
			s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
			val, ok := new(big.Int).SetString(s, 16)
			if !ok {
				return nil, fmt.Errorf("big-integer field %q is unparseable: %q", key, s)
			}
			return val, nil
		}
	}
	if inner, present := obj["value"]; present {
		return classifyNumeric(inner)
	}

	// strategy 3: word-array decomposition (26-bit limbs, least significant
	// first - the layout bn.js serializes to JSON)
	if wordsVal, present := obj["words"]; present {
		words, ok := wordsVal.([]any)
		if !ok {
			return nil, fmt.Errorf("words field is %T, not array", wordsVal)
		}
		length := len(words)
		if lengthVal, ok := obj["length"].(float64); ok && int(lengthVal) <= len(words) {
			length = int(lengthVal)
		}
		result := new(big.Int)
		for i := length - 1; i >= 0; i-- {
			f, ok := words[i].(float64)
			if !ok || f != math.Trunc(f) || f < 0 {
				return nil, fmt.Errorf("word %d is not a non-negative integer: %v", i, words[i])
			}
			result.Lsh(result, 26)
			result.Or(result, big.NewInt(int64(f)))
		}
		if neg, ok := obj["negative"].(float64); ok && neg != 0 {
			result.Neg(result)
		}
		return result, nil
	}

	return nil, fmt.Errorf("unrecognized numeric object shape (keys: %v)", mapKeys(obj))
}

func parseNumericString(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty numeric string")
	}
	val, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("unparseable numeric string %q", s)
	}
	return val, nil
}

func bytesToBigInt(buf []byte) (*big.Int, error) {
	if len(buf) > 16 {
		return nil, fmt.Errorf("byte-array numeric too wide: %d bytes", len(buf))
	}
	// little-endian on the wire; big.Int wants big-endian
	reversed := make([]byte, len(buf))
	for i, b := range buf {
		reversed[len(buf)-1-i] = b
	}
	return new(big.Int).SetBytes(reversed), nil
}

func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// DecodeStakeRecord normalizes a raw user staking account. nil raw data
// means the account doesn't exist on the ledger - the expected steady state
// for a never-staked wallet - and maps to the zero record, not an error.
// Binary payloads are the program's serialized account; map payloads arrive
// from the remote staking API's JSON.
func (d *Decoder) DecodeStakeRecord(raw any) (StakeRecord, error) {
	switch v := raw.(type) {
	case nil:
		return StakeRecord{}, nil
	case []byte:
		if len(v) == 0 {
			return StakeRecord{}, nil
		}
		return d.decodeStakeBinary(v)
	case map[string]any:
		return d.decodeStakeJSON(v), nil
	}
	return StakeRecord{}, fmt.Errorf("unsupported stake record payload %T", raw)
}

func (d *Decoder) decodeStakeBinary(data []byte) (StakeRecord, error) {
	if len(data) < userInfoMinLen {
		return StakeRecord{}, fmt.Errorf("user account data truncated: %d bytes", len(data))
	}
	if !bytes.Equal(data[:8], AccountDiscriminator("UserInfo")) {
		return StakeRecord{}, fmt.Errorf("user account discriminator mismatch")
	}
	dec := bin.NewBinDecoder(data[8:])

	var rec StakeRecord
	ownerBytes, err := dec.ReadBytes(32)
	if err != nil {
		return StakeRecord{}, fmt.Errorf("reading owner: %w", err)
	}
	rec.Owner = solana.PublicKeyFromBytes(ownerBytes)
	if rec.AmountStaked, err = dec.ReadUint64(bin.LE); err != nil {
		return StakeRecord{}, fmt.Errorf("reading staked amount: %w", err)
	}
	if rec.Rewards, err = dec.ReadUint64(bin.LE); err != nil {
		return StakeRecord{}, fmt.Errorf("reading rewards: %w", err)
	}
	if rec.StakedAt, err = dec.ReadInt64(bin.LE); err != nil {
		return StakeRecord{}, fmt.Errorf("reading stake time: %w", err)
	}
	if rec.LastClaimAt, err = dec.ReadInt64(bin.LE); err != nil {
		return StakeRecord{}, fmt.Errorf("reading claim time: %w", err)
	}
	hasReferrer, err := dec.ReadByte()
	if err != nil {
		return StakeRecord{}, fmt.Errorf("reading referrer flag: %w", err)
	}
	if hasReferrer != 0 {
		// option fields pack their payload right after the flag byte; the
		// account's allocated space just leaves padding at the tail when None
		refBytes, err := dec.ReadBytes(32)
		if err != nil {
			return StakeRecord{}, fmt.Errorf("reading referrer: %w", err)
		}
		ref := solana.PublicKeyFromBytes(refBytes)
		rec.Referrer = &ref
	}
	if rec.ReferralCount, err = dec.ReadUint64(bin.LE); err != nil {
		return StakeRecord{}, fmt.Errorf("reading referral count: %w", err)
	}
	if rec.TotalReferralRewards, err = dec.ReadUint64(bin.LE); err != nil {
		return StakeRecord{}, fmt.Errorf("reading referral rewards: %w", err)
	}
	rec.Exists = true
	return rec, nil
}

// decodeStakeJSON tolerates the numeric-encoding drift the remote API has
// shown - every numeric column goes through DecodeNumeric and defaults to
// zero rather than failing the whole record.
func (d *Decoder) decodeStakeJSON(obj map[string]any) StakeRecord {
	rec := StakeRecord{Exists: true}
	if ownerStr, ok := jsonField(obj, "owner").(string); ok {
		if pk, err := solana.PublicKeyFromBase58(ownerStr); err == nil {
			rec.Owner = pk
		}
	}
	rec.AmountStaked = d.uint64Field(obj, "stakedAmount", "staked_amount", "amountStaked")
	rec.Rewards = d.uint64Field(obj, "rewards", "pendingRewards")
	rec.StakedAt = d.int64Field(obj, "lastStakeTime", "last_stake_time", "stakedAt")
	rec.LastClaimAt = d.int64Field(obj, "lastClaimTime", "last_claim_time", "lastClaimAt")
	if refStr, ok := jsonField(obj, "referrer").(string); ok && refStr != "" {
		if pk, err := solana.PublicKeyFromBase58(refStr); err == nil {
			rec.Referrer = &pk
		}
	}
	rec.ReferralCount = d.uint64Field(obj, "referralCount", "referral_count")
	rec.TotalReferralRewards = d.uint64Field(obj, "totalReferralRewards", "total_referral_rewards")
	return rec
}

// DecodeVaultRecord normalizes the deployment's global state account.
// Same tolerance rules as DecodeStakeRecord.
func (d *Decoder) DecodeVaultRecord(raw any) (VaultRecord, error) {
	switch v := raw.(type) {
	case nil:
		return VaultRecord{}, nil
	case []byte:
		if len(v) == 0 {
			return VaultRecord{}, nil
		}
		return d.decodeVaultBinary(v)
	case map[string]any:
		return d.decodeVaultJSON(v), nil
	}
	return VaultRecord{}, fmt.Errorf("unsupported vault record payload %T", raw)
}

func (d *Decoder) decodeVaultBinary(data []byte) (VaultRecord, error) {
	if len(data) < GlobalStateLen {
		return VaultRecord{}, fmt.Errorf("global state data truncated: %d bytes", len(data))
	}
	if !bytes.Equal(data[:8], AccountDiscriminator("GlobalState")) {
		return VaultRecord{}, fmt.Errorf("global state discriminator mismatch")
	}
	dec := bin.NewBinDecoder(data[8:])

	var rec VaultRecord
	for _, target := range []*solana.PublicKey{&rec.Authority, &rec.TokenMint, &rec.Vault} {
		keyBytes, err := dec.ReadBytes(32)
		if err != nil {
			return VaultRecord{}, fmt.Errorf("reading vault keys: %w", err)
		}
		*target = solana.PublicKeyFromBytes(keyBytes)
	}
	var err error
	if rec.RewardRateBps, err = dec.ReadUint64(bin.LE); err != nil {
		return VaultRecord{}, fmt.Errorf("reading reward rate: %w", err)
	}
	if rec.UnlockDuration, err = dec.ReadInt64(bin.LE); err != nil {
		return VaultRecord{}, fmt.Errorf("reading unlock duration: %w", err)
	}
	if rec.EarlyUnstakePenaltyBps, err = dec.ReadUint64(bin.LE); err != nil {
		return VaultRecord{}, fmt.Errorf("reading penalty: %w", err)
	}
	if rec.MinStakeAmount, err = dec.ReadUint64(bin.LE); err != nil {
		return VaultRecord{}, fmt.Errorf("reading min stake: %w", err)
	}
	if rec.ReferralRewardRateBps, err = dec.ReadUint64(bin.LE); err != nil {
		return VaultRecord{}, fmt.Errorf("reading referral rate: %w", err)
	}
	if rec.TotalStaked, err = dec.ReadUint64(bin.LE); err != nil {
		return VaultRecord{}, fmt.Errorf("reading total staked: %w", err)
	}
	if rec.StakersCount, err = dec.ReadUint64(bin.LE); err != nil {
		return VaultRecord{}, fmt.Errorf("reading stakers count: %w", err)
	}
	if rec.RewardPool, err = dec.ReadUint64(bin.LE); err != nil {
		return VaultRecord{}, fmt.Errorf("reading reward pool: %w", err)
	}
	if rec.LastUpdateTime, err = dec.ReadInt64(bin.LE); err != nil {
		return VaultRecord{}, fmt.Errorf("reading update time: %w", err)
	}
	if rec.Bump, err = dec.ReadByte(); err != nil {
		return VaultRecord{}, fmt.Errorf("reading bump: %w", err)
	}
	rec.Exists = true
	return rec, nil
}

func (d *Decoder) decodeVaultJSON(obj map[string]any) VaultRecord {
	rec := VaultRecord{Exists: true}
	rec.RewardRateBps = d.uint64Field(obj, "rewardRate", "reward_rate", "apyBasisPoints")
	rec.UnlockDuration = d.int64Field(obj, "unlockDuration", "unlock_duration")
	rec.EarlyUnstakePenaltyBps = d.uint64Field(obj, "earlyUnstakePenalty", "early_unstake_penalty")
	rec.MinStakeAmount = d.uint64Field(obj, "minStakeAmount", "min_stake_amount")
	rec.ReferralRewardRateBps = d.uint64Field(obj, "referralRewardRate", "referral_reward_rate")
	rec.TotalStaked = d.uint64Field(obj, "totalStaked", "total_staked")
	rec.StakersCount = d.uint64Field(obj, "stakersCount", "stakers_count")
	rec.RewardPool = d.uint64Field(obj, "rewardPool", "reward_pool")
	rec.LastUpdateTime = d.int64Field(obj, "lastUpdateTime", "last_update_time")
	return rec
}

func (d *Decoder) uint64Field(obj map[string]any, names ...string) uint64 {
	raw := firstField(obj, names...)
	num := d.DecodeNumeric(raw)
	val, ok := num.Uint64()
	if !ok {
		misc.Warnf(d.log, "numeric field %s out of uint64 range (defaulting to 0)", names[0])
		promDecodeFailures.Inc()
		return 0
	}
	return val
}

func (d *Decoder) int64Field(obj map[string]any, names ...string) int64 {
	raw := firstField(obj, names...)
	num := d.DecodeNumeric(raw)
	val, ok := num.Int64()
	if !ok {
		misc.Warnf(d.log, "numeric field %s out of int64 range (defaulting to 0)", names[0])
		promDecodeFailures.Inc()
		return 0
	}
	return val
}

func firstField(obj map[string]any, names ...string) any {
	for _, name := range names {
		if v, present := obj[name]; present {
			return v
		}
	}
	return nil
}

func jsonField(obj map[string]any, name string) any {
	return obj[name]
}
