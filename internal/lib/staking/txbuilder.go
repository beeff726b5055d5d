package staking

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"

	"github.com/hatmlabs/hatm-staker/internal/lib/misc"
	"github.com/hatmlabs/hatm-staker/internal/lib/sol"
)

// BuildStake assembles the instruction list for staking 'amount' base units.
// A register_user instruction is prepended when the owner has no stake
// account yet (payer = owner), with the optional referrer recorded at
// registration time.
func (c *Client) BuildStake(ctx context.Context, owner solana.PublicKey, amount uint64, referrer *solana.PublicKey) (*TransactionIntent, error) {
	if amount == 0 {
		return nil, &InvalidAmountError{Op: string(KindStake), Amount: amount, Reason: "amount must be positive"}
	}
	// min-stake check runs against whatever snapshot we already hold; a cold
	// cache means the check happens on chain instead
	if snap, ok := c.cache.get(owner); ok && snap.Vault.Exists && amount < snap.Vault.MinStakeAmount {
		return nil, &InvalidAmountError{
			Op: string(KindStake), Amount: amount,
			Reason: fmt.Sprintf("below minimum stake of %s", sol.FormattedTokenAmount(snap.Vault.MinStakeAmount)),
		}
	}

	accts, err := c.resolveAccounts(ctx, owner)
	if err != nil {
		return nil, err
	}
	intent := &TransactionIntent{Kind: KindStake, Owner: owner, Amount: amount, State: StateBuilt}
	if !accts.vaultKnown {
		return c.degrade(intent, "vault token account unknown - global state unreadable"), nil
	}

	var instructions []solana.Instruction
	if !accts.userInfoExists {
		instructions = append(instructions, c.registerUserInstruction(owner, accts.userInfo, referrer))
	}
	data := InstructionDiscriminator(InstrStake)
	data = binary.LittleEndian.AppendUint64(data, amount)
	instructions = append(instructions, solana.NewInstruction(
		c.ProgramID,
		solana.AccountMetaSlice{
			solana.Meta(owner).SIGNER().WRITE(),
			solana.Meta(accts.globalState).WRITE(),
			solana.Meta(accts.userInfo).WRITE(),
			solana.Meta(accts.userTokenAccount).WRITE(),
			solana.Meta(accts.vaultTokenAccount).WRITE(),
			solana.Meta(solana.TokenProgramID),
			solana.Meta(solana.SystemProgramID),
		},
		data,
	))
	return c.finishIntent(ctx, intent, instructions)
}

// BuildUnstake assembles the unstake instruction list. The amount is
// validated against the cached stake record before any network interaction.
func (c *Client) BuildUnstake(ctx context.Context, owner solana.PublicKey, amount uint64) (*TransactionIntent, error) {
	if amount == 0 {
		return nil, &InvalidAmountError{Op: string(KindUnstake), Amount: amount, Reason: "amount must be positive"}
	}
	if snap, ok := c.cache.get(owner); ok && amount > snap.Stake.AmountStaked {
		return nil, &InvalidAmountError{
			Op: string(KindUnstake), Amount: amount,
			Reason: fmt.Sprintf("exceeds staked balance of %s", sol.FormattedTokenAmount(snap.Stake.AmountStaked)),
		}
	}

	accts, err := c.resolveAccounts(ctx, owner)
	if err != nil {
		return nil, err
	}
	if accts.stake.Exists && amount > accts.stake.AmountStaked {
		return nil, &InvalidAmountError{
			Op: string(KindUnstake), Amount: amount,
			Reason: fmt.Sprintf("exceeds staked balance of %s", sol.FormattedTokenAmount(accts.stake.AmountStaked)),
		}
	}
	intent := &TransactionIntent{Kind: KindUnstake, Owner: owner, Amount: amount, State: StateBuilt}
	if !accts.vaultKnown {
		return c.degrade(intent, "vault token account unknown - global state unreadable"), nil
	}

	var instructions []solana.Instruction
	if !accts.userTokenExists {
		// tokens need somewhere to land
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(owner, owner, c.TokenMint).Build())
	}
	data := InstructionDiscriminator(InstrUnstake)
	data = binary.LittleEndian.AppendUint64(data, amount)
	instructions = append(instructions, solana.NewInstruction(
		c.ProgramID,
		solana.AccountMetaSlice{
			solana.Meta(owner).SIGNER().WRITE(),
			solana.Meta(accts.globalState).WRITE(),
			solana.Meta(accts.userInfo).WRITE(),
			solana.Meta(accts.userTokenAccount).WRITE(),
			solana.Meta(accts.vaultTokenAccount).WRITE(),
			solana.Meta(solana.TokenProgramID),
			solana.Meta(solana.SystemProgramID),
		},
		data,
	))
	return c.finishIntent(ctx, intent, instructions)
}

// BuildClaim assembles the claim-rewards instruction list.
func (c *Client) BuildClaim(ctx context.Context, owner solana.PublicKey) (*TransactionIntent, error) {
	accts, err := c.resolveAccounts(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !accts.userInfoExists {
		return nil, fmt.Errorf("wallet %s has no stake account", owner)
	}
	intent := &TransactionIntent{Kind: KindClaim, Owner: owner, State: StateBuilt}
	if !accts.vaultKnown {
		return c.degrade(intent, "vault token account unknown - global state unreadable"), nil
	}

	var instructions []solana.Instruction
	if !accts.userTokenExists {
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(owner, owner, c.TokenMint).Build())
	}
	instructions = append(instructions, solana.NewInstruction(
		c.ProgramID,
		solana.AccountMetaSlice{
			solana.Meta(owner).SIGNER().WRITE(),
			solana.Meta(accts.globalState).WRITE(),
			solana.Meta(accts.userInfo).WRITE(),
			solana.Meta(accts.userTokenAccount).WRITE(),
			solana.Meta(accts.vaultTokenAccount).WRITE(),
			solana.Meta(solana.TokenProgramID),
			solana.Meta(solana.SystemProgramID),
		},
		InstructionDiscriminator(InstrClaimRewards),
	))
	return c.finishIntent(ctx, intent, instructions)
}

// BuildCompound folds pending rewards back into the staked amount.
func (c *Client) BuildCompound(ctx context.Context, owner solana.PublicKey) (*TransactionIntent, error) {
	accts, err := c.resolveAccounts(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !accts.userInfoExists {
		return nil, fmt.Errorf("wallet %s has no stake account", owner)
	}
	intent := &TransactionIntent{Kind: KindCompound, Owner: owner, State: StateBuilt}
	instructions := []solana.Instruction{solana.NewInstruction(
		c.ProgramID,
		solana.AccountMetaSlice{
			solana.Meta(owner).SIGNER().WRITE(),
			solana.Meta(accts.globalState).WRITE(),
			solana.Meta(accts.userInfo).WRITE(),
			solana.Meta(solana.SystemProgramID),
		},
		InstructionDiscriminator(InstrCompoundRewards),
	)}
	return c.finishIntent(ctx, intent, instructions)
}

// BuildRegisterReferral registers the owner's stake account with an
// optional referrer, independent of any stake.
func (c *Client) BuildRegisterReferral(ctx context.Context, owner solana.PublicKey, referrer *solana.PublicKey) (*TransactionIntent, error) {
	if referrer != nil && referrer.Equals(owner) {
		return nil, &InvalidSeedError{Label: SeedUserInfo, Reason: "cannot refer yourself"}
	}
	accts, err := c.resolveAccounts(ctx, owner)
	if err != nil {
		return nil, err
	}
	if accts.userInfoExists {
		return nil, fmt.Errorf("wallet %s is already registered", owner)
	}
	intent := &TransactionIntent{Kind: KindRegisterReferral, Owner: owner, State: StateBuilt}
	instructions := []solana.Instruction{c.registerUserInstruction(owner, accts.userInfo, referrer)}
	return c.finishIntent(ctx, intent, instructions)
}

func (c *Client) registerUserInstruction(owner, userInfo solana.PublicKey, referrer *solana.PublicKey) solana.Instruction {
	data := InstructionDiscriminator(InstrRegisterUser)
	if referrer != nil {
		data = append(data, 1)
		data = append(data, referrer.Bytes()...)
	} else {
		data = append(data, 0)
	}
	return solana.NewInstruction(
		c.ProgramID,
		solana.AccountMetaSlice{
			solana.Meta(owner).SIGNER().WRITE(),
			solana.Meta(userInfo).WRITE(),
			solana.Meta(solana.SystemProgramID),
			solana.Meta(solana.SysVarRentPubkey),
		},
		data,
	)
}

// resolvedAccounts carries everything the builders need to decide on
// conditional creation steps.
type resolvedAccounts struct {
	globalState       solana.PublicKey
	userInfo          solana.PublicKey
	userTokenAccount  solana.PublicKey
	vaultTokenAccount solana.PublicKey

	userInfoExists  bool
	userTokenExists bool
	vaultKnown      bool

	stake StakeRecord
	vault VaultRecord
}

// resolveAccounts derives every address an operation can touch and checks
// existence of the ones instructions will write to.
func (c *Client) resolveAccounts(ctx context.Context, owner solana.PublicKey) (resolvedAccounts, error) {
	var accts resolvedAccounts
	var err error
	if accts.globalState, err = GlobalStateAddress(c.ProgramID); err != nil {
		return accts, err
	}
	if accts.userInfo, err = UserInfoAddress(c.ProgramID, owner); err != nil {
		return accts, err
	}
	accts.userTokenAccount, _, err = solana.FindAssociatedTokenAddress(owner, c.TokenMint)
	if err != nil {
		return accts, &InvalidSeedError{Label: "associated-token", Reason: err.Error()}
	}

	snap, err := c.State(ctx, owner)
	if err != nil {
		return accts, err
	}
	accts.stake = snap.Stake
	accts.vault = snap.Vault
	accts.userInfoExists = snap.Stake.Exists
	accts.vaultKnown = snap.Vault.Exists && !snap.Vault.Vault.IsZero()
	if accts.vaultKnown {
		accts.vaultTokenAccount = snap.Vault.Vault
	}

	tokenData, err := sol.GetAccountDataIfExists(ctx, c.chain, accts.userTokenAccount)
	if err != nil {
		return accts, err
	}
	accts.userTokenExists = tokenData != nil
	return accts, nil
}

// finishIntent attaches a freshly fetched blockhash and the fee payer as the
// last step before returning, keeping the staleness window between
// construction and submission as small as possible.
func (c *Client) finishIntent(ctx context.Context, intent *TransactionIntent, instructions []solana.Instruction) (*TransactionIntent, error) {
	blockhash, lastValid, err := sol.LatestBlockhash(ctx, c.Logger, c.chain)
	if err != nil {
		return nil, &TransientSubmissionError{Stage: "blockhash fetch", Err: err}
	}
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(intent.Owner))
	if err != nil {
		return nil, fmt.Errorf("assembling transaction: %w", err)
	}
	intent.Transaction = tx
	intent.Blockhash = blockhash
	intent.LastValidBlockHeight = lastValid
	for _, instr := range instructions {
		for _, meta := range instr.Accounts() {
			intent.Accounts = append(intent.Accounts, meta.PublicKey)
		}
	}
	misc.Debugf(c.Logger, "built %s intent for %s with %d instruction(s)", intent.Kind, intent.Owner, len(instructions))
	return intent, nil
}

func (c *Client) degrade(intent *TransactionIntent, reason string) *TransactionIntent {
	misc.Warnf(c.Logger, "degrading %s intent for remote construction: %s", intent.Kind, reason)
	intent.Degraded = true
	intent.DegradedReason = reason
	return intent
}
