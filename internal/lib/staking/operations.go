package staking

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Stake stakes 'amount' base units for the owner, registering the wallet
// (with the optional referrer) first when needed. Blocks any other mutating
// operation for the same wallet until it reaches a terminal state.
func (c *Client) Stake(ctx context.Context, owner solana.PublicKey, amount uint64, referrer *solana.PublicKey) (*TransactionIntent, error) {
	defer c.lockIdentity(owner)()
	intent, err := c.BuildStake(ctx, owner, amount, referrer)
	if err != nil {
		return nil, err
	}
	return c.runIntent(ctx, intent)
}

// Unstake withdraws 'amount' base units of staked tokens back to the
// owner's token account.
func (c *Client) Unstake(ctx context.Context, owner solana.PublicKey, amount uint64) (*TransactionIntent, error) {
	defer c.lockIdentity(owner)()
	intent, err := c.BuildUnstake(ctx, owner, amount)
	if err != nil {
		return nil, err
	}
	return c.runIntent(ctx, intent)
}

// ClaimRewards transfers the owner's accrued rewards to their token account.
func (c *Client) ClaimRewards(ctx context.Context, owner solana.PublicKey) (*TransactionIntent, error) {
	defer c.lockIdentity(owner)()
	intent, err := c.BuildClaim(ctx, owner)
	if err != nil {
		return nil, err
	}
	return c.runIntent(ctx, intent)
}

// CompoundRewards folds the owner's accrued rewards back into their staked
// amount without a token transfer.
func (c *Client) CompoundRewards(ctx context.Context, owner solana.PublicKey) (*TransactionIntent, error) {
	defer c.lockIdentity(owner)()
	intent, err := c.BuildCompound(ctx, owner)
	if err != nil {
		return nil, err
	}
	return c.runIntent(ctx, intent)
}

// RegisterReferral creates the owner's stake account with an optional
// referrer recorded, without staking anything.
func (c *Client) RegisterReferral(ctx context.Context, owner solana.PublicKey, referrer *solana.PublicKey) (*TransactionIntent, error) {
	defer c.lockIdentity(owner)()
	intent, err := c.BuildRegisterReferral(ctx, owner, referrer)
	if err != nil {
		return nil, err
	}
	return c.runIntent(ctx, intent)
}

// PurchaseAndStake buys 'amount' base units of the token and stakes them in
// one operation. Swap routing happens server-side, so the transaction is
// always remote-constructed and only signed locally.
func (c *Client) PurchaseAndStake(ctx context.Context, owner solana.PublicKey, amount uint64) (*TransactionIntent, error) {
	if amount == 0 {
		return nil, &InvalidAmountError{Op: string(KindPurchaseStake), Amount: amount, Reason: "amount must be positive"}
	}
	defer c.lockIdentity(owner)()
	intent := &TransactionIntent{
		Kind:           KindPurchaseStake,
		Owner:          owner,
		Amount:         amount,
		State:          StateBuilt,
		Degraded:       true,
		DegradedReason: "swap routing is server-side",
	}
	return c.runIntent(ctx, intent)
}

func (c *Client) runIntent(ctx context.Context, intent *TransactionIntent) (*TransactionIntent, error) {
	if _, err := c.SubmitIntent(ctx, intent); err != nil {
		return intent, err
	}
	return intent, nil
}
