package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"

	"github.com/hatmlabs/hatm-staker/internal/lib/misc"
	"github.com/hatmlabs/hatm-staker/internal/lib/sol"
	"github.com/hatmlabs/hatm-staker/internal/lib/staking"
)

func GetStakeCmdOpts() *cli.Command {
	return &cli.Command{
		Name:  "stake",
		Usage: "Stake, unstake and reward operations",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Stake an amount of HATM tokens",
				ArgsUsage: "<amount in tokens>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "referrer",
						Usage: "Wallet address of the referrer (only honored on first stake)",
					},
				},
				Action: stakeTokens,
			},
			{
				Name:      "remove",
				Usage:     "Unstake an amount of staked HATM tokens",
				ArgsUsage: "<amount in tokens>",
				Action:    unstakeTokens,
			},
			{
				Name:      "buy",
				Usage:     "Purchase HATM tokens and stake them in one transaction",
				ArgsUsage: "<amount in tokens>",
				Action:    purchaseAndStake,
			},
			{
				Name:   "claim",
				Usage:  "Claim accrued staking rewards to your token account",
				Action: claimRewards,
			},
			{
				Name:   "compound",
				Usage:  "Fold accrued rewards back into your staked amount",
				Action: compoundRewards,
			},
		},
	}
}

func stakeTokens(ctx context.Context, cmd *cli.Command) error {
	owner, err := App.requireOwner()
	if err != nil {
		return err
	}
	amount, err := amountArg(cmd)
	if err != nil {
		return err
	}
	var referrer *solana.PublicKey
	if refStr := cmd.String("referrer"); refStr != "" {
		ref, err := solana.PublicKeyFromBase58(refStr)
		if err != nil {
			return fmt.Errorf("invalid referrer address %q: %w", refStr, err)
		}
		referrer = &ref
	}
	if _, err := yesNo(fmt.Sprintf("Stake %s HATM from %s", sol.FormattedTokenAmount(amount), owner)); err != nil {
		return nil
	}
	intent, err := App.staker.Stake(ctx, owner, amount, referrer)
	if err != nil {
		return describeOpError("stake", err)
	}
	misc.Infof(App.logger, "staked %s HATM, final state:%s", sol.FormattedTokenAmount(amount), intent.State)
	return nil
}

func unstakeTokens(ctx context.Context, cmd *cli.Command) error {
	owner, err := App.requireOwner()
	if err != nil {
		return err
	}
	amount, err := amountArg(cmd)
	if err != nil {
		return err
	}
	// surface the penalty up front so nobody unstakes early by accident
	if snap, err := App.staker.State(ctx, owner); err == nil && snap.Vault.Exists {
		now := App.staker.Clock().Now()
		if penalty := staking.EarlyUnstakePenalty(snap.Stake, snap.Vault, amount, now); penalty > 0 {
			misc.Warnf(App.logger, "lock period not yet elapsed - an early-unstake penalty of %s HATM applies",
				sol.FormattedTokenAmount(penalty))
		}
	}
	if _, err := yesNo(fmt.Sprintf("Unstake %s HATM to %s", sol.FormattedTokenAmount(amount), owner)); err != nil {
		return nil
	}
	intent, err := App.staker.Unstake(ctx, owner, amount)
	if err != nil {
		return describeOpError("unstake", err)
	}
	misc.Infof(App.logger, "unstaked %s HATM, final state:%s", sol.FormattedTokenAmount(amount), intent.State)
	return nil
}

func purchaseAndStake(ctx context.Context, cmd *cli.Command) error {
	owner, err := App.requireOwner()
	if err != nil {
		return err
	}
	amount, err := amountArg(cmd)
	if err != nil {
		return err
	}
	if _, err := yesNo(fmt.Sprintf("Purchase and stake %s HATM for %s", sol.FormattedTokenAmount(amount), owner)); err != nil {
		return nil
	}
	intent, err := App.staker.PurchaseAndStake(ctx, owner, amount)
	if err != nil {
		return describeOpError("purchase-and-stake", err)
	}
	misc.Infof(App.logger, "purchased and staked %s HATM, final state:%s", sol.FormattedTokenAmount(amount), intent.State)
	return nil
}

func claimRewards(ctx context.Context, cmd *cli.Command) error {
	owner, err := App.requireOwner()
	if err != nil {
		return err
	}
	snap, err := App.staker.State(ctx, owner)
	if err != nil {
		return err
	}
	pending := staking.PendingRewards(snap.Stake, snap.Vault, App.staker.Clock().Now())
	if pending == 0 {
		misc.Infof(App.logger, "no rewards to claim")
		return nil
	}
	if _, err := yesNo(fmt.Sprintf("Claim %s HATM in rewards", sol.FormattedTokenAmount(pending))); err != nil {
		return nil
	}
	intent, err := App.staker.ClaimRewards(ctx, owner)
	if err != nil {
		return describeOpError("claim", err)
	}
	misc.Infof(App.logger, "rewards claimed, final state:%s", intent.State)
	return nil
}

func compoundRewards(ctx context.Context, cmd *cli.Command) error {
	owner, err := App.requireOwner()
	if err != nil {
		return err
	}
	snap, err := App.staker.State(ctx, owner)
	if err != nil {
		return err
	}
	pending := staking.PendingRewards(snap.Stake, snap.Vault, App.staker.Clock().Now())
	if pending == 0 {
		misc.Infof(App.logger, "no rewards to compound")
		return nil
	}
	if _, err := yesNo(fmt.Sprintf("Compound %s HATM in rewards into your stake", sol.FormattedTokenAmount(pending))); err != nil {
		return nil
	}
	intent, err := App.staker.CompoundRewards(ctx, owner)
	if err != nil {
		return describeOpError("compound", err)
	}
	misc.Infof(App.logger, "rewards compounded, final state:%s", intent.State)
	return nil
}

// amountArg parses the single positional token amount into base units.
func amountArg(cmd *cli.Command) (uint64, error) {
	if cmd.Args().Len() != 1 {
		return 0, fmt.Errorf("a single token amount argument is required")
	}
	tokens, err := strconv.ParseFloat(cmd.Args().First(), 64)
	if err != nil || tokens <= 0 {
		return 0, fmt.Errorf("invalid token amount:%s", cmd.Args().First())
	}
	return uint64(tokens * sol.BaseUnitsPerToken), nil
}

func describeOpError(op string, err error) error {
	if errors.Is(err, staking.ErrUserRejected) {
		misc.Infof(App.logger, "%s cancelled - signing declined", op)
		return nil
	}
	var onChain *staking.OnChainExecutionError
	if errors.As(err, &onChain) {
		return fmt.Errorf("%s transaction %s landed but the program rejected it: %v", op, onChain.Signature, onChain.Detail)
	}
	var rejected *staking.SubmissionRejectedError
	if errors.As(err, &rejected) {
		return fmt.Errorf("%s transaction was rejected by the node: %v", op, rejected.Err)
	}
	return err
}

func yesNo(prompt string) (string, error) {
	return (&promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
	}).Run()
}
