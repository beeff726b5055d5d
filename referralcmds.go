package main

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v3"

	"github.com/hatmlabs/hatm-staker/internal/lib/misc"
	"github.com/hatmlabs/hatm-staker/internal/lib/sol"
)

func GetReferralCmdOpts() *cli.Command {
	return &cli.Command{
		Name:  "referral",
		Usage: "Referral codes and earnings",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show your referral code and earnings",
				Action: showReferral,
			},
			{
				Name:  "register",
				Usage: "Register your wallet with the staking program, optionally crediting a referrer",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "referrer",
						Usage: "Wallet address of the referrer",
					},
				},
				Action: registerReferral,
			},
		},
	}
}

func showReferral(ctx context.Context, cmd *cli.Command) error {
	owner, err := App.requireOwner()
	if err != nil {
		return err
	}
	rec, err := App.staker.Referral(ctx, owner)
	if err != nil {
		return err
	}
	fmt.Printf("Referral code:    %s\n", rec.Code)
	fmt.Printf("Wallets referred: %d\n", rec.ReferredCount)
	fmt.Printf("Total earnings:   %s HATM\n", sol.FormattedTokenAmount(rec.TotalEarnings))
	fmt.Printf("Claimable:        %s HATM\n", sol.FormattedTokenAmount(rec.ClaimableRewards))
	return nil
}

func registerReferral(ctx context.Context, cmd *cli.Command) error {
	owner, err := App.requireOwner()
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
	intent, err := App.staker.RegisterReferral(ctx, owner, referrer)
	if err != nil {
		return describeOpError("register", err)
	}
	misc.Infof(App.logger, "wallet registered, final state:%s", intent.State)
	return nil
}
