package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hatmlabs/hatm-staker/internal/lib/misc"
	"github.com/hatmlabs/hatm-staker/internal/lib/sol"
	"github.com/hatmlabs/hatm-staker/internal/lib/staking"
)

func GetInfoCmdOpts() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show staking state",
		Commands: []*cli.Command{
			{
				Name:   "user",
				Usage:  "Show your stake, pending rewards and unlock time",
				Action: showUserInfo,
			},
			{
				Name:   "vault",
				Usage:  "Show global vault state and parameters",
				Action: showVaultInfo,
			},
			{
				Name:   "balance",
				Usage:  "Show your HATM token balance (via the remote API)",
				Action: showTokenBalance,
			},
			{
				Name:  "watch",
				Usage: "Poll and display staking state until interrupted",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "poll interval",
						Value: 30 * time.Second,
					},
				},
				Action: watchState,
			},
		},
	}
}

func showUserInfo(ctx context.Context, cmd *cli.Command) error {
	owner, err := App.requireOwner()
	if err != nil {
		return err
	}
	snap, err := App.staker.ForceRefresh(ctx, owner)
	if err != nil {
		// chain unreachable; the remote API keeps its own view
		if remote := App.staker.Remote(); remote != nil {
			stake, rerr := remote.StakingInfo(ctx, App.staker.Decoder(), owner)
			if rerr == nil {
				misc.Warnf(App.logger, "chain state unavailable, showing remote view: %v", err)
				printUserInfo(staking.Snapshot{Stake: stake})
				return nil
			}
		}
		return err
	}
	printUserInfo(snap)
	return nil
}

func printUserInfo(snap staking.Snapshot) {
	if !snap.Stake.Exists {
		fmt.Println("Wallet is not registered with the staking program - nothing staked yet")
		return
	}
	now := App.staker.Clock().Now()
	fmt.Printf("Staked:          %s HATM\n", sol.FormattedTokenAmount(snap.Stake.AmountStaked))
	fmt.Printf("Pending rewards: %s HATM\n", sol.FormattedTokenAmount(staking.PendingRewards(snap.Stake, snap.Vault, now)))
	if snap.Vault.Exists {
		if remaining := staking.TimeUntilUnlock(snap.Stake, snap.Vault.UnlockDuration, now); remaining != nil {
			fmt.Printf("Unlocks in:      %s\n", (time.Duration(*remaining) * time.Second).String())
		} else {
			fmt.Printf("Unlocks in:      unlocked\n")
		}
	}
	if snap.Stake.Referrer != nil {
		fmt.Printf("Referred by:     %s\n", snap.Stake.Referrer)
	}
}

func showVaultInfo(ctx context.Context, cmd *cli.Command) error {
	owner, err := App.requireOwner()
	if err != nil {
		return err
	}
	snap, err := App.staker.ForceRefresh(ctx, owner)
	if err != nil {
		return err
	}
	if !snap.Vault.Exists {
		return fmt.Errorf("global state account not found - is the program deployed on this network?")
	}
	v := snap.Vault
	fmt.Printf("Total staked:      %s HATM across %d staker(s)\n", sol.FormattedTokenAmount(v.TotalStaked), v.StakersCount)
	fmt.Printf("Reward pool:       %s HATM\n", sol.FormattedTokenAmount(v.RewardPool))
	fmt.Printf("Reward rate:       %.2f%% APY\n", float64(v.RewardRateBps)/100)
	fmt.Printf("Referral rate:     %.2f%%\n", float64(v.ReferralRewardRateBps)/100)
	fmt.Printf("Lock duration:     %s\n", (time.Duration(v.UnlockDuration) * time.Second).String())
	fmt.Printf("Early-exit fee:    %.2f%%\n", float64(v.EarlyUnstakePenaltyBps)/100)
	fmt.Printf("Minimum stake:     %s HATM\n", sol.FormattedTokenAmount(v.MinStakeAmount))
	return nil
}

func showTokenBalance(ctx context.Context, cmd *cli.Command) error {
	owner, err := App.requireOwner()
	if err != nil {
		return err
	}
	remote := App.staker.Remote()
	if remote == nil {
		return fmt.Errorf("no remote API configured for this network")
	}
	balance, err := remote.TokenBalance(ctx, App.staker.Decoder(), owner)
	if err != nil {
		return err
	}
	fmt.Printf("Token balance: %s HATM\n", sol.FormattedTokenAmount(balance))
	return nil
}

// watchState re-fetches and prints state on an interval until SIGINT/SIGTERM.
// This is the polling loop a UI front-end would otherwise drive.
func watchState(ctx context.Context, cmd *cli.Command) error {
	owner, err := App.requireOwner()
	if err != nil {
		return err
	}
	interval := cmd.Duration("interval")

	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		for {
			snap, err := App.staker.ForceRefresh(ctx, owner)
			if err != nil {
				misc.Warnf(App.logger, "state refresh failed, will retry: %v", err)
			} else {
				printUserInfo(snap)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
		}
	}()

	misc.Infof(App.logger, "exiting (%v)", <-errc) // wait for termination signal
	return nil
}
