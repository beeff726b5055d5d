package staking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/ssgreg/repeat"

	"github.com/hatmlabs/hatm-staker/internal/lib/misc"
	"github.com/hatmlabs/hatm-staker/internal/lib/sol"
)

const (
	confirmMaxTries   = 20
	confirmPollDelay  = 800 * time.Millisecond
	errSigNotYetFound = "signature not found yet"
)

// SubmitIntent drives a built intent through sign, submit and confirm.
// Submission is strict first (full preflight simulation), retried once
// relaxed on transient failure, and handed to the remote API only when
// local submission is exhausted. Degraded intents skip local submission
// entirely.
func (c *Client) SubmitIntent(ctx context.Context, intent *TransactionIntent) (solana.Signature, error) {
	if intent.Degraded {
		misc.Infof(c.Logger, "submitting degraded %s intent remotely: %s", intent.Kind, intent.DegradedReason)
		return c.submitRemote(ctx, intent)
	}

	if err := c.signIntent(ctx, intent, "local signature"); err != nil {
		return solana.Signature{}, err
	}

	sig, err := c.chain.SendTransactionWithOpts(ctx, intent.Transaction, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err == nil {
		intent.transition(StateSubmitted, "strict submission accepted", c.clock.Now())
		return c.confirmSignature(ctx, intent, sig)
	}
	if !isTransientSubmitError(err) {
		intent.transition(StateFailed, "submission rejected", c.clock.Now())
		return solana.Signature{}, &SubmissionRejectedError{Err: err}
	}

	// Transient failure: refresh the blockhash (the old one may be the
	// problem), re-sign, and retry once with preflight skipped.
	promSubmitRetries.Inc()
	misc.Warnf(c.Logger, "strict submission of %s failed transiently, retrying relaxed: %v", intent.Kind, err)
	if err := c.refreshBlockhash(ctx, intent); err != nil {
		return solana.Signature{}, err
	}
	if err := c.signIntent(ctx, intent, "re-sign with fresh blockhash"); err != nil {
		return solana.Signature{}, err
	}
	sig, err = c.chain.SendTransactionWithOpts(ctx, intent.Transaction, rpc.TransactionOpts{
		SkipPreflight: true,
	})
	if err == nil {
		intent.transition(StateSubmitted, "relaxed submission accepted", c.clock.Now())
		return c.confirmSignature(ctx, intent, sig)
	}

	misc.Warnf(c.Logger, "local submission of %s exhausted: %v", intent.Kind, err)
	intent.transition(StateSubmitted, "local submission exhausted, falling back to remote", c.clock.Now())
	return c.submitRemote(ctx, intent)
}

func (c *Client) signIntent(ctx context.Context, intent *TransactionIntent, reason string) error {
	err := c.signer.SignWithAccount(ctx, intent.Transaction, intent.Owner)
	if err != nil {
		if errors.Is(err, sol.ErrSigningDeclined) {
			intent.transition(StateFailed, "signing declined", c.clock.Now())
			return ErrUserRejected
		}
		intent.transition(StateFailed, "signing failed", c.clock.Now())
		return fmt.Errorf("signing %s transaction: %w", intent.Kind, err)
	}
	intent.transition(StateSigned, reason, c.clock.Now())
	return nil
}

func (c *Client) refreshBlockhash(ctx context.Context, intent *TransactionIntent) error {
	blockhash, lastValid, err := sol.LatestBlockhash(ctx, c.Logger, c.chain)
	if err != nil {
		intent.transition(StateFailed, "blockhash refresh failed", c.clock.Now())
		return &TransientSubmissionError{Stage: "blockhash refresh", Err: err}
	}
	intent.Transaction.Message.RecentBlockhash = blockhash
	intent.Transaction.Signatures = nil
	intent.Blockhash = blockhash
	intent.LastValidBlockHeight = lastValid
	return nil
}

// confirmSignature polls signature status until the transaction reaches
// confirmed commitment. A transaction that landed but whose program errored
// is a distinct, terminal outcome carrying the program's error payload.
func (c *Client) confirmSignature(ctx context.Context, intent *TransactionIntent, sig solana.Signature) (solana.Signature, error) {
	var status *rpc.SignatureStatusesResult
	err := repeat.Repeat(
		repeat.Fn(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := c.chain.GetSignatureStatuses(ctx, false, sig)
			if err != nil {
				return repeat.HintTemporary(err)
			}
			if len(out.Value) == 0 || out.Value[0] == nil {
				return repeat.HintTemporary(errors.New(errSigNotYetFound))
			}
			st := out.Value[0]
			if st.ConfirmationStatus != rpc.ConfirmationStatusConfirmed &&
				st.ConfirmationStatus != rpc.ConfirmationStatusFinalized {
				return repeat.HintTemporary(fmt.Errorf("commitment still %s", st.ConfirmationStatus))
			}
			status = st
			return nil
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(confirmMaxTries),
		repeat.WithDelay(repeat.ExponentialBackoff(confirmPollDelay).Set()),
	)
	if err != nil {
		intent.transition(StateFailed, "confirmation timed out", c.clock.Now())
		return sig, &TransientSubmissionError{Stage: "confirmation", Err: err}
	}
	if status.Err != nil {
		intent.transition(StateFailed, "program reported error", c.clock.Now())
		c.cache.invalidate(intent.Owner)
		return sig, &OnChainExecutionError{Signature: sig.String(), Detail: status.Err}
	}
	intent.transition(StateConfirmed, "signature confirmed", c.clock.Now())
	c.cache.invalidate(intent.Owner)
	misc.Infof(c.Logger, "%s confirmed, signature:%s", intent.Kind, sig)
	return sig, nil
}

// submitRemote performs the operation through the remote API. When the
// remote executed the operation itself the returned signature is final with
// no further local submission; when it returned a built transaction, that
// transaction is signed locally and sent relaxed exactly once.
func (c *Client) submitRemote(ctx context.Context, intent *TransactionIntent) (solana.Signature, error) {
	if c.remote == nil {
		intent.transition(StateFailed, "no remote API configured", c.clock.Now())
		return solana.Signature{}, &RemoteFallbackError{Op: string(intent.Kind), Err: errors.New("remote API not configured")}
	}
	promRemoteFallbacks.Inc()
	outcome, err := c.remote.PerformOperation(ctx, intent)
	if err != nil {
		intent.transition(StateFailed, "remote operation failed", c.clock.Now())
		return solana.Signature{}, err
	}
	if outcome.Transaction == nil {
		intent.transition(StateSubmitted, "handed to remote API", c.clock.Now())
		intent.transition(StateConfirmed, "remote executed operation", c.clock.Now())
		c.cache.invalidate(intent.Owner)
		misc.Infof(c.Logger, "%s executed remotely, signature:%s", intent.Kind, outcome.Signature)
		return outcome.Signature, nil
	}

	intent.Transaction = outcome.Transaction
	if err := c.signIntent(ctx, intent, "signing remote-built transaction"); err != nil {
		return solana.Signature{}, err
	}
	sig, err := c.chain.SendTransactionWithOpts(ctx, intent.Transaction, rpc.TransactionOpts{
		SkipPreflight: true,
	})
	if err != nil {
		intent.transition(StateFailed, "submission of remote-built transaction failed", c.clock.Now())
		return solana.Signature{}, &TransientSubmissionError{Stage: "remote-built submission", Err: err}
	}
	intent.transition(StateSubmitted, "remote-built transaction submitted", c.clock.Now())
	return c.confirmSignature(ctx, intent, sig)
}

// isTransientSubmitError classifies a submission error as worth a relaxed
// retry. The RPC surface reports these as opaque strings, so substring
// matching is as good as it gets.
func isTransientSubmitError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"blockhash not found",
		"blockhash expired",
		"node is behind",
		"timed out",
		"timeout",
		"connection refused",
		"connection reset",
		"too many requests",
		"rate limit",
		"service unavailable",
		"temporarily",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
