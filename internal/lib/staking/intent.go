package staking

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

type IntentKind string

const (
	KindStake            IntentKind = "stake"
	KindUnstake          IntentKind = "unstake"
	KindClaim            IntentKind = "claim"
	KindCompound         IntentKind = "compound"
	KindRegisterReferral IntentKind = "registerReferral"
	KindPurchaseStake    IntentKind = "purchaseAndStake"
)

type IntentState string

const (
	StateBuilt     IntentState = "Built"
	StateSigned    IntentState = "Signed"
	StateSubmitted IntentState = "Submitted"
	StateConfirmed IntentState = "Confirmed"
	StateFailed    IntentState = "Failed"
)

// Transition records one state-machine step with the reason it was taken,
// so callers (and tests) can see exactly which path an operation followed.
type Transition struct {
	From   IntentState
	To     IntentState
	Reason string
	At     time.Time
}

// TransactionIntent is the ephemeral record of one requested operation. It
// exists only for the duration of the operation and is never persisted.
type TransactionIntent struct {
	Kind   IntentKind
	Owner  solana.PublicKey
	Amount uint64

	// Accounts in instruction order, resolved at build time
	Accounts []solana.PublicKey

	Transaction          *solana.Transaction
	Blockhash            solana.Hash
	LastValidBlockHeight uint64

	// Degraded marks an intent whose instructions couldn't be assembled
	// locally; the submitter hands it straight to the remote service rather
	// than guessing at instruction encoding.
	Degraded       bool
	DegradedReason string

	State       IntentState
	Transitions []Transition
}

func (i *TransactionIntent) transition(to IntentState, reason string, at time.Time) {
	i.Transitions = append(i.Transitions, Transition{From: i.State, To: to, Reason: reason, At: at})
	i.State = to
}

// TookPath reports whether the intent passed through the given state with
// the given transition reason.
func (i *TransactionIntent) TookPath(to IntentState, reason string) bool {
	for _, tr := range i.Transitions {
		if tr.To == to && tr.Reason == reason {
			return true
		}
	}
	return false
}
