package sol

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

// ErrSigningDeclined is returned by a signer when the wallet's owner refused
// to sign - callers treat this as terminal, never as something to retry.
var ErrSigningDeclined = errors.New("signing declined by wallet")

// TxnSigner signs a single transaction in place, filling tx.Signatures.
type TxnSigner interface {
	SignTxn(ctx context.Context, tx *solana.Transaction) error
}

// MultipleWalletSigner manages keys for any number of wallets and signs on
// behalf of whichever one a transaction names as fee payer.
type MultipleWalletSigner interface {
	HasAccount(publicKey solana.PublicKey) bool
	SignWithAccount(ctx context.Context, tx *solana.Transaction, publicKey solana.PublicKey) error
}

// AccountLister is implemented by signers that can enumerate the wallets
// they hold keys for, in load order.
type AccountLister interface {
	Accounts() []solana.PublicKey
}

// SignWithAccountForTxn adapts a MultipleWalletSigner to the TxnSigner
// interface for a fixed account.
func SignWithAccountForTxn(signer MultipleWalletSigner, account solana.PublicKey) TxnSigner {
	return &accountSigner{signer: signer, account: account}
}

type accountSigner struct {
	signer  MultipleWalletSigner
	account solana.PublicKey
}

func (a *accountSigner) SignTxn(ctx context.Context, tx *solana.Transaction) error {
	return a.signer.SignWithAccount(ctx, tx, a.account)
}
