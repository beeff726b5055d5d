/*
 * Copyright (c) 2024. Hatm Labs.
 * All Rights reserved.
 */

package sol

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"golang.org/x/crypto/ed25519"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/hatmlabs/hatm-staker/internal/lib/misc"
)

func NewLocalKeyStore(log *slog.Logger) MultipleWalletSigner {
	keyStore := &localKeyStore{
		log:  log,
		keys: map[solana.PublicKey]solana.PrivateKey{},
	}
	keyStore.loadFromEnvironment()
	return keyStore
}

type localKeyStore struct {
	log *slog.Logger

	keys map[solana.PublicKey]solana.PrivateKey
	// order preserves the sequence keys were loaded in, so "the first
	// wallet" means something stable.
	order []solana.PublicKey
}

func (lk *localKeyStore) HasAccount(publicKey solana.PublicKey) bool {
	_, found := lk.keys[publicKey]
	return found
}

func (lk *localKeyStore) Accounts() []solana.PublicKey {
	return append([]solana.PublicKey{}, lk.order...)
}

func (lk *localKeyStore) SignWithAccount(ctx context.Context, tx *solana.Transaction, publicKey solana.PublicKey) error {
	key, found := lk.keys[publicKey]
	if !found {
		return fmt.Errorf("key not found for account %s", publicKey)
	}
	_, err := tx.Sign(func(signerKey solana.PublicKey) *solana.PrivateKey {
		if signerKey.Equals(publicKey) {
			return &key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error signing txn for account:%s, error:%w", publicKey, err)
	}
	return nil
}

// loadFromEnvironment loads base58-encoded ed25519 private keys from environment
// variables (can be in .env files as well) starting with "HATM_WALLET_KEY"
// and adds them to the localKeyStore's keys map.
// If an error occurs while adding a key, a fatal error is logged and the application exits.
func (lk *localKeyStore) loadFromEnvironment() {
	var names []string
	for _, envVal := range os.Environ() {
		if !strings.HasPrefix(envVal, "HATM_WALLET_KEY") {
			continue
		}
		names = append(names, envVal[0:strings.IndexByte(envVal, '=')])
	}
	// os.Environ order isn't stable, the variable names are
	sort.Strings(names)

	var numKeys int
	for _, key := range names {
		envKey := os.Getenv(key)
		if envKey == "" {
			continue
		}
		if err := lk.addKey(envKey); err != nil {
			lk.log.Error(fmt.Sprintf("fatal error in wallet key load, idx key:%s, err:%v", key, err))
			os.Exit(1)
		}
		numKeys++
	}
	misc.Infof(lk.log, "loaded %d wallet keys", numKeys)
}

func (lk *localKeyStore) addKey(encodedKey string) error {
	raw, err := base58.Decode(encodedKey)
	if err != nil {
		return fmt.Errorf("failed to decode wallet key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return fmt.Errorf("wallet key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	privKey := solana.PrivateKey(raw)
	pubKey := privKey.PublicKey()
	if _, found := lk.keys[pubKey]; !found {
		lk.order = append(lk.order, pubKey)
	}
	lk.keys[pubKey] = privKey
	misc.Infof(lk.log, "Added key data for account:%s", pubKey)
	return nil
}
