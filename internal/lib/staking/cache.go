package staking

import (
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
)

// snapshotTTL bounds how stale a cached record may be before a read forces
// a refetch. Callers can always discard the cache explicitly.
const snapshotTTL = 30 * time.Second

// Snapshot is the last decoded view of a wallet's staking state along with
// the vault state observed at the same time.
type Snapshot struct {
	Stake     StakeRecord
	Vault     VaultRecord
	FetchedAt time.Time
}

type snapshotCache struct {
	clock clockwork.Clock

	sync.RWMutex
	byOwner map[solana.PublicKey]Snapshot
}

func newSnapshotCache(clock clockwork.Clock) *snapshotCache {
	return &snapshotCache{
		clock:   clock,
		byOwner: map[solana.PublicKey]Snapshot{},
	}
}

func (c *snapshotCache) get(owner solana.PublicKey) (Snapshot, bool) {
	c.RLock()
	defer c.RUnlock()
	snap, found := c.byOwner[owner]
	if !found {
		return Snapshot{}, false
	}
	if c.clock.Since(snap.FetchedAt) > snapshotTTL {
		return Snapshot{}, false
	}
	return snap, true
}

func (c *snapshotCache) put(owner solana.PublicKey, stake StakeRecord, vault VaultRecord) Snapshot {
	snap := Snapshot{Stake: stake, Vault: vault, FetchedAt: c.clock.Now()}
	c.Lock()
	c.byOwner[owner] = snap
	c.Unlock()
	return snap
}

func (c *snapshotCache) invalidate(owner solana.PublicKey) {
	c.Lock()
	delete(c.byOwner, owner)
	c.Unlock()
}
