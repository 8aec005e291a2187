package session

import (
	"context"
	"time"

	"k8s.io/klog/v2"
)

// ScoreStore is the durable client-side mirror of the player's score.
type ScoreStore interface {
	UpdateScore(ctx context.Context, id string, score int) error
}

// Ledger keeps the optimistic local score next to the last authoritative score received
// from the server.
//
// Local deltas are applied immediately; an authoritative value overwrites both scores.
// Every change is written through to the ScoreStore before returning.
type Ledger struct {
	local         int
	authoritative int
	epoch         uint64

	// dirty is set by local deltas and cleared by the next authoritative value.
	dirty      bool
	mismatches int

	owner string
	store ScoreStore
}

// Pending is an optimistic delta staged against the authoritative epoch current at the
// time it was computed.
type Pending struct {
	Delta int
	epoch uint64
}

// NewLedger returns a ledger starting at score, as last persisted for owner.
// store may be nil.
func NewLedger(owner string, score int, store ScoreStore) *Ledger {
	return &Ledger{
		local:         score,
		authoritative: score,
		owner:         owner,
		store:         store,
	}
}

func (l *Ledger) Local() int         { return l.local }
func (l *Ledger) Authoritative() int { return l.authoritative }

// Mismatches counts authoritative values that disagreed with the optimistic score they
// replaced.
func (l *Ledger) Mismatches() int { return l.mismatches }

// ApplyLocalDelta adds delta to the local score and returns it.
func (l *Ledger) ApplyLocalDelta(delta int) int {
	l.Commit(l.Stage(delta))
	return l.local
}

// Stage prepares an optimistic delta without applying it.
func (l *Ledger) Stage(delta int) Pending {
	return Pending{Delta: delta, epoch: l.epoch}
}

// Commit applies a staged delta. It is dropped, and false returned, if an authoritative
// value arrived after the delta was staged.
func (l *Ledger) Commit(p Pending) bool {
	if p.epoch != l.epoch {
		klog.V(1).Infof("Ledger.Commit: dropping stale delta %+d (epoch %d, now %d)", p.Delta, p.epoch, l.epoch)
		return false
	}
	l.local += p.Delta
	l.dirty = true
	l.persist(l.local)
	return true
}

// ApplyAuthoritative overwrites both scores with the server's value.
func (l *Ledger) ApplyAuthoritative(score int) {
	if l.dirty && l.local != score {
		l.mismatches++
		klog.V(1).Infof("Ledger.ApplyAuthoritative: optimistic score %d replaced by %d (mismatch #%d)",
			l.local, score, l.mismatches)
	}
	l.local = score
	l.authoritative = score
	l.epoch++
	l.dirty = false
	l.persist(score)
}

func (l *Ledger) persist(score int) {
	if l.store == nil || l.owner == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.store.UpdateScore(ctx, l.owner, score); err != nil {
		klog.Errorf("Ledger.persist: failed to store score %d for %s: %v", score, l.owner, err)
	}
}
