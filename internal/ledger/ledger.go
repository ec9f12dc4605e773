// Package ledger is the sole writer of manager balances for an auction. It
// tracks, per manager, the initial balance, the amount already spent on won
// players, and the single reservation held against the current active
// player (at most one reservation per manager at a time, since a manager
// can be the high bidder on only one player — the current one — at once).
//
// All methods are invoked only from inside the engine's serialized command
// flow (spec §4.3), so the mutex here exists for the commit-time
// cross-auction safety margin spec §5 recommends, not to defend against
// concurrent callers within one auction.
package ledger

import (
	"fmt"
	"sync"
)

// ErrUnknownManager is returned when an operation references a manager id
// the ledger has never seen.
var ErrUnknownManager = fmt.Errorf("ledger: unknown manager")

type row struct {
	initial          int64
	spent            int64
	reservedAmount   int64
	reservedPlayerID string
}

// Ledger is the per-auction balance projection for every registered
// manager.
type Ledger struct {
	mu   sync.Mutex
	rows map[string]*row
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{rows: make(map[string]*row)}
}

// Register seeds a manager's starting balance. Re-registering an existing
// manager is a no-op that leaves their current projection untouched, so
// callers can safely re-seed from a cold-start replay.
func (l *Ledger) Register(managerID string, initialBalance int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.rows[managerID]; ok {
		return
	}
	l.rows[managerID] = &row{initial: initialBalance}
}

// Available returns initial - spent - reserved for a manager.
func (l *Ledger) Available(managerID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[managerID]
	if !ok {
		return 0, ErrUnknownManager
	}
	return r.initial - r.spent - r.reservedAmount, nil
}

// ReservationFor returns the amount a manager currently has reserved
// against playerKey, or 0 if they hold no reservation on that player.
func (l *Ledger) ReservationFor(managerID, playerKey string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[managerID]
	if !ok {
		return 0, ErrUnknownManager
	}
	if r.reservedPlayerID != playerKey {
		return 0, nil
	}
	return r.reservedAmount, nil
}

// Reserve sets manager's reservation against playerKey to amount,
// replacing any prior reservation on that same player (spec §4.3: "at most
// one reservation per (manager, playerKey); replaces"). A manager cannot
// hold a reservation on more than one player at a time — Reserve clears any
// reservation the manager held on a different player first.
func (l *Ledger) Reserve(managerID, playerKey string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[managerID]
	if !ok {
		return ErrUnknownManager
	}
	r.reservedAmount = amount
	r.reservedPlayerID = playerKey
	return nil
}

// ReleaseReservation clears manager's reservation if it is held against
// playerKey. Releasing a reservation the manager does not hold is a no-op.
func (l *Ledger) ReleaseReservation(managerID, playerKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[managerID]
	if !ok {
		return ErrUnknownManager
	}
	if r.reservedPlayerID == playerKey {
		r.reservedAmount = 0
		r.reservedPlayerID = ""
	}
	return nil
}

// Commit moves a manager's reservation on playerKey into spent, at
// finalPrice, and clears the reservation (spec invariant 6). finalPrice may
// differ from the amount reserved only if the caller is reconstructing
// historical state; in normal operation the reservation equals finalPrice.
func (l *Ledger) Commit(managerID, playerKey string, finalPrice int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[managerID]
	if !ok {
		return ErrUnknownManager
	}
	r.spent += finalPrice
	if r.reservedPlayerID == playerKey {
		r.reservedAmount = 0
		r.reservedPlayerID = ""
	}
	return nil
}

// RevertCommit undoes a prior successful Commit(managerID, playerKey,
// finalPrice): it is the revert half of the engine's persist-or-revert
// guard around resolution, used when persisting the sold result fails after
// the in-memory commit already landed. The caller must pass exactly the
// finalPrice it committed; RevertCommit restores the reservation that
// Commit cleared, since a manager's reservation on the player being
// resolved always equals the price being committed.
func (l *Ledger) RevertCommit(managerID, playerKey string, finalPrice int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[managerID]
	if !ok {
		return ErrUnknownManager
	}
	r.spent -= finalPrice
	r.reservedAmount = finalPrice
	r.reservedPlayerID = playerKey
	return nil
}

// Snapshot is a point-in-time read of one manager's balance row, used for
// broadcast payloads and persistence.
type Snapshot struct {
	ManagerID        string
	Initial          int64
	Spent            int64
	Reserved         int64
	ReservedPlayerID string
	Available        int64
}

// Snapshot returns a copy of a manager's row.
func (l *Ledger) Snapshot(managerID string) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[managerID]
	if !ok {
		return Snapshot{}, ErrUnknownManager
	}
	return Snapshot{
		ManagerID:        managerID,
		Initial:          r.initial,
		Spent:            r.spent,
		Reserved:         r.reservedAmount,
		ReservedPlayerID: r.reservedPlayerID,
		Available:        r.initial - r.spent - r.reservedAmount,
	}, nil
}

// All returns a snapshot of every registered manager, for broadcast resync
// and persistence replay.
func (l *Ledger) All() []Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Snapshot, 0, len(l.rows))
	for id, r := range l.rows {
		out = append(out, Snapshot{
			ManagerID:        id,
			Initial:          r.initial,
			Spent:            r.spent,
			Reserved:         r.reservedAmount,
			ReservedPlayerID: r.reservedPlayerID,
			Available:        r.initial - r.spent - r.reservedAmount,
		})
	}
	return out
}
