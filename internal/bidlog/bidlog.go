// Package bidlog is the append-only per-player bid history. It assigns
// dense, monotonic sequence numbers within the engine's serialized turn and
// never renumbers on undo — undo only flips a valid flag.
package bidlog

import "fmt"

// Bid is one immutable bid record (spec §3 "Bid" — bidlog only carries the
// fields it is authoritative for; bidder balance is the ledger's concern).
type Bid struct {
	ID               string
	PlayerID         string
	BidderID         string
	Amount           int64
	PreviousAmount   int64
	PlacedAt         int64 // monotonic logical timestamp
	Sequence         int   // per-player, starts at 1, dense
	TimerRemainingMs int64 // captured before any anti-snipe extension
	Valid            bool
	Source           string
}

// Increment returns Amount - PreviousAmount.
func (b Bid) Increment() int64 {
	return b.Amount - b.PreviousAmount
}

// Log is the per-player append-only bid history for one auction.
type Log struct {
	byPlayer map[string][]*Bid
}

// New creates an empty Log.
func New() *Log {
	return &Log{byPlayer: make(map[string][]*Bid)}
}

// Append adds a bid to playerID's history, assigning the next dense
// sequence number. Callers must already hold the engine's serialization
// guarantee; Append itself does no locking.
func (l *Log) Append(b Bid) *Bid {
	history := l.byPlayer[b.PlayerID]
	b.Sequence = len(history) + 1
	b.Valid = true
	stored := b
	l.byPlayer[b.PlayerID] = append(history, &stored)
	return &stored
}

// Invalidate flips a bid's valid flag to false without renumbering any
// other bid. Returns an error if no such bid exists on the player.
func (l *Log) Invalidate(playerID, bidID string) error {
	for _, b := range l.byPlayer[playerID] {
		if b.ID == bidID {
			b.Valid = false
			return nil
		}
	}
	return fmt.Errorf("bidlog: bid %s not found for player %s", bidID, playerID)
}

// Revalidate flips a previously-invalidated bid's valid flag back to true.
// Used to undo a failed persistence write after Invalidate (spec §5's
// revert-on-failure rule for Undo).
func (l *Log) Revalidate(playerID, bidID string) error {
	for _, b := range l.byPlayer[playerID] {
		if b.ID == bidID {
			b.Valid = true
			return nil
		}
	}
	return fmt.Errorf("bidlog: bid %s not found for player %s", bidID, playerID)
}

// Latest returns the most recent bid appended for playerID regardless of
// validity, and whether one exists.
func (l *Log) Latest(playerID string) (*Bid, bool) {
	history := l.byPlayer[playerID]
	if len(history) == 0 {
		return nil, false
	}
	return history[len(history)-1], true
}

// CurrentTop returns the max-amount valid bid for playerID, and whether any
// valid bid exists.
func (l *Log) CurrentTop(playerID string) (*Bid, bool) {
	var top *Bid
	for _, b := range l.byPlayer[playerID] {
		if !b.Valid {
			continue
		}
		if top == nil || b.Amount > top.Amount {
			top = b
		}
	}
	return top, top != nil
}

// ValidCount returns the number of valid bids on playerID.
func (l *Log) ValidCount(playerID string) int {
	n := 0
	for _, b := range l.byPlayer[playerID] {
		if b.Valid {
			n++
		}
	}
	return n
}

// Full returns the complete sequence (valid and invalid) for playerID in
// placement order.
func (l *Log) Full(playerID string) []Bid {
	history := l.byPlayer[playerID]
	out := make([]Bid, len(history))
	for i, b := range history {
		out[i] = *b
	}
	return out
}

// ValidOnly returns only the valid bids for playerID in placement order.
func (l *Log) ValidOnly(playerID string) []Bid {
	history := l.byPlayer[playerID]
	out := make([]Bid, 0, len(history))
	for _, b := range history {
		if b.Valid {
			out = append(out, *b)
		}
	}
	return out
}
