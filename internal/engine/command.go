package engine

import (
	"time"

	"github.com/lukev/auctionhouse/internal/votetally"
)

// Kind identifies which engine command an envelope carries (spec §4.1).
type Kind string

const (
	KindStart           Kind = "start"
	KindStop            Kind = "stop"
	KindContinue        Kind = "continue"
	KindPlaceBid        Kind = "placeBid"
	KindFinalCall       Kind = "finalCall"
	KindSkip            Kind = "skip"
	KindUndo            Kind = "undo"
	KindVote            Kind = "vote"
	KindTimerExpired    Kind = "timerExpired" // synthetic, posted by Timer
	KindTimerTick       Kind = "timerTick"    // synthetic, posted by Timer
	KindRegisterManager Kind = "registerManager"
	KindSnapshot        Kind = "snapshot"
)

// Command is the tagged-variant input contract for every Engine operation
// (spec §9, "Duck-typed request/response glue" -> explicit command
// records). Only the fields relevant to Kind are read.
type Command struct {
	Kind        Kind
	AuctionID   string
	ActorID     string // admin for control ops, bidder/voter otherwise
	PlayerID    string
	Amount      int64
	VoteValue   votetally.Value
	ClientBidID string // caller-supplied bid id, stored as the bid's Source; PlaceBid does not deduplicate on it
	Tick        uint64 // TimerExpired's tick generation

	// Deadline, if non-zero, causes the command to be dropped with
	// ErrCancelled if it has not reached the front of the auction's queue
	// by this time (spec §5, "Cancellation & timeouts").
	Deadline time.Time
}

// Result is what a Command resolves to: either a success Snapshot or a
// typed Error (spec §7, "{success: false, errorKind, message}").
type Result struct {
	Snapshot *Snapshot
	Err      *Error
}

// Success reports whether the command succeeded.
func (r Result) Success() bool {
	return r.Err == nil
}
