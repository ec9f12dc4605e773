package engine

import (
	"github.com/lukev/auctionhouse/internal/broadcast"
	"github.com/lukev/auctionhouse/internal/catalog"
)

// pendingEvent is a broadcast emission queued up by a mutation, emitted in
// order once the command's persistence step has succeeded.
type pendingEvent struct {
	Type    broadcast.EventType
	Payload interface{}
}

// activatePlayer sets the cursor to (catIdx, plIdx) and arms p as the
// active player at its base value with no high bidder (spec §4.1 Start,
// "Resolution").
func (s *session) activatePlayer(catIdx, plIdx int, p catalog.Player) {
	ps := &playerState{Player: p, Status: PlayerActive}
	s.players[p.ID] = ps
	s.cursor = Cursor{CategoryIndex: catIdx, PlayerIndex: plIdx, PlayerID: p.ID}
	s.tmr.Arm(s.cfg.InitialBidMs)
}

// advanceCursor walks forward from the current cursor to the next
// available player, draining categories and the auction as it goes. It
// returns the events to broadcast, in emission order: zero or more
// categoryCompleted, then either nextPlayer or auctionCompleted.
//
// newSession primes the cursor at (0, -1), so Start's call here unifies
// "arm the very first player" with "arm the next player after a
// resolution" into one code path.
func (s *session) advanceCursor() []pendingEvent {
	var events []pendingEvent
	order := s.cat.CategoryOrder()
	catIdx := s.cursor.CategoryIndex
	plIdx := s.cursor.PlayerIndex + 1

	for catIdx < len(order) {
		cat := order[catIdx]
		if plIdx < s.cat.QueueLen(cat) {
			p, _ := s.cat.PlayerAt(cat, plIdx)
			s.activatePlayer(catIdx, plIdx, p)
			events = append(events, pendingEvent{broadcast.NextPlayer, s.playerSnapshot(p.ID)})
			return events
		}
		events = append(events, pendingEvent{broadcast.CategoryCompleted, map[string]string{"category": string(cat)}})
		catIdx++
		plIdx = 0
	}

	s.status = StatusCompleted
	s.cursor = Cursor{CategoryIndex: catIdx, PlayerIndex: 0}
	s.tmr.Cancel()
	events = append(events, pendingEvent{broadcast.AuctionCompleted, nil})
	return events
}

// resolveCurrentPlayer resolves the active player exactly as a timer
// expiry or FinalCall would (spec §4.1, "Resolution"): sold if it carries a
// valid bid, unsold otherwise, then advances the cursor.
func (s *session) resolveCurrentPlayer() ([]pendingEvent, *Error) {
	playerID := s.cursor.PlayerID
	ps := s.players[playerID]

	var events []pendingEvent
	if top, ok := s.bids.CurrentTop(playerID); ok {
		prevStatus, prevPrice, prevWinner := ps.Status, ps.FinalPrice, ps.FinalWinner
		ps.Status = PlayerSold
		ps.FinalPrice = top.Amount
		ps.FinalWinner = top.BidderID

		if err := s.ledger.Commit(top.BidderID, playerID, top.Amount); err != nil {
			ps.Status, ps.FinalPrice, ps.FinalWinner = prevStatus, prevPrice, prevWinner
			return nil, newErr(ErrUnknownManager, "%v", err)
		}

		// Commit lands in-memory before persistResolution reads the ledger, so
		// the journaled ManagerRecord reflects the winner's post-sale balance
		// (spent, reservation cleared) rather than a stale pre-commit snapshot.
		// If persistence then fails, revert undoes both the player state and
		// the ledger commit together.
		if engErr := s.persistOrRevert(
			func() {
				ps.Status, ps.FinalPrice, ps.FinalWinner = prevStatus, prevPrice, prevWinner
				_ = s.ledger.RevertCommit(top.BidderID, playerID, top.Amount)
			},
			func() error { return s.persistResolution(ps) },
		); engErr != nil {
			return nil, engErr
		}
		events = append(events, pendingEvent{broadcast.PlayerSold, s.playerSnapshot(playerID)})
	} else {
		prevStatus := ps.Status
		ps.Status = PlayerUnsold
		if engErr := s.persistOrRevert(
			func() { ps.Status = prevStatus },
			func() error { return s.persistResolution(ps) },
		); engErr != nil {
			return nil, engErr
		}
		events = append(events, pendingEvent{broadcast.PlayerUnsold, s.playerSnapshot(playerID)})
	}

	s.tmr.Cancel()
	events = append(events, s.advanceCursor()...)
	return events, nil
}
