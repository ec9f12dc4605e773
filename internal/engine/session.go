package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lukev/auctionhouse/internal/bidlog"
	"github.com/lukev/auctionhouse/internal/broadcast"
	"github.com/lukev/auctionhouse/internal/catalog"
	"github.com/lukev/auctionhouse/internal/ledger"
	"github.com/lukev/auctionhouse/internal/store"
	"github.com/lukev/auctionhouse/internal/timer"
	"github.com/lukev/auctionhouse/internal/votetally"
)

// envelope is one queued command plus the channel its result is delivered
// on. The engine's per-auction executor drains these FIFO (spec §5).
type envelope struct {
	cmd    Command
	result chan Result
}

// session is one auction's complete serialized state: everything spec §5
// says only the command-queue goroutine may mutate lives here.
type session struct {
	id      string
	name    string
	adminID string
	status  Status
	cfg     Config

	cat    *catalog.Catalog
	cursor Cursor

	players map[string]*playerState
	ledger  *ledger.Ledger
	bids    *bidlog.Log
	votes   *votetally.Tally
	tmr     *timer.Timer

	bc    *broadcast.Broadcaster
	store store.Store

	clock int64 // logical monotonic counter for Bid.PlacedAt

	queue chan *envelope
	done  chan struct{}
}

func newSession(id, name, adminID string, cfg Config, cat *catalog.Catalog, bc *broadcast.Broadcaster, st store.Store) *session {
	s := &session{
		id:      id,
		name:    name,
		adminID: adminID,
		status:  StatusDraft,
		cfg:     cfg.withDefaults(),
		cat:     cat,
		cursor:  Cursor{CategoryIndex: 0, PlayerIndex: -1},
		players: make(map[string]*playerState),
		ledger:  ledger.New(),
		bids:    bidlog.New(),
		votes:   votetally.New(cfg.DislikeFraction),
		bc:      bc,
		store:   st,
		queue:   make(chan *envelope, 256),
		done:    make(chan struct{}),
	}
	s.tmr = timer.New(
		func(tick uint64) { s.postTimerExpired(tick) },
		func(tick uint64, remainingMs int64) { s.postTimerTick(tick, remainingMs) },
	)
	return s
}

// run is the one goroutine that owns every mutation of this session's
// state, draining the command queue FIFO to completion (spec §5).
func (s *session) run() {
	for {
		select {
		case env, ok := <-s.queue:
			if !ok {
				return
			}
			if !env.cmd.Deadline.IsZero() && time.Now().After(env.cmd.Deadline) {
				env.result <- Result{Err: newErr(ErrCancelled, "command dropped before dequeue: deadline exceeded")}
				continue
			}
			env.result <- s.apply(env.cmd)
		case <-s.done:
			return
		}
	}
}

// postTimerExpired enqueues a synthetic TimerExpired command, the only way
// the Timer actor communicates with the session (spec §4.2).
func (s *session) postTimerExpired(tick uint64) {
	env := &envelope{
		cmd:    Command{Kind: KindTimerExpired, AuctionID: s.id, Tick: tick},
		result: make(chan Result, 1),
	}
	select {
	case s.queue <- env:
	case <-s.done:
	}
}

// postTimerTick enqueues a synthetic TimerTick command so the broadcast it
// triggers is published from the same serialized executor as every other
// event (spec §5), keeping the auction's event ordering total. It is
// best-effort: a full queue drops the tick rather than blocking the
// background goroutine that reports it, and another is due within the
// second regardless.
func (s *session) postTimerTick(tick uint64, remainingMs int64) {
	env := &envelope{
		cmd:    Command{Kind: KindTimerTick, AuctionID: s.id, Tick: tick, Amount: remainingMs},
		result: make(chan Result, 1),
	}
	select {
	case s.queue <- env:
	case <-s.done:
	default:
	}
}

func (s *session) apply(cmd Command) Result {
	switch cmd.Kind {
	case KindStart:
		return s.start(cmd)
	case KindStop:
		return s.stop(cmd)
	case KindContinue:
		return s.cont(cmd)
	case KindPlaceBid:
		return s.placeBid(cmd)
	case KindFinalCall:
		return s.finalCall(cmd)
	case KindSkip:
		return s.skip(cmd)
	case KindUndo:
		return s.undo(cmd)
	case KindVote:
		return s.vote(cmd)
	case KindTimerExpired:
		return s.timerExpired(cmd)
	case KindTimerTick:
		return s.timerTick(cmd)
	case KindRegisterManager:
		return s.registerManager(cmd)
	case KindSnapshot:
		return Result{Snapshot: s.Snapshot()}
	default:
		return Result{Err: newErr(ErrWrongState, "unknown command kind %q", cmd.Kind)}
	}
}

func (s *session) start(cmd Command) Result {
	if s.status != StatusDraft {
		return Result{Err: newErr(ErrWrongState, "auction %s is not in draft", s.id)}
	}
	if cmd.ActorID != s.adminID {
		return Result{Err: newErr(ErrNotOwner, "actor %s is not the admin of auction %s", cmd.ActorID, s.id)}
	}
	if s.cat.Empty() {
		return Result{Err: newErr(ErrEmptyCatalog, "auction %s has no players in any category", s.id)}
	}

	s.status = StatusOngoing
	events := s.advanceCursor()

	if err := s.persistAuction(); err != nil {
		s.status = StatusDraft
		return Result{Err: newErr(ErrPersistence, "%v", err)}
	}

	s.publish(broadcast.AuctionStarted, s.Snapshot())
	s.publishAll(events)
	return Result{Snapshot: s.Snapshot()}
}

func (s *session) stop(cmd Command) Result {
	if cmd.ActorID != s.adminID {
		return Result{Err: newErr(ErrNotOwner, "actor %s is not the admin of auction %s", cmd.ActorID, s.id)}
	}
	if s.status == StatusPaused {
		return Result{Snapshot: s.Snapshot()}
	}
	if s.status != StatusOngoing {
		return Result{Err: newErr(ErrWrongState, "auction %s is not ongoing", s.id)}
	}
	s.tmr.Freeze()
	s.status = StatusPaused
	if err := s.persistAuction(); err != nil {
		s.status = StatusOngoing
		s.tmr.Resume()
		return Result{Err: newErr(ErrPersistence, "%v", err)}
	}
	s.publish(broadcast.AuctionStopped, s.Snapshot())
	return Result{Snapshot: s.Snapshot()}
}

func (s *session) cont(cmd Command) Result {
	if cmd.ActorID != s.adminID {
		return Result{Err: newErr(ErrNotOwner, "actor %s is not the admin of auction %s", cmd.ActorID, s.id)}
	}
	if s.status != StatusPaused {
		return Result{Err: newErr(ErrWrongState, "auction %s is not paused", s.id)}
	}
	s.tmr.Resume()
	s.status = StatusOngoing
	if err := s.persistAuction(); err != nil {
		s.status = StatusPaused
		s.tmr.Freeze()
		return Result{Err: newErr(ErrPersistence, "%v", err)}
	}
	s.publish(broadcast.AuctionContinued, s.Snapshot())
	return Result{Snapshot: s.Snapshot()}
}

func (s *session) placeBid(cmd Command) Result {
	if s.status != StatusOngoing {
		return Result{Err: newErr(ErrWrongState, "auction %s is not ongoing", s.id)}
	}
	if cmd.PlayerID != s.cursor.PlayerID {
		return Result{Err: newErr(ErrNotActivePlayer, "player %s is not active", cmd.PlayerID)}
	}
	ps := s.players[cmd.PlayerID]
	if ps.HighBidder == cmd.ActorID {
		return Result{Err: newErr(ErrSelfOutbid, "manager %s already holds the high bid", cmd.ActorID)}
	}

	var required int64
	if ps.CurrentBid == 0 {
		required = ps.BaseValue
	} else {
		required = ps.CurrentBid + s.cfg.MinIncrement
	}
	if cmd.Amount < required {
		return Result{Err: newErr(ErrAmountTooLow, "amount %d is below required %d", cmd.Amount, required)}
	}

	reservation, err := s.ledger.ReservationFor(cmd.ActorID, cmd.PlayerID)
	if err != nil {
		return Result{Err: newErr(ErrUnknownManager, "%v", err)}
	}
	available, err := s.ledger.Available(cmd.ActorID)
	if err != nil {
		return Result{Err: newErr(ErrUnknownManager, "%v", err)}
	}
	if available+reservation < cmd.Amount {
		return Result{Err: newErr(ErrInsufficientFunds, "manager %s has %d available against a bid of %d", cmd.ActorID, available+reservation, cmd.Amount)}
	}

	// Pinned per spec §9's open question: captured BEFORE any anti-snipe
	// extension this bid triggers — the value the bidder saw when clicking.
	timerRemaining := s.tmr.RemainingMs()

	prevBidder := ps.HighBidder
	prevAmount := ps.CurrentBid
	prevTotal := ps.TotalBidCount

	s.clock++
	bid := bidlog.Bid{
		ID:               uuid.NewString(),
		PlayerID:         cmd.PlayerID,
		BidderID:         cmd.ActorID,
		Amount:           cmd.Amount,
		PreviousAmount:   prevAmount,
		PlacedAt:         s.clock,
		TimerRemainingMs: timerRemaining,
		Source:           cmd.ClientBidID,
	}

	if prevBidder != "" {
		_ = s.ledger.ReleaseReservation(prevBidder, cmd.PlayerID)
	}
	_ = s.ledger.Reserve(cmd.ActorID, cmd.PlayerID, cmd.Amount)

	stored := s.bids.Append(bid)
	ps.CurrentBid = cmd.Amount
	ps.HighBidder = cmd.ActorID
	ps.TotalBidCount++

	extended := false
	if timerRemaining < s.cfg.AntiSnipeThresholdMs {
		s.tmr.Extend(s.cfg.AntiSnipeExtensionMs)
		extended = true
	}

	if engErr := s.persistOrRevert(
		func() {
			ps.CurrentBid, ps.HighBidder, ps.TotalBidCount = prevAmount, prevBidder, prevTotal
			_ = s.ledger.ReleaseReservation(cmd.ActorID, cmd.PlayerID)
			if prevBidder != "" {
				_ = s.ledger.Reserve(prevBidder, cmd.PlayerID, prevAmount)
			}
			_ = s.bids.Invalidate(cmd.PlayerID, stored.ID)
			if extended {
				s.tmr.Arm(timerRemaining)
			}
		},
		func() error { return s.persistBid(*stored, ps) },
	); engErr != nil {
		return Result{Err: engErr}
	}

	s.publish(broadcast.BidAccepted, map[string]interface{}{
		"player":           s.playerSnapshot(cmd.PlayerID),
		"bidderID":         cmd.ActorID,
		"amount":           cmd.Amount,
		"sequence":         stored.Sequence,
		"timerRemainingMs": timerRemaining,
		"timerExtended":    extended,
	})
	return Result{Snapshot: s.Snapshot()}
}

func (s *session) finalCall(cmd Command) Result {
	if cmd.ActorID != s.adminID {
		return Result{Err: newErr(ErrNotOwner, "actor %s is not the admin of auction %s", cmd.ActorID, s.id)}
	}
	if s.status != StatusOngoing {
		return Result{Err: newErr(ErrWrongState, "auction %s is not ongoing", s.id)}
	}
	events, engErr := s.resolveCurrentPlayer()
	if engErr != nil {
		return Result{Err: engErr}
	}
	s.publishAll(events)
	return Result{Snapshot: s.Snapshot()}
}

func (s *session) timerExpired(cmd Command) Result {
	if s.status != StatusOngoing {
		return Result{Snapshot: s.Snapshot()}
	}
	if cmd.PlayerID != "" && cmd.PlayerID != s.cursor.PlayerID {
		return Result{Snapshot: s.Snapshot()}
	}
	if cmd.Tick != s.tmr.Tick() {
		return Result{Snapshot: s.Snapshot()}
	}
	events, engErr := s.resolveCurrentPlayer()
	if engErr != nil {
		return Result{Err: engErr}
	}
	s.publishAll(events)
	return Result{Snapshot: s.Snapshot()}
}

// timerTick republishes the Timer's periodic/on-extend signal as a
// broadcast event (spec §6, timerTick). It mutates nothing: a stale tick
// (wrong generation, no longer the active player, auction no longer
// ongoing) is simply dropped rather than erroring, since the Timer cannot
// know those things by the time its goroutine reports in.
func (s *session) timerTick(cmd Command) Result {
	if s.status != StatusOngoing || cmd.Tick != s.tmr.Tick() {
		return Result{Snapshot: s.Snapshot()}
	}
	s.publish(broadcast.TimerTick, map[string]interface{}{
		"playerID":    s.cursor.PlayerID,
		"remainingMs": cmd.Amount,
	})
	return Result{Snapshot: s.Snapshot()}
}

func (s *session) skip(cmd Command) Result {
	if cmd.ActorID != s.adminID {
		return Result{Err: newErr(ErrNotOwner, "actor %s is not the admin of auction %s", cmd.ActorID, s.id)}
	}
	if s.status != StatusOngoing {
		return Result{Err: newErr(ErrWrongState, "auction %s is not ongoing", s.id)}
	}
	if cmd.PlayerID != s.cursor.PlayerID {
		return Result{Err: newErr(ErrNotActivePlayer, "player %s is not active", cmd.PlayerID)}
	}
	if s.bids.ValidCount(cmd.PlayerID) > 0 {
		return Result{Err: newErr(ErrWrongState, "player %s already has accepted bids", cmd.PlayerID)}
	}

	ps := s.players[cmd.PlayerID]
	prevStatus := ps.Status
	ps.Status = PlayerSkipped
	s.tmr.Cancel()

	if engErr := s.persistOrRevert(
		func() { ps.Status = prevStatus },
		func() error { return s.persistResolution(ps) },
	); engErr != nil {
		return Result{Err: engErr}
	}

	events := []pendingEvent{{broadcast.PlayerSkipped, s.playerSnapshot(cmd.PlayerID)}}
	events = append(events, s.advanceCursor()...)
	s.publishAll(events)
	return Result{Snapshot: s.Snapshot()}
}

func (s *session) undo(cmd Command) Result {
	if cmd.ActorID != s.adminID {
		return Result{Err: newErr(ErrNotOwner, "actor %s is not the admin of auction %s", cmd.ActorID, s.id)}
	}
	if s.status != StatusOngoing {
		return Result{Err: newErr(ErrWrongState, "auction %s is not ongoing", s.id)}
	}
	playerID := s.cursor.PlayerID
	valid := s.bids.ValidOnly(playerID)
	if len(valid) == 0 {
		return Result{Err: newErr(ErrNothingToUndo, "no valid bid to undo on player %s", playerID)}
	}
	latest := valid[len(valid)-1]

	ps := s.players[playerID]
	prevStatus := ps.Status
	prevAmount := ps.CurrentBid
	prevBidder := ps.HighBidder

	if err := s.bids.Invalidate(playerID, latest.ID); err != nil {
		return Result{Err: newErr(ErrNothingToUndo, "%v", err)}
	}
	_ = s.ledger.ReleaseReservation(latest.BidderID, playerID)

	newTopBidder := ""
	if top, ok2 := s.bids.CurrentTop(playerID); ok2 {
		newTopBidder = top.BidderID
		ps.CurrentBid = top.Amount
		ps.HighBidder = top.BidderID
		_ = s.ledger.Reserve(top.BidderID, playerID, top.Amount)
	} else {
		ps.CurrentBid = 0
		ps.HighBidder = ""
	}

	undoneID := latest.ID
	if engErr := s.persistOrRevert(
		func() {
			_ = s.bids.Revalidate(playerID, undoneID)
			if newTopBidder != "" {
				_ = s.ledger.ReleaseReservation(newTopBidder, playerID)
			}
			if prevBidder != "" {
				_ = s.ledger.Reserve(prevBidder, playerID, prevAmount)
			}
			ps.Status, ps.CurrentBid, ps.HighBidder = prevStatus, prevAmount, prevBidder
		},
		func() error { return s.persistUndo(playerID, undoneID, ps) },
	); engErr != nil {
		return Result{Err: engErr}
	}

	s.publish(broadcast.BidUndone, s.playerSnapshot(playerID))
	return Result{Snapshot: s.Snapshot()}
}

func (s *session) registerManager(cmd Command) Result {
	if s.status != StatusDraft {
		return Result{Err: newErr(ErrWrongState, "auction %s has already started; roster is locked", s.id)}
	}
	s.ledger.Register(cmd.ActorID, cmd.Amount)
	return Result{Snapshot: s.Snapshot()}
}

func (s *session) vote(cmd Command) Result {
	if _, err := s.ledger.Available(cmd.ActorID); err != nil {
		return Result{Err: newErr(ErrUnknownManager, "%v", err)}
	}
	likes, dislikes, selfValue := s.votes.Record(cmd.ActorID, cmd.PlayerID, cmd.VoteValue)

	if s.store != nil {
		value := "dislike"
		if selfValue == votetally.Like {
			value = "like"
		}
		_ = s.store.SaveVote(context.Background(), store.VoteRecord{
			AuctionID: s.id, PlayerID: cmd.PlayerID, VoterID: cmd.ActorID, Value: value,
		})
	}

	s.publish(broadcast.VoteRecorded, map[string]interface{}{
		"playerID":    cmd.PlayerID,
		"likes":       likes,
		"dislikes":    dislikes,
		"skipAdvised": s.votes.SkipAdvised(cmd.PlayerID, s.bc.SubscriberCount(s.id)),
	})
	return Result{Snapshot: s.Snapshot()}
}

// persistOrRevert applies a persistence write after an in-memory mutation
// has already been made, per spec §5's ordering rule. On failure it calls
// revert (which must restore exactly the pre-mutation state) and returns a
// PersistenceError.
func (s *session) persistOrRevert(revert func(), persist func() error) *Error {
	if s.store == nil {
		return nil
	}
	if err := persist(); err != nil {
		revert()
		return newErr(ErrPersistence, "%v", err)
	}
	return nil
}

func (s *session) persistAuction() error {
	if s.store == nil {
		return nil
	}
	return s.store.SaveAuction(context.Background(), store.AuctionRecord{
		AuctionID: s.id,
		Status:    string(s.status),
		Cursor: map[string]interface{}{
			"categoryIndex": s.cursor.CategoryIndex,
			"playerIndex":   s.cursor.PlayerIndex,
			"playerID":      s.cursor.PlayerID,
		},
	})
}

func (s *session) persistBid(b bidlog.Bid, ps *playerState) error {
	if s.store == nil {
		return nil
	}
	ctx := context.Background()
	if err := s.store.AppendBid(ctx, store.BidRecord{
		AuctionID: s.id, BidID: b.ID, PlayerID: b.PlayerID, BidderID: b.BidderID,
		Amount: b.Amount, PreviousAmount: b.PreviousAmount, Sequence: b.Sequence, Valid: b.Valid, PlacedAt: b.PlacedAt,
	}); err != nil {
		return err
	}
	if err := s.store.SavePlayer(ctx, store.PlayerRecord{
		AuctionID: s.id, PlayerID: ps.ID, Status: string(ps.Status),
		CurrentBid: ps.CurrentBid, HighBidder: ps.HighBidder, TotalBidCount: ps.TotalBidCount,
	}); err != nil {
		return err
	}
	return nil
}

func (s *session) persistResolution(ps *playerState) error {
	if s.store == nil {
		return nil
	}
	ctx := context.Background()
	if err := s.store.SavePlayer(ctx, store.PlayerRecord{
		AuctionID: s.id, PlayerID: ps.ID, Status: string(ps.Status),
		CurrentBid: ps.CurrentBid, HighBidder: ps.HighBidder, FinalPrice: ps.FinalPrice,
		FinalWinner: ps.FinalWinner, TotalBidCount: ps.TotalBidCount,
	}); err != nil {
		return err
	}
	if ps.FinalWinner != "" {
		snap, err := s.ledger.Snapshot(ps.FinalWinner)
		if err != nil {
			return fmt.Errorf("persist resolution: %w", err)
		}
		if err := s.store.SaveManager(ctx, store.ManagerRecord{
			AuctionID: s.id, ManagerID: ps.FinalWinner, Initial: snap.Initial, Spent: snap.Spent, Reserved: snap.Reserved,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) persistUndo(playerID, undoneBidID string, ps *playerState) error {
	if s.store == nil {
		return nil
	}
	ctx := context.Background()
	if err := s.store.InvalidateBid(ctx, s.id, undoneBidID); err != nil {
		return err
	}
	return s.store.SavePlayer(ctx, store.PlayerRecord{
		AuctionID: s.id, PlayerID: ps.ID, Status: string(ps.Status),
		CurrentBid: ps.CurrentBid, HighBidder: ps.HighBidder, TotalBidCount: ps.TotalBidCount,
	})
}

func (s *session) publish(t broadcast.EventType, payload interface{}) {
	s.bc.Publish(s.id, t, payload, s.clock)
}

func (s *session) publishAll(events []pendingEvent) {
	for _, e := range events {
		s.publish(e.Type, e.Payload)
	}
}

func (s *session) playerSnapshot(playerID string) *PlayerSnapshot {
	ps, ok := s.players[playerID]
	if !ok {
		return nil
	}
	return &PlayerSnapshot{
		ID: ps.ID, DisplayName: ps.DisplayName, Category: string(ps.Category), BaseValue: ps.BaseValue,
		Status: ps.Status, CurrentBid: ps.CurrentBid, HighBidder: ps.HighBidder,
		TotalBidCount: ps.TotalBidCount, FinalWinner: ps.FinalWinner, FinalPrice: ps.FinalPrice,
	}
}

// Snapshot returns the full resync view of the auction (spec §4.6(b)).
func (s *session) Snapshot() *Snapshot {
	order := s.cat.CategoryOrder()
	categories := make([]string, len(order))
	for i, c := range order {
		categories[i] = string(c)
	}
	snap := &Snapshot{
		AuctionID:      s.id,
		Name:           s.name,
		Status:         s.status,
		AdminID:        s.adminID,
		CategoryOrder:  categories,
		Cursor:         s.cursor,
		Config:         s.cfg,
		CurrentPlayer:  s.playerSnapshot(s.cursor.PlayerID),
		TimerRemaining: s.tmr.RemainingMs(),
		Managers:       make([]ManagerSnapshot, 0),
	}
	for _, m := range s.ledger.All() {
		snap.Managers = append(snap.Managers, ManagerSnapshot{
			ManagerID: m.ManagerID, Initial: m.Initial, Spent: m.Spent, Reserved: m.Reserved, Available: m.Available,
		})
	}
	return snap
}
