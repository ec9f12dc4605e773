// Package engine implements the live auction state machine: one serialized
// session per auction, command submission with optional deadlines, and
// broadcast of every state delta in the order the session applied it (spec
// §4, §5).
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lukev/auctionhouse/internal/broadcast"
	"github.com/lukev/auctionhouse/internal/catalog"
	"github.com/lukev/auctionhouse/internal/store"
)

// Engine owns every live auction's session, the way the teacher's
// game.Manager owned a map of live games guarded by one mutex. Sessions are
// independent: a slow or stuck auction never blocks another.
type Engine struct {
	mu    sync.RWMutex
	sess  map[string]*session
	bc    *broadcast.Broadcaster
	store store.Store
}

// New creates an Engine backed by bc for broadcast fan-out and st for
// write-behind persistence. st may be nil, in which case commands commit
// in-memory only and persistOrRevert is a no-op.
func New(bc *broadcast.Broadcaster, st store.Store) *Engine {
	return &Engine{
		sess:  make(map[string]*session),
		bc:    bc,
		store: st,
	}
}

// CreateAuctionSpec describes a new auction's immutable setup (spec §3,
// "Auction").
type CreateAuctionSpec struct {
	Name          string
	AdminID       string
	CategoryOrder []catalog.Category
	Players       []catalog.Player
	Config        Config
	Managers      map[string]int64 // managerID -> initial balance
}

// CreateAuction builds a new draft-status auction and starts its serialized
// executor goroutine. Returns the auction id.
func (e *Engine) CreateAuction(spec CreateAuctionSpec) (string, error) {
	order := spec.CategoryOrder
	if len(order) == 0 {
		order = catalog.DefaultCategoryOrder()
	}
	cat, err := catalog.New(order, spec.Players)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	s := newSession(id, spec.Name, spec.AdminID, spec.Config, cat, e.bc, e.store)
	for managerID, balance := range spec.Managers {
		s.ledger.Register(managerID, balance)
	}

	e.mu.Lock()
	e.sess[id] = s
	e.mu.Unlock()

	go s.run()
	return id, nil
}

// RegisterManager seeds a manager's starting balance on a draft auction.
// Registering after Start is rejected: the roster and balances are locked
// in once bidding begins (spec §3, "Non-goals": roster changes mid-auction
// are out of scope).
func (e *Engine) RegisterManager(auctionID, managerID string, initialBalance int64) *Error {
	s, err := e.lookup(auctionID)
	if err != nil {
		return err
	}
	result := e.submitSync(s, Command{Kind: "registerManager", AuctionID: auctionID, ActorID: managerID, Amount: initialBalance})
	return result.Err
}

func (e *Engine) lookup(auctionID string) (*session, *Error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sess[auctionID]
	if !ok {
		return nil, newErr(ErrUnknownAuction, "no auction with id %s", auctionID)
	}
	return s, nil
}

// Submit enqueues cmd on its auction's serialized executor and blocks for
// the result. If ctx carries a deadline, it is copied onto the command so
// the executor can drop a stale command rather than apply it late (spec §5,
// "Cancellation & timeouts").
func (e *Engine) Submit(ctx context.Context, cmd Command) Result {
	s, err := e.lookup(cmd.AuctionID)
	if err != nil {
		return Result{Err: err}
	}
	if deadline, ok := ctx.Deadline(); ok {
		cmd.Deadline = deadline
	}
	return e.submitSync(s, cmd)
}

func (e *Engine) submitSync(s *session, cmd Command) Result {
	env := &envelope{cmd: cmd, result: make(chan Result, 1)}
	select {
	case s.queue <- env:
	case <-s.done:
		return Result{Err: newErr(ErrUnknownAuction, "auction %s is no longer running", s.id)}
	}
	select {
	case res := <-env.result:
		return res
	case <-s.done:
		return Result{Err: newErr(ErrUnknownAuction, "auction %s is no longer running", s.id)}
	}
}

// Snapshot returns the current resync view of one auction.
func (e *Engine) Snapshot(auctionID string) (*Snapshot, *Error) {
	s, err := e.lookup(auctionID)
	if err != nil {
		return nil, err
	}
	res := e.submitSync(s, Command{Kind: "snapshot", AuctionID: auctionID})
	return res.Snapshot, res.Err
}

// Subscribe registers a realtime subscriber for auctionID's broadcast room,
// passing through to the Broadcaster (spec §4.6(b)).
func (e *Engine) Subscribe(auctionID string, includeResync bool) (*broadcast.Subscriber, *Error) {
	if _, err := e.lookup(auctionID); err != nil {
		return nil, err
	}
	return e.bc.Subscribe(auctionID, includeResync), nil
}

// Unsubscribe passes through to the Broadcaster.
func (e *Engine) Unsubscribe(auctionID string, sub *broadcast.Subscriber) {
	e.bc.Unsubscribe(auctionID, sub)
}

// ListAuctions returns every live auction id known to the engine.
func (e *Engine) ListAuctions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.sess))
	for id := range e.sess {
		out = append(out, id)
	}
	return out
}

// WithTimeout is a small convenience matching the teacher's handler style
// of deriving a bounded context per inbound request rather than letting a
// stuck auction queue block a caller forever.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}
