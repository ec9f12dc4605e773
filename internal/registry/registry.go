// Package registry is the lobby-facing directory of auctions: names,
// admins, manager rosters and seeded balances, and which auctions are
// still joinable. It is deliberately separate from internal/engine, which
// owns full auction state once bidding begins, the way the teacher's
// lobby.Manager tracked open games separately from game.Manager's full
// game state.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/lukev/auctionhouse/internal/catalog"
	"github.com/lukev/auctionhouse/internal/engine"
)

// ManagerMeta is one registered manager seat on an auction (spec §3,
// "Manager"): displayName and connected are lobby/presence concerns the
// engine's ledger doesn't track.
type ManagerMeta struct {
	ManagerID      string    `json:"managerID"`
	DisplayName    string    `json:"displayName"`
	InitialBalance int64     `json:"initialBalance"`
	Connected      bool      `json:"connected"`
	RegisteredAt   time.Time `json:"registeredAt"`
}

// AuctionMeta is the lobby-visible projection of an auction: enough to list
// and join it without touching the engine's live session.
type AuctionMeta struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	AdminID     string                  `json:"adminID"`
	MaxManagers int                     `json:"maxManagers"`
	CreatedAt   time.Time               `json:"createdAt"`
	Managers    map[string]*ManagerMeta `json:"managers"`
	Started     bool                    `json:"started"`
}

// Registry maintains the directory of auctions available to join, the way
// the teacher's lobby.Manager maintained joinable games ahead of game.Manager
// taking over full state once a game starts.
type Registry struct {
	mu       sync.RWMutex
	auctions map[string]*AuctionMeta
	eng      *engine.Engine
}

// New creates a Registry that creates and starts auctions through eng.
func New(eng *engine.Engine) *Registry {
	return &Registry{auctions: make(map[string]*AuctionMeta), eng: eng}
}

// CreateSpec describes a new auction's lobby-level setup plus the
// engine-level catalog and config it will start with.
type CreateSpec struct {
	Name          string
	AdminID       string
	MaxManagers   int
	CategoryOrder []catalog.Category
	Players       []catalog.Player
	Config        engine.Config
}

// CreateAuction registers a new joinable auction and starts its engine
// session in draft status.
func (r *Registry) CreateAuction(spec CreateSpec) (*AuctionMeta, error) {
	if spec.MaxManagers <= 0 {
		return nil, fmt.Errorf("registry: maxManagers must be positive")
	}

	id, err := r.eng.CreateAuction(engine.CreateAuctionSpec{
		Name:          spec.Name,
		AdminID:       spec.AdminID,
		CategoryOrder: spec.CategoryOrder,
		Players:       spec.Players,
		Config:        spec.Config,
	})
	if err != nil {
		return nil, err
	}

	meta := &AuctionMeta{
		ID:          id,
		Name:        spec.Name,
		AdminID:     spec.AdminID,
		MaxManagers: spec.MaxManagers,
		CreatedAt:   time.Now(),
		Managers:    make(map[string]*ManagerMeta),
	}

	r.mu.Lock()
	r.auctions[id] = meta
	r.mu.Unlock()
	return meta, nil
}

// Join registers managerID on auctionID's roster, up to maxManagers, and
// seeds its ledger balance. Rejected once the auction has started (spec
// §3, roster is fixed once bidding begins).
func (r *Registry) Join(auctionID, managerID, displayName string, initialBalance int64) (*AuctionMeta, error) {
	r.mu.Lock()
	meta, ok := r.auctions[auctionID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("registry: no auction with id %s", auctionID)
	}
	if meta.Started {
		r.mu.Unlock()
		return nil, fmt.Errorf("registry: auction %s has already started", auctionID)
	}
	if _, exists := meta.Managers[managerID]; !exists && len(meta.Managers) >= meta.MaxManagers {
		r.mu.Unlock()
		return nil, fmt.Errorf("registry: auction %s roster is full", auctionID)
	}
	meta.Managers[managerID] = &ManagerMeta{
		ManagerID:      managerID,
		DisplayName:    displayName,
		InitialBalance: initialBalance,
		Connected:      true,
		RegisteredAt:   time.Now(),
	}
	r.mu.Unlock()

	if err := r.eng.RegisterManager(auctionID, managerID, initialBalance); err != nil {
		return nil, err
	}
	return meta, nil
}

// Leave removes managerID from a draft auction's roster. A no-op once the
// auction has started, mirroring the teacher's LeaveGame being a best-effort
// roster edit rather than an engine command.
func (r *Registry) Leave(auctionID, managerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta, ok := r.auctions[auctionID]
	if !ok {
		return fmt.Errorf("registry: no auction with id %s", auctionID)
	}
	if meta.Started {
		return nil
	}
	delete(meta.Managers, managerID)
	return nil
}

// MarkStarted flags an auction as no longer joinable. Called by the admin
// REST handler immediately before issuing the engine Start command.
func (r *Registry) MarkStarted(auctionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if meta, ok := r.auctions[auctionID]; ok {
		meta.Started = true
	}
}

// SetConnected flips a manager's presence flag, used by the websocket
// transport on connect/disconnect.
func (r *Registry) SetConnected(auctionID, managerID string, connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if meta, ok := r.auctions[auctionID]; ok {
		if mgr, ok := meta.Managers[managerID]; ok {
			mgr.Connected = connected
		}
	}
}

// Get returns one auction's lobby metadata.
func (r *Registry) Get(auctionID string) (*AuctionMeta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.auctions[auctionID]
	return meta, ok
}

// List returns every registered auction's lobby metadata.
func (r *Registry) List() []*AuctionMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*AuctionMeta, 0, len(r.auctions))
	for _, m := range r.auctions {
		out = append(out, m)
	}
	return out
}
