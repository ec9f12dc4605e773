// Package api is the admin-facing REST control surface: create/join an
// auction and issue the control commands (start/stop/continue/finalCall/
// skip/undo) that spec §4.4 says an admin may invoke over HTTP rather than
// the realtime socket. Grounded on the teacher's api.ReplayHandler: one
// handler type wrapping its dependencies, routes registered on a mux
// subrouter, request bodies decoded with encoding/json.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lukev/auctionhouse/internal/catalog"
	"github.com/lukev/auctionhouse/internal/engine"
	"github.com/lukev/auctionhouse/internal/registry"
)

const requestTimeout = 3 * time.Second

// AuctionsHandler exposes the lobby/control REST surface.
type AuctionsHandler struct {
	eng *engine.Engine
	reg *registry.Registry
}

// NewAuctionsHandler creates a handler backed by eng and reg.
func NewAuctionsHandler(eng *engine.Engine, reg *registry.Registry) *AuctionsHandler {
	return &AuctionsHandler{eng: eng, reg: reg}
}

// RegisterRoutes wires every endpoint under /api/auctions onto router, the
// way ReplayHandler.RegisterRoutes wires a subrouter under /api/replay.
func (h *AuctionsHandler) RegisterRoutes(router *mux.Router) {
	s := router.PathPrefix("/api/auctions").Subrouter()
	s.HandleFunc("", h.handleCreate).Methods("POST")
	s.HandleFunc("", h.handleList).Methods("GET")
	s.HandleFunc("/{id}", h.handleGet).Methods("GET")
	s.HandleFunc("/{id}/snapshot", h.handleSnapshot).Methods("GET")
	s.HandleFunc("/{id}/join", h.handleJoin).Methods("POST")
	s.HandleFunc("/{id}/leave", h.handleLeave).Methods("POST")
	s.HandleFunc("/{id}/start", h.handleControl(engine.KindStart)).Methods("POST")
	s.HandleFunc("/{id}/stop", h.handleControl(engine.KindStop)).Methods("POST")
	s.HandleFunc("/{id}/continue", h.handleControl(engine.KindContinue)).Methods("POST")
	s.HandleFunc("/{id}/finalCall", h.handleControl(engine.KindFinalCall)).Methods("POST")
	s.HandleFunc("/{id}/skip", h.handleControl(engine.KindSkip)).Methods("POST")
	s.HandleFunc("/{id}/undo", h.handleControl(engine.KindUndo)).Methods("POST")
	router.HandleFunc("/health", h.handleHealth).Methods("GET")
}

type createAuctionRequest struct {
	Name          string          `json:"name"`
	AdminID       string          `json:"adminID"`
	MaxManagers   int             `json:"maxManagers"`
	CategoryOrder []string        `json:"categoryOrder,omitempty"`
	Players       []playerRequest `json:"players"`
	Config        *configRequest  `json:"config,omitempty"`
}

type playerRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Category    string `json:"category"`
	BaseValue   int64  `json:"baseValue"`
}

type configRequest struct {
	InitialBidMs         int64   `json:"initialBidMs,omitempty"`
	AntiSnipeThresholdMs int64   `json:"antiSnipeThresholdMs,omitempty"`
	AntiSnipeExtensionMs int64   `json:"antiSnipeExtensionMs,omitempty"`
	MinIncrement         int64   `json:"minIncrement,omitempty"`
	DislikeFraction      float64 `json:"dislikeFraction,omitempty"`
}

func (h *AuctionsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	order := make([]catalog.Category, 0, len(req.CategoryOrder))
	for _, c := range req.CategoryOrder {
		order = append(order, catalog.Category(c))
	}
	players := make([]catalog.Player, 0, len(req.Players))
	for _, p := range req.Players {
		players = append(players, catalog.Player{
			ID: p.ID, DisplayName: p.DisplayName, Category: catalog.Category(p.Category), BaseValue: p.BaseValue,
		})
	}
	cfg := engine.DefaultConfig()
	if req.Config != nil {
		if req.Config.InitialBidMs > 0 {
			cfg.InitialBidMs = req.Config.InitialBidMs
		}
		if req.Config.AntiSnipeThresholdMs > 0 {
			cfg.AntiSnipeThresholdMs = req.Config.AntiSnipeThresholdMs
		}
		if req.Config.AntiSnipeExtensionMs > 0 {
			cfg.AntiSnipeExtensionMs = req.Config.AntiSnipeExtensionMs
		}
		if req.Config.MinIncrement > 0 {
			cfg.MinIncrement = req.Config.MinIncrement
		}
		if req.Config.DislikeFraction > 0 {
			cfg.DislikeFraction = req.Config.DislikeFraction
		}
	}

	meta, err := h.reg.CreateAuction(registry.CreateSpec{
		Name: req.Name, AdminID: req.AdminID, MaxManagers: req.MaxManagers,
		CategoryOrder: order, Players: players, Config: cfg,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

func (h *AuctionsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reg.List())
}

func (h *AuctionsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	meta, ok := h.reg.Get(id)
	if !ok {
		http.Error(w, "auction not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *AuctionsHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, engErr := h.eng.Snapshot(id)
	if engErr != nil {
		writeEngineError(w, engErr)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type joinRequest struct {
	ManagerID      string `json:"managerID"`
	DisplayName    string `json:"displayName"`
	InitialBalance int64  `json:"initialBalance"`
}

func (h *AuctionsHandler) handleJoin(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	meta, err := h.reg.Join(id, req.ManagerID, req.DisplayName, req.InitialBalance)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

type leaveRequest struct {
	ManagerID string `json:"managerID"`
}

func (h *AuctionsHandler) handleLeave(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req leaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.reg.Leave(id, req.ManagerID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type controlRequest struct {
	ActorID  string `json:"actorID"`
	PlayerID string `json:"playerID,omitempty"`
}

func (h *AuctionsHandler) handleControl(kind engine.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		var req controlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if kind == engine.KindStart {
			h.reg.MarkStarted(id)
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		res := h.eng.Submit(ctx, engine.Command{Kind: kind, AuctionID: id, ActorID: req.ActorID, PlayerID: req.PlayerID})
		if !res.Success() {
			writeEngineError(w, res.Err)
			return
		}
		writeJSON(w, http.StatusOK, res.Snapshot)
	}
}

func (h *AuctionsHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeEngineError(w http.ResponseWriter, err *engine.Error) {
	status := http.StatusBadRequest
	switch err.Kind {
	case engine.ErrUnknownAuction, engine.ErrUnknownPlayer, engine.ErrUnknownManager:
		status = http.StatusNotFound
	case engine.ErrNotOwner:
		status = http.StatusForbidden
	case engine.ErrPersistence:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]interface{}{"errorKind": err.Kind, "message": err.Message})
}
