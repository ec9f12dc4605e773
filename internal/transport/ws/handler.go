package ws

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/lukev/auctionhouse/internal/engine"
	"github.com/lukev/auctionhouse/internal/registry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Admin and manager clients are expected to be served from the
		// same origin as the control API in production; allow all here
		// the way the teacher's dev upgrader does.
		return true
	},
}

// Handler upgrades HTTP connections into auction-subscribed websocket
// clients (spec §4.6, the realtime transport).
type Handler struct {
	eng *engine.Engine
	reg *registry.Registry
}

// NewHandler creates a Handler serving realtime connections against eng
// and reg.
func NewHandler(eng *engine.Engine, reg *registry.Registry) *Handler {
	return &Handler{eng: eng, reg: reg}
}

// ServeAuction upgrades r into a websocket client subscribed to the
// auctionID/managerID named by the request's query parameters.
func (h *Handler) ServeAuction(w http.ResponseWriter, r *http.Request) {
	auctionID := r.URL.Query().Get("auctionID")
	managerID := r.URL.Query().Get("managerID")
	if auctionID == "" || managerID == "" {
		http.Error(w, "missing auctionID or managerID", http.StatusBadRequest)
		return
	}

	sub, err := h.eng.Subscribe(auctionID, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed for auction %s: %v", auctionID, err)
		h.eng.Unsubscribe(auctionID, sub)
		return
	}

	if h.reg != nil {
		h.reg.SetConnected(auctionID, managerID, true)
	}

	client := newClient(conn, h.eng, auctionID, managerID, sub)
	go func() {
		client.run()
		if h.reg != nil {
			h.reg.SetConnected(auctionID, managerID, false)
		}
	}()
}
