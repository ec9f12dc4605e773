package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lukev/auctionhouse/internal/broadcast"
	"github.com/lukev/auctionhouse/internal/catalog"
	"github.com/lukev/auctionhouse/internal/engine"
	"github.com/lukev/auctionhouse/internal/registry"
	"github.com/lukev/auctionhouse/internal/store"
)

func TestKindForKnownControlWords(t *testing.T) {
	cases := map[string]engine.Kind{
		"start": engine.KindStart, "stop": engine.KindStop, "continue": engine.KindContinue,
		"finalCall": engine.KindFinalCall, "skip": engine.KindSkip, "undo": engine.KindUndo,
	}
	for word, want := range cases {
		if got := kindFor(word); got != want {
			t.Fatalf("kindFor(%q) = %v, want %v", word, got, want)
		}
	}
}

func newTestHandler(t *testing.T) (*Handler, string) {
	t.Helper()
	eng := engine.New(broadcast.New(), store.NewMemStore())
	reg := registry.New(eng)
	meta, err := reg.CreateAuction(registry.CreateSpec{
		Name: "ws test", AdminID: "admin-1", MaxManagers: 2,
		CategoryOrder: []catalog.Category{"GK"},
		Players:       []catalog.Player{{ID: "p1", DisplayName: "Keeper", Category: "GK", BaseValue: 10}},
		Config:        engine.DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("CreateAuction: %v", err)
	}
	if _, err := reg.Join(meta.ID, "m1", "Alice", 100); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if res := eng.Submit(context.Background(), engine.Command{Kind: engine.KindStart, AuctionID: meta.ID, ActorID: "admin-1"}); !res.Success() {
		t.Fatalf("Start: %v", res.Err)
	}
	return NewHandler(eng, reg), meta.ID
}

func TestServeAuctionRejectsMissingParams(t *testing.T) {
	h := NewHandler(engine.New(broadcast.New(), store.NewMemStore()), nil)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeAuction))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServeAuctionUnknownAuctionIs404(t *testing.T) {
	h := NewHandler(engine.New(broadcast.New(), store.NewMemStore()), nil)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeAuction))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?auctionID=ghost&managerID=m1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestPlaceBidOverWebsocketRoundTrips(t *testing.T) {
	h, auctionID := newTestHandler(t)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeAuction))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?auctionID=" + auctionID + "&managerID=m1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// The resync-seeded snapshot subscription delivers at least one event
	// before our bid does; drain until we see bidAccepted or time out.
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"placeBid","payload":{"playerID":"p1","amount":10}}`))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	sawBidAccepted := false
	for i := 0; i < 10; i++ {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if strings.Contains(string(msg), "bidAccepted") {
			sawBidAccepted = true
			break
		}
	}
	if !sawBidAccepted {
		t.Fatal("expected a bidAccepted response over the websocket")
	}
}
