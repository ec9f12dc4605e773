package registry

import (
	"testing"

	"github.com/lukev/auctionhouse/internal/broadcast"
	"github.com/lukev/auctionhouse/internal/catalog"
	"github.com/lukev/auctionhouse/internal/engine"
	"github.com/lukev/auctionhouse/internal/store"
)

func testSpec() CreateSpec {
	return CreateSpec{
		Name:          "league auction",
		AdminID:       "admin-1",
		MaxManagers:   2,
		CategoryOrder: []catalog.Category{"GK"},
		Players:       []catalog.Player{{ID: "p1", DisplayName: "Keeper", Category: "GK", BaseValue: 10}},
		Config:        engine.DefaultConfig(),
	}
}

func newTestRegistry() *Registry {
	eng := engine.New(broadcast.New(), store.NewMemStore())
	return New(eng)
}

func TestCreateAuctionRegistersMeta(t *testing.T) {
	r := newTestRegistry()
	meta, err := r.CreateAuction(testSpec())
	if err != nil {
		t.Fatalf("CreateAuction: %v", err)
	}
	if meta.Name != "league auction" || meta.Started {
		t.Fatalf("meta = %+v", meta)
	}
	got, ok := r.Get(meta.ID)
	if !ok || got.ID != meta.ID {
		t.Fatalf("Get after create = %+v, ok=%v", got, ok)
	}
}

func TestCreateAuctionRejectsNonPositiveMaxManagers(t *testing.T) {
	r := newTestRegistry()
	spec := testSpec()
	spec.MaxManagers = 0
	if _, err := r.CreateAuction(spec); err == nil {
		t.Fatal("expected error for maxManagers <= 0")
	}
}

func TestJoinFillsRosterUpToCap(t *testing.T) {
	r := newTestRegistry()
	meta, _ := r.CreateAuction(testSpec())

	if _, err := r.Join(meta.ID, "m1", "Alice", 100); err != nil {
		t.Fatalf("Join m1: %v", err)
	}
	if _, err := r.Join(meta.ID, "m2", "Bob", 100); err != nil {
		t.Fatalf("Join m2: %v", err)
	}
	if _, err := r.Join(meta.ID, "m3", "Carol", 100); err == nil {
		t.Fatal("expected roster-full error for a third manager with MaxManagers=2")
	}
}

func TestJoinIsIdempotentForExistingManager(t *testing.T) {
	r := newTestRegistry()
	meta, _ := r.CreateAuction(testSpec())
	r.Join(meta.ID, "m1", "Alice", 100)
	if _, err := r.Join(meta.ID, "m1", "Alice", 100); err != nil {
		t.Fatalf("re-joining an existing manager should not hit the roster cap: %v", err)
	}
}

func TestJoinRejectedAfterStart(t *testing.T) {
	r := newTestRegistry()
	meta, _ := r.CreateAuction(testSpec())
	r.MarkStarted(meta.ID)

	if _, err := r.Join(meta.ID, "m1", "Alice", 100); err == nil {
		t.Fatal("expected Join to be rejected once the auction has started")
	}
}

func TestLeaveRemovesFromRoster(t *testing.T) {
	r := newTestRegistry()
	meta, _ := r.CreateAuction(testSpec())
	r.Join(meta.ID, "m1", "Alice", 100)

	if err := r.Leave(meta.ID, "m1"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	got, _ := r.Get(meta.ID)
	if _, exists := got.Managers["m1"]; exists {
		t.Fatal("expected m1 removed from roster after Leave")
	}
}

func TestLeaveIsNoopAfterStart(t *testing.T) {
	r := newTestRegistry()
	meta, _ := r.CreateAuction(testSpec())
	r.Join(meta.ID, "m1", "Alice", 100)
	r.MarkStarted(meta.ID)

	if err := r.Leave(meta.ID, "m1"); err != nil {
		t.Fatalf("Leave after start should be a no-op, not an error: %v", err)
	}
	got, _ := r.Get(meta.ID)
	if _, exists := got.Managers["m1"]; !exists {
		t.Fatal("Leave after start must not actually remove the manager")
	}
}

func TestSetConnectedTogglesPresence(t *testing.T) {
	r := newTestRegistry()
	meta, _ := r.CreateAuction(testSpec())
	r.Join(meta.ID, "m1", "Alice", 100)

	r.SetConnected(meta.ID, "m1", false)
	got, _ := r.Get(meta.ID)
	if got.Managers["m1"].Connected {
		t.Fatal("expected Connected=false after SetConnected(false)")
	}
}

func TestListReturnsAllAuctions(t *testing.T) {
	r := newTestRegistry()
	r.CreateAuction(testSpec())
	r.CreateAuction(testSpec())
	if len(r.List()) != 2 {
		t.Fatalf("List() returned %d auctions, want 2", len(r.List()))
	}
}
