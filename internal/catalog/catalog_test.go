package catalog

import "testing"

func TestNewRejectsEmptyCategoryOrder(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatal("expected error for empty category order")
	}
}

func TestNewRejectsUnknownCategory(t *testing.T) {
	_, err := New([]Category{"GK"}, []Player{{ID: "p1", Category: "DEF"}})
	if err == nil {
		t.Fatal("expected error for player referencing unknown category")
	}
}

func TestNewRejectsDuplicatePlayerID(t *testing.T) {
	players := []Player{
		{ID: "p1", Category: "GK"},
		{ID: "p1", Category: "GK"},
	}
	if _, err := New([]Category{"GK"}, players); err == nil {
		t.Fatal("expected error for duplicate player id")
	}
}

func TestQueueOrderingPreserved(t *testing.T) {
	players := []Player{
		{ID: "p1", Category: "GK", BaseValue: 10},
		{ID: "p2", Category: "DEF", BaseValue: 20},
		{ID: "p3", Category: "GK", BaseValue: 30},
	}
	cat, err := New([]Category{"GK", "DEF"}, players)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if n := cat.QueueLen("GK"); n != 2 {
		t.Fatalf("GK queue length = %d, want 2", n)
	}
	first, ok := cat.PlayerAt("GK", 0)
	if !ok || first.ID != "p1" {
		t.Fatalf("PlayerAt(GK, 0) = %+v, ok=%v", first, ok)
	}
	second, ok := cat.PlayerAt("GK", 1)
	if !ok || second.ID != "p3" {
		t.Fatalf("PlayerAt(GK, 1) = %+v, ok=%v", second, ok)
	}
	if _, ok := cat.PlayerAt("GK", 2); ok {
		t.Fatal("expected out-of-range PlayerAt to report false")
	}
}

func TestEmpty(t *testing.T) {
	cat, err := New([]Category{"GK", "DEF"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !cat.Empty() {
		t.Fatal("expected catalog with no players to report Empty")
	}

	cat2, err := New([]Category{"GK"}, []Player{{ID: "p1", Category: "GK"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cat2.Empty() {
		t.Fatal("expected catalog with a player to report non-empty")
	}
}

func TestPlayerLookup(t *testing.T) {
	cat, err := New([]Category{"GK"}, []Player{{ID: "p1", DisplayName: "Keeper", Category: "GK", BaseValue: 5}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p, ok := cat.Player("p1")
	if !ok || p.DisplayName != "Keeper" {
		t.Fatalf("Player(p1) = %+v, ok=%v", p, ok)
	}
	if _, ok := cat.Player("missing"); ok {
		t.Fatal("expected lookup of unknown player to fail")
	}
}

func TestDefaultCategoryOrder(t *testing.T) {
	order := DefaultCategoryOrder()
	want := []Category{"GK", "DEF", "MID", "ATT"}
	if len(order) != len(want) {
		t.Fatalf("DefaultCategoryOrder() = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("DefaultCategoryOrder()[%d] = %v, want %v", i, order[i], want[i])
		}
	}
}
