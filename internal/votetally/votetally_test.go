package votetally

import "testing"

func TestRecordCountsLikesAndDislikes(t *testing.T) {
	tally := New(0.6)
	likes, dislikes, self := tally.Record("m1", "p1", Like)
	if likes != 1 || dislikes != 0 || self != Like {
		t.Fatalf("Record = (%d, %d, %v), want (1, 0, Like)", likes, dislikes, self)
	}

	likes, dislikes, self = tally.Record("m2", "p1", Dislike)
	if likes != 1 || dislikes != 1 || self != Dislike {
		t.Fatalf("Record = (%d, %d, %v), want (1, 1, Dislike)", likes, dislikes, self)
	}
}

func TestRecordReplacesPriorVote(t *testing.T) {
	tally := New(0.6)
	tally.Record("m1", "p1", Like)
	likes, dislikes, _ := tally.Record("m1", "p1", Dislike)
	if likes != 0 || dislikes != 1 {
		t.Fatalf("Record after flip = (%d, %d), want (0, 1)", likes, dislikes)
	}
}

func TestSkipAdvisedThreshold(t *testing.T) {
	tally := New(0.6)
	tally.Record("m1", "p1", Dislike)
	tally.Record("m2", "p1", Dislike)

	// ceil(3 * 0.6) = 2, so 2 dislikes out of 3 active managers should advise.
	if !tally.SkipAdvised("p1", 3) {
		t.Fatal("expected skip to be advised at 2/3 dislikes with 0.6 fraction")
	}
	// ceil(5 * 0.6) = 3, so 2 dislikes out of 5 should not advise.
	if tally.SkipAdvised("p1", 5) {
		t.Fatal("expected skip not advised at 2/5 dislikes with 0.6 fraction")
	}
}

func TestSkipAdvisedUnknownPlayer(t *testing.T) {
	tally := New(0.6)
	if tally.SkipAdvised("ghost", 10) {
		t.Fatal("expected no skip advisory for a player with no votes")
	}
}

func TestCountsUnknownPlayer(t *testing.T) {
	tally := New(0.6)
	likes, dislikes := tally.Counts("ghost")
	if likes != 0 || dislikes != 0 {
		t.Fatalf("Counts(ghost) = (%d, %d), want (0, 0)", likes, dislikes)
	}
}
