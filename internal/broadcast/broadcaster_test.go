package broadcast

import "testing"

func TestPublishDeliversInOrder(t *testing.T) {
	b := New()
	sub := b.Subscribe("a1", false)

	b.Publish("a1", BidAccepted, "first", 1)
	b.Publish("a1", BidAccepted, "second", 2)

	e1 := <-sub.Events()
	e2 := <-sub.Events()
	if e1.Seq >= e2.Seq {
		t.Fatalf("events out of order: seq %d then %d", e1.Seq, e2.Seq)
	}
	if e1.Payload != "first" || e2.Payload != "second" {
		t.Fatalf("payload order wrong: %v, %v", e1.Payload, e2.Payload)
	}
}

func TestSubscribeWithResyncSeedsTail(t *testing.T) {
	b := New()
	b.Publish("a1", BidAccepted, "before-subscribe", 1)

	sub := b.Subscribe("a1", true)
	select {
	case e := <-sub.Events():
		if e.Payload != "before-subscribe" {
			t.Fatalf("resync payload = %v, want before-subscribe", e.Payload)
		}
	default:
		t.Fatal("expected a resync-seeded event to be immediately available")
	}
}

func TestSubscribeWithoutResyncGetsNoBacklog(t *testing.T) {
	b := New()
	b.Publish("a1", BidAccepted, "before-subscribe", 1)

	sub := b.Subscribe("a1", false)
	select {
	case e := <-sub.Events():
		t.Fatalf("unexpected backlog event delivered without resync: %v", e)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe("a1", false)
	b.Unsubscribe("a1", sub)

	_, ok := <-sub.Events()
	if ok {
		t.Fatal("expected subscriber channel to be closed after Unsubscribe")
	}
}

func TestSlowSubscriberIsDroppedNotBlocked(t *testing.T) {
	b := New()
	b.Subscribe("a1", false)

	// Fill the subscriber's bounded queue without draining it.
	for i := 0; i < queueDepth+10; i++ {
		b.Publish("a1", BidAccepted, i, int64(i))
	}

	if n := b.SubscriberCount("a1"); n != 0 {
		t.Fatalf("SubscriberCount = %d, want 0 after the slow subscriber was dropped", n)
	}
}

func TestSubscriberCount(t *testing.T) {
	b := New()
	if b.SubscriberCount("a1") != 0 {
		t.Fatal("expected zero subscribers on an unknown room")
	}
	sub := b.Subscribe("a1", false)
	if b.SubscriberCount("a1") != 1 {
		t.Fatal("expected one subscriber after Subscribe")
	}
	b.Unsubscribe("a1", sub)
	if b.SubscriberCount("a1") != 0 {
		t.Fatal("expected zero subscribers after Unsubscribe")
	}
}
