package notify

import (
	"testing"

	"aijudge-backend/models"
)

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestBusScopesEventsToCase(t *testing.T) {
	bus := NewBus()
	a := bus.Join("case_a")
	defer a.Close()
	b := bus.Join("case_b")
	defer b.Close()

	bus.Publish(VerdictRendered("case_a", models.Verdict{Decision: models.DecisionFavorSideA}))

	got := drain(a.Events)
	if len(got) != 1 || got[0].Type != EventVerdictRendered || got[0].Verdict.Decision != models.DecisionFavorSideA {
		t.Fatalf("case_a events = %+v", got)
	}
	if other := drain(b.Events); len(other) != 0 {
		t.Fatalf("case_b received %+v", other)
	}
}

func TestBusPreservesOrder(t *testing.T) {
	bus := NewBus()
	sub := bus.Join("case_a")
	defer sub.Close()

	for i := 1; i <= 5; i++ {
		bus.Publish(ArgumentAdded("case_a", models.Argument{Side: models.SideA, ArgumentNumber: i}))
	}
	got := drain(sub.Events)
	if len(got) != 5 {
		t.Fatalf("got %d events", len(got))
	}
	for i, e := range got {
		if e.ArgumentNumber != i+1 {
			t.Fatalf("event %d has argument number %d", i, e.ArgumentNumber)
		}
	}
}

func TestBusDropsWhenBufferFull(t *testing.T) {
	bus := NewBus(WithSubscriberCapacity(2))
	sub := bus.Join("case_a")
	defer sub.Close()

	for i := 1; i <= 4; i++ {
		bus.Publish(ArgumentAdded("case_a", models.Argument{ArgumentNumber: i}))
	}
	got := drain(sub.Events)
	if len(got) != 2 || got[0].ArgumentNumber != 1 || got[1].ArgumentNumber != 2 {
		t.Fatalf("expected the first two events to survive, got %+v", got)
	}
}

func TestBusNoReplayAndClose(t *testing.T) {
	bus := NewBus()
	bus.Publish(VerdictRendered("case_a", models.Verdict{}))

	sub := bus.Join("case_a")
	if got := drain(sub.Events); len(got) != 0 {
		t.Fatalf("late subscriber received %+v", got)
	}
	if bus.Subscribers("case_a") != 1 {
		t.Fatal("expected one subscriber")
	}

	sub.Close()
	sub.Close()
	if _, ok := <-sub.Events; ok {
		t.Fatal("channel should be closed")
	}
	if bus.Subscribers("case_a") != 0 {
		t.Fatal("subscriber not removed")
	}
	// publishing after everyone left must not panic
	bus.Publish(VerdictRendered("case_a", models.Verdict{}))
}
