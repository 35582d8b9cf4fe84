package event

import "testing"

func TestSubscribeAndEmit(t *testing.T) {
	b := NewBus()

	var got []any
	b.Subscribe("tick", "focus-timer", func(args ...any) {
		got = append(got, args...)
	})

	b.Emit("tick", 1, "two")

	if len(got) != 2 || got[0] != 1 || got[1] != "two" {
		t.Errorf("handler got %v, want [1 two]", got)
	}
}

func TestEmitOrder(t *testing.T) {
	b := NewBus()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		b.Subscribe("tick", name, func(args ...any) {
			order = append(order, name)
		})
	}

	b.Emit("tick")

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestEmitNoSubscribers(t *testing.T) {
	b := NewBus()
	b.Emit("nothing-listens") // must not panic
}

func TestUnsubscribeExactRegistration(t *testing.T) {
	b := NewBus()

	calls := make(map[string]int)
	handler := func(key string) Handler {
		return func(args ...any) { calls[key]++ }
	}

	// Same owner, same event, two registrations: removal is by token, not
	// by (event, owner).
	sub1 := b.Subscribe("tick", "p", handler("one"))
	b.Subscribe("tick", "p", handler("two"))

	if !b.Unsubscribe(sub1) {
		t.Fatal("Unsubscribe() = false, want true")
	}
	b.Emit("tick")

	if calls["one"] != 0 {
		t.Error("removed handler still ran")
	}
	if calls["two"] != 1 {
		t.Errorf("surviving handler ran %d times, want 1", calls["two"])
	}

	if b.Unsubscribe(sub1) {
		t.Error("repeat Unsubscribe() = true, want false")
	}
	if b.Unsubscribe(nil) {
		t.Error("Unsubscribe(nil) = true, want false")
	}
}

func TestSubscribeNilHandler(t *testing.T) {
	b := NewBus()

	if sub := b.Subscribe("tick", "p", nil); sub != nil {
		t.Error("Subscribe() with nil handler returned a token")
	}
	if sub := b.Subscribe("", "p", func(args ...any) {}); sub != nil {
		t.Error("Subscribe() with empty event returned a token")
	}
}

func TestPanickingHandlerDoesNotStopDispatch(t *testing.T) {
	b := NewBus()

	ran := false
	b.Subscribe("tick", "broken", func(args ...any) { panic("handler bug") })
	b.Subscribe("tick", "ok", func(args ...any) { ran = true })

	b.Emit("tick")

	if !ran {
		t.Error("handler after the panicking one did not run")
	}
}

func TestRemoveOwner(t *testing.T) {
	b := NewBus()

	b.Subscribe("tick", "plugin-a", func(args ...any) {})
	b.Subscribe("tock", "plugin-a", func(args ...any) {})
	b.Subscribe("tick", "plugin-b", func(args ...any) {})

	if removed := b.RemoveOwner("plugin-a"); removed != 2 {
		t.Errorf("RemoveOwner() = %d, want 2", removed)
	}
	if b.OwnerCount("plugin-a") != 0 {
		t.Error("plugin-a subscriptions survived RemoveOwner")
	}
	if b.SubscriberCount("tick") != 1 {
		t.Errorf("SubscriberCount(tick) = %d, want 1", b.SubscriberCount("tick"))
	}
}

func TestHandlerMaySubscribeDuringDispatch(t *testing.T) {
	b := NewBus()

	b.Subscribe("tick", "p", func(args ...any) {
		b.Subscribe("tock", "p", func(args ...any) {})
	})

	b.Emit("tick") // must not deadlock

	if b.SubscriberCount("tock") != 1 {
		t.Error("subscription made during dispatch was lost")
	}
}
