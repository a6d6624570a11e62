package room

import "testing"

func TestEventBufferOrderAndReplay(t *testing.T) {
	buf := NewEventBuffer(10)
	ev1 := buf.Append("a", "g1", map[string]any{"n": 1})
	ev2 := buf.Append("b", "g1", map[string]any{"n": 2})
	ev3 := buf.Append("c", "g1", map[string]any{"n": 3})

	if ev1.EventID != "1" || ev2.EventID != "2" || ev3.EventID != "3" {
		t.Fatalf("unexpected event ids: %s %s %s", ev1.EventID, ev2.EventID, ev3.EventID)
	}

	replay := buf.ReplayAfter("1")
	if len(replay) != 2 {
		t.Fatalf("expected 2 replay events, got %d", len(replay))
	}
	if replay[0].EventID != "2" || replay[1].EventID != "3" {
		t.Fatalf("unexpected replay order: %+v", replay)
	}
	if all := buf.ReplayAfter("garbage"); len(all) != 3 {
		t.Fatalf("expected full replay for bad id, got %d", len(all))
	}
}

func TestEventBufferTrimsToMax(t *testing.T) {
	buf := NewEventBuffer(2)
	for i := 0; i < 5; i++ {
		buf.Append("tick", "g1", i)
	}
	replay := buf.ReplayAfter("")
	if len(replay) != 2 || replay[0].EventID != "4" {
		t.Fatalf("unexpected trimmed buffer: %+v", replay)
	}
}

func TestEventBufferSubscribeAndClose(t *testing.T) {
	buf := NewEventBuffer(10)
	ch := buf.Subscribe()
	if buf.Watchers() != 1 {
		t.Fatalf("expected one watcher")
	}
	buf.Append("a", "g1", nil)
	ev := <-ch
	if ev.Event != "a" || ev.GameID != "g1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	buf.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	if got := buf.Append("b", "g1", nil); got.EventID != "" {
		t.Fatalf("append after close should be dropped, got %+v", got)
	}
	closed := buf.Subscribe()
	if _, ok := <-closed; ok {
		t.Fatalf("subscribe after close should return a closed channel")
	}
}
