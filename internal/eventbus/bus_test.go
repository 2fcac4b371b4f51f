package eventbus

import "testing"

func TestPublishFansOutAndDropsWhenFull(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(4)
	defer unsubC()

	Publish(b, TaskCreated, "one")
	Publish(b, TaskDeleted, "two")

	if e := <-a; e.Type != TaskCreated {
		t.Fatalf("first event = %q, want %q", e.Type, TaskCreated)
	}
	select {
	case e := <-a:
		t.Fatalf("expected drop on full buffer, got %q", e.Type)
	default:
	}
	if got := len(c); got != 2 {
		t.Fatalf("second subscriber buffered %d events, want 2", got)
	}

	unsubA()
	unsubA()
	Publish(b, AlarmFired, nil)
	if _, ok := <-a; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
}

func TestPublishNilPublisher(t *testing.T) {
	t.Parallel()
	Publish(nil, TaskCreated, nil)
}
