package eventbus

import (
	"testing"
	"time"
)

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T("adapter", "rtds1", "state"))
	msg := conn.NewMessage(T("adapter", "rtds1", "state"), "running", false)
	conn.Publish(msg)

	select {
	case got := <-sub.Channel():
		if got.Payload.(string) != "running" {
			t.Errorf("expected payload 'running', got %v", got.Payload)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}

func TestRetainedMessage(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(T("adapter", "rtds1", "state"), "running", true))
	sub := conn.Subscribe(T("adapter", "rtds1", "state"))

	select {
	case got := <-sub.Channel():
		if got.Payload.(string) != "running" {
			t.Errorf("expected retained payload 'running', got %v", got.Payload)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for retained message")
	}
}

func TestWildcardMultiLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sAll := c.Subscribe(T("adapter", "#"))
	c.Publish(b.NewMessage(T("adapter", "rtds1", "state"), "running", false))

	select {
	case got := <-sAll.Channel():
		if got.Payload.(string) != "running" {
			t.Fatalf("unexpected payload: %v", got.Payload)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for wildcard delivery")
	}
}

func TestPublishWithNoSubscribersIsNoop(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")
	// Must not panic or block even though nothing subscribes.
	conn.Publish(conn.NewMessage(T("adapter", "ghost", "state"), "stopped", false))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")
	sub := conn.Subscribe(T("adapter", "rtds1", "state"))
	sub.Unsubscribe()

	conn.Publish(conn.NewMessage(T("adapter", "rtds1", "state"), "running", false))
	select {
	case _, ok := <-sub.Channel():
		if ok {
			t.Fatal("expected no message after unsubscribe")
		}
	case <-time.After(60 * time.Millisecond):
	}
}
