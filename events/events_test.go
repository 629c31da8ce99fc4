package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func runNatsServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   server.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestSubject(t *testing.T) {
	if got := Subject("socialbox", FollowAccepted); got != "socialbox.follow.accepted" {
		t.Errorf("Subject() = %q, want %q", got, "socialbox.follow.accepted")
	}
}

func TestFollowEvent_JSON(t *testing.T) {
	ev := FollowEvent{
		RequestID: "req-1",
		Sender:    "alice",
		Recipient: "bob",
		Action:    FollowRequested,
		At:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["action"] != "requested" || decoded["sender"] != "alice" || decoded["recipient"] != "bob" {
		t.Errorf("unexpected payload: %s", data)
	}
}

func TestNop_PublishFollow(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.PublishFollow(context.Background(), FollowEvent{}); err != nil {
		t.Errorf("Nop.PublishFollow() = %v, want nil", err)
	}
	p.Close()
}

func TestNewNatsPublisher_Unreachable(t *testing.T) {
	if _, err := NewNatsPublisher("nats://127.0.0.1:1", "socialbox"); err == nil {
		t.Fatal("expected connect error for unreachable server")
	}
}

func TestNatsPublisher_PublishFollow(t *testing.T) {
	ns := runNatsServer(t)

	sub, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("subscriber connect: %v", err)
	}
	defer sub.Close()
	msgs := make(chan *nats.Msg, 1)
	if _, err := sub.ChanSubscribe("socialbox.follow.>", msgs); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	pub, err := NewNatsPublisher(ns.ClientURL(), "socialbox")
	if err != nil {
		t.Fatalf("NewNatsPublisher: %v", err)
	}
	defer pub.Close()

	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	err = pub.PublishFollow(context.Background(), FollowEvent{
		RequestID: "req-9",
		Sender:    "alice",
		Recipient: "bob",
		Action:    FollowAccepted,
		At:        at,
	})
	if err != nil {
		t.Fatalf("PublishFollow: %v", err)
	}

	select {
	case msg := <-msgs:
		if msg.Subject != "socialbox.follow.accepted" {
			t.Errorf("subject = %q, want socialbox.follow.accepted", msg.Subject)
		}
		var got FollowEvent
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.RequestID != "req-9" || got.Sender != "alice" || got.Recipient != "bob" || !got.At.Equal(at) {
			t.Errorf("event = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestNatsPublisher_CanceledContext(t *testing.T) {
	ns := runNatsServer(t)
	pub, err := NewNatsPublisher(ns.ClientURL(), "socialbox")
	if err != nil {
		t.Fatalf("NewNatsPublisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.PublishFollow(ctx, FollowEvent{Action: FollowRequested}); err == nil {
		t.Error("publish with a canceled context should fail")
	}
}
