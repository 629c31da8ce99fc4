package messaging

import (
	"context"
	"strings"
	"testing"

	"socialbox/models"
	"socialbox/presence"
	"socialbox/repository"
)

// fakeNotifier models users with a fixed number of open tabs.
type fakeNotifier struct {
	tabs   map[string]int
	pushed map[string][]presence.Event
}

func newFakeNotifier(tabs map[string]int) *fakeNotifier {
	return &fakeNotifier{tabs: tabs, pushed: map[string][]presence.Event{}}
}

func (n *fakeNotifier) SendToUser(_ context.Context, userID string, ev presence.Event) (int, error) {
	count := n.tabs[userID]
	for i := 0; i < count; i++ {
		n.pushed[userID] = append(n.pushed[userID], ev)
	}
	return count, nil
}

func newStore(t *testing.T, ids ...string) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore()
	for _, id := range ids {
		err := store.Users().Create(context.Background(), &models.User{
			ID: id, UserName: id, FullName: strings.ToUpper(id), Email: id + "@example.com", IsOnboarded: true,
		})
		if err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	return store
}

func TestSendMessage_OnlineRecipientEveryTab(t *testing.T) {
	store := newStore(t, "alice", "bob")
	notifier := newFakeNotifier(map[string]int{"alice": 2, "bob": 3})
	svc := NewService(store, notifier, nil)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, "alice", "bob", "  hello bob  ")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.Text != "hello bob" {
		t.Errorf("text = %q, want trimmed", msg.Text)
	}
	if msg.Status != models.MessageDelivered {
		t.Errorf("status = %s, want delivered", msg.Status)
	}

	if got := len(notifier.pushed["bob"]); got != 3 {
		t.Errorf("bob received %d pushes, want 3", got)
	}
	for _, ev := range notifier.pushed["bob"] {
		if ev.Event != presence.EventReceiveMessage {
			t.Errorf("bob got event %s", ev.Event)
		}
	}
	if got := len(notifier.pushed["alice"]); got != 2 {
		t.Errorf("alice received %d echoes, want 2", got)
	}
	for _, ev := range notifier.pushed["alice"] {
		if ev.Event != presence.EventMessageSent {
			t.Errorf("alice got event %s", ev.Event)
		}
	}

	stored, _ := store.Messages().ListBetween(ctx, "alice", "bob")
	if len(stored) != 1 || stored[0].Status != models.MessageDelivered {
		t.Errorf("stored = %+v", stored)
	}
}

func TestSendMessage_OfflineRecipientStaysSent(t *testing.T) {
	store := newStore(t, "alice", "bob")
	svc := NewService(store, newFakeNotifier(map[string]int{"alice": 1}), nil)

	msg, err := svc.SendMessage(context.Background(), "alice", "bob", "are you there?")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.Status != models.MessageSent {
		t.Errorf("status = %s, want sent", msg.Status)
	}
}

func TestSendMessage_Validation(t *testing.T) {
	store := newStore(t, "alice", "bob")
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		sender    string
		recipient string
		text      string
		kind      models.ErrorKind
	}{
		{"empty", "alice", "bob", "   ", models.KindValidation},
		{"too long", "alice", "bob", strings.Repeat("é", MaxTextLength+1), models.KindValidation},
		{"self", "alice", "alice", "hi", models.KindValidation},
		{"unknown recipient", "alice", "ghost", "hi", models.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendMessage(ctx, tt.sender, tt.recipient, tt.text)
			if !models.IsKind(err, tt.kind) {
				t.Errorf("err = %v, want kind %s", err, tt.kind)
			}
		})
	}

	if _, err := svc.SendMessage(ctx, "alice", "bob", strings.Repeat("é", MaxTextLength)); err != nil {
		t.Errorf("max length message rejected: %v", err)
	}
}

func TestHistory(t *testing.T) {
	store := newStore(t, "alice", "bob", "carol")
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	svc.SendMessage(ctx, "alice", "bob", "one")
	svc.SendMessage(ctx, "bob", "alice", "two")
	svc.SendMessage(ctx, "alice", "carol", "elsewhere")

	conv, err := svc.History(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if conv.User.ID != "bob" {
		t.Errorf("peer = %s, want bob", conv.User.ID)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(conv.Messages))
	}
	if conv.Messages[1].Sender.UserName != "bob" || conv.Messages[1].Recipient.FullName != "ALICE" {
		t.Errorf("unexpected annotation %+v", conv.Messages[1])
	}

	_, err = svc.History(ctx, "alice", "ghost")
	if !models.IsKind(err, models.KindNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}
