package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/vkondrav/pigeon/internal/core"
	"github.com/vkondrav/pigeon/internal/domain"
)

func newTestDelivery() (*Delivery, *Registry, *fakeMessageStore) {
	r := NewRegistry()
	ms := newFakeMessageStore()
	return NewDelivery(r, ms, fakeConversationStore{}), r, ms
}

func testMessage(id domain.MessageID) *domain.Message {
	return &domain.Message{
		ID:             id,
		ConversationID: "conv1",
		SenderID:       "alice",
		ReceiverID:     "bob",
		Content:        "hi",
		ContentType:    domain.ContentText,
		Status:         domain.StatusSent,
		CreatedAt:      time.Now(),
	}
}

func TestSubmitPersistFailureSkipsDelivery(t *testing.T) {
	d, r, ms := newTestDelivery()
	receiver := newFakeTransport()
	r.Admit("bob", receiver)

	ms.failNext = errors.New("disk full")
	if err := d.Submit(context.Background(), testMessage("m1")); err == nil {
		t.Fatalf("Submit swallowed the store failure")
	}
	if receiver.count() != 0 {
		t.Fatalf("message delivered despite persist failure")
	}
}

func TestDeliverOfflineLeavesSent(t *testing.T) {
	d, _, ms := newTestDelivery()

	m := testMessage("m1")
	if err := d.Submit(context.Background(), m); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := ms.status(t, "m1"); got != domain.StatusSent {
		t.Fatalf("offline receiver: status = %s, want sent", got)
	}
}

func TestDeliverOnlineMarksDelivered(t *testing.T) {
	d, r, ms := newTestDelivery()
	receiver := newFakeTransport()
	r.Admit("bob", receiver)

	if err := d.Submit(context.Background(), testMessage("m1")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := ms.status(t, "m1"); got != domain.StatusDelivered {
		t.Fatalf("status = %s, want delivered", got)
	}
	if n := len(receiver.eventsOfType(t, EvReceiveMessage)); n != 1 {
		t.Fatalf("receive_message events = %d, want 1", n)
	}
}

func TestStatusNeverRegresses(t *testing.T) {
	d, r, ms := newTestDelivery()
	receiver := newFakeTransport()
	r.Admit("bob", receiver)

	m := testMessage("m1")
	if err := d.Submit(context.Background(), m); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.MarkRead(context.Background(), []domain.MessageID{"m1"}, "alice"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	// A late redeliver must not pull the message back from read.
	read, _ := ms.GetMessage(context.Background(), "m1")
	d.Deliver(context.Background(), read)
	if got := ms.status(t, "m1"); got != domain.StatusRead {
		t.Fatalf("status regressed to %s", got)
	}
}

func TestMarkReadNotifiesSenderPerMessage(t *testing.T) {
	d, r, ms := newTestDelivery()
	sender := newFakeTransport()
	r.Admit("alice", sender)

	for _, id := range []domain.MessageID{"m1", "m2"} {
		if err := ms.InsertMessage(context.Background(), testMessage(id)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	if err := d.MarkRead(context.Background(), []domain.MessageID{"m1", "m2"}, "alice"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	updates := sender.eventsOfType(t, EvMessageStatus)
	if len(updates) != 2 {
		t.Fatalf("status updates = %d, want 2", len(updates))
	}
	var p struct {
		MessageID domain.MessageID     `json:"messageId"`
		Status    domain.MessageStatus `json:"status"`
	}
	if err := json.Unmarshal(updates[0].Data, &p); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if p.MessageID != "m1" || p.Status != domain.StatusRead {
		t.Fatalf("first update = %+v", p)
	}
}

func TestMarkReadSenderOfflineIsSilent(t *testing.T) {
	d, _, ms := newTestDelivery()
	if err := ms.InsertMessage(context.Background(), testMessage("m1")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := d.MarkRead(context.Background(), []domain.MessageID{"m1"}, "alice"); err != nil {
		t.Fatalf("offline sender should be a no-op, got %v", err)
	}
}

func reactionList(t *testing.T, tr *fakeTransport) []domain.Reaction {
	t.Helper()
	evs := tr.eventsOfType(t, EvReactionUpdate)
	if len(evs) == 0 {
		t.Fatalf("no reaction_update received")
	}
	var p struct {
		Reactions []domain.Reaction `json:"reactions"`
	}
	if err := json.Unmarshal(evs[len(evs)-1].Data, &p); err != nil {
		t.Fatalf("bad reaction payload: %v", err)
	}
	return p.Reactions
}

func TestReactionToggleRemoves(t *testing.T) {
	d, r, ms := newTestDelivery()
	sender := newFakeTransport()
	receiver := newFakeTransport()
	r.Admit("alice", sender)
	r.Admit("bob", receiver)
	if err := ms.InsertMessage(context.Background(), testMessage("m1")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := d.React(context.Background(), "m1", "bob", "👍"); err != nil {
			t.Fatalf("React: %v", err)
		}
	}

	if got := reactionList(t, sender); len(got) != 0 {
		t.Fatalf("same emoji twice should clear, got %v", got)
	}
	if got := reactionList(t, receiver); len(got) != 0 {
		t.Fatalf("receiver view out of sync: %v", got)
	}
}

func TestReactionDifferentEmojiReplaces(t *testing.T) {
	d, r, ms := newTestDelivery()
	sender := newFakeTransport()
	r.Admit("alice", sender)
	if err := ms.InsertMessage(context.Background(), testMessage("m1")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := d.React(context.Background(), "m1", "bob", "👍"); err != nil {
		t.Fatalf("React: %v", err)
	}
	if err := d.React(context.Background(), "m1", "bob", "❤️"); err != nil {
		t.Fatalf("React: %v", err)
	}

	got := reactionList(t, sender)
	if len(got) != 1 || got[0].UserID != "bob" || got[0].Emoji != "❤️" {
		t.Fatalf("want exactly one ❤️ from bob, got %v", got)
	}
}

func TestDeleteRequiresOwnership(t *testing.T) {
	d, _, ms := newTestDelivery()
	if err := ms.InsertMessage(context.Background(), testMessage("m1")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := d.Delete(context.Background(), "m1", "bob"); !errors.Is(err, domain.ErrNotMessageOwner) {
		t.Fatalf("non-owner delete: err = %v", err)
	}
	if _, err := ms.GetMessage(context.Background(), "m1"); err != nil {
		t.Fatalf("message should survive a rejected delete: %v", err)
	}
}

func TestDeleteNotifiesBothParties(t *testing.T) {
	d, r, ms := newTestDelivery()
	sender := newFakeTransport()
	receiver := newFakeTransport()
	r.Admit("alice", sender)
	r.Admit("bob", receiver)
	if err := ms.InsertMessage(context.Background(), testMessage("m1")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := d.Delete(context.Background(), "m1", "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := ms.GetMessage(context.Background(), "m1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("message not hard-deleted: %v", err)
	}
	if len(sender.eventsOfType(t, EvMessageDeleted)) != 1 || len(receiver.eventsOfType(t, EvMessageDeleted)) != 1 {
		t.Fatalf("both parties must observe the delete")
	}
}
