package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/vkondrav/pigeon/internal/core"
	"github.com/vkondrav/pigeon/internal/domain"
)

// Delivery owns message status propagation: persist, push to the
// receiver if online, fan read receipts back to the sender, and keep
// reaction/delete views consistent on both sides.
//
// There is deliberately no store-and-forward here: a message to an
// offline receiver stays at "sent" and the client reconciles from
// conversation history on its next fetch.
type Delivery struct {
	registry      *Registry
	messages      core.MessageStore
	conversations core.ConversationStore
}

func NewDelivery(registry *Registry, messages core.MessageStore, conversations core.ConversationStore) *Delivery {
	return &Delivery{registry: registry, messages: messages, conversations: conversations}
}

// Submit persists the message, then attempts live delivery. If the
// store rejects it nothing is delivered and the error goes back to the
// sender; the client resubmits as a new message, never the same id.
func (d *Delivery) Submit(ctx context.Context, m *domain.Message) error {
	if m.Status == "" {
		m.Status = domain.StatusSent
	}
	if err := d.messages.InsertMessage(ctx, m); err != nil {
		return fmt.Errorf("persist message: %w", err)
	}
	if err := d.conversations.TouchConversation(ctx, m.ConversationID, m.ID, m.ReceiverID); err != nil {
		log.Warn().Err(err).Str("module", "app.delivery").Str("conversation", m.ConversationID).Msg("touch conversation")
	}
	d.Deliver(ctx, m)
	return nil
}

// Deliver pushes the message to the receiver's session and moves the
// status to delivered. Offline receiver leaves the status untouched;
// an already-delivered or read message is never pulled back.
func (d *Delivery) Deliver(ctx context.Context, m *domain.Message) {
	if !d.registry.Send(m.ReceiverID, encode(EvReceiveMessage, m)) {
		return
	}
	if !m.Status.CanTransition(domain.StatusDelivered) {
		return
	}
	m.Status = domain.StatusDelivered
	if err := d.messages.UpdateMessageStatus(ctx, m.ID, domain.StatusDelivered); err != nil {
		log.Warn().Err(err).Str("module", "app.delivery").Str("message", string(m.ID)).Msg("persist delivered")
	}
}

type statusPayload struct {
	MessageID domain.MessageID     `json:"messageId"`
	Status    domain.MessageStatus `json:"status"`
}

// MarkRead bulk-transitions the ids to read and notifies the original
// sender per message. A store failure is the caller's to surface; an
// offline sender is silently fine.
func (d *Delivery) MarkRead(ctx context.Context, ids []domain.MessageID, senderID domain.UserID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := d.messages.UpdateMessagesStatus(ctx, ids, domain.StatusRead); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	for _, id := range ids {
		d.registry.Send(senderID, encode(EvMessageStatus, statusPayload{
			MessageID: id,
			Status:    domain.StatusRead,
		}))
	}
	return nil
}

type reactionPayload struct {
	MessageID domain.MessageID  `json:"messageId"`
	Reactions []domain.Reaction `json:"reactions"`
}

// React toggles uid's reaction on the message and broadcasts the full
// recomputed list to both participants so both views stay consistent.
func (d *Delivery) React(ctx context.Context, id domain.MessageID, uid domain.UserID, emoji string) error {
	m, err := d.messages.GetMessage(ctx, id)
	if err != nil {
		return fmt.Errorf("load message: %w", err)
	}
	m.Reactions = domain.ToggleReaction(m.Reactions, uid, emoji)
	if err := d.messages.UpdateReactions(ctx, id, m.Reactions); err != nil {
		return fmt.Errorf("persist reactions: %w", err)
	}
	frame := encode(EvReactionUpdate, reactionPayload{MessageID: id, Reactions: m.Reactions})
	d.registry.Send(m.SenderID, frame)
	d.registry.Send(m.ReceiverID, frame)
	return nil
}

type deletedPayload struct {
	DeletedMessageID domain.MessageID `json:"deletedMessageId"`
}

// Delete hard-deletes the message if the requester owns it and tells
// both parties. No tombstone is kept.
func (d *Delivery) Delete(ctx context.Context, id domain.MessageID, requester domain.UserID) error {
	m, err := d.messages.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.ErrNotFound
		}
		return fmt.Errorf("load message: %w", err)
	}
	if m.SenderID != requester {
		return domain.ErrNotMessageOwner
	}
	if err := d.messages.DeleteMessage(ctx, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	frame := encode(EvMessageDeleted, deletedPayload{DeletedMessageID: id})
	d.registry.Send(m.SenderID, frame)
	d.registry.Send(m.ReceiverID, frame)
	return nil
}
