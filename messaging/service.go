// Package messaging stores direct messages and pushes them to the live
// connections of both participants.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"socialbox/logging"
	"socialbox/metrics"
	"socialbox/models"
	"socialbox/presence"
	"socialbox/repository"
)

// MaxTextLength is the longest message accepted, in characters, after trimming.
const MaxTextLength = 2000

type Notifier interface {
	SendToUser(ctx context.Context, userID string, ev presence.Event) (int, error)
}

type Service struct {
	store    repository.Store
	notifier Notifier
	metrics  metrics.Recorder
	now      func() time.Time
}

func NewService(store repository.Store, notifier Notifier, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		store:    store,
		notifier: notifier,
		metrics:  recorder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SendMessage persists a message, pushes it to every connection of the
// recipient and echoes it to every connection of the sender. Offline
// recipients see it on their next history fetch.
func (s *Service) SendMessage(ctx context.Context, senderID, recipientID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return nil, models.NewValidationError("Message text is required")
	case utf8.RuneCountInString(text) > MaxTextLength:
		return nil, models.NewValidationError(fmt.Sprintf("Message must be at most %d characters", MaxTextLength))
	case senderID == recipientID:
		return nil, models.NewValidationError("You cannot message yourself")
	}

	recipient, err := s.store.Users().FindByID(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("find recipient: %w", err)
	}
	if recipient == nil {
		return nil, models.NewUserNotFoundError("Recipient not found")
	}

	msg := &models.Message{
		ID:          uuid.New().String(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		Status:      models.MessageSent,
		CreatedAt:   s.now(),
	}
	if err := s.store.Messages().Create(ctx, msg); err != nil {
		return nil, err
	}

	delivered := s.push(ctx, recipientID, presence.EventReceiveMessage, msg)
	if delivered > 0 {
		if err := s.store.Messages().MarkDelivered(ctx, msg.ID); err != nil {
			logging.Warn().Err(err).Str("message_id", msg.ID).Msg("Failed to mark message delivered")
		} else {
			msg.Status = models.MessageDelivered
		}
	}
	s.push(ctx, senderID, presence.EventMessageSent, msg)
	s.metrics.RecordMessage(delivered > 0)

	return msg, nil
}

func (s *Service) push(ctx context.Context, userID, event string, msg *models.Message) int {
	if s.notifier == nil {
		return 0
	}
	n, err := s.notifier.SendToUser(ctx, userID, presence.Event{Event: event, Data: *msg})
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Str("event", event).Msg("Failed to push message")
		return 0
	}
	return n
}

// Conversation is the message history between the caller and a peer.
type Conversation struct {
	User     models.PublicProfile      `json:"user"`
	Messages []models.MessageWithUsers `json:"messages"`
}

// History returns every message exchanged by userID and peerID, oldest first.
func (s *Service) History(ctx context.Context, userID, peerID string) (*Conversation, error) {
	peer, err := s.store.Users().FindByID(ctx, peerID)
	if err != nil {
		return nil, fmt.Errorf("find peer: %w", err)
	}
	if peer == nil {
		return nil, models.NewUserNotFoundError("")
	}
	me, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if me == nil {
		return nil, models.NewUserNotFoundError("")
	}

	messages, err := s.store.Messages().ListBetween(ctx, userID, peerID)
	if err != nil {
		return nil, err
	}

	profiles := map[string]models.PublicProfile{
		me.ID:   me.ToPublic(),
		peer.ID: peer.ToPublic(),
	}
	out := make([]models.MessageWithUsers, 0, len(messages))
	for _, m := range messages {
		out = append(out, models.MessageWithUsers{
			ID:        m.ID,
			Sender:    profiles[m.SenderID],
			Recipient: profiles[m.RecipientID],
			Text:      m.Text,
			Status:    m.Status,
			CreatedAt: m.CreatedAt,
		})
	}
	return &Conversation{User: peer.ToPublic(), Messages: out}, nil
}
