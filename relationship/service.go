// Package relationship implements the follow request lifecycle between users
// and the notification feed derived from it.
//
// Per ordered pair (sender, recipient) the relationship is NONE (no ledger
// row), PENDING or ACCEPTED. An accepted pair is also recorded as a follows
// row, written in the same transaction as the ledger change. Every mutation
// holds the lock for its unordered user pair for the length of its
// transaction.
package relationship

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"socialbox/events"
	"socialbox/logging"
	"socialbox/metrics"
	"socialbox/models"
	"socialbox/presence"
	"socialbox/repository"
)

// Notifier pushes realtime events to a user's live connections.
type Notifier interface {
	SendToUser(ctx context.Context, userID string, ev presence.Event) (int, error)
}

// Outcome reports which branch RemoveOrCancelFollow took.
type Outcome string

const (
	OutcomeUnfollowed Outcome = "unfollowed"
	OutcomeCanceled   Outcome = "canceled"
)

const (
	opRequestFollow        = "request_follow"
	opAcceptFollow         = "accept_follow"
	opRemoveFollower       = "remove_follower"
	opRemoveOrCancelFollow = "remove_or_cancel_follow"
)

type Service struct {
	store    repository.Store
	events   events.Publisher
	notifier Notifier
	metrics  metrics.Recorder
	locks    *pairLocks
	now      func() time.Time
}

// NewService wires the state machine. publisher, notifier and recorder may be
// nil.
func NewService(
	store repository.Store,
	publisher events.Publisher,
	notifier Notifier,
	recorder metrics.Recorder,
) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		store:    store,
		events:   publisher,
		notifier: notifier,
		metrics:  recorder,
		locks:    newPairLocks(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RequestFollow creates a pending request from senderID to recipientID, or
// reactivates a rejected or removed one in place. reactivated reports the
// latter.
func (s *Service) RequestFollow(ctx context.Context, senderID, recipientID string) (req *models.FollowRequest, reactivated bool, err error) {
	defer func() { s.record(opRequestFollow, err) }()

	if senderID == recipientID {
		return nil, false, models.NewConflictError(models.ErrCodeSelfTarget, "You cannot follow yourself")
	}

	unlock := s.locks.Lock(senderID, recipientID)
	defer unlock()

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		recipient, err := tx.Users().FindByID(ctx, recipientID)
		if err != nil {
			return fmt.Errorf("find recipient: %w", err)
		}
		if recipient == nil || !recipient.IsOnboarded {
			return models.NewUserNotFoundError("Recipient not found")
		}

		existing, err := tx.FollowRequests().FindByPair(ctx, senderID, recipientID)
		if err != nil {
			return err
		}
		now := s.now()

		if existing == nil {
			req = &models.FollowRequest{
				ID:          uuid.New().String(),
				SenderID:    senderID,
				RecipientID: recipientID,
				Status:      models.FollowRequestPending,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.FollowRequests().Create(ctx, req); err != nil {
				// Another process won the race for this pair.
				if errors.Is(err, repository.ErrDuplicate) {
					return models.NewConflictError(models.ErrCodeRequestAlreadySent, "Follow request already sent")
				}
				return err
			}
			return nil
		}

		switch existing.Status {
		case models.FollowRequestPending:
			return models.NewConflictError(models.ErrCodeRequestAlreadySent, "Follow request already sent")
		case models.FollowRequestAccepted:
			return models.NewConflictError(models.ErrCodeAlreadyFollowing, "You are already following this user")
		}

		if err := tx.FollowRequests().UpdateStatus(ctx, existing.ID, models.FollowRequestPending, now); err != nil {
			return err
		}
		existing.Status = models.FollowRequestPending
		existing.UpdatedAt = now
		req = existing
		reactivated = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	s.publish(ctx, events.FollowRequested, req.ID, senderID, recipientID)
	s.notify(ctx, recipientID, senderID, req, receivedText(req.Status))
	return req, reactivated, nil
}

// AcceptFollow marks the request accepted and records the follow. Only the
// recipient may accept.
func (s *Service) AcceptFollow(ctx context.Context, requestID, actingUserID string) (req *models.FollowRequest, err error) {
	defer func() { s.record(opAcceptFollow, err) }()

	// The pair is only known after a first read. It is read again under the
	// lock inside the transaction.
	peek, err := s.store.FollowRequests().FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if peek == nil {
		return nil, requestNotFound()
	}

	unlock := s.locks.Lock(peek.SenderID, peek.RecipientID)
	defer unlock()

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		found, err := tx.FollowRequests().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		if found == nil {
			return requestNotFound()
		}
		req = found
		if req.RecipientID != actingUserID {
			return models.NewForbiddenError(models.ErrCodeNotRequestRecipient, "You are not authorized to accept this request")
		}
		if req.Status == models.FollowRequestAccepted {
			return models.NewConflictError(models.ErrCodeRequestAlreadyAccepted, "Follow request already accepted")
		}

		now := s.now()
		if err := tx.FollowRequests().UpdateStatus(ctx, req.ID, models.FollowRequestAccepted, now); err != nil {
			return err
		}
		if err := tx.Follows().Add(ctx, req.SenderID, req.RecipientID, now); err != nil {
			return err
		}
		req.Status = models.FollowRequestAccepted
		req.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.FollowAccepted, req.ID, req.SenderID, req.RecipientID)
	s.notify(ctx, req.SenderID, req.RecipientID, req, "accepted your follow request")
	return req, nil
}

// RemoveFollower makes followerID stop following actingUserID and clears the
// ledger row so the follower may request again from scratch.
func (s *Service) RemoveFollower(ctx context.Context, followerID, actingUserID string) (err error) {
	defer func() { s.record(opRemoveFollower, err) }()

	unlock := s.locks.Lock(followerID, actingUserID)
	defer unlock()

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		follower, err := tx.Users().FindByID(ctx, followerID)
		if err != nil {
			return fmt.Errorf("find follower: %w", err)
		}
		if follower == nil || !follower.IsOnboarded {
			return models.NewUserNotFoundError("")
		}

		removed, err := tx.Follows().Remove(ctx, followerID, actingUserID)
		if err != nil {
			return err
		}
		if !removed {
			return models.NewConflictError(models.ErrCodeNotAFollower, "This user is not following you")
		}
		if _, err := tx.FollowRequests().DeleteByPair(ctx, followerID, actingUserID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.FollowerRemoved, "", followerID, actingUserID)
	return nil
}

// RemoveOrCancelFollow ends actingUserID's outbound relationship toward
// targetID: an active follow is unfollowed, otherwise any ledger row is
// deleted as a canceled request.
func (s *Service) RemoveOrCancelFollow(ctx context.Context, targetID, actingUserID string) (outcome Outcome, err error) {
	defer func() { s.record(opRemoveOrCancelFollow, err) }()

	if targetID == actingUserID {
		return "", models.NewConflictError(models.ErrCodeSelfTarget, "You cannot perform this action on yourself")
	}

	unlock := s.locks.Lock(targetID, actingUserID)
	defer unlock()

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		target, err := tx.Users().FindByID(ctx, targetID)
		if err != nil {
			return fmt.Errorf("find target: %w", err)
		}
		if target == nil {
			return models.NewUserNotFoundError("")
		}

		unfollowed, err := tx.Follows().Remove(ctx, actingUserID, targetID)
		if err != nil {
			return err
		}
		deleted, err := tx.FollowRequests().DeleteByPair(ctx, actingUserID, targetID)
		if err != nil {
			return err
		}

		switch {
		case unfollowed:
			outcome = OutcomeUnfollowed
		case deleted > 0:
			outcome = OutcomeCanceled
		default:
			return models.NewConflictError(models.ErrCodeNoFollowOrRequest, "No follow or request found")
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	action := events.FollowUnfollowed
	if outcome == OutcomeCanceled {
		action = events.FollowCanceled
	}
	s.publish(ctx, action, "", actingUserID, targetID)
	return outcome, nil
}

func requestNotFound() *models.AppError {
	return models.NewNotFoundError(models.ErrCodeRequestNotFound, "Follow request not found")
}

func (s *Service) record(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(models.KindOf(err))
	}
	s.metrics.RecordTransition(op, result)
}

func (s *Service) publish(ctx context.Context, action events.Action, requestID, sender, recipient string) {
	ev := events.FollowEvent{
		RequestID: requestID,
		Sender:    sender,
		Recipient: recipient,
		Action:    action,
		At:        s.now(),
	}
	if err := s.events.PublishFollow(ctx, ev); err != nil {
		logging.Warn().Err(err).Str("action", string(action)).Msg("Failed to publish follow event")
	}
}

// notify pushes a notification about req to userID, describing the other
// party aboutID.
func (s *Service) notify(ctx context.Context, userID, aboutID string, req *models.FollowRequest, text string) {
	if s.notifier == nil {
		return
	}
	about, err := s.store.Users().FindByID(ctx, aboutID)
	if err != nil || about == nil {
		logging.Warn().Err(err).Str("user_id", aboutID).Msg("Failed to load notification profile")
		return
	}

	n := models.Notification{
		FollowRequestWithUser: models.FollowRequestWithUser{FollowRequest: *req, User: about.ToPublic()},
		Text:                  text,
	}
	if _, err := s.notifier.SendToUser(ctx, userID, presence.Event{Event: presence.EventNotification, Data: n}); err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("Failed to push notification")
	}
}
