package relationship

import (
	"context"
	"fmt"

	"socialbox/models"
)

// RecommendedUsersLimit is the size of the recommendation sample.
const RecommendedUsersLimit = 4

func receivedText(status models.FollowRequestStatus) string {
	if status == models.FollowRequestPending {
		return "sent you a follow request"
	}
	return "started following you"
}

func sentText(status models.FollowRequestStatus) string {
	if status == models.FollowRequestPending {
		return "follow request sent"
	}
	return "you started following"
}

func toNotifications(rows []models.FollowRequestWithUser, text func(models.FollowRequestStatus) string) []models.Notification {
	out := make([]models.Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Notification{FollowRequestWithUser: row, Text: text(row.Status)})
	}
	return out
}

// GetNotifications projects the ledger rows addressed to and sent by userID,
// newest first.
func (s *Service) GetNotifications(ctx context.Context, userID string) (*models.Notifications, error) {
	received, err := s.store.FollowRequests().ListReceived(ctx, userID)
	if err != nil {
		return nil, err
	}
	sent, err := s.store.FollowRequests().ListSent(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.Notifications{
		Received: toNotifications(received, receivedText),
		Sent:     toNotifications(sent, sentText),
	}, nil
}

// GetRecommendedUsers samples onboarded users userID has no relationship
// with: not self, not a follower, not followed, and not awaiting userID's
// pending request.
func (s *Service) GetRecommendedUsers(ctx context.Context, userID string) ([]models.PublicProfile, error) {
	exclude := []string{userID}

	followers, err := s.store.Follows().FollowerIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load followers: %w", err)
	}
	following, err := s.store.Follows().FollowingIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load following: %w", err)
	}
	pending, err := s.store.FollowRequests().PendingRecipientIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load pending requests: %w", err)
	}

	exclude = append(exclude, followers...)
	exclude = append(exclude, following...)
	exclude = append(exclude, pending...)

	return s.store.Users().SampleOnboarded(ctx, dedupe(exclude), RecommendedUsersLimit)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
