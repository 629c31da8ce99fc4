// Package repository defines the persistence interfaces used by the domain
// services and their MySQL implementation.
package repository

import (
	"context"
	"errors"
	"time"

	"socialbox/models"
)

// ErrDuplicate is returned by Create methods when a unique key would be violated.
var ErrDuplicate = errors.New("duplicate entry")

// Finder methods return (nil, nil) when nothing matches.

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUserName(ctx context.Context, userName string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByLogin matches either the email or the user name.
	FindByLogin(ctx context.Context, emailOrUserName string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateOnboarding(ctx context.Context, id string, profile models.OnboardingProfile, at time.Time) error
	// Search matches onboarded users by user name or full name, case-insensitively.
	Search(ctx context.Context, query string, limit int) ([]models.PublicProfile, error)
	PublicProfiles(ctx context.Context, ids []string) ([]models.PublicProfile, error)
	// SampleOnboarded returns up to n random onboarded users whose ids are not in exclude.
	SampleOnboarded(ctx context.Context, exclude []string, n int) ([]models.PublicProfile, error)
}

// FollowRepository stores accepted follow relationships. A user's followers
// and following sets are both views over the same rows.
type FollowRepository interface {
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	// Add is idempotent.
	Add(ctx context.Context, followerID, followeeID string, at time.Time) error
	// Remove reports whether a row existed.
	Remove(ctx context.Context, followerID, followeeID string) (bool, error)
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
	FollowingIDs(ctx context.Context, userID string) ([]string, error)
}

// FollowRequestRepository is the relationship ledger: at most one row per
// ordered (sender, recipient) pair.
type FollowRequestRepository interface {
	FindByID(ctx context.Context, id string) (*models.FollowRequest, error)
	FindByPair(ctx context.Context, senderID, recipientID string) (*models.FollowRequest, error)
	Create(ctx context.Context, req *models.FollowRequest) error
	UpdateStatus(ctx context.Context, id string, status models.FollowRequestStatus, at time.Time) error
	// DeleteByPair removes whatever row exists for the pair and returns the count.
	DeleteByPair(ctx context.Context, senderID, recipientID string) (int64, error)
	// ListReceived annotates each row with the sender's profile, newest first.
	ListReceived(ctx context.Context, recipientID string) ([]models.FollowRequestWithUser, error)
	// ListSent annotates each row with the recipient's profile, newest first.
	ListSent(ctx context.Context, senderID string) ([]models.FollowRequestWithUser, error)
	PendingRecipientIDs(ctx context.Context, senderID string) ([]string, error)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	MarkDelivered(ctx context.Context, id string) error
	// ListBetween returns messages exchanged by a and b in either direction, oldest first.
	ListBetween(ctx context.Context, a, b string) ([]models.Message, error)
}

// Store groups the repositories and runs units of work atomically.
type Store interface {
	Users() UserRepository
	Follows() FollowRepository
	FollowRequests() FollowRequestRepository
	Messages() MessageRepository
	// WithTx runs fn against a transactional view of the store. fn's error
	// rolls the transaction back. Nested calls reuse the outer transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
