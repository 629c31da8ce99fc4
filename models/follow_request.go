package models

import "time"

type FollowRequestStatus string

const (
	FollowRequestPending  FollowRequestStatus = "pending"
	FollowRequestAccepted FollowRequestStatus = "accepted"

	// Rows with these statuses are never written here but may exist in
	// imported data. RequestFollow reactivates them.
	FollowRequestRejected FollowRequestStatus = "rejected"
	FollowRequestRemoved  FollowRequestStatus = "removed"
)

// Reactivatable reports whether a request in this status may be re-sent in place.
func (s FollowRequestStatus) Reactivatable() bool {
	return s == FollowRequestRejected || s == FollowRequestRemoved
}

type FollowRequest struct {
	ID          string              `json:"id"`
	SenderID    string              `json:"sender"`
	RecipientID string              `json:"recipient"`
	Status      FollowRequestStatus `json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// FollowRequestWithUser is a ledger row annotated with the profile of the
// user on the other side: the sender for received requests, the recipient
// for sent ones.
type FollowRequestWithUser struct {
	FollowRequest
	User PublicProfile `json:"user"`
}

// Notification is a ledger row rendered for the notification feed.
type Notification struct {
	FollowRequestWithUser
	Text string `json:"text"`
}

type Notifications struct {
	Received []Notification `json:"receivedRequests"`
	Sent     []Notification `json:"sendedRequests"`
}
