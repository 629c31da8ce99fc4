package models

import "time"

type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
)

type Message struct {
	ID          string        `json:"id"`
	SenderID    string        `json:"sender"`
	RecipientID string        `json:"recipient"`
	Text        string        `json:"text"`
	Status      MessageStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// MessageWithUsers is a message with both participants' profiles attached.
type MessageWithUsers struct {
	ID        string        `json:"id"`
	Sender    PublicProfile `json:"sender"`
	Recipient PublicProfile `json:"recipient"`
	Text      string        `json:"text"`
	Status    MessageStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}
