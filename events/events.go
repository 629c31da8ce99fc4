// Package events publishes relationship domain events. Publishing is best
// effort: subscribers must not rely on it for correctness.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

type Action string

const (
	FollowRequested  Action = "requested"
	FollowAccepted   Action = "accepted"
	FollowerRemoved  Action = "removed"
	FollowUnfollowed Action = "unfollowed"
	FollowCanceled   Action = "canceled"
)

type FollowEvent struct {
	RequestID string    `json:"requestId,omitempty"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Action    Action    `json:"action"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	PublishFollow(ctx context.Context, ev FollowEvent) error
	Close()
}

// NatsPublisher publishes events on core NATS subjects of the form
// <prefix>.follow.<action>.
type NatsPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNatsPublisher(url, prefix string) (*NatsPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("socialbox"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NatsPublisher{nc: nc, prefix: prefix}, nil
}

// Subject returns the subject a follow event with the given action is published on.
func Subject(prefix string, action Action) string {
	return prefix + ".follow." + string(action)
}

func (p *NatsPublisher) PublishFollow(ctx context.Context, ev FollowEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(Subject(p.prefix, ev.Action), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NatsPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

// Nop is used when no broker is configured.
type Nop struct{}

func (Nop) PublishFollow(context.Context, FollowEvent) error {
	return nil
}

func (Nop) Close() {}
