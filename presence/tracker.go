// Package presence tracks which users hold live realtime connections.
//
// All state is owned by the goroutine running Tracker.Run. Other goroutines
// talk to it through a command channel and wait for each command to finish,
// so no map in this package is ever shared.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"socialbox/logging"
	"socialbox/metrics"
)

// Server to client event names.
const (
	EventOnlineUsers    = "onlineUsers"
	EventReceiveMessage = "receiveMessage"
	EventMessageSent    = "messageSent"
	EventNotification   = "notification"
	EventPong           = "pong"
	EventError          = "error"
)

// ErrStopped is returned once the tracker's Run loop has exited.
var ErrStopped = errors.New("presence tracker stopped")

// ErrUnknownConn is returned by Join for a connection that was never registered.
var ErrUnknownConn = errors.New("unknown connection")

// Event is the realtime envelope used in both directions.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Conn is a live connection. Send must not block: it reports false when the
// payload was dropped.
type Conn interface {
	ID() string
	Send(payload []byte) bool
}

type state struct {
	conns    map[string]Conn
	connUser map[string]string
	users    map[string]map[string]struct{}
}

type command struct {
	fn   func(s *state)
	done chan struct{}
}

type Tracker struct {
	commands chan command
	stopped  chan struct{}
	metrics  metrics.Recorder
}

func NewTracker(recorder metrics.Recorder) *Tracker {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Tracker{
		commands: make(chan command),
		stopped:  make(chan struct{}),
		metrics:  recorder,
	}
}

// Run processes commands until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	s := &state{
		conns:    make(map[string]Conn),
		connUser: make(map[string]string),
		users:    make(map[string]map[string]struct{}),
	}
	defer close(t.stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-t.commands:
			cmd.fn(s)
			close(cmd.done)
		}
	}
}

func (t *Tracker) do(ctx context.Context, fn func(s *state)) error {
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case t.commands <- cmd:
	case <-t.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	// Run executes a received command before looking at anything else.
	<-cmd.done
	return nil
}

// Connect registers a connection so it receives global broadcasts before it joins.
func (t *Tracker) Connect(ctx context.Context, conn Conn) error {
	return t.do(ctx, func(s *state) {
		s.conns[conn.ID()] = conn
		t.metrics.SetConnections(len(s.conns))
	})
}

// Join binds a connection to a user and broadcasts the new online list.
// Joining again under another user id moves the connection.
func (t *Tracker) Join(ctx context.Context, connID, userID string) error {
	var joinErr error
	err := t.do(ctx, func(s *state) {
		if _, ok := s.conns[connID]; !ok {
			joinErr = ErrUnknownConn
			return
		}
		if prev, ok := s.connUser[connID]; ok {
			if prev == userID {
				return
			}
			s.unbind(connID, prev)
		}
		set, ok := s.users[userID]
		if !ok {
			set = make(map[string]struct{})
			s.users[userID] = set
		}
		set[connID] = struct{}{}
		s.connUser[connID] = userID

		logging.Debug().Str("conn_id", connID).Str("user_id", userID).Int("conns", len(set)).Msg("User joined")
		t.broadcastOnline(s)
	})
	if err != nil {
		return err
	}
	return joinErr
}

// Disconnect forgets a connection. When it was the user's last one the user
// goes offline. The online list is broadcast either way.
func (t *Tracker) Disconnect(ctx context.Context, connID string) error {
	return t.do(ctx, func(s *state) {
		if _, ok := s.conns[connID]; !ok {
			return
		}
		delete(s.conns, connID)
		if userID, ok := s.connUser[connID]; ok {
			s.unbind(connID, userID)
		}
		t.metrics.SetConnections(len(s.conns))
		t.broadcastOnline(s)
	})
}

// SendToUser pushes ev to every connection of userID and returns how many
// accepted it.
func (t *Tracker) SendToUser(ctx context.Context, userID string, ev Event) (int, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return 0, err
	}

	var delivered int
	err = t.do(ctx, func(s *state) {
		for connID := range s.users[userID] {
			if s.conns[connID].Send(payload) {
				delivered++
			} else {
				logging.Warn().Str("conn_id", connID).Str("event", ev.Event).Msg("Send buffer full, event dropped")
			}
		}
	})
	return delivered, err
}

// Online returns the sorted ids of users with at least one connection.
func (t *Tracker) Online(ctx context.Context) ([]string, error) {
	var ids []string
	err := t.do(ctx, func(s *state) {
		ids = s.online()
	})
	return ids, err
}

func (t *Tracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	var online bool
	err := t.do(ctx, func(s *state) {
		online = len(s.users[userID]) > 0
	})
	return online, err
}

// ConnCount returns the number of connections bound to userID.
func (t *Tracker) ConnCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := t.do(ctx, func(s *state) {
		n = len(s.users[userID])
	})
	return n, err
}

func (s *state) unbind(connID, userID string) {
	delete(s.connUser, connID)
	set := s.users[userID]
	delete(set, connID)
	if len(set) == 0 {
		delete(s.users, userID)
	}
}

func (s *state) online() []string {
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (t *Tracker) broadcastOnline(s *state) {
	online := s.online()
	t.metrics.SetOnlineUsers(len(online))

	payload, err := json.Marshal(Event{Event: EventOnlineUsers, Data: online})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to encode online users")
		return
	}
	for _, conn := range s.conns {
		conn.Send(payload)
	}
}
