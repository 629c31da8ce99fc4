package repository

import (
	"context"
	"maps"
	"math/rand"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"socialbox/models"
)

type followKey struct {
	follower string
	followee string
}

type memoryData struct {
	users    map[string]models.User
	follows  map[followKey]time.Time
	requests map[string]models.FollowRequest
	messages []models.Message
}

func (d *memoryData) clone() *memoryData {
	return &memoryData{
		users:    maps.Clone(d.users),
		follows:  maps.Clone(d.follows),
		requests: maps.Clone(d.requests),
		messages: slices.Clone(d.messages),
	}
}

// MemoryStore is an in-process Store. Transactions are serialized and roll
// back by restoring a snapshot taken when they began.
type MemoryStore struct {
	txMu *sync.Mutex
	mu   *sync.RWMutex
	data **memoryData
	inTx bool
}

func NewMemoryStore() *MemoryStore {
	data := &memoryData{
		users:    make(map[string]models.User),
		follows:  make(map[followKey]time.Time),
		requests: make(map[string]models.FollowRequest),
	}
	return &MemoryStore{txMu: &sync.Mutex{}, mu: &sync.RWMutex{}, data: &data}
}

func (s *MemoryStore) Users() UserRepository {
	return &memoryUserRepo{s}
}

func (s *MemoryStore) Follows() FollowRepository {
	return &memoryFollowRepo{s}
}

func (s *MemoryStore) FollowRequests() FollowRequestRepository {
	return &memoryFollowRequestRepo{s}
}

func (s *MemoryStore) Messages() MessageRepository {
	return &memoryMessageRepo{s}
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := (*s.data).clone()
	s.mu.RUnlock()

	if err := fn(&MemoryStore{txMu: s.txMu, mu: s.mu, data: s.data, inTx: true}); err != nil {
		s.mu.Lock()
		*s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemoryStore) read(fn func(d *memoryData)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(*s.data)
}

// write outside a transaction waits for running transactions so a rollback
// never discards it.
func (s *MemoryStore) write(fn func(d *memoryData)) {
	if !s.inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(*s.data)
}

func (d *memoryData) profiles(ids []string) []models.PublicProfile {
	profiles := []models.PublicProfile{}
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			profiles = append(profiles, u.ToPublic())
		}
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].UserName < profiles[j].UserName })
	return profiles
}

type memoryUserRepo struct {
	s *MemoryStore
}

func (r *memoryUserRepo) find(match func(u models.User) bool) *models.User {
	var found *models.User
	r.s.read(func(d *memoryData) {
		for _, u := range d.users {
			if match(u) {
				found = &u
				return
			}
		}
	})
	return found
}

func (r *memoryUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	var found *models.User
	r.s.read(func(d *memoryData) {
		if u, ok := d.users[id]; ok {
			found = &u
		}
	})
	return found, nil
}

func (r *memoryUserRepo) FindByUserName(_ context.Context, userName string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.UserName == userName }), nil
}

func (r *memoryUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Email == email }), nil
}

func (r *memoryUserRepo) FindByLogin(_ context.Context, emailOrUserName string) (*models.User, error) {
	return r.find(func(u models.User) bool {
		return u.Email == emailOrUserName || u.UserName == emailOrUserName
	}), nil
}

func (r *memoryUserRepo) Create(_ context.Context, user *models.User) error {
	var err error
	r.s.write(func(d *memoryData) {
		for _, u := range d.users {
			if u.ID == user.ID || u.UserName == user.UserName || u.Email == user.Email {
				err = ErrDuplicate
				return
			}
		}
		d.users[user.ID] = *user
	})
	return err
}

func (r *memoryUserRepo) UpdateOnboarding(_ context.Context, id string, p models.OnboardingProfile, at time.Time) error {
	var err error
	r.s.write(func(d *memoryData) {
		for _, u := range d.users {
			if u.ID != id && u.UserName == p.UserName {
				err = ErrDuplicate
				return
			}
		}
		u, ok := d.users[id]
		if !ok {
			return
		}
		u.UserName = p.UserName
		u.FullName = p.FullName
		u.Bio = p.Bio
		u.BirthDate = p.BirthDate
		u.Gender = p.Gender
		u.Location = p.Location
		u.IsOnboarded = true
		u.UpdatedAt = at
		d.users[id] = u
	})
	return err
}

func (r *memoryUserRepo) Search(_ context.Context, query string, limit int) ([]models.PublicProfile, error) {
	q := strings.ToLower(query)
	var ids []string
	r.s.read(func(d *memoryData) {
		for id, u := range d.users {
			if !u.IsOnboarded {
				continue
			}
			if strings.Contains(strings.ToLower(u.UserName), q) || strings.Contains(strings.ToLower(u.FullName), q) {
				ids = append(ids, id)
			}
		}
	})
	var profiles []models.PublicProfile
	r.s.read(func(d *memoryData) { profiles = d.profiles(ids) })
	if len(profiles) > limit {
		profiles = profiles[:limit]
	}
	return profiles, nil
}

func (r *memoryUserRepo) PublicProfiles(_ context.Context, ids []string) ([]models.PublicProfile, error) {
	var profiles []models.PublicProfile
	r.s.read(func(d *memoryData) { profiles = d.profiles(ids) })
	return profiles, nil
}

func (r *memoryUserRepo) SampleOnboarded(_ context.Context, exclude []string, n int) ([]models.PublicProfile, error) {
	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	candidates := []models.PublicProfile{}
	r.s.read(func(d *memoryData) {
		for id, u := range d.users {
			if _, skip := excluded[id]; skip || !u.IsOnboarded {
				continue
			}
			candidates = append(candidates, u.ToPublic())
		}
	})

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates, nil
}

type memoryFollowRepo struct {
	s *MemoryStore
}

func (r *memoryFollowRepo) IsFollowing(_ context.Context, followerID, followeeID string) (bool, error) {
	var ok bool
	r.s.read(func(d *memoryData) {
		_, ok = d.follows[followKey{followerID, followeeID}]
	})
	return ok, nil
}

func (r *memoryFollowRepo) Add(_ context.Context, followerID, followeeID string, at time.Time) error {
	r.s.write(func(d *memoryData) {
		key := followKey{followerID, followeeID}
		if _, ok := d.follows[key]; !ok {
			d.follows[key] = at
		}
	})
	return nil
}

func (r *memoryFollowRepo) Remove(_ context.Context, followerID, followeeID string) (bool, error) {
	var existed bool
	r.s.write(func(d *memoryData) {
		key := followKey{followerID, followeeID}
		_, existed = d.follows[key]
		delete(d.follows, key)
	})
	return existed, nil
}

func (r *memoryFollowRepo) collect(match func(k followKey) (string, bool)) []string {
	type entry struct {
		id string
		at time.Time
	}
	var entries []entry
	r.s.read(func(d *memoryData) {
		for k, at := range d.follows {
			if id, ok := match(k); ok {
				entries = append(entries, entry{id, at})
			}
		}
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })

	var ids []string
	for _, e := range entries {
		ids = append(ids, e.id)
	}
	return ids
}

func (r *memoryFollowRepo) FollowerIDs(_ context.Context, userID string) ([]string, error) {
	return r.collect(func(k followKey) (string, bool) { return k.follower, k.followee == userID }), nil
}

func (r *memoryFollowRepo) FollowingIDs(_ context.Context, userID string) ([]string, error) {
	return r.collect(func(k followKey) (string, bool) { return k.followee, k.follower == userID }), nil
}

type memoryFollowRequestRepo struct {
	s *MemoryStore
}

func (r *memoryFollowRequestRepo) FindByID(_ context.Context, id string) (*models.FollowRequest, error) {
	var found *models.FollowRequest
	r.s.read(func(d *memoryData) {
		if req, ok := d.requests[id]; ok {
			found = &req
		}
	})
	return found, nil
}

func (r *memoryFollowRequestRepo) FindByPair(_ context.Context, senderID, recipientID string) (*models.FollowRequest, error) {
	var found *models.FollowRequest
	r.s.read(func(d *memoryData) {
		for _, req := range d.requests {
			if req.SenderID == senderID && req.RecipientID == recipientID {
				found = &req
				return
			}
		}
	})
	return found, nil
}

func (r *memoryFollowRequestRepo) Create(_ context.Context, req *models.FollowRequest) error {
	var err error
	r.s.write(func(d *memoryData) {
		for _, existing := range d.requests {
			if existing.ID == req.ID || (existing.SenderID == req.SenderID && existing.RecipientID == req.RecipientID) {
				err = ErrDuplicate
				return
			}
		}
		d.requests[req.ID] = *req
	})
	return err
}

func (r *memoryFollowRequestRepo) UpdateStatus(_ context.Context, id string, status models.FollowRequestStatus, at time.Time) error {
	r.s.write(func(d *memoryData) {
		if req, ok := d.requests[id]; ok {
			req.Status = status
			req.UpdatedAt = at
			d.requests[id] = req
		}
	})
	return nil
}

func (r *memoryFollowRequestRepo) DeleteByPair(_ context.Context, senderID, recipientID string) (int64, error) {
	var n int64
	r.s.write(func(d *memoryData) {
		for id, req := range d.requests {
			if req.SenderID == senderID && req.RecipientID == recipientID {
				delete(d.requests, id)
				n++
			}
		}
	})
	return n, nil
}

func (r *memoryFollowRequestRepo) list(match func(req models.FollowRequest) (string, bool)) []models.FollowRequestWithUser {
	list := []models.FollowRequestWithUser{}
	r.s.read(func(d *memoryData) {
		for _, req := range d.requests {
			otherID, ok := match(req)
			if !ok {
				continue
			}
			other, exists := d.users[otherID]
			if !exists {
				continue
			}
			list = append(list, models.FollowRequestWithUser{FollowRequest: req, User: other.ToPublic()})
		}
	})
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list
}

func (r *memoryFollowRequestRepo) ListReceived(_ context.Context, recipientID string) ([]models.FollowRequestWithUser, error) {
	return r.list(func(req models.FollowRequest) (string, bool) {
		return req.SenderID, req.RecipientID == recipientID
	}), nil
}

func (r *memoryFollowRequestRepo) ListSent(_ context.Context, senderID string) ([]models.FollowRequestWithUser, error) {
	return r.list(func(req models.FollowRequest) (string, bool) {
		return req.RecipientID, req.SenderID == senderID
	}), nil
}

func (r *memoryFollowRequestRepo) PendingRecipientIDs(_ context.Context, senderID string) ([]string, error) {
	var ids []string
	r.s.read(func(d *memoryData) {
		for _, req := range d.requests {
			if req.SenderID == senderID && req.Status == models.FollowRequestPending {
				ids = append(ids, req.RecipientID)
			}
		}
	})
	return ids, nil
}

type memoryMessageRepo struct {
	s *MemoryStore
}

func (r *memoryMessageRepo) Create(_ context.Context, msg *models.Message) error {
	r.s.write(func(d *memoryData) {
		d.messages = append(d.messages, *msg)
	})
	return nil
}

func (r *memoryMessageRepo) MarkDelivered(_ context.Context, id string) error {
	r.s.write(func(d *memoryData) {
		for i := range d.messages {
			if d.messages[i].ID == id {
				d.messages[i].Status = models.MessageDelivered
			}
		}
	})
	return nil
}

func (r *memoryMessageRepo) ListBetween(_ context.Context, a, b string) ([]models.Message, error) {
	messages := []models.Message{}
	r.s.read(func(d *memoryData) {
		for _, m := range d.messages {
			if (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a) {
				messages = append(messages, m)
			}
		}
	})
	sort.SliceStable(messages, func(i, j int) bool { return messages[i].CreatedAt.Before(messages[j].CreatedAt) })
	return messages, nil
}
