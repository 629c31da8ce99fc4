package relationship

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"socialbox/events"
	"socialbox/models"
	"socialbox/presence"
	"socialbox/repository"
)

type sentEvent struct {
	userID string
	ev     presence.Event
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (n *fakeNotifier) SendToUser(_ context.Context, userID string, ev presence.Event) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentEvent{userID, ev})
	return 1, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.FollowEvent
	err    error
}

func (p *fakePublisher) PublishFollow(_ context.Context, ev events.FollowEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) Close() {}

func (p *fakePublisher) actions() []events.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Action
	for _, ev := range p.events {
		out = append(out, ev.Action)
	}
	return out
}

type fakeRecorder struct {
	mu          sync.Mutex
	transitions map[string]int
}

func (r *fakeRecorder) RecordTransition(op, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transitions == nil {
		r.transitions = map[string]int{}
	}
	r.transitions[op+"/"+result]++
}

func (r *fakeRecorder) SetOnlineUsers(int)                                   {}
func (r *fakeRecorder) SetConnections(int)                                   {}
func (r *fakeRecorder) RecordMessage(bool)                                   {}
func (r *fakeRecorder) RecordHTTPRequest(string, string, int, time.Duration) {}

type fixture struct {
	store     *repository.MemoryStore
	svc       *Service
	notifier  *fakeNotifier
	publisher *fakePublisher
	recorder  *fakeRecorder
}

func newFixture(t *testing.T, users ...string) *fixture {
	t.Helper()
	f := &fixture{
		store:     repository.NewMemoryStore(),
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
		recorder:  &fakeRecorder{},
	}
	f.svc = NewService(f.store, f.publisher, f.notifier, f.recorder)
	for _, id := range users {
		f.addUser(t, id, true)
	}
	return f
}

func (f *fixture) addUser(t *testing.T, id string, onboarded bool) {
	t.Helper()
	err := f.store.Users().Create(context.Background(), &models.User{
		ID:          id,
		UserName:    id,
		FullName:    id,
		Email:       id + "@example.com",
		IsOnboarded: onboarded,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
}

func (f *fixture) follows(t *testing.T, follower, followee string) bool {
	t.Helper()
	ok, err := f.store.Follows().IsFollowing(context.Background(), follower, followee)
	if err != nil {
		t.Fatalf("IsFollowing: %v", err)
	}
	return ok
}

func (f *fixture) ledger(t *testing.T, sender, recipient string) *models.FollowRequest {
	t.Helper()
	req, err := f.store.FollowRequests().FindByPair(context.Background(), sender, recipient)
	if err != nil {
		t.Fatalf("FindByPair: %v", err)
	}
	return req
}

// assertSymmetric checks that a's following view and b's followers view agree.
func (f *fixture) assertSymmetric(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	following, _ := f.store.Follows().FollowingIDs(ctx, a)
	followers, _ := f.store.Follows().FollowerIDs(ctx, b)
	inFollowing := contains(following, b)
	inFollowers := contains(followers, a)
	if inFollowing != inFollowers {
		t.Errorf("asymmetric relationship: %s.following has %s = %v, %s.followers has %s = %v",
			a, b, inFollowing, b, a, inFollowers)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func assertKind(t *testing.T, err error, kind models.ErrorKind) {
	t.Helper()
	if !models.IsKind(err, kind) {
		t.Fatalf("err = %v, want kind %s", err, kind)
	}
}

func assertMessage(t *testing.T, err error, msg string) {
	t.Helper()
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("err = %v, want *AppError", err)
	}
	if appErr.Message != msg {
		t.Errorf("message = %q, want %q", appErr.Message, msg)
	}
}

func TestScenarios_RequestAcceptUnfollow(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	// Scenario A
	req, reactivated, err := f.svc.RequestFollow(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("RequestFollow: %v", err)
	}
	if reactivated {
		t.Error("new request reported as reactivated")
	}
	if req.SenderID != "alice" || req.RecipientID != "bob" || req.Status != models.FollowRequestPending {
		t.Errorf("unexpected request %+v", req)
	}
	if f.follows(t, "alice", "bob") {
		t.Error("requesting must not create a follow")
	}

	// Scenario B
	accepted, err := f.svc.AcceptFollow(ctx, req.ID, "bob")
	if err != nil {
		t.Fatalf("AcceptFollow: %v", err)
	}
	if accepted.Status != models.FollowRequestAccepted {
		t.Errorf("status = %s, want accepted", accepted.Status)
	}
	if !f.follows(t, "alice", "bob") {
		t.Error("alice should follow bob")
	}
	f.assertSymmetric(t, "alice", "bob")
	if got := f.ledger(t, "alice", "bob"); got == nil || got.Status != models.FollowRequestAccepted {
		t.Errorf("ledger row = %+v, want accepted", got)
	}

	// Scenario C
	outcome, err := f.svc.RemoveOrCancelFollow(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("RemoveOrCancelFollow: %v", err)
	}
	if outcome != OutcomeUnfollowed {
		t.Errorf("outcome = %s, want unfollowed", outcome)
	}
	if f.follows(t, "alice", "bob") {
		t.Error("alice should no longer follow bob")
	}
	f.assertSymmetric(t, "alice", "bob")
	if got := f.ledger(t, "alice", "bob"); got != nil {
		t.Errorf("ledger row should be deleted, got %+v", got)
	}

	want := []events.Action{events.FollowRequested, events.FollowAccepted, events.FollowUnfollowed}
	got := f.publisher.actions()
	if len(got) != len(want) {
		t.Fatalf("published %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRemoveOrCancelFollow_NothingToRemove(t *testing.T) {
	f := newFixture(t, "carol", "dave")

	_, err := f.svc.RemoveOrCancelFollow(context.Background(), "dave", "carol")
	assertKind(t, err, models.KindConflict)
	assertMessage(t, err, "No follow or request found")
}

func TestRemoveOrCancelFollow_CancelsPending(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	if _, _, err := f.svc.RequestFollow(ctx, "alice", "bob"); err != nil {
		t.Fatalf("RequestFollow: %v", err)
	}
	outcome, err := f.svc.RemoveOrCancelFollow(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("RemoveOrCancelFollow: %v", err)
	}
	if outcome != OutcomeCanceled {
		t.Errorf("outcome = %s, want canceled", outcome)
	}
	if f.ledger(t, "alice", "bob") != nil {
		t.Error("pending request should be deleted")
	}
}

func TestRemoveOrCancelFollow_SelfAndMissing(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()

	_, err := f.svc.RemoveOrCancelFollow(ctx, "alice", "alice")
	assertKind(t, err, models.KindConflict)

	_, err = f.svc.RemoveOrCancelFollow(ctx, "ghost", "alice")
	assertKind(t, err, models.KindNotFound)
}

func TestRequestFollow_SelfTargetAlwaysConflicts(t *testing.T) {
	f := newFixture(t, "alice")
	for _, id := range []string{"alice", "ghost", ""} {
		_, _, err := f.svc.RequestFollow(context.Background(), id, id)
		assertKind(t, err, models.KindConflict)
		assertMessage(t, err, "You cannot follow yourself")
	}
}

func TestRequestFollow_RecipientChecks(t *testing.T) {
	f := newFixture(t, "alice")
	f.addUser(t, "newbie", false)
	ctx := context.Background()

	_, _, err := f.svc.RequestFollow(ctx, "alice", "ghost")
	assertKind(t, err, models.KindNotFound)
	assertMessage(t, err, "Recipient not found")

	_, _, err = f.svc.RequestFollow(ctx, "alice", "newbie")
	assertKind(t, err, models.KindNotFound)
}

func TestRequestFollow_DuplicateStates(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	req, _, err := f.svc.RequestFollow(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("RequestFollow: %v", err)
	}
	_, _, err = f.svc.RequestFollow(ctx, "alice", "bob")
	assertKind(t, err, models.KindConflict)
	assertMessage(t, err, "Follow request already sent")

	if _, err := f.svc.AcceptFollow(ctx, req.ID, "bob"); err != nil {
		t.Fatalf("AcceptFollow: %v", err)
	}
	_, _, err = f.svc.RequestFollow(ctx, "alice", "bob")
	assertKind(t, err, models.KindConflict)
	assertMessage(t, err, "You are already following this user")
}

func TestRequestFollow_ReactivatesLegacyRows(t *testing.T) {
	for _, status := range []models.FollowRequestStatus{models.FollowRequestRejected, models.FollowRequestRemoved} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, "alice", "bob")
			ctx := context.Background()
			old := time.Now().Add(-time.Hour)
			legacy := &models.FollowRequest{
				ID:          "legacy-1",
				SenderID:    "alice",
				RecipientID: "bob",
				Status:      status,
				CreatedAt:   old,
				UpdatedAt:   old,
			}
			if err := f.store.FollowRequests().Create(ctx, legacy); err != nil {
				t.Fatalf("seed: %v", err)
			}

			req, reactivated, err := f.svc.RequestFollow(ctx, "alice", "bob")
			if err != nil {
				t.Fatalf("RequestFollow: %v", err)
			}
			if !reactivated {
				t.Error("expected reactivation")
			}
			if req.ID != "legacy-1" || req.Status != models.FollowRequestPending {
				t.Errorf("unexpected request %+v", req)
			}
			if got := f.ledger(t, "alice", "bob"); got.Status != models.FollowRequestPending {
				t.Errorf("stored status = %s", got.Status)
			}
		})
	}
}

func TestAcceptFollow_Errors(t *testing.T) {
	f := newFixture(t, "alice", "bob", "mallory")
	ctx := context.Background()

	_, err := f.svc.AcceptFollow(ctx, "missing", "bob")
	assertKind(t, err, models.KindNotFound)
	assertMessage(t, err, "Follow request not found")

	req, _, _ := f.svc.RequestFollow(ctx, "alice", "bob")

	_, err = f.svc.AcceptFollow(ctx, req.ID, "mallory")
	assertKind(t, err, models.KindForbidden)
	_, err = f.svc.AcceptFollow(ctx, req.ID, "alice")
	assertKind(t, err, models.KindForbidden)
	if f.follows(t, "alice", "bob") {
		t.Error("forbidden accept must not mutate")
	}
}

func TestAcceptFollow_SecondCallConflicts(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	req, _, _ := f.svc.RequestFollow(ctx, "alice", "bob")
	if _, err := f.svc.AcceptFollow(ctx, req.ID, "bob"); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	before, _ := f.store.Follows().FollowerIDs(ctx, "bob")

	_, err := f.svc.AcceptFollow(ctx, req.ID, "bob")
	assertKind(t, err, models.KindConflict)
	assertMessage(t, err, "Follow request already accepted")

	after, _ := f.store.Follows().FollowerIDs(ctx, "bob")
	if len(before) != 1 || len(after) != 1 {
		t.Errorf("followers before=%v after=%v, want one entry each", before, after)
	}
}

func TestRemoveFollower_ThenRequestAgain(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	req, _, _ := f.svc.RequestFollow(ctx, "alice", "bob")
	if _, err := f.svc.AcceptFollow(ctx, req.ID, "bob"); err != nil {
		t.Fatalf("AcceptFollow: %v", err)
	}

	if err := f.svc.RemoveFollower(ctx, "alice", "bob"); err != nil {
		t.Fatalf("RemoveFollower: %v", err)
	}
	if f.follows(t, "alice", "bob") {
		t.Error("alice should no longer follow bob")
	}
	f.assertSymmetric(t, "alice", "bob")
	if f.ledger(t, "alice", "bob") != nil {
		t.Error("ledger row should be cleared")
	}

	again, reactivated, err := f.svc.RequestFollow(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("re-request: %v", err)
	}
	if reactivated || again.Status != models.FollowRequestPending || again.ID == req.ID {
		t.Errorf("expected a fresh pending request, got %+v (reactivated=%v)", again, reactivated)
	}
}

func TestRemoveFollower_Errors(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	f.addUser(t, "newbie", false)
	ctx := context.Background()

	err := f.svc.RemoveFollower(ctx, "ghost", "bob")
	assertKind(t, err, models.KindNotFound)

	err = f.svc.RemoveFollower(ctx, "newbie", "bob")
	assertKind(t, err, models.KindNotFound)

	err = f.svc.RemoveFollower(ctx, "alice", "bob")
	assertKind(t, err, models.KindConflict)
	assertMessage(t, err, "This user is not following you")

	// A pending request is not a follow.
	f.svc.RequestFollow(ctx, "alice", "bob")
	err = f.svc.RemoveFollower(ctx, "alice", "bob")
	assertKind(t, err, models.KindConflict)
	if f.ledger(t, "alice", "bob") == nil {
		t.Error("failed removal must not delete the pending request")
	}
}

func TestRequestFollow_ConcurrentCreatesOneRow(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()
	const n = 20

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.svc.RequestFollow(ctx, "alice", "bob")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case models.IsKind(err, models.KindConflict):
			conflicts++
		default:
			t.Errorf("unexpected error %v", err)
		}
	}
	if ok != 1 || conflicts != n-1 {
		t.Errorf("ok=%d conflicts=%d, want 1 and %d", ok, conflicts, n-1)
	}

	sent, _ := f.store.FollowRequests().ListSent(ctx, "alice")
	if len(sent) != 1 {
		t.Errorf("ledger rows = %d, want 1", len(sent))
	}
	if f.svc.locks.size() != 0 {
		t.Errorf("pair locks leaked: %d", f.svc.locks.size())
	}
}

func TestConcurrentAcceptAndRemoveStaySymmetric(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		req, _, err := f.svc.RequestFollow(ctx, "alice", "bob")
		if err != nil {
			t.Fatalf("round %d RequestFollow: %v", i, err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.svc.AcceptFollow(ctx, req.ID, "bob")
		}()
		go func() {
			defer wg.Done()
			f.svc.RemoveOrCancelFollow(ctx, "bob", "alice")
		}()
		wg.Wait()

		f.assertSymmetric(t, "alice", "bob")
		// Reset for the next round whichever order won.
		f.svc.RemoveOrCancelFollow(ctx, "bob", "alice")
	}
}

// failingFollowsStore fails every follows insert made inside a transaction.
type failingFollowsStore struct {
	repository.Store
}

type failingFollows struct {
	repository.FollowRepository
}

func (failingFollows) Add(context.Context, string, string, time.Time) error {
	return errors.New("disk full")
}

func (s failingFollowsStore) Follows() repository.FollowRepository {
	return failingFollows{s.Store.Follows()}
}

func (s failingFollowsStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithTx(ctx, func(tx repository.Store) error {
		return fn(failingFollowsStore{tx})
	})
}

func TestAcceptFollow_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()
	req, _, _ := f.svc.RequestFollow(ctx, "alice", "bob")

	svc := NewService(failingFollowsStore{f.store}, nil, nil, nil)
	_, err := svc.AcceptFollow(ctx, req.ID, "bob")
	if err == nil {
		t.Fatal("expected error")
	}
	assertKind(t, err, models.KindInternal)

	if got := f.ledger(t, "alice", "bob"); got.Status != models.FollowRequestPending {
		t.Errorf("status = %s, want pending after rollback", got.Status)
	}
	if f.follows(t, "alice", "bob") {
		t.Error("follow must not exist after rollback")
	}
}

func TestSideEffects_NotificationsAndMetrics(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	req, _, _ := f.svc.RequestFollow(ctx, "alice", "bob")
	f.svc.AcceptFollow(ctx, req.ID, "bob")
	f.svc.RequestFollow(ctx, "alice", "alice")

	f.notifier.mu.Lock()
	sent := append([]sentEvent(nil), f.notifier.sent...)
	f.notifier.mu.Unlock()
	if len(sent) != 2 {
		t.Fatalf("pushed %d notifications, want 2", len(sent))
	}
	if sent[0].userID != "bob" || sent[1].userID != "alice" {
		t.Errorf("recipients = %s, %s; want bob, alice", sent[0].userID, sent[1].userID)
	}
	first, ok := sent[0].ev.Data.(models.Notification)
	if !ok {
		t.Fatalf("data type %T", sent[0].ev.Data)
	}
	if sent[0].ev.Event != presence.EventNotification || first.User.ID != "alice" || first.Text != "sent you a follow request" {
		t.Errorf("unexpected first notification %+v", first)
	}

	if f.recorder.transitions["request_follow/ok"] != 1 ||
		f.recorder.transitions["accept_follow/ok"] != 1 ||
		f.recorder.transitions["request_follow/conflict"] != 1 {
		t.Errorf("transitions = %v", f.recorder.transitions)
	}
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	f.publisher.err = errors.New("nats down")

	if _, _, err := f.svc.RequestFollow(context.Background(), "alice", "bob"); err != nil {
		t.Fatalf("RequestFollow: %v", err)
	}
}
