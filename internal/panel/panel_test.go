package panel

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"recipeshare/internal/docstore"
	"recipeshare/internal/docstore/memstore"
	"recipeshare/internal/model"
	"recipeshare/internal/queue"
	"recipeshare/internal/repository"
)

// =============================================================================
// Test Doubles
// =============================================================================

// countingStore counts document deletes.
type countingStore struct {
	docstore.Store
	deletes atomic.Int32
}

func (s *countingStore) Delete(ctx context.Context, path string) error {
	s.deletes.Add(1)
	return s.Store.Delete(ctx, path)
}

// spyComments records calls to a real repository. A non-nil hook runs before
// the call is delegated; returning an error fails the call.
type spyComments struct {
	repository.CommentRepository

	beforeList    func(itemID string, sort model.SortMode) error
	beforeCreate  func() error
	beforeUpdate  func() error
	beforeReplies func() error
	beforeLike    func() error

	mu    sync.Mutex
	calls map[string]int
}

func (s *spyComments) record(op string) {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
}

func (s *spyComments) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func run(hook func() error) error {
	if hook == nil {
		return nil
	}
	return hook()
}

func (s *spyComments) ListComments(ctx context.Context, itemID string, sort model.SortMode, after *model.Cursor, limit int) ([]model.Comment, *model.Cursor, bool, error) {
	s.record("ListComments")
	if s.beforeList != nil {
		if err := s.beforeList(itemID, sort); err != nil {
			return nil, nil, false, err
		}
	}
	return s.CommentRepository.ListComments(ctx, itemID, sort, after, limit)
}

func (s *spyComments) CreateComment(ctx context.Context, itemID, authorID, content string) (string, error) {
	s.record("CreateComment")
	if err := run(s.beforeCreate); err != nil {
		return "", err
	}
	return s.CommentRepository.CreateComment(ctx, itemID, authorID, content)
}

func (s *spyComments) CreateReply(ctx context.Context, itemID, commentID, authorID, content string) (string, error) {
	s.record("CreateReply")
	if err := run(s.beforeCreate); err != nil {
		return "", err
	}
	return s.CommentRepository.CreateReply(ctx, itemID, commentID, authorID, content)
}

func (s *spyComments) UpdateComment(ctx context.Context, itemID, commentID, content string) error {
	s.record("UpdateComment")
	if err := run(s.beforeUpdate); err != nil {
		return err
	}
	return s.CommentRepository.UpdateComment(ctx, itemID, commentID, content)
}

func (s *spyComments) UpdateReply(ctx context.Context, itemID, commentID, replyID, content string) error {
	s.record("UpdateReply")
	if err := run(s.beforeUpdate); err != nil {
		return err
	}
	return s.CommentRepository.UpdateReply(ctx, itemID, commentID, replyID, content)
}

func (s *spyComments) DeleteComment(ctx context.Context, itemID, commentID string) error {
	s.record("DeleteComment")
	return s.CommentRepository.DeleteComment(ctx, itemID, commentID)
}

func (s *spyComments) DeleteReply(ctx context.Context, itemID, commentID, replyID string) error {
	s.record("DeleteReply")
	return s.CommentRepository.DeleteReply(ctx, itemID, commentID, replyID)
}

func (s *spyComments) ListReplies(ctx context.Context, itemID, commentID string) ([]model.Comment, error) {
	s.record("ListReplies")
	if err := run(s.beforeReplies); err != nil {
		return nil, err
	}
	return s.CommentRepository.ListReplies(ctx, itemID, commentID)
}

func (s *spyComments) SetLike(ctx context.Context, itemID, commentID, replyID, userID string, liked bool) error {
	s.record("SetLike")
	if err := run(s.beforeLike); err != nil {
		return err
	}
	return s.CommentRepository.SetLike(ctx, itemID, commentID, replyID, userID, liked)
}

// spyProfiles counts display-name lookups per user.
type spyProfiles struct {
	repository.ProfileRepository

	fail map[string]bool

	mu    sync.Mutex
	calls map[string]int
}

func (s *spyProfiles) DisplayName(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	s.calls[userID]++
	fail := s.fail[userID]
	s.mu.Unlock()
	if fail {
		return "", errors.New("profile lookup failed")
	}
	return s.ProfileRepository.DisplayName(ctx, userID)
}

func (s *spyProfiles) count(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[userID]
}

type spyPublisher struct {
	mu     sync.Mutex
	events []queue.CommentEvent
}

func (s *spyPublisher) Publish(ctx context.Context, stream string, event queue.CommentEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return fmt.Sprintf("%d-0", len(s.events)), nil
}

func (s *spyPublisher) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

// gate parks a remote call until the test releases it.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gate) wait() error {
	g.entered <- struct{}{}
	<-g.release
	return nil
}

// =============================================================================
// Fixture
// =============================================================================

type fixture struct {
	store    *countingStore
	repo     repository.CommentRepository
	comments *spyComments
	profiles *spyProfiles
	events   *spyPublisher
	panel    *Panel
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store := &countingStore{Store: memstore.New()}
	repo := repository.NewCommentRepository(store)
	f := &fixture{
		store:    store,
		repo:     repo,
		comments: &spyComments{CommentRepository: repo, calls: map[string]int{}},
		profiles: &spyProfiles{ProfileRepository: repository.NewProfileRepository(store), calls: map[string]int{}, fail: map[string]bool{}},
		events:   &spyPublisher{},
	}
	f.panel = New(Deps{Comments: f.comments, Profiles: f.profiles, Publisher: f.events}, cfg)
	return f
}

func (f *fixture) user(t *testing.T, name string) string {
	t.Helper()
	id, err := f.store.Add(context.Background(), "users", map[string]any{"displayName": name})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func (f *fixture) comment(t *testing.T, itemID, authorID, content string, likes int) string {
	t.Helper()
	ctx := context.Background()
	id, err := f.repo.CreateComment(ctx, itemID, authorID, content)
	if err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	for i := 0; i < likes; i++ {
		if err := f.repo.SetLike(ctx, itemID, id, "", fmt.Sprintf("liker-%d", i), true); err != nil {
			t.Fatalf("seed like: %v", err)
		}
	}
	return id
}

func (f *fixture) reply(t *testing.T, itemID, commentID, authorID, content string) string {
	t.Helper()
	id, err := f.repo.CreateReply(context.Background(), itemID, commentID, authorID, content)
	if err != nil {
		t.Fatalf("seed reply: %v", err)
	}
	return id
}

func ids(v View) []string {
	out := make([]string, 0, len(v.Comments))
	for _, c := range v.Comments {
		out = append(out, c.ID)
	}
	return out
}

func contents(v View) []string {
	out := make([]string, 0, len(v.Comments))
	for _, c := range v.Comments {
		out = append(out, c.Content)
	}
	return out
}

// =============================================================================
// Pagination & Sort
// =============================================================================

func TestLoadMore_PagesUntilExhausted(t *testing.T) {
	tests := []struct {
		total int
		want  []int
	}{
		{total: 7, want: []int{7}},
		{total: 10, want: []int{10}},
		{total: 20, want: []int{10, 10}},
		{total: 23, want: []int{10, 10, 3}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("K=%d", tt.total), func(t *testing.T) {
			// ARRANGE
			f := newFixture(t, Config{PageSize: 10})
			author := f.user(t, "Ana")
			for i := 0; i < tt.total; i++ {
				f.comment(t, "r1", author, fmt.Sprintf("c%d", i), 0)
			}
			ctx := context.Background()

			// ACT
			if err := f.panel.Open(ctx, "r1", "", model.SortNewest); err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			pages := []int{len(f.panel.View().Comments)}
			for f.panel.View().HasMore {
				before := len(f.panel.View().Comments)
				if err := f.panel.LoadMore(ctx); err != nil {
					t.Fatalf("LoadMore failed: %v", err)
				}
				pages = append(pages, len(f.panel.View().Comments)-before)
			}

			// ASSERT
			if !reflect.DeepEqual(pages, tt.want) {
				t.Errorf("expected pages %v, got %v", tt.want, pages)
			}
			calls := f.comments.count("ListComments")
			if calls != len(tt.want) {
				t.Errorf("expected %d page fetches, got %d", len(tt.want), calls)
			}
			f.panel.LoadMore(ctx)
			if f.comments.count("ListComments") != calls {
				t.Error("LoadMore after the last page must not fetch")
			}
			if v := f.panel.View(); v.Total != tt.total {
				t.Errorf("expected total %d, got %d", tt.total, v.Total)
			}
		})
	}
}

func TestSetSort_DiscardsPageOfPreviousOrder(t *testing.T) {
	// ARRANGE: newest order is e,d,c,b,a; popular order is d,b,e,c,a
	f := newFixture(t, Config{PageSize: 2})
	author := f.user(t, "Ana")
	for i, n := range []int{0, 3, 1, 5, 2} {
		f.comment(t, "r1", author, string(rune('a'+i)), n)
	}
	ctx := context.Background()
	if err := f.panel.Open(ctx, "r1", "", model.SortNewest); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if got := contents(f.panel.View()); !reflect.DeepEqual(got, []string{"e", "d"}) {
		t.Fatalf("expected first newest page [e d], got %v", got)
	}

	g := newGate()
	f.comments.beforeList = func(itemID string, sort model.SortMode) error {
		if sort == model.SortNewest {
			return g.wait()
		}
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- f.panel.LoadMore(ctx) }()
	<-g.entered

	// ACT
	if err := f.panel.SetSort(ctx, model.SortPopular); err != nil {
		t.Fatalf("SetSort failed: %v", err)
	}
	close(g.release)
	if err := <-done; err != nil {
		t.Fatalf("stale LoadMore returned error: %v", err)
	}

	// ASSERT
	v := f.panel.View()
	if got := contents(v); !reflect.DeepEqual(got, []string{"d", "b"}) {
		t.Errorf("expected popular page [d b], got %v", got)
	}
	if v.Loading || !v.HasMore || v.Sort != model.SortPopular {
		t.Errorf("unexpected state: loading=%t hasMore=%t sort=%s", v.Loading, v.HasMore, v.Sort)
	}
	if err := f.panel.LoadMore(ctx); err != nil {
		t.Fatalf("LoadMore failed: %v", err)
	}
	if got := contents(f.panel.View()); !reflect.DeepEqual(got, []string{"d", "b", "e", "c"}) {
		t.Errorf("expected continuation in popular order, got %v", got)
	}
}

func TestSetSort_Validation(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if err := f.panel.SetSort(ctx, model.SortNewest); !errors.Is(err, model.ErrPanelClosed) {
		t.Errorf("expected ErrPanelClosed, got %v", err)
	}
	f.panel.Open(ctx, "r1", "", model.SortPopular)
	if err := f.panel.SetSort(ctx, "oldest"); !errors.Is(err, model.ErrInvalidSort) {
		t.Errorf("expected ErrInvalidSort, got %v", err)
	}
	calls := f.comments.count("ListComments")
	if err := f.panel.SetSort(ctx, model.SortPopular); err != nil {
		t.Errorf("same sort should be a no-op, got %v", err)
	}
	if f.comments.count("ListComments") != calls {
		t.Error("same sort must not refetch")
	}
}

func TestLoadMore_FailureKeepsState(t *testing.T) {
	// ARRANGE
	f := newFixture(t, Config{PageSize: 2})
	author := f.user(t, "Ana")
	for i := 0; i < 5; i++ {
		f.comment(t, "r1", author, fmt.Sprintf("c%d", i), 0)
	}
	ctx := context.Background()
	f.panel.Open(ctx, "r1", "", model.SortNewest)
	before := f.panel.View()
	storeDown := errors.New("store unavailable")
	f.comments.beforeList = func(string, model.SortMode) error { return storeDown }

	// ACT
	err := f.panel.LoadMore(ctx)

	// ASSERT
	if !errors.Is(err, storeDown) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if after := f.panel.View(); !reflect.DeepEqual(before, after) {
		t.Errorf("failed fetch changed state:\nbefore %+v\nafter  %+v", before, after)
	}

	// retry succeeds once the store is back
	f.comments.beforeList = nil
	if err := f.panel.LoadMore(ctx); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if n := len(f.panel.View().Comments); n != 4 {
		t.Errorf("expected 4 comments after retry, got %d", n)
	}
}

// =============================================================================
// Fetch Version Guard
// =============================================================================

func TestStaleFetch_ProducesNoMutation(t *testing.T) {
	// ARRANGE
	f := newFixture(t, Config{})
	oldAuthor := f.user(t, "Old")
	newAuthor := f.user(t, "New")
	f.comment(t, "r1", oldAuthor, "from r1", 0)
	f.comment(t, "r2", newAuthor, "from r2", 0)
	ctx := context.Background()

	g := newGate()
	f.comments.beforeList = func(itemID string, sort model.SortMode) error {
		if itemID == "r1" {
			return g.wait()
		}
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- f.panel.Open(ctx, "r1", "", model.SortNewest) }()
	<-g.entered

	// ACT
	if err := f.panel.SetItem(ctx, "r2"); err != nil {
		t.Fatalf("SetItem failed: %v", err)
	}
	before := f.panel.View()
	close(g.release)
	if err := <-done; err != nil {
		t.Fatalf("stale Open returned error: %v", err)
	}

	// ASSERT
	after := f.panel.View()
	if !reflect.DeepEqual(before, after) {
		t.Errorf("stale fetch mutated state:\nbefore %+v\nafter  %+v", before, after)
	}
	if got := contents(after); !reflect.DeepEqual(got, []string{"from r2"}) {
		t.Errorf("expected only r2 comments, got %v", got)
	}
	f.panel.mu.Lock()
	_, cached := f.panel.names[oldAuthor]
	f.panel.mu.Unlock()
	if cached {
		t.Error("names resolved by a stale fetch must not be cached")
	}
}

func TestClose_DiscardsInFlightReplies(t *testing.T) {
	f := newFixture(t, Config{})
	author := f.user(t, "Ana")
	cid := f.comment(t, "r1", author, "parent", 0)
	f.reply(t, "r1", cid, author, "child")
	ctx := context.Background()
	f.panel.Open(ctx, "r1", author, model.SortNewest)

	g := newGate()
	f.comments.beforeReplies = g.wait
	done := make(chan error, 1)
	go func() {
		_, err := f.panel.ToggleReplies(ctx, cid)
		done <- err
	}()
	<-g.entered

	f.panel.Close()
	close(g.release)
	<-done

	if f.panel.IsOpen() {
		t.Error("panel should stay closed")
	}
	f.panel.mu.Lock()
	defer f.panel.mu.Unlock()
	if len(f.panel.replies) != 0 || len(f.panel.list) != 0 {
		t.Errorf("closed panel holds state: replies=%d list=%d", len(f.panel.replies), len(f.panel.list))
	}
}

// =============================================================================
// Optimistic Mutations
// =============================================================================

func TestCreateComment_ShowsPendingThenConfirmed(t *testing.T) {
	// ARRANGE
	f := newFixture(t, Config{})
	me := f.user(t, "Ana")
	other := f.user(t, "Bao")
	f.comment(t, "r1", other, "first", 0)
	f.comment(t, "r1", other, "second", 0)
	ctx := context.Background()
	f.panel.Open(ctx, "r1", me, model.SortNewest)

	g := newGate()
	f.comments.beforeCreate = g.wait
	type result struct {
		c   model.Comment
		err error
	}
	done := make(chan result, 1)
	go func() {
		c, err := f.panel.CreateComment(ctx, "  great dish  ")
		done <- result{c, err}
	}()
	<-g.entered

	// ASSERT: visible before the store confirms
	v := f.panel.View()
	if v.Total != 3 {
		t.Errorf("expected optimistic total 3, got %d", v.Total)
	}
	first := v.Comments[0]
	if !first.Pending || !IsPendingID(first.ID) || first.Content != "great dish" {
		t.Errorf("expected pending comment first, got %+v", first.Comment)
	}
	if first.CanModify {
		t.Error("pending comment must not be modifiable")
	}

	// ACT
	close(g.release)
	res := <-done

	// ASSERT: replaced by the stored record
	if res.err != nil {
		t.Fatalf("CreateComment failed: %v", res.err)
	}
	v = f.panel.View()
	if v.Total != 3 || len(v.Comments) != 3 {
		t.Fatalf("expected 3 comments, got total=%d listed=%d", v.Total, len(v.Comments))
	}
	first = v.Comments[0]
	if first.ID != res.c.ID || first.Pending || IsPendingID(first.ID) {
		t.Errorf("expected confirmed comment %s first, got %+v", res.c.ID, first.Comment)
	}
	if first.AuthorName != "Ana" || !first.CanModify {
		t.Errorf("expected own named comment, got name=%q canModify=%t", first.AuthorName, first.CanModify)
	}
	if _, err := f.repo.GetComment(ctx, "r1", res.c.ID); err != nil {
		t.Errorf("comment not stored: %v", err)
	}
	if got := f.events.types(); !reflect.DeepEqual(got, []string{queue.EventCommentCreated}) {
		t.Errorf("expected comment_created event, got %v", got)
	}
}

func TestCreateComment_FailureRollsBack(t *testing.T) {
	f := newFixture(t, Config{})
	me := f.user(t, "Ana")
	f.comment(t, "r1", me, "existing", 0)
	ctx := context.Background()
	f.panel.Open(ctx, "r1", me, model.SortNewest)
	storeDown := errors.New("store unavailable")
	f.comments.beforeCreate = func() error { return storeDown }

	_, err := f.panel.CreateComment(ctx, "lost")

	if !errors.Is(err, storeDown) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	v := f.panel.View()
	if v.Total != 1 || !reflect.DeepEqual(contents(v), []string{"existing"}) {
		t.Errorf("expected rollback, got total=%d contents=%v", v.Total, contents(v))
	}
	if len(f.events.types()) != 0 {
		t.Error("failed create must not publish")
	}
}

func TestCreateComment_PendingStateFollowsConfirmedID(t *testing.T) {
	tests := []struct {
		name  string
		fails bool
	}{
		{"confirmed", false},
		{"failed", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// ARRANGE
			f := newFixture(t, Config{})
			me := f.user(t, "Ana")
			ctx := context.Background()
			f.panel.Open(ctx, "r1", me, model.SortNewest)

			g := newGate()
			f.comments.beforeCreate = func() error {
				g.wait()
				if tt.fails {
					return errors.New("store unavailable")
				}
				return nil
			}
			done := make(chan error, 1)
			go func() {
				_, err := f.panel.CreateComment(ctx, "fresh")
				done <- err
			}()
			<-g.entered

			// ACT: expand and open the menu of the pending comment
			pendingID := f.panel.View().Comments[0].ID
			if shown, err := f.panel.ToggleReplies(ctx, pendingID); err != nil || !shown {
				t.Fatalf("ToggleReplies on pending comment: %t %v", shown, err)
			}
			if err := f.panel.ToggleMenu(pendingID, ""); err != nil {
				t.Fatalf("ToggleMenu failed: %v", err)
			}
			close(g.release)
			err := <-done

			// ASSERT
			f.panel.mu.Lock()
			_, leaked := f.panel.replies[pendingID]
			stale := f.panel.shown.Has(pendingID) || f.panel.menu.Has(pendingID)
			f.panel.mu.Unlock()
			if leaked || stale {
				t.Errorf("state left under %s: replies=%t flags=%t", pendingID, leaked, stale)
			}

			v := f.panel.View()
			if tt.fails {
				if err == nil {
					t.Fatal("expected create to fail")
				}
				if len(v.Comments) != 0 {
					t.Errorf("expected rollback, got %d comments", len(v.Comments))
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateComment failed: %v", err)
			}
			c := v.Comments[0]
			if c.Pending || !c.RepliesShown || !c.MenuOpen {
				t.Errorf("expected confirmed comment to stay expanded with menu open, got pending=%t shown=%t menu=%t",
					c.Pending, c.RepliesShown, c.MenuOpen)
			}
			if shown, err := f.panel.ToggleReplies(ctx, c.ID); err != nil || shown {
				t.Errorf("next toggle should hide, got %t %v", shown, err)
			}
			if n := f.comments.count("ListReplies"); n != 0 {
				t.Errorf("new comment needs no reply fetch, got %d", n)
			}
		})
	}
}

func TestCreateComment_Validation(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.panel.CreateComment(ctx, "hi"); !errors.Is(err, model.ErrPanelClosed) {
		t.Errorf("expected ErrPanelClosed, got %v", err)
	}
	f.panel.Open(ctx, "r1", "", model.SortNewest)
	if _, err := f.panel.CreateComment(ctx, "hi"); !errors.Is(err, model.ErrAuthRequired) {
		t.Errorf("expected ErrAuthRequired, got %v", err)
	}
	if _, err := f.panel.ToggleLike(ctx, "c1", ""); !errors.Is(err, model.ErrAuthRequired) {
		t.Errorf("expected ErrAuthRequired for like, got %v", err)
	}
	f.panel.SetUser("u1")
	if _, err := f.panel.CreateComment(ctx, "   "); !errors.Is(err, model.ErrContentRequired) {
		t.Errorf("expected ErrContentRequired, got %v", err)
	}
	if _, err := f.panel.CreateComment(ctx, strings.Repeat("é", model.MaxCommentLength+1)); !errors.Is(err, model.ErrContentTooLong) {
		t.Errorf("expected ErrContentTooLong, got %v", err)
	}
	if n := f.comments.count("CreateComment"); n != 0 {
		t.Errorf("expected no remote create, got %d", n)
	}
	if v := f.panel.View(); v.Total != 0 || len(v.Comments) != 0 {
		t.Errorf("rejected creates changed state: %+v", v)
	}
}

func TestDeleteComment_TotalNeverNegative(t *testing.T) {
	// ARRANGE
	f := newFixture(t, Config{})
	me := f.user(t, "Ana")
	only := f.comment(t, "r1", me, "only", 0)
	ctx := context.Background()
	f.panel.Open(ctx, "r1", me, model.SortNewest)

	// ACT & ASSERT: 1 -> 0
	if err := f.panel.DeleteComment(ctx, only); err != nil {
		t.Fatalf("DeleteComment failed: %v", err)
	}
	if v := f.panel.View(); v.Total != 0 || len(v.Comments) != 0 {
		t.Errorf("expected empty panel, got total=%d listed=%d", v.Total, len(v.Comments))
	}

	// a total that is already zero stays at zero
	second := f.comment(t, "r1", me, "late", 0)
	f.panel.SetItem(ctx, "r2")
	f.panel.SetItem(ctx, "r1")
	f.panel.mu.Lock()
	f.panel.total = 0
	f.panel.mu.Unlock()
	if err := f.panel.DeleteComment(ctx, second); err != nil {
		t.Fatalf("DeleteComment failed: %v", err)
	}
	if v := f.panel.View(); v.Total != 0 {
		t.Errorf("expected total floored at 0, got %d", v.Total)
	}
}

func TestEdit_PatchesRecordAfterSuccess(t *testing.T) {
	// ARRANGE
	f := newFixture(t, Config{})
	me := f.user(t, "Ana")
	cid := f.comment(t, "r1", me, "old", 0)
	rid := f.reply(t, "r1", cid, me, "old reply")
	ctx := context.Background()
	f.panel.Open(ctx, "r1", me, model.SortNewest)
	f.panel.ToggleReplies(ctx, cid)
	if err := f.panel.StartEdit(cid, ""); err != nil {
		t.Fatalf("StartEdit failed: %v", err)
	}

	// ACT
	errComment := f.panel.Edit(ctx, cid, "", "  new  ")
	errReply := f.panel.Edit(ctx, cid, rid, "new reply")

	// ASSERT
	if errComment != nil || errReply != nil {
		t.Fatalf("Edit failed: %v %v", errComment, errReply)
	}
	c := f.panel.View().Comments[0]
	if c.Content != "new" || c.UpdatedAt == nil || c.Editing {
		t.Errorf("expected patched comment out of edit mode, got %+v editing=%t", c.Comment, c.Editing)
	}
	if len(c.Replies) != 1 || c.Replies[0].Content != "new reply" {
		t.Errorf("expected patched reply, got %+v", c.Replies)
	}
	stored, _ := f.repo.GetComment(ctx, "r1", cid)
	if stored.Content != "new" {
		t.Errorf("expected stored content updated, got %q", stored.Content)
	}
	if n := f.comments.count("ListComments"); n != 1 {
		t.Errorf("edit must not refetch the list, got %d fetches", n)
	}
}

func TestEdit_FailureLeavesRecord(t *testing.T) {
	f := newFixture(t, Config{})
	me := f.user(t, "Ana")
	cid := f.comment(t, "r1", me, "old", 0)
	ctx := context.Background()
	f.panel.Open(ctx, "r1", me, model.SortNewest)
	f.panel.StartEdit(cid, "")
	f.comments.beforeUpdate = func() error { return errors.New("write rejected") }

	err := f.panel.Edit(ctx, cid, "", "new")

	if err == nil {
		t.Fatal("expected error")
	}
	c := f.panel.View().Comments[0]
	if c.Content != "old" || c.UpdatedAt != nil || !c.Editing {
		t.Errorf("failed edit changed state: %+v editing=%t", c.Comment, c.Editing)
	}
}

func TestAuthorization_NonOwnerRejectedWithoutRemoteCall(t *testing.T) {
	// ARRANGE
	f := newFixture(t, Config{})
	owner := f.user(t, "Ana")
	other := f.user(t, "Bao")
	cid := f.comment(t, "r1", owner, "mine", 0)
	rid := f.reply(t, "r1", cid, owner, "my reply")
	ctx := context.Background()
	f.panel.Open(ctx, "r1", other, model.SortNewest)
	f.panel.ToggleReplies(ctx, cid)

	// ASSERT: no affordance
	c := f.panel.View().Comments[0]
	if c.CanModify || c.Replies[0].CanModify {
		t.Error("non-owner must not see edit/delete affordances")
	}

	// ACT & ASSERT: direct calls rejected
	checks := map[string]error{
		"Edit":        f.panel.Edit(ctx, cid, "", "hijack"),
		"EditReply":   f.panel.Edit(ctx, cid, rid, "hijack"),
		"Delete":      f.panel.DeleteComment(ctx, cid),
		"DeleteReply": f.panel.DeleteReply(ctx, cid, rid),
		"StartEdit":   f.panel.StartEdit(cid, ""),
	}
	for name, err := range checks {
		if !errors.Is(err, model.ErrNotCommentOwner) {
			t.Errorf("%s: expected ErrNotCommentOwner, got %v", name, err)
		}
	}
	for _, op := range []string{"UpdateComment", "UpdateReply", "DeleteComment", "DeleteReply"} {
		if n := f.comments.count(op); n != 0 {
			t.Errorf("%s called %d times", op, n)
		}
	}
	if n := f.store.deletes.Load(); n != 0 {
		t.Errorf("expected no deletes, got %d", n)
	}
}

func TestMutations_UnknownAndPendingRecords(t *testing.T) {
	f := newFixture(t, Config{})
	me := f.user(t, "Ana")
	ctx := context.Background()
	f.panel.Open(ctx, "r1", me, model.SortNewest)

	if err := f.panel.DeleteComment(ctx, "nope"); !errors.Is(err, model.ErrCommentNotFound) {
		t.Errorf("expected ErrCommentNotFound, got %v", err)
	}

	g := newGate()
	f.comments.beforeCreate = g.wait
	done := make(chan struct{})
	go func() {
		f.panel.CreateComment(ctx, "slow")
		close(done)
	}()
	<-g.entered
	pendingID := f.panel.View().Comments[0].ID

	if err := f.panel.Edit(ctx, pendingID, "", "x"); !errors.Is(err, model.ErrCommentPending) {
		t.Errorf("expected ErrCommentPending for edit, got %v", err)
	}
	if _, err := f.panel.CreateReply(ctx, pendingID, "x"); !errors.Is(err, model.ErrCommentPending) {
		t.Errorf("expected ErrCommentPending for reply, got %v", err)
	}
	close(g.release)
	<-done
}

func TestDeleteComment_Cascade(t *testing.T) {
	// ARRANGE
	f := newFixture(t, Config{})
	me := f.user(t, "Ana")
	keep := f.comment(t, "r1", me, "keep", 0)
	cid := f.comment(t, "r1", me, "doomed", 0)
	for i := 0; i < 4; i++ {
		f.reply(t, "r1", cid, me, fmt.Sprintf("reply %d", i))
	}
	ctx := context.Background()
	f.panel.Open(ctx, "r1", me, model.SortNewest)
	f.panel.ToggleReplies(ctx, cid)
	f.panel.ToggleMenu(cid, "")
	f.panel.StartEdit(cid, "")

	// ACT
	if err := f.panel.DeleteComment(ctx, cid); err != nil {
		t.Fatalf("DeleteComment failed: %v", err)
	}

	// ASSERT
	if n := f.store.deletes.Load(); n != 5 {
		t.Errorf("expected 5 deletes (4 replies + comment), got %d", n)
	}
	v := f.panel.View()
	if !reflect.DeepEqual(ids(v), []string{keep}) || v.Total != 1 {
		t.Errorf("expected only %s with total 1, got %v total=%d", keep, ids(v), v.Total)
	}
	f.panel.mu.Lock()
	_, hasCount := f.panel.replyCounts[cid]
	_, hasReplies := f.panel.replies[cid]
	flagsLeft := f.panel.shown.Len() + f.panel.editing.Len() + f.panel.menu.Len()
	f.panel.mu.Unlock()
	if hasCount || hasReplies || flagsLeft != 0 {
		t.Errorf("leftover state: count=%t replies=%t flags=%d", hasCount, hasReplies, flagsLeft)
	}
	if n, _ := f.repo.CountReplies(ctx, "r1", cid); n != 0 {
		t.Errorf("expected no stored replies, got %d", n)
	}
	if got := f.events.types(); !reflect.DeepEqual(got, []string{queue.EventCommentDeleted}) {
		t.Errorf("expected comment_deleted event, got %v", got)
	}
}

func TestReplies_CreateAndDelete(t *testing.T) {
	// ARRANGE
	f := newFixture(t, Config{})
	me := f.user(t, "Ana")
	cid := f.comment(t, "r1", me, "parent", 0)
	ctx := context.Background()
	f.panel.Open(ctx, "r1", me, model.SortNewest)
	f.panel.ToggleReplies(ctx, cid)

	// ACT
	reply, err := f.panel.CreateReply(ctx, cid, "first reply")

	// ASSERT
	if err != nil {
		t.Fatalf("CreateReply failed: %v", err)
	}
	c := f.panel.View().Comments[0]
	if c.ReplyCount != 1 || len(c.Replies) != 1 || c.Replies[0].ID != reply.ID || c.Replies[0].AuthorName != "Ana" {
		t.Fatalf("expected confirmed reply, got count=%d replies=%+v", c.ReplyCount, c.Replies)
	}

	// reply count floors at zero
	f.panel.mu.Lock()
	f.panel.replyCounts[cid] = 0
	f.panel.mu.Unlock()
	if err := f.panel.DeleteReply(ctx, cid, reply.ID); err != nil {
		t.Fatalf("DeleteReply failed: %v", err)
	}
	c = f.panel.View().Comments[0]
	if c.ReplyCount != 0 || len(c.Replies) != 0 {
		t.Errorf("expected no replies, got count=%d replies=%d", c.ReplyCount, len(c.Replies))
	}
	if got := f.events.types(); !reflect.DeepEqual(got, []string{queue.EventReplyCreated, queue.EventCommentDeleted}) {
		t.Errorf("unexpected events %v", got)
	}
}

func TestCreateReply_CollapsedParentOnlyCounts(t *testing.T) {
	f := newFixture(t, Config{})
	me := f.user(t, "Ana")
	cid := f.comment(t, "r1", me, "parent", 0)
	ctx := context.Background()
	f.panel.Open(ctx, "r1", me, model.SortNewest)

	if _, err := f.panel.CreateReply(ctx, cid, "hi"); err != nil {
		t.Fatalf("CreateReply failed: %v", err)
	}

	c := f.panel.View().Comments[0]
	if c.ReplyCount != 1 || c.Replies != nil {
		t.Errorf("expected count 1 and no loaded replies, got %d %v", c.ReplyCount, c.Replies)
	}
	shown, err := f.panel.ToggleReplies(ctx, cid)
	if err != nil || !shown {
		t.Fatalf("ToggleReplies failed: %v", err)
	}
	if c := f.panel.View().Comments[0]; len(c.Replies) != 1 {
		t.Errorf("expected stored reply on expansion, got %d", len(c.Replies))
	}
}

func TestToggleLike_OptimisticWithRollback(t *testing.T) {
	// ARRANGE
	f := newFixture(t, Config{})
	me := f.user(t, "Ana")
	other := f.user(t, "Bao")
	cid := f.comment(t, "r1", other, "tasty", 0)
	ctx := context.Background()
	f.panel.Open(ctx, "r1", me, model.SortNewest)

	// ACT: like
	liked, err := f.panel.ToggleLike(ctx, cid, "")

	// ASSERT
	if err != nil || !liked {
		t.Fatalf("expected like, got %t %v", liked, err)
	}
	c := f.panel.View().Comments[0]
	if c.LikeCount != 1 || !c.LikedByMe {
		t.Errorf("expected 1 like by me, got %d %t", c.LikeCount, c.LikedByMe)
	}
	if got := f.events.types(); !reflect.DeepEqual(got, []string{queue.EventCommentLiked}) {
		t.Errorf("expected comment_liked event, got %v", got)
	}

	// ACT: failed unlike rolls back
	f.comments.beforeLike = func() error { return errors.New("write rejected") }
	liked, err = f.panel.ToggleLike(ctx, cid, "")

	if err == nil || !liked {
		t.Fatalf("expected error with like state kept, got %t %v", liked, err)
	}
	c = f.panel.View().Comments[0]
	if c.LikeCount != 1 || !c.LikedByMe {
		t.Errorf("expected rollback to liked, got %d %t", c.LikeCount, c.LikedByMe)
	}
	stored, _ := f.repo.GetComment(ctx, "r1", cid)
	if stored.LikeCount != 1 {
		t.Errorf("expected stored like count 1, got %d", stored.LikeCount)
	}
}

// =============================================================================
// Reply Expansion & Names
// =============================================================================

func TestToggleReplies_FetchesOnce(t *testing.T) {
	// ARRANGE
	f := newFixture(t, Config{})
	me := f.user(t, "Ana")
	cid := f.comment(t, "r1", me, "parent", 0)
	for _, text := range []string{"one", "two", "three"} {
		f.reply(t, "r1", cid, me, text)
	}
	ctx := context.Background()
	f.panel.Open(ctx, "r1", me, model.SortNewest)

	// ACT
	var states []bool
	for i := 0; i < 3; i++ {
		shown, err := f.panel.ToggleReplies(ctx, cid)
		if err != nil {
			t.Fatalf("ToggleReplies failed: %v", err)
		}
		states = append(states, shown)
	}

	// ASSERT
	if !reflect.DeepEqual(states, []bool{true, false, true}) {
		t.Errorf("expected toggles [true false true], got %v", states)
	}
	if n := f.comments.count("ListReplies"); n != 1 {
		t.Errorf("expected 1 reply fetch, got %d", n)
	}
	c := f.panel.View().Comments[0]
	var got []string
	for _, r := range c.Replies {
		got = append(got, r.Content)
	}
	if !reflect.DeepEqual(got, []string{"one", "two", "three"}) {
		t.Errorf("expected replies oldest first, got %v", got)
	}
}

func TestToggleReplies_FailureHidesAgain(t *testing.T) {
	f := newFixture(t, Config{})
	me := f.user(t, "Ana")
	cid := f.comment(t, "r1", me, "parent", 0)
	ctx := context.Background()
	f.panel.Open(ctx, "r1", me, model.SortNewest)
	f.comments.beforeReplies = func() error { return errors.New("read failed") }

	shown, err := f.panel.ToggleReplies(ctx, cid)

	if err == nil || shown {
		t.Fatalf("expected failure with replies hidden, got %t %v", shown, err)
	}
	if f.panel.View().Comments[0].RepliesShown {
		t.Error("flag should be reverted")
	}

	f.comments.beforeReplies = nil
	if shown, err := f.panel.ToggleReplies(ctx, cid); err != nil || !shown {
		t.Errorf("retry should expand, got %t %v", shown, err)
	}
}

func TestToggleReplies_SurvivesSortChange(t *testing.T) {
	// ARRANGE
	f := newFixture(t, Config{})
	me := f.user(t, "Ana")
	cid := f.comment(t, "r1", me, "parent", 0)
	f.reply(t, "r1", cid, me, "only reply")
	ctx := context.Background()
	f.panel.Open(ctx, "r1", me, model.SortNewest)

	g := newGate()
	f.comments.beforeReplies = g.wait
	type result struct {
		shown bool
		err   error
	}
	done := make(chan result, 1)
	go func() {
		shown, err := f.panel.ToggleReplies(ctx, cid)
		done <- result{shown, err}
	}()
	<-g.entered

	// ACT: the order changes while the replies are loading
	if err := f.panel.SetSort(ctx, model.SortPopular); err != nil {
		t.Fatalf("SetSort failed: %v", err)
	}
	close(g.release)
	res := <-done
	f.comments.beforeReplies = nil

	// ASSERT
	if res.err != nil || !res.shown {
		t.Fatalf("expected replies shown, got %t %v", res.shown, res.err)
	}
	c := f.panel.View().Comments[0]
	if !c.RepliesShown || len(c.Replies) != 1 || c.Replies[0].Content != "only reply" {
		t.Errorf("expected the loaded reply under the comment, got shown=%t replies=%d", c.RepliesShown, len(c.Replies))
	}
	if shown, err := f.panel.ToggleReplies(ctx, cid); err != nil || shown {
		t.Errorf("next toggle should hide, got %t %v", shown, err)
	}
	if n := f.comments.count("ListReplies"); n != 1 {
		t.Errorf("expected 1 reply fetch, got %d", n)
	}
}

func TestResolveNames_OncePerAuthorAcrossPages(t *testing.T) {
	// ARRANGE
	f := newFixture(t, Config{PageSize: 2})
	ana := f.user(t, "Ana")
	bao := f.user(t, "Bao")
	for _, author := range []string{ana, bao, ana, ana, bao} {
		f.comment(t, "r1", author, "hello", 0)
	}
	ctx := context.Background()

	// ACT
	f.panel.Open(ctx, "r1", "", model.SortNewest)
	first := f.panel.View().Comments[0].AuthorName
	for f.panel.View().HasMore {
		if err := f.panel.LoadMore(ctx); err != nil {
			t.Fatalf("LoadMore failed: %v", err)
		}
	}

	// ASSERT
	if f.profiles.count(ana) != 1 || f.profiles.count(bao) != 1 {
		t.Errorf("expected one lookup per author, got ana=%d bao=%d", f.profiles.count(ana), f.profiles.count(bao))
	}
	for _, c := range f.panel.View().Comments {
		if c.AuthorID == bao && c.AuthorName != first {
			t.Errorf("expected stable name %q, got %q", first, c.AuthorName)
		}
		if c.AuthorID == ana && c.AuthorName != "Ana" {
			t.Errorf("expected Ana, got %q", c.AuthorName)
		}
	}
}

func TestResolveNames_PlaceholderAndRetry(t *testing.T) {
	// ARRANGE: newest order is ghost, flaky, flaky
	f := newFixture(t, Config{PageSize: 2, AnonymousName: "Guest"})
	flaky := f.user(t, "Flaky")
	f.comment(t, "r1", flaky, "oldest", 0)
	f.comment(t, "r1", flaky, "middle", 0)
	f.comment(t, "r1", "ghost", "newest", 0)
	f.profiles.fail[flaky] = true
	ctx := context.Background()

	// ACT
	f.panel.Open(ctx, "r1", "", model.SortNewest)
	first := f.panel.View()
	f.profiles.fail[flaky] = false
	f.panel.LoadMore(ctx)
	second := f.panel.View()

	// ASSERT
	if got := first.Comments[0].AuthorName; got != "Guest" {
		t.Errorf("expected placeholder for missing profile, got %q", got)
	}
	if got := first.Comments[1].AuthorName; got != "" {
		t.Errorf("failed lookup must stay unresolved, got %q", got)
	}
	if got := second.Comments[1].AuthorName; got != "Flaky" {
		t.Errorf("expected Flaky after retry, got %q", got)
	}
	if n := f.profiles.count(flaky); n != 2 {
		t.Errorf("expected a retried lookup, got %d calls", n)
	}
}

// =============================================================================
// End-to-End
// =============================================================================

func TestPanel_EndToEnd(t *testing.T) {
	// ARRANGE: 23 comments by distinct authors, c1 is the most liked with 3 replies
	f := newFixture(t, Config{PageSize: 10})
	me := f.user(t, "Me")
	var c1 string
	for i := 0; i < 23; i++ {
		author := f.user(t, fmt.Sprintf("Author %02d", i))
		likes := 1 + i%5
		if i == 0 {
			likes = 10
		}
		id := f.comment(t, "X", author, fmt.Sprintf("comment %02d", i), likes)
		if i == 0 {
			c1 = id
		}
	}
	replier := f.user(t, "Replier")
	for _, text := range []string{"r1", "r2", "r3"} {
		f.reply(t, "X", c1, replier, text)
	}
	ctx := context.Background()

	// ACT & ASSERT: open
	if err := f.panel.Open(ctx, "X", me, model.SortPopular); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	v := f.panel.View()
	if v.Total != 23 || len(v.Comments) != 10 {
		t.Fatalf("expected total 23 with 10 listed, got %d %d", v.Total, len(v.Comments))
	}
	if v.Comments[0].ID != c1 || v.Comments[0].ReplyCount != 3 {
		t.Errorf("expected c1 first with 3 replies, got %s with %d", v.Comments[0].ID, v.Comments[0].ReplyCount)
	}
	named := 0
	for _, c := range v.Comments {
		if strings.HasPrefix(c.AuthorName, "Author ") {
			named++
		}
	}
	if named != 10 {
		t.Errorf("expected 10 resolved names, got %d", named)
	}

	// expand c1
	if _, err := f.panel.ToggleReplies(ctx, c1); err != nil {
		t.Fatalf("ToggleReplies failed: %v", err)
	}
	if n := f.comments.count("ListReplies"); n != 1 {
		t.Errorf("expected exactly one reply fetch, got %d", n)
	}
	replies := f.panel.View().Comments[0].Replies
	if len(replies) != 3 || replies[0].Content != "r1" || replies[2].Content != "r3" || replies[0].AuthorName != "Replier" {
		t.Errorf("expected 3 replies oldest first, got %+v", replies)
	}

	// new comment
	if _, err := f.panel.CreateComment(ctx, "great dish"); err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}
	v = f.panel.View()
	if v.Total != 24 || v.Comments[0].Content != "great dish" {
		t.Errorf("expected total 24 with new comment first, got %d %q", v.Total, v.Comments[0].Content)
	}

	// scroll
	if err := f.panel.LoadMore(ctx); err != nil {
		t.Fatalf("LoadMore failed: %v", err)
	}
	if n := len(f.panel.View().Comments); n != 21 {
		t.Errorf("expected 21 listed after second page, got %d", n)
	}

	// switch to newest
	if err := f.panel.SetSort(ctx, model.SortNewest); err != nil {
		t.Fatalf("SetSort failed: %v", err)
	}
	v = f.panel.View()
	if len(v.Comments) != 10 || v.Comments[0].Content != "great dish" || v.Sort != model.SortNewest {
		t.Errorf("expected fresh newest page led by the new comment, got %d %q", len(v.Comments), v.Comments[0].Content)
	}
	if got := f.events.types(); !reflect.DeepEqual(got, []string{queue.EventCommentCreated}) {
		t.Errorf("unexpected events %v", got)
	}
}
