// Package panel holds the state of one item's comment panel: the paginated,
// sorted comment list, reply lists, aggregate counts, resolved author names and
// per-entity UI flags, kept consistent with the document store through
// optimistic mutations.
//
// A Panel's mutex is never held across a remote call. Reads capture the fetch
// version when they are issued and commit only if it is unchanged when they
// complete, so a reset (open, sort change, item change, close) silently
// suppresses every result still in flight.
package panel

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"recipeshare/internal/model"
	"recipeshare/internal/queue"
	"recipeshare/internal/repository"
)

const (
	// DefaultAnonymousName is shown for authors without a display name
	DefaultAnonymousName = "Anonymous"

	// lookupParallelism bounds concurrent reply-count and name lookups of one batch
	lookupParallelism = 5
)

// Config tunes a Panel.
type Config struct {
	PageSize      int    // comments per page, default model.DefaultPageSize
	AnonymousName string // placeholder for missing display names
}

// Deps are the collaborators of a Panel. Publisher may be nil.
type Deps struct {
	Comments  repository.CommentRepository
	Profiles  repository.ProfileRepository
	Publisher queue.Publisher
}

// Panel is the comment panel of one item. It is safe for concurrent use.
type Panel struct {
	comments  repository.CommentRepository
	profiles  repository.ProfileRepository
	events    queue.Publisher
	pageSize  int
	anonymous string
	now       func() time.Time

	lookups singleflight.Group

	mu     sync.Mutex
	open   bool
	itemID string
	userID string
	sort   model.SortMode

	// version is the fetch version; countEpoch changes only when the total is
	// reloaded, so optimistic count adjustments know whether they still apply.
	version    uint64
	countEpoch uint64

	list    []model.Comment
	cursor  *model.Cursor
	hasMore bool
	loading bool

	total        int
	replyCounts  map[string]int
	replies      map[string][]model.Comment
	replyLoading map[string]bool
	names        map[string]string
	shown        *Flags
	editing      *Flags
	menu         *Flags
}

// New creates a closed panel.
func New(deps Deps, cfg Config) *Panel {
	if cfg.PageSize <= 0 {
		cfg.PageSize = model.DefaultPageSize
	}
	if cfg.AnonymousName == "" {
		cfg.AnonymousName = DefaultAnonymousName
	}
	return &Panel{
		comments:  deps.Comments,
		profiles:  deps.Profiles,
		events:    deps.Publisher,
		pageSize:  cfg.PageSize,
		anonymous: cfg.AnonymousName,
		now:       time.Now,
		sort:      model.SortPopular,
	}
}

// Open shows the panel for itemID as userID ("" for no acting user), loads the
// total comment count and the first page. A failed load leaves the panel open
// and empty; calling LoadMore retries the page.
func (p *Panel) Open(ctx context.Context, itemID, userID string, sort model.SortMode) error {
	if itemID == "" {
		return model.ErrItemRequired
	}
	if sort == "" {
		sort = model.SortPopular
	}
	if _, err := model.ParseSortMode(string(sort)); err != nil {
		return err
	}

	p.mu.Lock()
	p.open = true
	p.userID = userID
	p.sort = sort
	p.names = make(map[string]string)
	p.shown, p.editing, p.menu = NewFlags(), NewFlags(), NewFlags()
	p.resetItemLocked(itemID)
	p.mu.Unlock()

	log.Printf("[Panel] Open: item=%s user=%s sort=%s", itemID, userID, sort)
	return p.loadFresh(ctx)
}

// SetItem retargets an open panel at another item, keeping the acting user,
// the sort order and the name cache.
func (p *Panel) SetItem(ctx context.Context, itemID string) error {
	if itemID == "" {
		return model.ErrItemRequired
	}

	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return model.ErrPanelClosed
	}
	if itemID == p.itemID {
		p.mu.Unlock()
		return nil
	}
	p.resetItemLocked(itemID)
	p.shown, p.editing, p.menu = NewFlags(), NewFlags(), NewFlags()
	p.mu.Unlock()

	log.Printf("[Panel] SetItem: item=%s", itemID)
	return p.loadFresh(ctx)
}

// SetUser changes the acting user. "" means nobody is signed in.
func (p *Panel) SetUser(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userID = userID
	p.editing = NewFlags()
}

// Close hides the panel and tears down its state. Remote calls still in
// flight complete, but their results are discarded.
func (p *Panel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return
	}
	item := p.itemID
	p.open = false
	p.resetItemLocked("")
	p.names = nil
	p.shown, p.editing, p.menu = nil, nil, nil
	log.Printf("[Panel] Close: item=%s", item)
}

// IsOpen reports whether the panel is showing an item.
func (p *Panel) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

func (p *Panel) resetItemLocked(itemID string) {
	p.itemID = itemID
	p.version++
	p.countEpoch++
	p.list = nil
	p.cursor = nil
	p.hasMore = true
	p.loading = false
	p.total = 0
	p.replyCounts = make(map[string]int)
	p.replies = make(map[string][]model.Comment)
	p.replyLoading = make(map[string]bool)
}

// loadFresh loads the total and the first page of a reset panel.
func (p *Panel) loadFresh(ctx context.Context) error {
	countErr := p.loadTotal(ctx)
	pageErr := p.LoadMore(ctx)
	if pageErr != nil {
		return pageErr
	}
	return countErr
}

func (p *Panel) loadTotal(ctx context.Context) error {
	p.mu.Lock()
	item, epoch := p.itemID, p.countEpoch
	p.mu.Unlock()

	n, err := p.comments.CountComments(ctx, item)
	if err != nil {
		log.Printf("[Panel] CountComments FAILED: item=%s err=%v", item, err)
		return fmt.Errorf("count comments: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if epoch != p.countEpoch {
		return nil
	}
	p.total = n
	return nil
}

// adjustTotalLocked moves the total by delta if it still belongs to epoch.
// The total never goes below zero.
func (p *Panel) adjustTotalLocked(epoch uint64, delta int) {
	if epoch != p.countEpoch {
		return
	}
	p.total = max(p.total+delta, 0)
}

// adjustReplyCountLocked moves a comment's reply count, floored at zero, unless
// the item was reset since epoch.
func (p *Panel) adjustReplyCountLocked(epoch uint64, commentID string, delta int) {
	if epoch != p.countEpoch || p.replyCounts == nil {
		return
	}
	p.replyCounts[commentID] = max(p.replyCounts[commentID]+delta, 0)
}

// validateContent trims content and checks it is non-empty and within length.
func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", model.ErrContentRequired
	}
	if utf8.RuneCountInString(content) > model.MaxCommentLength {
		return "", model.ErrContentTooLong
	}
	return content, nil
}

// requireUserLocked checks the panel is open and someone is signed in.
func (p *Panel) requireUserLocked() error {
	if !p.open {
		return model.ErrPanelClosed
	}
	if p.userID == "" {
		return model.ErrAuthRequired
	}
	return nil
}

// publish sends an event best-effort; failures are logged only.
func (p *Panel) publish(ctx context.Context, event queue.CommentEvent) {
	if p.events == nil {
		return
	}
	if _, err := p.events.Publish(ctx, queue.StreamComments, event); err != nil {
		log.Printf("[Panel] publish %s FAILED: item=%s comment=%s err=%v", event.Type, event.ItemID, event.CommentID, err)
	}
}
