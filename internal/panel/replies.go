package panel

import (
	"context"
	"fmt"
	"log"

	"recipeshare/internal/model"
)

// ToggleReplies shows or hides the replies of a listed comment and reports
// whether they are now shown. The first expansion fetches all replies, oldest
// first, in one request; later toggles reuse the loaded list. A failed fetch
// hides the replies again.
func (p *Panel) ToggleReplies(ctx context.Context, commentID string) (bool, error) {
	p.mu.Lock()
	parent, err := p.findLocked(commentID, "")
	if err != nil {
		p.mu.Unlock()
		return false, err
	}
	shown := p.shown.Toggle(commentID)
	_, cached := p.replies[commentID]
	if !shown || cached || parent.Pending || p.replyLoading[commentID] {
		if shown && parent.Pending {
			p.replies[commentID] = []model.Comment{}
		}
		p.mu.Unlock()
		return shown, nil
	}
	p.replyLoading[commentID] = true
	// Reply lists do not depend on the sort order, so only an item reset
	// makes the result stale.
	item, epoch := p.itemID, p.countEpoch
	p.mu.Unlock()

	replies, err := p.comments.ListReplies(ctx, item, commentID)
	if err != nil {
		p.mu.Lock()
		if epoch == p.countEpoch {
			delete(p.replyLoading, commentID)
			p.shown.Set(commentID, false)
		}
		p.mu.Unlock()
		log.Printf("[Panel] ToggleReplies FAILED: item=%s comment=%s err=%v", item, commentID, err)
		return false, fmt.Errorf("load replies: %w", err)
	}
	names := p.resolveNames(ctx, p.missingAuthors(replies))

	p.mu.Lock()
	defer p.mu.Unlock()
	if epoch != p.countEpoch {
		log.Printf("[Panel] ToggleReplies discarded stale replies: item=%s comment=%s", item, commentID)
		return false, nil
	}
	delete(p.replyLoading, commentID)
	if replies == nil {
		replies = []model.Comment{}
	}
	p.replies[commentID] = replies
	p.replyCounts[commentID] = len(replies)
	p.mergeNamesLocked(names)

	log.Printf("[Panel] ToggleReplies OK: item=%s comment=%s count=%d", item, commentID, len(replies))
	return p.shown.Has(commentID), nil
}
