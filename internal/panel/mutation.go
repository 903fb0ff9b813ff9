package panel

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"recipeshare/internal/model"
	"recipeshare/internal/queue"
)

// pendingPrefix marks the ids of records the store has not confirmed yet.
const pendingPrefix = "pending-"

func newPendingID() string {
	return pendingPrefix + uuid.NewString()
}

// IsPendingID reports whether id belongs to an unconfirmed local record.
func IsPendingID(id string) bool {
	return strings.HasPrefix(id, pendingPrefix)
}

// CreateComment posts a comment as the acting user. The comment shows up at
// the top of the list at once, marked pending, and is replaced by the stored
// record when the write succeeds. A failed write removes it again.
func (p *Panel) CreateComment(ctx context.Context, content string) (model.Comment, error) {
	p.mu.Lock()
	if err := p.requireUserLocked(); err != nil {
		p.mu.Unlock()
		return model.Comment{}, err
	}
	content, err := validateContent(content)
	if err != nil {
		p.mu.Unlock()
		return model.Comment{}, err
	}
	item, user, epoch := p.itemID, p.userID, p.countEpoch
	pending := model.Comment{
		ID:        newPendingID(),
		ItemID:    item,
		AuthorID:  user,
		Content:   content,
		LikedBy:   []string{},
		CreatedAt: p.now(),
		Pending:   true,
	}
	p.list = append([]model.Comment{pending}, p.list...)
	p.adjustTotalLocked(epoch, 1)
	p.mu.Unlock()

	id, err := p.comments.CreateComment(ctx, item, user, content)
	if err != nil {
		p.mu.Lock()
		p.list = removeComment(p.list, pending.ID)
		p.adjustTotalLocked(epoch, -1)
		p.rekeyLocked(epoch, pending.ID, "")
		p.mu.Unlock()
		log.Printf("[Panel] CreateComment FAILED: item=%s user=%s err=%v", item, user, err)
		return model.Comment{}, fmt.Errorf("create comment: %w", err)
	}

	stored := p.reconcile(ctx, pending, id, func(ctx context.Context) (*model.Comment, error) {
		return p.comments.GetComment(ctx, item, id)
	})
	names := p.resolveNames(ctx, p.missingAuthors([]model.Comment{stored}))

	p.mu.Lock()
	// A page fetched meanwhile may already hold the stored record.
	if indexOf(p.list, id) >= 0 {
		p.list = removeComment(p.list, pending.ID)
	} else if i := indexOf(p.list, pending.ID); i >= 0 {
		p.list[i] = stored
	}
	if epoch == p.countEpoch {
		if _, ok := p.replyCounts[id]; !ok {
			p.replyCounts[id] = 0
		}
	}
	p.rekeyLocked(epoch, pending.ID, id)
	p.mergeNamesLocked(names)
	p.mu.Unlock()

	log.Printf("[Panel] CreateComment OK: item=%s comment=%s user=%s", item, id, user)
	p.publish(ctx, queue.NewCommentCreatedEvent(item, id, user))
	return stored.Clone(), nil
}

// CreateReply posts a reply under a listed comment. The reply is appended to
// the parent's reply list when that list is loaded, and the parent's reply
// count moves with it.
func (p *Panel) CreateReply(ctx context.Context, commentID, content string) (model.Comment, error) {
	p.mu.Lock()
	if err := p.requireUserLocked(); err != nil {
		p.mu.Unlock()
		return model.Comment{}, err
	}
	content, err := validateContent(content)
	if err != nil {
		p.mu.Unlock()
		return model.Comment{}, err
	}
	parent, err := p.findLocked(commentID, "")
	if err != nil {
		p.mu.Unlock()
		return model.Comment{}, err
	}
	if parent.Pending {
		p.mu.Unlock()
		return model.Comment{}, model.ErrCommentPending
	}
	item, user, epoch := p.itemID, p.userID, p.countEpoch
	pending := model.Comment{
		ID:        newPendingID(),
		ItemID:    item,
		ParentID:  commentID,
		AuthorID:  user,
		Content:   content,
		LikedBy:   []string{},
		CreatedAt: p.now(),
		Pending:   true,
	}
	if list, ok := p.replies[commentID]; ok {
		p.replies[commentID] = append(list, pending)
	}
	p.adjustReplyCountLocked(epoch, commentID, 1)
	p.mu.Unlock()

	id, err := p.comments.CreateReply(ctx, item, commentID, user, content)
	if err != nil {
		p.mu.Lock()
		if list, ok := p.replies[commentID]; ok {
			p.replies[commentID] = removeComment(list, pending.ID)
		}
		p.adjustReplyCountLocked(epoch, commentID, -1)
		p.mu.Unlock()
		log.Printf("[Panel] CreateReply FAILED: item=%s comment=%s user=%s err=%v", item, commentID, user, err)
		return model.Comment{}, fmt.Errorf("create reply: %w", err)
	}

	stored := p.reconcile(ctx, pending, id, func(ctx context.Context) (*model.Comment, error) {
		return p.comments.GetReply(ctx, item, commentID, id)
	})
	names := p.resolveNames(ctx, p.missingAuthors([]model.Comment{stored}))

	p.mu.Lock()
	if list, ok := p.replies[commentID]; ok {
		if indexOf(list, id) >= 0 {
			p.replies[commentID] = removeComment(list, pending.ID)
		} else if i := indexOf(list, pending.ID); i >= 0 {
			list[i] = stored
		}
	}
	p.mergeNamesLocked(names)
	p.mu.Unlock()

	log.Printf("[Panel] CreateReply OK: item=%s comment=%s reply=%s user=%s", item, commentID, id, user)
	p.publish(ctx, queue.NewReplyCreatedEvent(item, commentID, id, user))
	return stored.Clone(), nil
}

// rekeyLocked moves the reply cache and flags of a pending comment to its
// confirmed id, or drops them when to is "".
func (p *Panel) rekeyLocked(epoch uint64, from, to string) {
	if epoch != p.countEpoch {
		return
	}
	if list, ok := p.replies[from]; ok {
		delete(p.replies, from)
		if _, exists := p.replies[to]; to != "" && !exists {
			p.replies[to] = list
		}
	}
	delete(p.replyLoading, from)
	for _, f := range []*Flags{p.shown, p.editing, p.menu} {
		f.Move(from, to)
	}
}

// reconcile fetches the stored form of a just-created record. If the read
// fails, the pending record is kept with its confirmed id.
func (p *Panel) reconcile(ctx context.Context, pending model.Comment, id string, get func(context.Context) (*model.Comment, error)) model.Comment {
	stored, err := get(ctx)
	if err != nil {
		log.Printf("[Panel] reconcile FAILED: id=%s err=%v", id, err)
		fallback := pending.Clone()
		fallback.ID = id
		fallback.Pending = false
		return fallback
	}
	return *stored
}

// Edit replaces the content of a comment, or of a reply when replyID is set.
// The local record changes only after the store accepted the update.
func (p *Panel) Edit(ctx context.Context, commentID, replyID, content string) error {
	p.mu.Lock()
	if err := p.requireUserLocked(); err != nil {
		p.mu.Unlock()
		return err
	}
	if _, err := p.modifiableLocked(commentID, replyID); err != nil {
		p.mu.Unlock()
		return err
	}
	content, err := validateContent(content)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	item := p.itemID
	p.mu.Unlock()

	if replyID == "" {
		err = p.comments.UpdateComment(ctx, item, commentID, content)
	} else {
		err = p.comments.UpdateReply(ctx, item, commentID, replyID, content)
	}
	if err != nil {
		log.Printf("[Panel] Edit FAILED: item=%s comment=%s reply=%s err=%v", item, commentID, replyID, err)
		return fmt.Errorf("edit comment: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if rec, err := p.findLocked(commentID, replyID); err == nil {
		now := p.now()
		rec.Content = content
		rec.UpdatedAt = &now
	}
	p.editing.Set(Key(commentID, replyID), false)
	log.Printf("[Panel] Edit OK: item=%s comment=%s reply=%s", item, commentID, replyID)
	return nil
}

// DeleteComment removes a comment together with all its replies. Partial
// failures are not compensated; the local state changes only on success.
func (p *Panel) DeleteComment(ctx context.Context, commentID string) error {
	p.mu.Lock()
	if err := p.requireUserLocked(); err != nil {
		p.mu.Unlock()
		return err
	}
	if _, err := p.modifiableLocked(commentID, ""); err != nil {
		p.mu.Unlock()
		return err
	}
	item, user, epoch := p.itemID, p.userID, p.countEpoch
	p.mu.Unlock()

	if err := p.comments.DeleteComment(ctx, item, commentID); err != nil {
		log.Printf("[Panel] DeleteComment FAILED: item=%s comment=%s err=%v", item, commentID, err)
		return fmt.Errorf("delete comment: %w", err)
	}

	p.mu.Lock()
	p.list = removeComment(p.list, commentID)
	if epoch == p.countEpoch {
		delete(p.replyCounts, commentID)
		delete(p.replies, commentID)
		delete(p.replyLoading, commentID)
	}
	p.adjustTotalLocked(epoch, -1)
	p.shown.DeleteComment(commentID)
	p.editing.DeleteComment(commentID)
	p.menu.DeleteComment(commentID)
	p.mu.Unlock()

	log.Printf("[Panel] DeleteComment OK: item=%s comment=%s", item, commentID)
	p.publish(ctx, queue.NewCommentDeletedEvent(item, commentID, "", user))
	return nil
}

// DeleteReply removes one reply. The parent's reply count never goes below zero.
func (p *Panel) DeleteReply(ctx context.Context, commentID, replyID string) error {
	p.mu.Lock()
	if err := p.requireUserLocked(); err != nil {
		p.mu.Unlock()
		return err
	}
	if _, err := p.modifiableLocked(commentID, replyID); err != nil {
		p.mu.Unlock()
		return err
	}
	item, user, epoch := p.itemID, p.userID, p.countEpoch
	p.mu.Unlock()

	if err := p.comments.DeleteReply(ctx, item, commentID, replyID); err != nil {
		log.Printf("[Panel] DeleteReply FAILED: item=%s comment=%s reply=%s err=%v", item, commentID, replyID, err)
		return fmt.Errorf("delete reply: %w", err)
	}

	p.mu.Lock()
	if list, ok := p.replies[commentID]; ok {
		p.replies[commentID] = removeComment(list, replyID)
	}
	p.adjustReplyCountLocked(epoch, commentID, -1)
	key := Key(commentID, replyID)
	p.editing.Set(key, false)
	p.menu.Set(key, false)
	p.mu.Unlock()

	log.Printf("[Panel] DeleteReply OK: item=%s comment=%s reply=%s", item, commentID, replyID)
	p.publish(ctx, queue.NewCommentDeletedEvent(item, commentID, replyID, user))
	return nil
}

// ToggleLike likes or unlikes a comment, or a reply when replyID is set, as
// the acting user. The change is shown at once and rolled back if the store
// rejects it.
func (p *Panel) ToggleLike(ctx context.Context, commentID, replyID string) (bool, error) {
	p.mu.Lock()
	if err := p.requireUserLocked(); err != nil {
		p.mu.Unlock()
		return false, err
	}
	rec, err := p.findLocked(commentID, replyID)
	if err != nil {
		p.mu.Unlock()
		return false, err
	}
	if rec.Pending {
		p.mu.Unlock()
		return false, model.ErrCommentPending
	}
	item, user := p.itemID, p.userID
	liked := !rec.LikedByUser(user)
	setLiked(rec, user, liked)
	p.mu.Unlock()

	if err := p.comments.SetLike(ctx, item, commentID, replyID, user, liked); err != nil {
		p.mu.Lock()
		if rec, ferr := p.findLocked(commentID, replyID); ferr == nil && rec.LikedByUser(user) == liked {
			setLiked(rec, user, !liked)
		}
		p.mu.Unlock()
		log.Printf("[Panel] ToggleLike FAILED: item=%s comment=%s reply=%s err=%v", item, commentID, replyID, err)
		return !liked, fmt.Errorf("toggle like: %w", err)
	}

	log.Printf("[Panel] ToggleLike OK: item=%s comment=%s reply=%s liked=%t", item, commentID, replyID, liked)
	if liked {
		p.publish(ctx, queue.NewCommentLikedEvent(item, commentID, replyID, user))
	}
	return liked, nil
}

func setLiked(c *model.Comment, userID string, liked bool) {
	if liked {
		if !c.LikedByUser(userID) {
			c.LikedBy = append(c.LikedBy, userID)
			c.LikeCount++
		}
		return
	}
	out := c.LikedBy[:0:0]
	for _, id := range c.LikedBy {
		if id != userID {
			out = append(out, id)
		}
	}
	if len(out) != len(c.LikedBy) {
		c.LikeCount = max(c.LikeCount-1, 0)
	}
	c.LikedBy = out
}

// findLocked returns the listed comment, or its loaded reply when replyID is
// set. The pointer is valid until the lock is released.
func (p *Panel) findLocked(commentID, replyID string) (*model.Comment, error) {
	if !p.open {
		return nil, model.ErrPanelClosed
	}
	if replyID == "" {
		if i := indexOf(p.list, commentID); i >= 0 {
			return &p.list[i], nil
		}
		return nil, model.ErrCommentNotFound
	}
	list := p.replies[commentID]
	if i := indexOf(list, replyID); i >= 0 {
		return &list[i], nil
	}
	return nil, model.ErrCommentNotFound
}

// modifiableLocked returns a record the acting user may edit or delete.
func (p *Panel) modifiableLocked(commentID, replyID string) (*model.Comment, error) {
	rec, err := p.findLocked(commentID, replyID)
	if err != nil {
		return nil, err
	}
	if rec.Pending {
		return nil, model.ErrCommentPending
	}
	if rec.AuthorID != p.userID {
		return nil, model.ErrNotCommentOwner
	}
	return rec, nil
}

func indexOf(list []model.Comment, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// removeComment returns list without id, leaving the input slice untouched.
func removeComment(list []model.Comment, id string) []model.Comment {
	i := indexOf(list, id)
	if i < 0 {
		return list
	}
	out := make([]model.Comment, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}
