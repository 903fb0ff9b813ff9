package model

import (
	"errors"
	"time"
)

// Comment is a top-level remark on an item, or a reply when ParentID is set.
// Replies share the shape and invariants of comments, scoped under their parent.
type Comment struct {
	ID        string     `json:"id"`
	ItemID    string     `json:"item_id"`
	ParentID  string     `json:"parent_id,omitempty"`
	AuthorID  string     `json:"author_id"`
	Content   string     `json:"content"`
	LikeCount int        `json:"like_count"`
	LikedBy   []string   `json:"liked_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Pending marks a locally inserted record that the store has not confirmed yet.
	Pending bool `json:"pending,omitempty"`
}

// IsReply reports whether c lives under a parent comment.
func (c Comment) IsReply() bool {
	return c.ParentID != ""
}

// LikedByUser reports whether userID is in the liking set.
func (c Comment) LikedByUser(userID string) bool {
	for _, id := range c.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices or pointers with c.
func (c Comment) Clone() Comment {
	out := c
	if c.LikedBy != nil {
		out.LikedBy = append([]string(nil), c.LikedBy...)
	}
	if c.UpdatedAt != nil {
		t := *c.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

// Cursor marks the last comment of a fetched page in the active sort order.
// It is captured from the fetched record, so local edits to that record
// (likes toggled after the fetch) do not move the page boundary.
type Cursor struct {
	CommentID string
	LikeCount int
	CreatedAt time.Time
}

// CursorFor captures the sort keys of c.
func CursorFor(c Comment) *Cursor {
	return &Cursor{CommentID: c.ID, LikeCount: c.LikeCount, CreatedAt: c.CreatedAt}
}

// SortMode is the ordering of a comment list.
type SortMode string

const (
	// SortPopular orders by like count descending, then creation time descending.
	SortPopular SortMode = "popular"
	// SortNewest orders by creation time descending.
	SortNewest SortMode = "newest"
)

// ParseSortMode validates s. An empty string selects SortPopular.
func ParseSortMode(s string) (SortMode, error) {
	switch SortMode(s) {
	case "", SortPopular:
		return SortPopular, nil
	case SortNewest:
		return SortNewest, nil
	}
	return "", ErrInvalidSort
}

// Comment constraints
const (
	MaxCommentLength = 2200 // runes, same limit as a recipe caption

	DefaultPageSize = 10
)

// Comment errors
var (
	ErrCommentNotFound = errors.New("comment not found")
	ErrNotCommentOwner = errors.New("not the owner of this comment")
	ErrContentRequired = errors.New("comment content is required")
	ErrContentTooLong  = errors.New("comment content too long")
	ErrCommentPending  = errors.New("comment is still being saved")
	ErrAuthRequired    = errors.New("sign in required")
	ErrInvalidSort     = errors.New("invalid sort mode")
	ErrPanelClosed     = errors.New("comment panel is closed")
	ErrPanelNotFound   = errors.New("comment panel not found")
	ErrItemRequired    = errors.New("item id is required")
	ErrItemNotFound    = errors.New("item not found")
)
