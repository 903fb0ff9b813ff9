package panel

import (
	"strings"

	"recipeshare/internal/model"
)

// Key identifies a comment, or a reply when replyID is set, in a Flags set.
func Key(commentID, replyID string) string {
	if replyID == "" {
		return commentID
	}
	return commentID + "/" + replyID
}

// Flags is a set of entity keys. An absent key reads as false.
type Flags struct {
	keys map[string]struct{}
}

func NewFlags() *Flags {
	return &Flags{keys: make(map[string]struct{})}
}

func (f *Flags) Has(key string) bool {
	if f == nil {
		return false
	}
	_, ok := f.keys[key]
	return ok
}

func (f *Flags) Set(key string, on bool) {
	if f == nil {
		return
	}
	if on {
		f.keys[key] = struct{}{}
	} else {
		delete(f.keys, key)
	}
}

// Toggle flips key and returns its new value.
func (f *Flags) Toggle(key string) bool {
	on := !f.Has(key)
	f.Set(key, on)
	return on
}

// DeleteComment drops the flags of a comment and of all its replies.
func (f *Flags) DeleteComment(commentID string) {
	if f == nil {
		return
	}
	prefix := commentID + "/"
	for k := range f.keys {
		if k == commentID || strings.HasPrefix(k, prefix) {
			delete(f.keys, k)
		}
	}
}

// Move transfers the flags of comment from, and of its replies, to comment
// to. An empty to drops them.
func (f *Flags) Move(from, to string) {
	if f == nil {
		return
	}
	prefix := from + "/"
	for k := range f.keys {
		if k != from && !strings.HasPrefix(k, prefix) {
			continue
		}
		delete(f.keys, k)
		if to != "" {
			f.keys[to+strings.TrimPrefix(k, from)] = struct{}{}
		}
	}
}

func (f *Flags) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// ToggleMenu flips the action menu of a comment or reply.
func (p *Panel) ToggleMenu(commentID, replyID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return model.ErrPanelClosed
	}
	if _, err := p.findLocked(commentID, replyID); err != nil {
		return err
	}
	p.menu.Toggle(Key(commentID, replyID))
	return nil
}

// StartEdit puts a comment or reply of the acting user into edit mode and
// closes its menu.
func (p *Panel) StartEdit(commentID, replyID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireUserLocked(); err != nil {
		return err
	}
	if _, err := p.modifiableLocked(commentID, replyID); err != nil {
		return err
	}
	key := Key(commentID, replyID)
	p.editing.Set(key, true)
	p.menu.Set(key, false)
	return nil
}

// CancelEdit leaves edit mode without saving.
func (p *Panel) CancelEdit(commentID, replyID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return model.ErrPanelClosed
	}
	p.editing.Set(Key(commentID, replyID), false)
	return nil
}
