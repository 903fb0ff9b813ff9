package panel

import "recipeshare/internal/model"

// View is a snapshot of a panel. It shares no memory with the panel.
type View struct {
	ItemID   string         `json:"item_id"`
	Sort     model.SortMode `json:"sort"`
	Total    int            `json:"total"`
	HasMore  bool           `json:"has_more"`
	Loading  bool           `json:"loading"`
	SignedIn bool           `json:"signed_in"`
	Comments []CommentView  `json:"comments"`
}

type CommentView struct {
	model.Comment
	AuthorName   string      `json:"author_name"`
	ReplyCount   int         `json:"reply_count"`
	RepliesShown bool        `json:"replies_shown"`
	Replies      []ReplyView `json:"replies,omitempty"`
	Editing      bool        `json:"editing"`
	MenuOpen     bool        `json:"menu_open"`
	CanModify    bool        `json:"can_modify"`
	LikedByMe    bool        `json:"liked_by_me"`
}

type ReplyView struct {
	model.Comment
	AuthorName string `json:"author_name"`
	Editing    bool   `json:"editing"`
	MenuOpen   bool   `json:"menu_open"`
	CanModify  bool   `json:"can_modify"`
	LikedByMe  bool   `json:"liked_by_me"`
}

// View returns the current state of the panel.
func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := View{
		ItemID:   p.itemID,
		Sort:     p.sort,
		Total:    p.total,
		HasMore:  p.hasMore,
		Loading:  p.loading,
		SignedIn: p.userID != "",
		Comments: make([]CommentView, 0, len(p.list)),
	}
	for _, c := range p.list {
		cv := CommentView{
			Comment:      c.Clone(),
			AuthorName:   p.nameLocked(c.AuthorID),
			ReplyCount:   p.replyCounts[c.ID],
			RepliesShown: p.shown.Has(c.ID),
			Editing:      p.editing.Has(c.ID),
			MenuOpen:     p.menu.Has(c.ID),
			CanModify:    p.canModifyLocked(c),
			LikedByMe:    p.userID != "" && c.LikedByUser(p.userID),
		}
		if cv.RepliesShown {
			for _, r := range p.replies[c.ID] {
				key := Key(c.ID, r.ID)
				cv.Replies = append(cv.Replies, ReplyView{
					Comment:    r.Clone(),
					AuthorName: p.nameLocked(r.AuthorID),
					Editing:    p.editing.Has(key),
					MenuOpen:   p.menu.Has(key),
					CanModify:  p.canModifyLocked(r),
					LikedByMe:  p.userID != "" && r.LikedByUser(p.userID),
				})
			}
		}
		v.Comments = append(v.Comments, cv)
	}
	return v
}

// nameLocked returns the resolved display name, or "" while it is unknown.
func (p *Panel) nameLocked(userID string) string {
	return p.names[userID]
}

func (p *Panel) canModifyLocked(c model.Comment) bool {
	return p.userID != "" && c.AuthorID == p.userID && !c.Pending
}
