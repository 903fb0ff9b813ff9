package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"recipeshare/internal/httputil"
	"recipeshare/internal/model"
	"recipeshare/internal/panel"
	"recipeshare/internal/transport/http/middleware"
)

type PanelHandler struct {
	panels *panel.Manager
}

func NewPanelHandler(panels *panel.Manager) *PanelHandler {
	return &PanelHandler{
		panels: panels,
	}
}

type sortRequest struct {
	Sort string `json:"sort"`
}

type contentRequest struct {
	Content string `json:"content"`
}

// OpenPanelResponse is returned when a panel is opened. Error is set when the
// panel opened but its first load failed.
type OpenPanelResponse struct {
	PanelID string     `json:"panel_id"`
	View    panel.View `json:"view"`
	Error   string     `json:"error,omitempty"`
}

// Open handles POST /items/{itemID}/panels
// Opens a comment panel on an item for the caller (signed in or not).
func (h *PanelHandler) Open(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	itemID := chi.URLParam(r, "itemID")

	var req sortRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	sort, err := model.ParseSortMode(req.Sort)
	if err != nil {
		writePanelError(w, "Open", err)
		return
	}

	id, p, err := h.panels.Open(r.Context(), itemID, userID, sort)
	if p == nil {
		writePanelError(w, "Open", err)
		return
	}

	resp := OpenPanelResponse{PanelID: id, View: p.View()}
	if err != nil {
		log.Printf("[PanelHandler] Open first load FAILED: panel=%s item=%s err=%v", id, itemID, err)
		resp.Error = err.Error()
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// Get handles GET /panels/{panelID}
func (h *PanelHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p.View())
}

// Close handles DELETE /panels/{panelID}
func (h *PanelHandler) Close(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	if err := h.panels.Close(chi.URLParam(r, "panelID"), userID); err != nil {
		writePanelError(w, "Close", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Panel closed",
	})
}

// SetSort handles PUT /panels/{panelID}/sort
// Switches the sort order and reloads the first page.
func (h *PanelHandler) SetSort(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req sortRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Sort == "" {
		httputil.WriteBadRequestWithCode(w, httputil.ErrCodeInvalidSort, "sort is required")
		return
	}

	h.respond(w, p, "SetSort", p.SetSort(r.Context(), model.SortMode(req.Sort)))
}

// LoadMore handles POST /panels/{panelID}/more
func (h *PanelHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respond(w, p, "LoadMore", p.LoadMore(r.Context()))
}

// CreateComment handles POST /panels/{panelID}/comments
func (h *PanelHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req contentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if _, err := p.CreateComment(r.Context(), req.Content); err != nil {
		writePanelError(w, "CreateComment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p.View())
}

// CreateReply handles POST /panels/{panelID}/comments/{commentID}/replies
func (h *PanelHandler) CreateReply(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req contentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if _, err := p.CreateReply(r.Context(), chi.URLParam(r, "commentID"), req.Content); err != nil {
		writePanelError(w, "CreateReply", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p.View())
}

// Edit handles PATCH on a comment or a reply.
func (h *PanelHandler) Edit(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req contentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	commentID, replyID := targetIDs(r)
	h.respond(w, p, "Edit", p.Edit(r.Context(), commentID, replyID, req.Content))
}

// Delete handles DELETE on a comment (with its replies) or a reply.
func (h *PanelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}

	commentID, replyID := targetIDs(r)
	var err error
	if replyID == "" {
		err = p.DeleteComment(r.Context(), commentID)
	} else {
		err = p.DeleteReply(r.Context(), commentID, replyID)
	}
	h.respond(w, p, "Delete", err)
}

// ToggleLike handles POST .../like on a comment or a reply.
func (h *PanelHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}

	commentID, replyID := targetIDs(r)
	_, err := p.ToggleLike(r.Context(), commentID, replyID)
	h.respond(w, p, "ToggleLike", err)
}

// ToggleMenu handles POST .../menu
func (h *PanelHandler) ToggleMenu(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}

	commentID, replyID := targetIDs(r)
	h.respond(w, p, "ToggleMenu", p.ToggleMenu(commentID, replyID))
}

// StartEdit handles POST .../edit
func (h *PanelHandler) StartEdit(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}

	commentID, replyID := targetIDs(r)
	h.respond(w, p, "StartEdit", p.StartEdit(commentID, replyID))
}

// CancelEdit handles DELETE .../edit
func (h *PanelHandler) CancelEdit(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}

	commentID, replyID := targetIDs(r)
	h.respond(w, p, "CancelEdit", p.CancelEdit(commentID, replyID))
}

// ToggleReplies handles POST /panels/{panelID}/comments/{commentID}/replies/toggle
func (h *PanelHandler) ToggleReplies(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}

	_, err := p.ToggleReplies(r.Context(), chi.URLParam(r, "commentID"))
	h.respond(w, p, "ToggleReplies", err)
}

// lookup resolves the panel of the request as seen by the caller.
func (h *PanelHandler) lookup(w http.ResponseWriter, r *http.Request) (*panel.Panel, bool) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	p, err := h.panels.Get(chi.URLParam(r, "panelID"), userID)
	if err != nil {
		writePanelError(w, "Get", err)
		return nil, false
	}
	return p, true
}

func (h *PanelHandler) respond(w http.ResponseWriter, p *panel.Panel, op string, err error) {
	if err != nil {
		writePanelError(w, op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p.View())
}

func targetIDs(r *http.Request) (string, string) {
	return chi.URLParam(r, "commentID"), chi.URLParam(r, "replyID")
}

// writePanelError maps panel errors to the error envelope. Anything unknown is
// a failed document store call.
func writePanelError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidSort):
		httputil.WriteBadRequestWithCode(w, httputil.ErrCodeInvalidSort, "Sort must be popular or newest")
	case errors.Is(err, model.ErrContentRequired):
		httputil.WriteBadRequest(w, "Comment content is required")
	case errors.Is(err, model.ErrContentTooLong):
		httputil.WriteBadRequestWithCode(w, httputil.ErrCodeContentLength, "Comment content too long")
	case errors.Is(err, model.ErrItemRequired):
		httputil.WriteBadRequest(w, "Item ID is required")
	case errors.Is(err, model.ErrAuthRequired):
		httputil.WriteUnauthorizedWithCode(w, httputil.ErrCodeAuthRequired, "Sign in to continue")
	case errors.Is(err, model.ErrNotCommentOwner):
		httputil.WriteForbidden(w, "You can only change your own comments")
	case errors.Is(err, model.ErrPanelNotFound), errors.Is(err, model.ErrPanelClosed):
		httputil.WriteNotFound(w, "Panel not found")
	case errors.Is(err, model.ErrCommentNotFound):
		httputil.WriteNotFound(w, "Comment not found")
	case errors.Is(err, model.ErrCommentPending):
		httputil.WriteConflictWithCode(w, httputil.ErrCodePending, "Comment is still being saved")
	default:
		log.Printf("[ERROR] Panel %s handler: err=%v", op, err)
		httputil.WriteBadGateway(w, "Comment store unavailable")
	}
}
