package handler

import (
	"log"
	"net/http"
	"strconv"

	"recipeshare/internal/httputil"
	"recipeshare/internal/model"
	"recipeshare/internal/repository"
	"recipeshare/internal/transport/http/middleware"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

type NotificationHandler struct {
	notifRepo repository.NotificationRepository
}

func NewNotificationHandler(notifRepo repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{
		notifRepo: notifRepo,
	}
}

// List handles GET /me/notifications
// Returns the newest notifications of the authenticated user.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorizedWithCode(w, httputil.ErrCodeAuthRequired, "Authentication required")
		return
	}

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	notifications, unread, err := h.notifRepo.List(r.Context(), userID, limit)
	if err != nil {
		log.Printf("[ERROR] List notifications: user=%s err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to get notifications")
		return
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}

	httputil.WriteJSON(w, http.StatusOK, model.NotificationListResponse{
		Notifications: notifications,
		UnreadCount:   unread,
	})
}

// MarkAllRead handles POST /me/notifications/read-all
// Marks the listed window of notifications as read.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorizedWithCode(w, httputil.ErrCodeAuthRequired, "Authentication required")
		return
	}

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	if err := h.notifRepo.MarkAllAsRead(r.Context(), userID, limit); err != nil {
		log.Printf("[ERROR] Mark all notifications read: user=%s err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to mark all notifications as read")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "All notifications marked as read",
	})
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := defaultNotificationLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			httputil.WriteBadRequest(w, "Invalid limit parameter")
			return 0, false
		}
		limit = min(parsed, maxNotificationLimit)
	}
	return limit, true
}
