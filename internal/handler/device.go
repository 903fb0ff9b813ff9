package handler

import (
	"log"
	"net/http"
	"strings"

	"recipeshare/internal/httputil"
	"recipeshare/internal/model"
	"recipeshare/internal/repository"
	"recipeshare/internal/transport/http/middleware"
)

type DeviceHandler struct {
	deviceRepo repository.DeviceTokenRepository
}

func NewDeviceHandler(deviceRepo repository.DeviceTokenRepository) *DeviceHandler {
	return &DeviceHandler{
		deviceRepo: deviceRepo,
	}
}

// decodeToken reads and validates a RegisterTokenRequest.
func decodeToken(w http.ResponseWriter, r *http.Request) (model.RegisterTokenRequest, bool) {
	var req model.RegisterTokenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return req, false
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		httputil.WriteBadRequest(w, model.ErrTokenRequired.Error())
		return req, false
	}
	return req, true
}

// Register handles POST /me/devices
// Registers a device token for push notifications.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorizedWithCode(w, httputil.ErrCodeAuthRequired, "Authentication required")
		return
	}

	req, ok := decodeToken(w, r)
	if !ok {
		return
	}
	platform, err := model.ValidatePlatform(req.Platform, req.Token)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.deviceRepo.Register(r.Context(), userID, req.Token, platform); err != nil {
		log.Printf("[ERROR] Register device token: user=%s err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to register device token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Device token registered",
	})
}

// Remove handles DELETE /me/devices
// Removes a device token (e.g., on logout).
func (h *DeviceHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorizedWithCode(w, httputil.ErrCodeAuthRequired, "Authentication required")
		return
	}

	req, ok := decodeToken(w, r)
	if !ok {
		return
	}

	if err := h.deviceRepo.Remove(r.Context(), userID, req.Token); err != nil {
		log.Printf("[ERROR] Remove device token: user=%s err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to remove device token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Device token removed",
	})
}
