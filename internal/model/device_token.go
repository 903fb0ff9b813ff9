package model

import (
	"errors"
	"strings"
	"time"
)

// DeviceToken is a user's registered device for push notifications.
// A user may have several devices.
type DeviceToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Token     string    `json:"-"`        // push token, hidden from JSON
	Platform  string    `json:"platform"` // "ios", "android", "expo"
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExpo reports whether the token was issued by Expo rather than FCM.
func (d DeviceToken) IsExpo() bool {
	return IsExpoToken(d.Token)
}

// IsExpoToken reports whether token is an Expo push token.
func IsExpoToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")
}

// RegisterTokenRequest is the request body for registering a device token.
type RegisterTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// Platform constants
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformExpo    = "expo"
)

// Device token errors
var (
	ErrTokenRequired   = errors.New("device token is required")
	ErrInvalidPlatform = errors.New("platform must be ios, android or expo")
)

// ValidatePlatform accepts the known platforms. An empty platform is derived
// from the token.
func ValidatePlatform(platform, token string) (string, error) {
	switch platform {
	case PlatformIOS, PlatformAndroid, PlatformExpo:
		return platform, nil
	case "":
		if IsExpoToken(token) {
			return PlatformExpo, nil
		}
		return PlatformAndroid, nil
	}
	return "", ErrInvalidPlatform
}
