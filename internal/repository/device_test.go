package repository

import (
	"context"
	"testing"

	"recipeshare/internal/docstore/memstore"
	"recipeshare/internal/model"
)

func TestDeviceTokens_RegisterListRemove(t *testing.T) {
	// ARRANGE
	repo := NewDeviceTokenRepository(memstore.New())
	ctx := context.Background()

	// ACT
	if err := repo.Register(ctx, "u1", "fcm-token", model.PlatformAndroid); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := repo.Register(ctx, "u1", "ExponentPushToken[abc]", model.PlatformExpo); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	// same token again moves it to another platform instead of duplicating it
	if err := repo.Register(ctx, "u1", "fcm-token", model.PlatformIOS); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// ASSERT
	devices, err := repo.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}
	platforms := map[string]string{}
	for _, d := range devices {
		platforms[d.Token] = d.Platform
	}
	if platforms["fcm-token"] != model.PlatformIOS {
		t.Errorf("expected refreshed platform ios, got %q", platforms["fcm-token"])
	}

	if err := repo.Remove(ctx, "u1", "fcm-token"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := repo.Remove(ctx, "u1", "unknown"); err != nil {
		t.Fatalf("Remove of unknown token failed: %v", err)
	}
	devices, _ = repo.List(ctx, "u1")
	if len(devices) != 1 || !devices[0].IsExpo() {
		t.Errorf("expected only the expo device left, got %+v", devices)
	}

	if other, _ := repo.List(ctx, "u2"); len(other) != 0 {
		t.Errorf("expected no devices for u2, got %d", len(other))
	}
}
