package repository

import (
	"context"
	"fmt"
	"time"

	"recipeshare/internal/docstore"
	"recipeshare/internal/model"
)

const devicesCollection = "devices"

type deviceTokenRepository struct {
	store docstore.Store
}

func NewDeviceTokenRepository(store docstore.Store) DeviceTokenRepository {
	return &deviceTokenRepository{store: store}
}

func devicesPath(userID string) string {
	return docstore.Join(usersCollection, userID, devicesCollection)
}

// Register stores a device token, refreshing it when already known.
func (r *deviceTokenRepository) Register(ctx context.Context, userID, token, platform string) error {
	devices, err := r.List(ctx, userID)
	if err != nil {
		return err
	}

	fields := map[string]any{
		"token":     token,
		"platform":  platform,
		"updatedAt": docstore.ServerTimestamp,
	}
	for _, d := range devices {
		if d.Token == token {
			if err := r.store.Update(ctx, docstore.Join(devicesPath(userID), d.ID), fields); err != nil {
				return fmt.Errorf("refresh device token: %w", err)
			}
			return nil
		}
	}

	if _, err := r.store.Add(ctx, devicesPath(userID), fields); err != nil {
		return fmt.Errorf("insert device token: %w", err)
	}
	return nil
}

// Remove forgets a device token. Removing an unknown token is not an error.
func (r *deviceTokenRepository) Remove(ctx context.Context, userID, token string) error {
	devices, err := r.List(ctx, userID)
	if err != nil {
		return err
	}
	for _, d := range devices {
		if d.Token != token {
			continue
		}
		if err := r.store.Delete(ctx, docstore.Join(devicesPath(userID), d.ID)); err != nil {
			return fmt.Errorf("delete device token: %w", err)
		}
	}
	return nil
}

func (r *deviceTokenRepository) List(ctx context.Context, userID string) ([]model.DeviceToken, error) {
	docs, err := r.store.Query(ctx, docstore.Query{Collection: devicesPath(userID)})
	if err != nil {
		return nil, fmt.Errorf("list device tokens: %w", err)
	}

	devices := make([]model.DeviceToken, 0, len(docs))
	for _, d := range docs {
		dt := model.DeviceToken{ID: d.ID, UserID: userID}
		dt.Token, _ = d.Fields["token"].(string)
		dt.Platform, _ = d.Fields["platform"].(string)
		dt.UpdatedAt, _ = d.Fields["updatedAt"].(time.Time)
		if dt.Token != "" {
			devices = append(devices, dt)
		}
	}
	return devices, nil
}
