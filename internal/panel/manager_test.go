package panel

import (
	"context"
	"errors"
	"testing"
	"time"

	"recipeshare/internal/model"
)

func newTestManager(t *testing.T) (*Manager, *fixture) {
	t.Helper()
	f := newFixture(t, Config{})
	m := NewManager(Deps{Comments: f.comments, Profiles: f.profiles}, Config{}, time.Minute)
	return m, f
}

func TestManager_PanelsBoundToOwner(t *testing.T) {
	// ARRANGE
	m, f := newTestManager(t)
	ana := f.user(t, "Ana")
	f.comment(t, "r1", ana, "hello", 0)
	ctx := context.Background()

	// ACT
	id, p, err := m.Open(ctx, "r1", ana, model.SortPopular)

	// ASSERT
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if got, err := m.Get(id, ana); err != nil || got != p {
		t.Errorf("owner lookup failed: %v", err)
	}
	if _, err := m.Get(id, "someone-else"); !errors.Is(err, model.ErrPanelNotFound) {
		t.Errorf("expected ErrPanelNotFound for another user, got %v", err)
	}
	if err := m.Close(id, "someone-else"); !errors.Is(err, model.ErrPanelNotFound) {
		t.Errorf("expected ErrPanelNotFound closing another user's panel, got %v", err)
	}
	if err := m.Close(id, ana); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if p.IsOpen() || m.Len() != 0 {
		t.Error("closed panel should be torn down and forgotten")
	}
}

func TestManager_OpenValidation(t *testing.T) {
	m, _ := newTestManager(t)

	if _, _, err := m.Open(context.Background(), "", "u1", model.SortPopular); !errors.Is(err, model.ErrItemRequired) {
		t.Errorf("expected ErrItemRequired, got %v", err)
	}
	if _, _, err := m.Open(context.Background(), "r1", "u1", "oldest"); !errors.Is(err, model.ErrInvalidSort) {
		t.Errorf("expected ErrInvalidSort, got %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("rejected opens must not register panels, got %d", m.Len())
	}
}

func TestManager_OpenKeepsPanelWhenFirstLoadFails(t *testing.T) {
	m, f := newTestManager(t)
	f.comments.beforeList = func(string, model.SortMode) error { return errors.New("store unavailable") }

	id, p, err := m.Open(context.Background(), "r1", "", model.SortNewest)

	if err == nil {
		t.Fatal("expected load error")
	}
	if id == "" || p == nil || m.Len() != 1 {
		t.Fatal("panel should stay registered for a retry")
	}
	f.comments.beforeList = nil
	if err := p.LoadMore(context.Background()); err != nil {
		t.Errorf("retry failed: %v", err)
	}
}

func TestManager_EvictIdle(t *testing.T) {
	// ARRANGE
	m, _ := newTestManager(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()
	idleID, idle, _ := m.Open(ctx, "r1", "u1", model.SortPopular)
	activeID, active, _ := m.Open(ctx, "r2", "u1", model.SortPopular)

	// ACT
	now = now.Add(45 * time.Second)
	m.Get(activeID, "u1")
	now = now.Add(30 * time.Second)
	closed := m.EvictIdle()

	// ASSERT
	if closed != 1 {
		t.Fatalf("expected 1 eviction, got %d", closed)
	}
	if idle.IsOpen() || !active.IsOpen() {
		t.Errorf("expected only the idle panel closed: idle=%t active=%t", idle.IsOpen(), active.IsOpen())
	}
	if _, err := m.Get(idleID, "u1"); !errors.Is(err, model.ErrPanelNotFound) {
		t.Errorf("evicted panel should be gone, got %v", err)
	}
}

func TestManager_StopClosesPanels(t *testing.T) {
	m, _ := newTestManager(t)
	m.Start(context.Background())
	_, p, _ := m.Open(context.Background(), "r1", "u1", model.SortPopular)

	m.Stop()

	if p.IsOpen() || m.Len() != 0 {
		t.Error("Stop should close every panel")
	}
}
