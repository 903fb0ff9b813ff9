package panel

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"recipeshare/internal/model"
)

const (
	// DefaultIdleTTL is how long an untouched panel lives
	DefaultIdleTTL = 30 * time.Minute

	// janitorInterval is how often idle panels are swept
	janitorInterval = time.Minute
)

type entry struct {
	panel    *Panel
	owner    string
	lastSeen time.Time
}

// Manager hosts the live panels of a server, each bound to the identity that
// opened it.
type Manager struct {
	deps    Deps
	cfg     Config
	idleTTL time.Duration
	now     func() time.Time

	mu     sync.Mutex
	panels map[string]*entry

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewManager(deps Deps, cfg Config, idleTTL time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Manager{
		deps:    deps,
		cfg:     cfg,
		idleTTL: idleTTL,
		now:     time.Now,
		panels:  make(map[string]*entry),
	}
}

// Open creates a panel for itemID as userID and loads its first page. The
// panel is registered even when the first load fails, so the caller can retry
// with LoadMore.
func (m *Manager) Open(ctx context.Context, itemID, userID string, sort model.SortMode) (string, *Panel, error) {
	p := New(m.deps, m.cfg)
	err := p.Open(ctx, itemID, userID, sort)
	if err != nil && !p.IsOpen() {
		return "", nil, err
	}

	id := uuid.NewString()
	m.mu.Lock()
	m.panels[id] = &entry{panel: p, owner: userID, lastSeen: m.now()}
	m.mu.Unlock()

	log.Printf("[PanelManager] Open: panel=%s item=%s user=%s", id, itemID, userID)
	return id, p, err
}

// Get returns the panel id as seen by userID. Panels opened by someone else
// are reported as not found.
func (m *Manager) Get(id, userID string) (*Panel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.panels[id]
	if !ok || e.owner != userID {
		return nil, model.ErrPanelNotFound
	}
	e.lastSeen = m.now()
	return e.panel, nil
}

// Close tears down and forgets a panel.
func (m *Manager) Close(id, userID string) error {
	m.mu.Lock()
	e, ok := m.panels[id]
	if !ok || e.owner != userID {
		m.mu.Unlock()
		return model.ErrPanelNotFound
	}
	delete(m.panels, id)
	m.mu.Unlock()

	e.panel.Close()
	log.Printf("[PanelManager] Close: panel=%s", id)
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.panels)
}

// EvictIdle closes panels untouched for longer than the idle TTL and returns
// how many were closed.
func (m *Manager) EvictIdle() int {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var idle []*Panel
	for id, e := range m.panels {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.panel)
			delete(m.panels, id)
		}
	}
	m.mu.Unlock()

	for _, p := range idle {
		p.Close()
	}
	if len(idle) > 0 {
		log.Printf("[PanelManager] EvictIdle: closed=%d", len(idle))
	}
	return len(idle)
}

// Start runs the idle janitor until Stop is called or ctx ends.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()

		log.Printf("[PanelManager] Janitor started (idleTTL=%v)", m.idleTTL)
		for {
			select {
			case <-ctx.Done():
				log.Printf("[PanelManager] Janitor stopped")
				return
			case <-ticker.C:
				m.EvictIdle()
			}
		}
	}()
}

// Stop halts the janitor and closes every panel.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	m.mu.Lock()
	panels := m.panels
	m.panels = make(map[string]*entry)
	m.mu.Unlock()
	for _, e := range panels {
		e.panel.Close()
	}
}
