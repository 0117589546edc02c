package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/canvas-engine/pkg/adapters/metadata"
	"github.com/ekaya-inc/canvas-engine/pkg/adapters/runner"
)

// PanelManager creates and caches one Panel (and its RunService) per table.
// The first request for a table loads it; a failed load is not cached, so
// the next request retries naturally.
type PanelManager struct {
	store   metadata.Store
	backend runner.Backend
	opts    PanelOptions
	logger  *zap.Logger

	mu     sync.Mutex
	panels map[string]*panelEntry
}

type panelEntry struct {
	panel *Panel
	runs  *RunService
}

// NewPanelManager creates a panel manager.
func NewPanelManager(store metadata.Store, backend runner.Backend, opts PanelOptions, logger *zap.Logger) *PanelManager {
	return &PanelManager{
		store:   store,
		backend: backend,
		opts:    opts,
		logger:  logger,
		panels:  make(map[string]*panelEntry),
	}
}

// Panel returns the loaded panel for a table, loading it on first access.
func (m *PanelManager) Panel(ctx context.Context, tableID string) (*Panel, error) {
	entry, err := m.entry(ctx, tableID)
	if err != nil {
		return nil, err
	}
	return entry.panel, nil
}

// Runs returns the run service for a table, loading its panel on first
// access.
func (m *PanelManager) Runs(ctx context.Context, tableID string) (*RunService, error) {
	entry, err := m.entry(ctx, tableID)
	if err != nil {
		return nil, err
	}
	return entry.runs, nil
}

// Close closes every cached panel.
func (m *PanelManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.panels {
		entry.panel.Close()
	}
	m.panels = make(map[string]*panelEntry)
}

func (m *PanelManager) entry(ctx context.Context, tableID string) (*panelEntry, error) {
	m.mu.Lock()
	if entry, ok := m.panels[tableID]; ok {
		m.mu.Unlock()
		return entry, nil
	}
	m.mu.Unlock()

	// Load outside the manager lock; metadata fetches can be slow.
	panel := NewPanel(m.store, tableID, m.opts, m.logger)
	if err := panel.Load(ctx); err != nil {
		panel.Close()
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.panels[tableID]; ok {
		// Another request loaded the same table concurrently; keep theirs.
		panel.Close()
		return entry, nil
	}
	entry := &panelEntry{
		panel: panel,
		runs:  NewRunService(m.backend, panel, m.logger),
	}
	m.panels[tableID] = entry
	return entry, nil
}
