package plugin

import (
	"sync"

	"github.com/workflowforge/engine/internal/wferrors"
)

// Manager is a name -> Plugin registry (spec §4.1 "PluginManager").
type Manager struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewManager builds an empty Manager.
func NewManager() *Manager {
	return &Manager{plugins: make(map[string]*Plugin)}
}

// Register adds p to the registry. Fails with already-registered on a
// duplicate name.
func (m *Manager) Register(p *Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.plugins[p.name]; exists {
		return wferrors.AlreadyRegistered(p.name)
	}
	m.plugins[p.name] = p
	return nil
}

// Get looks up a plugin by name. Fails with not-found.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plugins[name]
	if !ok {
		return nil, wferrors.NotFound("plugin", name)
	}
	return p, nil
}

// Remove deletes a plugin by name. Fails with not-found.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plugins[name]; !ok {
		return wferrors.NotFound("plugin", name)
	}
	delete(m.plugins, name)
	return nil
}

// Replace atomically removes any existing plugin under p's name and
// registers p in its place.
func (m *Manager) Replace(p *Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.plugins, p.name)
	m.plugins[p.name] = p
	return nil
}

// Names returns the registered plugin names in no particular order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.plugins))
	for n := range m.plugins {
		names = append(names, n)
	}
	return names
}

// PrepareAll runs Prepare(config) sequentially over all plugins, or a
// named subset if names is non-empty. Stops at the first error.
func (m *Manager) PrepareAll(config any, names ...string) error {
	return m.forEach(names, func(p *Plugin) error { return p.Prepare(config) })
}

// CleanupAll runs Cleanup(config) sequentially over all plugins, or a
// named subset if names is non-empty. Stops at the first error.
func (m *Manager) CleanupAll(config any, names ...string) error {
	return m.forEach(names, func(p *Plugin) error { return p.Cleanup(config) })
}

func (m *Manager) forEach(names []string, fn func(*Plugin) error) error {
	if len(names) == 0 {
		m.mu.RLock()
		names = make([]string, 0, len(m.plugins))
		for n := range m.plugins {
			names = append(names, n)
		}
		m.mu.RUnlock()
	}
	for _, name := range names {
		p, err := m.Get(name)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}
