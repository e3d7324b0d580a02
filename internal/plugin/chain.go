package plugin

import "github.com/workflowforge/engine/internal/wferrors"

// Chain composes Managers by priority (spec §4.1 "PluginManagerChain"),
// layering a project-local manager over a shared default one. Get returns
// from the first manager containing the name; Prepare/Cleanup iterate
// every manager in order.
type Chain struct {
	managers []*Manager
}

// NewChain builds a Chain over managers, highest priority first.
func NewChain(managers ...*Manager) *Chain {
	return &Chain{managers: managers}
}

// Get returns the plugin from the first manager that has it.
func (c *Chain) Get(name string) (*Plugin, error) {
	for _, m := range c.managers {
		if p, err := m.Get(name); err == nil {
			return p, nil
		}
	}
	return nil, wferrors.NotFound("plugin", name)
}

// PrepareAll prepares the named subset (or all plugins) across every
// manager in the chain. With no names, every manager prepares its own
// full plugin set. With named plugins, each name is prepared on the
// first manager that holds it; a manager further down the chain that
// lacks a given name is skipped, not treated as an error — a plugin
// lives in exactly one layer of the chain (spec §4.1/§12).
func (c *Chain) PrepareAll(config any, names ...string) error {
	if len(names) == 0 {
		for _, m := range c.managers {
			if err := m.PrepareAll(config); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := c.forName(name, func(m *Manager) error { return m.PrepareAll(config, name) }); err != nil {
			return err
		}
	}
	return nil
}

// CleanupAll cleans up the named subset (or all plugins) across every
// manager in the chain, with the same per-name layering as PrepareAll.
func (c *Chain) CleanupAll(config any, names ...string) error {
	if len(names) == 0 {
		for _, m := range c.managers {
			if err := m.CleanupAll(config); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := c.forName(name, func(m *Manager) error { return m.CleanupAll(config, name) }); err != nil {
			return err
		}
	}
	return nil
}

// forName runs fn against the first manager that holds name, skipping
// managers that don't. It fails with not-found only when no manager in
// the chain holds the name at all.
func (c *Chain) forName(name string, fn func(*Manager) error) error {
	for _, m := range c.managers {
		if _, err := m.Get(name); err != nil {
			continue
		}
		return fn(m)
	}
	return wferrors.NotFound("plugin", name)
}
