package importer

import (
	"net/http"

	"github.com/quay/vulndb/driver"
)

// ManagerOption specifies optional configuration for a Manager.
// Defaults are used where options are not provided to the constructor.
type ManagerOption func(m *Manager)

// WithFactories replaces the registered factories with the provided
// set.
func WithFactories(fs map[string]driver.Factory) ManagerOption {
	return func(m *Manager) {
		m.factories = fs
	}
}

// WithConfigs tells the Manager to configure each importer where a
// configuration is provided.
func WithConfigs(cfgs Configs) ManagerOption {
	return func(m *Manager) {
		m.configs = cfgs
	}
}

// WithClient sets the http.Client handed to configurable importers.
func WithClient(c *http.Client) ManagerOption {
	return func(m *Manager) {
		m.client = c
	}
}

// WithStrictStatus makes Run's return value reflect per-importer
// failures.
//
// When unset, failures are logged but Run reports success once all
// importers have finished.
func WithStrictStatus(strict bool) ManagerOption {
	return func(m *Manager) {
		m.strict = strict
	}
}
