// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package shaper

import (
	"grimm.is/tinmark/internal/errors"
	"grimm.is/tinmark/internal/logging"
)

// Manager is a stub on non-Linux systems.
type Manager struct{}

func NewManager(logger *logging.Logger) *Manager { return &Manager{} }

func (m *Manager) Apply(cfg Config) error {
	return errors.New(errors.KindUnavailable, "traffic shaping is only supported on Linux")
}

func (m *Manager) Clear(ifaceName string) error { return nil }

func (m *Manager) Stats(ifaceName string) ([]TinStats, error) {
	return nil, errors.New(errors.KindUnavailable, "traffic shaping is only supported on Linux")
}
