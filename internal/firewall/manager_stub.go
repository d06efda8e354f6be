// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package firewall

import (
	"grimm.is/tinmark/internal/errors"
	"grimm.is/tinmark/internal/logging"
)

// Manager is a stub on non-Linux systems.
type Manager struct{}

func NewManager(logger *logging.Logger) *Manager { return &Manager{} }

func (m *Manager) Apply(qr QueueRules) error {
	return errors.New(errors.KindUnavailable, "nftables is only supported on Linux")
}

func (m *Manager) Teardown() error { return nil }

// ChainCounters is the packet/byte count of one queue rule.
type ChainCounters struct {
	Packets uint64
	Bytes   uint64
}

func (m *Manager) ReadCounters() (map[string]ChainCounters, error) {
	return map[string]ChainCounters{}, nil
}
