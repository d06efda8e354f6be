// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package firewall

import (
	"sync"

	"github.com/google/nftables"
	"github.com/google/nftables/expr"

	"grimm.is/tinmark/internal/brand"
	"grimm.is/tinmark/internal/errors"
	"grimm.is/tinmark/internal/logging"
)

// Manager owns the classifier's nftables table.
type Manager struct {
	mu      sync.Mutex
	logger  *logging.Logger
	applier *AtomicApplier
	current QueueRules
}

// NewManager creates a firewall manager.
func NewManager(logger *logging.Logger) *Manager {
	return &Manager{
		logger:  logging.WithComponent(logger, "firewall"),
		applier: NewAtomicApplier(),
	}
}

// Apply validates and installs the queue ruleset atomically.
func (m *Manager) Apply(qr QueueRules) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sb, err := BuildQueueScript(qr)
	if err != nil {
		return err
	}
	script := sb.Build()

	if err := m.applier.ValidateScript(script); err != nil {
		m.logger.Error("ruleset validation failed", "error", err)
		return errors.Wrap(err, errors.KindValidation, "ruleset validation failed")
	}
	if err := m.applier.ApplyScript(script); err != nil {
		return errors.Wrap(err, errors.KindInternal, "atomic apply failed")
	}

	m.current = qr
	m.logger.Info("queue ruleset applied",
		"wan", qr.WANInterface, "egress_queue", qr.EgressQueue, "ingress_queue", qr.IngressQueue)
	return nil
}

// Teardown removes the classifier table. Safe to call when nothing is
// installed.
func (m *Manager) Teardown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applier.DeleteTable("inet", brand.LowerName)
}

// ChainCounters is the packet/byte count of one queue rule, read back
// from the kernel.
type ChainCounters struct {
	Packets uint64
	Bytes   uint64
}

// ReadCounters collects the queue rule counters via netlink. Chains
// without a counter expression report zero.
func (m *Manager) ReadCounters() (map[string]ChainCounters, error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "nftables netlink")
	}

	out := make(map[string]ChainCounters)

	tables, err := conn.ListTables()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "list tables")
	}
	var table *nftables.Table
	for _, t := range tables {
		if t.Name == brand.LowerName && t.Family == nftables.TableFamilyINet {
			table = t
			break
		}
	}
	if table == nil {
		return out, nil
	}

	chains, err := conn.ListChains()
	if err != nil {
		return out, nil
	}
	for _, chain := range chains {
		if chain.Table.Name != table.Name {
			continue
		}
		rules, err := conn.GetRules(table, chain)
		if err != nil {
			continue
		}
		var cc ChainCounters
		for _, rule := range rules {
			for _, e := range rule.Exprs {
				if c, ok := e.(*expr.Counter); ok {
					cc.Packets += c.Packets
					cc.Bytes += c.Bytes
				}
			}
		}
		out[chain.Name] = cc
	}
	return out, nil
}
