// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package shaper

import (
	"fmt"
	"os/exec"

	"github.com/vishvananda/netlink"

	"grimm.is/tinmark/internal/classify"
	"grimm.is/tinmark/internal/errors"
	"grimm.is/tinmark/internal/logging"
)

// Manager installs and removes the tin hierarchy.
type Manager struct {
	logger *logging.Logger
}

// NewManager creates a shaper manager.
func NewManager(logger *logging.Logger) *Manager {
	return &Manager{logger: logging.WithComponent(logger, "shaper")}
}

// Apply replaces the root qdisc on the interface with the tin hierarchy.
func (m *Manager) Apply(cfg Config) error {
	link, err := netlink.LinkByName(cfg.Interface)
	if err != nil {
		return errors.Wrapf(err, errors.KindNotFound, "interface %s not found", cfg.Interface)
	}
	idx := link.Attrs().Index

	// Clear any existing root qdisc first.
	qdiscs, err := netlink.QdiscList(link)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to list qdiscs")
	}
	for _, q := range qdiscs {
		if q.Attrs().Parent == netlink.HANDLE_ROOT {
			netlink.QdiscDel(q)
		}
	}

	rate := rateBytes(cfg.UploadKbit)
	buffer := uint32(rate/250 + 1600) // ~4ms

	// Root HTB, unmarked traffic defaults to the best-effort class.
	rootQdisc := netlink.NewHtb(netlink.QdiscAttrs{
		LinkIndex: idx,
		Parent:    netlink.HANDLE_ROOT,
		Handle:    netlink.MakeHandle(1, 0),
	})
	rootQdisc.Defcls = defaultMinor
	if err := netlink.QdiscAdd(rootQdisc); err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to add root HTB qdisc")
	}

	// Root class 1:1 carries the full shaped rate.
	rootClass := netlink.NewHtbClass(netlink.ClassAttrs{
		LinkIndex: idx,
		Parent:    netlink.MakeHandle(1, 0),
		Handle:    netlink.MakeHandle(1, 1),
	}, netlink.HtbClassAttrs{
		Rate:    rate,
		Ceil:    rate,
		Buffer:  buffer,
		Cbuffer: buffer,
	})
	if err := netlink.ClassAdd(rootClass); err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to add root HTB class")
	}

	for i, tc := range tinClasses {
		class := netlink.NewHtbClass(netlink.ClassAttrs{
			LinkIndex: idx,
			Parent:    netlink.MakeHandle(1, 1),
			Handle:    netlink.MakeHandle(1, tc.Minor),
		}, netlink.HtbClassAttrs{
			Rate:    guarantee(cfg.UploadKbit, tc.GuaranteePct),
			Ceil:    rate,
			Prio:    tc.Prio,
			Buffer:  buffer,
			Cbuffer: buffer,
		})
		if err := netlink.ClassAdd(class); err != nil {
			return errors.Wrapf(err, errors.KindInternal, "failed to add class for tin %s", tc.Tin)
		}

		fq := netlink.NewFqCodel(netlink.QdiscAttrs{
			LinkIndex: idx,
			Parent:    netlink.MakeHandle(1, tc.Minor),
			Handle:    netlink.MakeHandle(100+uint16(i), 0),
		})
		if err := netlink.QdiscAdd(fq); err != nil {
			return errors.Wrapf(err, errors.KindInternal, "failed to add leaf qdisc for tin %s", tc.Tin)
		}

		// fwmark filter via raw tc. The netlink library's FilterAdd
		// for the fw filter type has serialization issues (as of
		// v1.3.x the handle and classid attributes are sometimes
		// omitted), which leaves filters installed but inert. Verify
		// `tc filter show` carries handles before switching back.
		mark := MarkForTin(tc.Tin)
		cmd := exec.Command("tc", "filter", "add", "dev", cfg.Interface,
			"parent", "1:0",
			"protocol", "all",
			"prio", fmt.Sprintf("%d", 100+i),
			"handle", fmt.Sprintf("0x%x", mark),
			"fw",
			"classid", fmt.Sprintf("1:%x", tc.Minor),
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			m.logger.Warn("failed to add fwmark filter",
				"tin", tc.Tin.String(), "mark", mark, "error", err, "output", string(out))
		}
	}

	m.logger.Info("tin hierarchy installed", "interface", cfg.Interface, "upload_kbit", cfg.UploadKbit)
	return nil
}

// Clear removes the root qdisc, returning the interface to the kernel
// default.
func (m *Manager) Clear(ifaceName string) error {
	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return errors.Wrapf(err, errors.KindNotFound, "interface %s not found", ifaceName)
	}
	qdiscs, err := netlink.QdiscList(link)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to list qdiscs")
	}
	for _, q := range qdiscs {
		if q.Attrs().Parent == netlink.HANDLE_ROOT {
			if err := netlink.QdiscDel(q); err != nil {
				return errors.Wrap(err, errors.KindInternal, "failed to delete root qdisc")
			}
		}
	}
	return nil
}

// Stats reads per-tin class counters back from the kernel.
func (m *Manager) Stats(ifaceName string) ([]TinStats, error) {
	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindNotFound, "interface %s not found", ifaceName)
	}
	classes, err := netlink.ClassList(link, netlink.MakeHandle(1, 0))
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "failed to list classes")
	}

	byMinor := make(map[uint16]classify.Tin, len(tinClasses))
	for _, tc := range tinClasses {
		byMinor[tc.Minor] = tc.Tin
	}

	var out []TinStats
	for _, c := range classes {
		minor := uint16(c.Attrs().Handle & 0xffff)
		tin, ok := byMinor[minor]
		if !ok {
			continue
		}
		st := TinStats{Tin: tin.String()}
		if stats := c.Attrs().Statistics; stats != nil {
			if stats.Basic != nil {
				st.Bytes = stats.Basic.Bytes
				st.Packets = uint64(stats.Basic.Packets)
			}
			if stats.Queue != nil {
				st.Drops = uint64(stats.Queue.Drops)
			}
		}
		out = append(out, st)
	}
	return out, nil
}
