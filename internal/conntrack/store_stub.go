// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package conntrack

import (
	"grimm.is/tinmark/internal/classify"
	"grimm.is/tinmark/internal/errors"
	"grimm.is/tinmark/internal/logging"
)

// Store is a stub for non-Linux platforms.
// Connection tracking is only supported on Linux via netlink.
type Store struct{}

// NewStore fails on non-Linux platforms.
func NewStore(_ *logging.Logger) (*Store, error) {
	return nil, errors.New(errors.KindUnavailable, "conntrack is only supported on Linux")
}

func (s *Store) Close() error { return nil }

func (s *Store) Lookup(key classify.ConnKey) (classify.Entry, error) {
	return classify.Entry{}, errors.New(errors.KindUnavailable, "conntrack is only supported on Linux")
}

func (s *Store) CompareAndSet(classify.ConnKey, uint32, uint32) (bool, error) {
	return false, errors.New(errors.KindUnavailable, "conntrack is only supported on Linux")
}

func (s *Store) Flows() ([]FlowInfo, error) {
	return nil, errors.New(errors.KindUnavailable, "conntrack is only supported on Linux")
}
