// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package dataplane

import (
	"context"

	"grimm.is/tinmark/internal/classify"
	"grimm.is/tinmark/internal/errors"
	"grimm.is/tinmark/internal/logging"
)

// QueueReader is a stub for non-Linux systems.
type QueueReader struct {
	queueNum  uint16
	direction Direction
}

// QueueStats is a point-in-time snapshot of a reader's counters.
type QueueStats struct {
	Queue            uint16 `json:"queue"`
	Direction        string `json:"direction"`
	PacketsProcessed uint64 `json:"packets_processed"`
	PacketsStamped   uint64 `json:"packets_stamped"`
	ParseErrors      uint64 `json:"parse_errors"`
}

// NewQueueReader creates a stub reader.
func NewQueueReader(queueNum uint16, direction Direction, engine *classify.Engine, logger *logging.Logger) *QueueReader {
	return &QueueReader{queueNum: queueNum, direction: direction}
}

// Start returns an error on non-Linux systems.
func (r *QueueReader) Start(ctx context.Context) error {
	return errors.New(errors.KindUnavailable, "nfqueue is only supported on Linux")
}

// Stop is a no-op.
func (r *QueueReader) Stop() {}

// Stats returns empty stats.
func (r *QueueReader) Stats() QueueStats {
	return QueueStats{Queue: r.queueNum, Direction: r.direction.String()}
}
