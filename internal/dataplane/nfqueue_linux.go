// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package dataplane

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	nfqueue "github.com/florianl/go-nfqueue/v2"

	"grimm.is/tinmark/internal/classify"
	"grimm.is/tinmark/internal/errors"
	"grimm.is/tinmark/internal/logging"
)

// QueueReader services one NFQUEUE number and applies the classification
// engine's decision to every queued packet. Failure mode is fail-open:
// anything we cannot parse or decide is accepted unmodified, so a broken
// classifier degrades to an unprioritized but working link.
type QueueReader struct {
	queueNum  uint16
	direction Direction
	engine    *classify.Engine
	logger    *logging.Logger

	nf     *nfqueue.Nfqueue
	cancel context.CancelFunc

	stats queueStats
}

type queueStats struct {
	processed atomic.Uint64
	stamped   atomic.Uint64
	parseErrs atomic.Uint64
}

// QueueStats is a point-in-time snapshot of a reader's counters.
type QueueStats struct {
	Queue            uint16 `json:"queue"`
	Direction        string `json:"direction"`
	PacketsProcessed uint64 `json:"packets_processed"`
	PacketsStamped   uint64 `json:"packets_stamped"`
	ParseErrors      uint64 `json:"parse_errors"`
}

// NewQueueReader creates a reader for the given queue number.
func NewQueueReader(queueNum uint16, direction Direction, engine *classify.Engine, logger *logging.Logger) *QueueReader {
	return &QueueReader{
		queueNum:  queueNum,
		direction: direction,
		engine:    engine,
		logger:    logging.WithComponent(logger, "dataplane"),
	}
}

// Start opens the queue and begins servicing packets until ctx is
// cancelled or Stop is called.
func (r *QueueReader) Start(ctx context.Context) error {
	nf, err := nfqueue.Open(&nfqueue.Config{
		NfQueue:      r.queueNum,
		MaxQueueLen:  4096,
		Copymode:     nfqueue.NfQnlCopyPacket,
		MaxPacketLen: 0xffff,
		WriteTimeout: time.Second,
	})
	if err != nil {
		return errors.Wrapf(err, errors.KindUnavailable, "open nfqueue %d", r.queueNum)
	}
	r.nf = nf

	ctx, r.cancel = context.WithCancel(ctx)
	if err := nf.RegisterWithErrorFunc(ctx, r.handle, r.handleError); err != nil {
		nf.Close()
		return errors.Wrapf(err, errors.KindUnavailable, "register nfqueue %d", r.queueNum)
	}

	r.logger.Info("queue reader started", "queue", r.queueNum, "direction", r.direction.String())
	return nil
}

// Stop tears the queue binding down.
func (r *QueueReader) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.nf != nil {
		r.nf.Close()
		r.nf = nil
	}
}

func (r *QueueReader) handle(a nfqueue.Attribute) int {
	if a.PacketID == nil {
		return 0
	}
	id := *a.PacketID
	r.stats.processed.Add(1)

	if a.Payload == nil || len(*a.Payload) == 0 {
		_ = r.nf.SetVerdict(id, nfqueue.NfAccept)
		return 0
	}
	payload := *a.Payload

	key, err := ParseKey(payload)
	if err != nil {
		r.stats.parseErrs.Add(1)
		_ = r.nf.SetVerdict(id, nfqueue.NfAccept)
		return 0
	}

	var d classify.Decision
	if r.direction == Egress {
		d = r.engine.HandleEgress(key)
	} else {
		d = r.engine.HandleIngress(key)
	}

	v := verdictFor(d, r.direction)
	if v.Type == VerdictAccept {
		_ = r.nf.SetVerdict(id, nfqueue.NfAccept)
		return 0
	}

	modified := StampDSCP(payload, v.DSCP)
	r.stats.stamped.Add(1)

	switch {
	case modified && v.Mark != 0:
		_ = r.nf.SetVerdictModPacketWithMark(id, nfqueue.NfAccept, int(v.Mark), payload)
	case modified:
		_ = r.nf.SetVerdictModPacket(id, nfqueue.NfAccept, payload)
	case v.Mark != 0:
		_ = r.nf.SetVerdictWithMark(id, nfqueue.NfAccept, int(v.Mark))
	default:
		_ = r.nf.SetVerdict(id, nfqueue.NfAccept)
	}
	return 0
}

func (r *QueueReader) handleError(e error) int {
	if e == nil {
		return 0
	}
	// The read timeout fires constantly on an idle queue.
	if strings.Contains(strings.ToLower(e.Error()), "timeout") {
		return 0
	}
	r.logger.Warn("queue receive error", "queue", r.queueNum, "error", e)
	return 0
}

// Stats snapshots the reader's counters.
func (r *QueueReader) Stats() QueueStats {
	return QueueStats{
		Queue:            r.queueNum,
		Direction:        r.direction.String(),
		PacketsProcessed: r.stats.processed.Load(),
		PacketsStamped:   r.stats.stamped.Load(),
		ParseErrors:      r.stats.parseErrs.Load(),
	}
}
