// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"grimm.is/tinmark/internal/classify"
)

func TestSinkCountsByTin(t *testing.T) {
	m := NewMetrics()

	m.ConnClassified(classify.EF)
	m.ConnClassified(classify.EF)
	m.ConnClassified(classify.CS0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConnsClassified.WithLabelValues("voice")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnsClassified.WithLabelValues("besteffort")))
}

func TestDemotionCounter(t *testing.T) {
	m := NewMetrics()

	m.ConnDemoted(classify.CS0, classify.CS1)
	m.ConnDemoted(classify.CS0, classify.CS1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConnsDemoted))
}

func TestRestoreAndMissCounters(t *testing.T) {
	m := NewMetrics()

	m.PacketRestored(classify.CS1)
	m.StoreMiss()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PacketsRestored.WithLabelValues("bulk")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreMisses))
}

func TestGauges(t *testing.T) {
	m := NewMetrics()

	m.SetQueuedPackets("egress", 42)
	m.SetTinStats("voice", 1000, 3)

	assert.Equal(t, 42.0, testutil.ToFloat64(m.QueuedPackets.WithLabelValues("egress")))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.TinBytes.WithLabelValues("voice")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TinDrops.WithLabelValues("voice")))
}
