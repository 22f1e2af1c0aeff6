package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMustNewIsIdempotentPerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNew(reg)
	second := MustNew(reg)

	first.IncHandOff("discovery", "job_info")
	second.IncHandOff("discovery", "job_info")

	assert.Equal(t, 2.0, testutil.ToFloat64(first.handOffs.WithLabelValues("discovery", "job_info")))
}

func TestObserveTurn(t *testing.T) {
	m := MustNew(prometheus.NewRegistry())

	m.ObserveTurn("discovery", "ok", 20*time.Millisecond)
	m.ObserveTurn("discovery", "ok", 30*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.turns.WithLabelValues("discovery", "ok")))
}

func TestTurnsInFlight(t *testing.T) {
	m := MustNew(prometheus.NewRegistry())

	done := m.TurnStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.turnsInFlight))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.turnsInFlight))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveTurn("discovery", "ok", time.Second)
	m.IncLookup("search_by_id_vacante", "ok")
	m.IncDeliveryFailure("whatsapp")
	m.IncDuplicate()
	m.TurnStarted()()
}
