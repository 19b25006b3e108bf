package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersByLabel(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncReservation(ReservaOK)
	m.IncReservation(ReservaConflito)
	m.IncReservation(ReservaConflito)
	m.ObserveTurn("prompt", time.Now())
	m.IncClassification("palavra_chave")
	m.AddClosures(3, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reservas.WithLabelValues(ReservaOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Reservas.WithLabelValues(ReservaConflito)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Turnos.WithLabelValues("prompt")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Classificacao.WithLabelValues("palavra_chave")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Fechamentos.WithLabelValues("Faltou")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fechamentos.WithLabelValues("Atendido")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncReservation(ReservaOK)
		m.IncReschedule(ReservaErro)
		m.ObserveTurn("prompt", time.Now())
		m.IncClassification("modelo")
		m.AddClosures(1, 1)
	})
}
