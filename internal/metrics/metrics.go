package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resultados de reserva registrados em agendeid_reservas_total.
const (
	ReservaOK        = "ok"
	ReservaConflito  = "conflito"
	ReservaProtocolo = "protocolo_esgotado"
	ReservaErro      = "erro"
)

// Metrics agrupa contadores do atendimento por chat. Um *Metrics nil é válido e não registra nada.
type Metrics struct {
	Turnos        *prometheus.CounterVec
	TurnoDuracao  prometheus.Histogram
	Reservas      *prometheus.CounterVec
	Remarcacoes   *prometheus.CounterVec
	Classificacao *prometheus.CounterVec
	Fechamentos   *prometheus.CounterVec
}

// New registra as métricas no registerer informado (prometheus.DefaultRegisterer em produção).
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Turnos: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agendeid_turnos_total",
			Help: "Turnos de conversa processados, por tipo de resposta",
		}, []string{"tipo"}),
		TurnoDuracao: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "agendeid_turno_duracao_seconds",
			Help:    "Duração do processamento de um turno de conversa",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		Reservas: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agendeid_reservas_total",
			Help: "Tentativas de reserva de horário, por resultado",
		}, []string{"resultado"}),
		Remarcacoes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agendeid_remarcacoes_total",
			Help: "Tentativas de remarcação, por resultado",
		}, []string{"resultado"}),
		Classificacao: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agendeid_classificacao_total",
			Help: "Intenções resolvidas, por estratégia",
		}, []string{"estrategia"}),
		Fechamentos: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agendeid_fechamentos_total",
			Help: "Agendamentos encerrados pelo fechamento de dias passados, por status final",
		}, []string{"status"}),
	}
}

// ObserveTurn registra tipo e duração de um turno.
func (m *Metrics) ObserveTurn(tipo string, start time.Time) {
	if m == nil {
		return
	}
	m.Turnos.WithLabelValues(tipo).Inc()
	m.TurnoDuracao.Observe(time.Since(start).Seconds())
}

// IncReservation registra o resultado de uma reserva.
func (m *Metrics) IncReservation(resultado string) {
	if m == nil {
		return
	}
	m.Reservas.WithLabelValues(resultado).Inc()
}

// IncReschedule registra o resultado de uma remarcação.
func (m *Metrics) IncReschedule(resultado string) {
	if m == nil {
		return
	}
	m.Remarcacoes.WithLabelValues(resultado).Inc()
}

// IncClassification registra qual estratégia resolveu a intenção.
func (m *Metrics) IncClassification(estrategia string) {
	if m == nil {
		return
	}
	m.Classificacao.WithLabelValues(estrategia).Inc()
}

// AddClosures soma as transições aplicadas por um fechamento.
func (m *Metrics) AddClosures(faltas, atendidos int64) {
	if m == nil {
		return
	}
	m.Fechamentos.WithLabelValues("Faltou").Add(float64(faltas))
	m.Fechamentos.WithLabelValues("Atendido").Add(float64(atendidos))
}
