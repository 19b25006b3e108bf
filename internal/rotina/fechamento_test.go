package rotina

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendeid/atendimento/internal/metrics"
	"github.com/agendeid/atendimento/internal/repo"
)

func seed(t *testing.T, r *repo.MemoryRepository, day time.Time, horario, status string) int64 {
	t.Helper()
	ag, err := r.InsertAppointment(context.Background(), repo.NovoAgendamento{
		UsuarioEmail: "ana@example.com",
		Servico:      "CIN",
		Data:         day,
		Horario:      horario,
		Protocolo:    "P" + horario[:2] + day.Format("0102") + "X",
	})
	require.NoError(t, err)
	if status != repo.StatusAgendado {
		ok, err := r.UpdateAppointmentStatus(context.Background(), repo.StatusUpdate{ID: ag.ID, Status: status})
		require.NoError(t, err)
		require.True(t, ok)
	}
	return ag.ID
}

func newRepo(t *testing.T) *repo.MemoryRepository {
	t.Helper()
	r := repo.NewMemoryRepository()
	_, err := r.InsertUser(context.Background(), repo.NovoUsuario{
		Nome:           "Ana Lima",
		Sexo:           "feminino",
		Nacionalidade:  "brasileira",
		DataNascimento: time.Date(1990, time.January, 5, 0, 0, 0, 0, time.UTC),
		NomeMae:        "Rita Lima",
		CPF:            "52998224725",
		Email:          "ana@example.com",
		SenhaHash:      "x",
		Perfil:         repo.PerfilCliente,
	})
	require.NoError(t, err)
	return r
}

func TestRunOnceClosesPastDays(t *testing.T) {
	r := newRepo(t)
	today := time.Date(2026, time.October, 18, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	noShow := seed(t, r, yesterday, "08:00", repo.StatusAgendado)
	present := seed(t, r, yesterday, "09:00", repo.StatusPresente)
	cancelled := seed(t, r, yesterday, "10:00", repo.StatusCancelado)
	todays := seed(t, r, today, "08:00", repo.StatusAgendado)

	m := metrics.New(prometheus.NewRegistry())
	f := NewFechamento(r, time.UTC, time.Hour, m, zerolog.Nop())
	f.now = func() time.Time { return today.Add(15 * time.Hour) }

	out, err := f.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, repo.Fechamento{Faltas: 1, Atendidos: 1}, out)

	expect := map[int64]string{
		noShow:    repo.StatusFaltou,
		present:   repo.StatusAtendido,
		cancelled: repo.StatusCancelado,
		todays:    repo.StatusAgendado,
	}
	for id, status := range expect {
		ag, err := r.GetAppointment(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, status, ag.Status, id)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fechamentos.WithLabelValues(repo.StatusFaltou)))

	out, err = f.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, out)
}

type countingRepo struct {
	calls atomic.Int32
	err   error
}

func (c *countingRepo) CloseDaysBefore(context.Context, time.Time) (repo.Fechamento, error) {
	c.calls.Add(1)
	return repo.Fechamento{}, c.err
}

func TestRunOnceWrapsErrors(t *testing.T) {
	boom := errors.New("conexão perdida")
	f := NewFechamento(&countingRepo{err: boom}, time.UTC, 0, nil, zerolog.Nop())
	_, err := f.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	r := &countingRepo{}
	f := NewFechamento(r, time.UTC, time.Hour, nil, zerolog.Nop())

	f.Start(context.Background())
	f.Start(context.Background())
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	f.Stop()
	assert.Equal(t, int32(1), r.calls.Load())
}
