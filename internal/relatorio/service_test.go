package relatorio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendeid/atendimento/internal/repo"
)

type stubRepo struct {
	since      time.Time
	limit      int
	attendance repo.Attendance
	ranking    []repo.ServiceCount
	items      []repo.AgendaItem
	err        error
}

func (s *stubRepo) AggregateAttendance(_ context.Context, since time.Time) (repo.Attendance, error) {
	s.since = since
	return s.attendance, s.err
}

func (s *stubRepo) TopServices(_ context.Context, since time.Time, limit int) ([]repo.ServiceCount, error) {
	s.since = since
	s.limit = limit
	return s.ranking, s.err
}

func (s *stubRepo) ListAppointmentsBetween(context.Context, time.Time, time.Time) ([]repo.AgendaItem, error) {
	return s.items, s.err
}

func newService(r *stubRepo) *Service {
	svc := NewService(r, time.UTC)
	svc.now = func() time.Time { return time.Date(2026, time.October, 18, 15, 0, 0, 0, time.UTC) }
	return svc
}

func TestAttendanceRate(t *testing.T) {
	r := &stubRepo{attendance: repo.Attendance{Total: 8, Presentes: 6, Ausencias: 2}}
	svc := newService(r)

	got, err := svc.Attendance(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, JanelaPadrao, got.Dias)
	assert.InDelta(t, 75.0, got.Taxa, 0.001)
	assert.Equal(t, time.Date(2026, time.September, 18, 0, 0, 0, 0, time.UTC), r.since)
}

func TestAttendanceEmptyWindow(t *testing.T) {
	svc := newService(&stubRepo{})
	got, err := svc.Attendance(context.Background(), 7)
	require.NoError(t, err)
	assert.Zero(t, got.Taxa)
	assert.Equal(t, 7, got.Dias)
}

func TestTopServicesDefaultsLimit(t *testing.T) {
	r := &stubRepo{ranking: []repo.ServiceCount{{Servico: "CIN", Quantidade: 3}}}
	svc := newService(r)

	got, err := svc.TopServices(context.Background(), 30, 0)
	require.NoError(t, err)
	assert.Equal(t, LimiteServicos, r.limit)
	assert.Len(t, got, 1)
}

func TestStatisticalGroupsByStatusAndService(t *testing.T) {
	item := func(servico, status string) repo.AgendaItem {
		return repo.AgendaItem{Agendamento: repo.Agendamento{Servico: servico, Status: status}}
	}
	r := &stubRepo{items: []repo.AgendaItem{
		item("CIN", repo.StatusAgendado),
		item("CIN", repo.StatusPresente),
		item("CRNM", repo.StatusAgendado),
		item("RENOVACAO CIN", repo.StatusFaltou),
		item("CRNM", repo.StatusCancelado),
	}}
	svc := newService(r)
	from := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.October, 31, 0, 0, 0, 0, time.UTC)

	got, err := svc.Statistical(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, "01/10/2026", got.Periodo.Inicio)
	assert.Equal(t, 2, got.PorStatus[repo.StatusAgendado])
	assert.Equal(t, []repo.ServiceCount{
		{Servico: "CIN", Quantidade: 2},
		{Servico: "CRNM", Quantidade: 2},
		{Servico: "RENOVACAO CIN", Quantidade: 1},
	}, got.PorServico)
}

func TestCompleteRejectsInvertedPeriod(t *testing.T) {
	svc := newService(&stubRepo{})
	from := time.Date(2026, time.October, 10, 0, 0, 0, 0, time.UTC)

	_, err := svc.Complete(context.Background(), from, from.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	got, err := svc.Complete(context.Background(), from, from)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Total)
	assert.NotNil(t, got.Agendamentos)
}

func TestRepositoryErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	svc := newService(&stubRepo{err: boom})
	_, err := svc.Attendance(context.Background(), 30)
	assert.ErrorIs(t, err, boom)
}
