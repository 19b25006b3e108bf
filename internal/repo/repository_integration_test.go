//go:build integration

package repo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"golang.org/x/sync/errgroup"

	"github.com/agendeid/atendimento/internal/db"
)

type RepositorySuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool
	repo      *Repository
	day       time.Time
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("agendeid"),
		tcpostgres.WithUsername("agendeid"),
		tcpostgres.WithPassword("agendeid"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err, "failed to start postgres container")
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)
	s.Require().NoError(db.Migrate(dsn))

	s.pool, err = db.NewPool(ctx, dsn)
	s.Require().NoError(err)
	s.repo = New(s.pool)
	s.day = DateOnly(time.Now().AddDate(0, 0, 7))
}

func (s *RepositorySuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		_ = testcontainers.TerminateContainer(s.container)
	}
}

func (s *RepositorySuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), `TRUNCATE agendamentos, usuarios RESTART IDENTITY CASCADE`)
	s.Require().NoError(err)
}

func (s *RepositorySuite) seedUser(email, cpf string) Usuario {
	u, err := s.repo.InsertUser(context.Background(), NovoUsuario{
		Nome:           "Cidadão " + cpf,
		Sexo:           "outro",
		Nacionalidade:  "brasileira",
		DataNascimento: time.Date(1990, time.May, 10, 0, 0, 0, 0, time.UTC),
		NomeMae:        "Mãe",
		CPF:            cpf,
		Email:          email,
		SenhaHash:      "hash",
		Perfil:         PerfilCliente,
	})
	s.Require().NoError(err)
	return u
}

func (s *RepositorySuite) TestDuplicateUserMapsConstraint() {
	ctx := context.Background()
	s.seedUser("maria@example.com", "52998224725")

	_, err := s.repo.InsertUser(ctx, NovoUsuario{Nome: "x", Sexo: "outro", CPF: "52998224725", Email: "x@example.com", SenhaHash: "h", Perfil: PerfilCliente})
	s.ErrorIs(err, ErrDuplicateCPF)

	_, err = s.repo.InsertUser(ctx, NovoUsuario{Nome: "x", Sexo: "outro", CPF: "12345678909", Email: "Maria@Example.com", SenhaHash: "h", Perfil: PerfilCliente})
	s.ErrorIs(err, ErrDuplicateEmail)

	_, err = s.repo.FindUserByEmail(ctx, "ninguem@example.com")
	s.ErrorIs(err, ErrNotFound)
}

func (s *RepositorySuite) TestConcurrentReserveSingleWinner() {
	ctx := context.Background()
	const callers = 8
	for i := 0; i < callers; i++ {
		s.seedUser(fmt.Sprintf("u%d@example.com", i), fmt.Sprintf("%011d", i+1))
	}

	var wins, conflicts atomic.Int32
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, err := s.repo.InsertAppointment(ctx, NovoAgendamento{
				UsuarioEmail: fmt.Sprintf("u%d@example.com", i),
				Servico:      "CIN",
				Data:         s.day,
				Horario:      "09:00",
				Protocolo:    fmt.Sprintf("P%07d", i),
			})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrSlotConflict):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	s.EqualValues(1, wins.Load())
	s.EqualValues(callers-1, conflicts.Load())

	taken, err := s.repo.TakenSlots(ctx, s.day)
	s.Require().NoError(err)
	s.Equal([]string{"09:00"}, taken)
}

func (s *RepositorySuite) TestDuplicateProtocol() {
	ctx := context.Background()
	s.seedUser("a@example.com", "52998224725")

	_, err := s.repo.InsertAppointment(ctx, NovoAgendamento{UsuarioEmail: "a@example.com", Servico: "CIN", Data: s.day, Horario: "08:00", Protocolo: "ABCDEFGH"})
	s.Require().NoError(err)
	_, err = s.repo.InsertAppointment(ctx, NovoAgendamento{UsuarioEmail: "a@example.com", Servico: "CIN", Data: s.day, Horario: "10:00", Protocolo: "ABCDEFGH"})
	s.ErrorIs(err, ErrDuplicateProtocol)
}

func (s *RepositorySuite) TestRescheduleIntoTakenSlotKeepsOriginal() {
	ctx := context.Background()
	s.seedUser("a@example.com", "52998224725")
	s.seedUser("b@example.com", "12345678909")

	a, err := s.repo.InsertAppointment(ctx, NovoAgendamento{UsuarioEmail: "a@example.com", Servico: "CIN", Data: s.day, Horario: "10:00", Protocolo: "AAAAAAAA"})
	s.Require().NoError(err)
	b, err := s.repo.InsertAppointment(ctx, NovoAgendamento{UsuarioEmail: "b@example.com", Servico: "CRNM", Data: s.day, Horario: "11:00", Protocolo: "BBBBBBBB"})
	s.Require().NoError(err)

	ok, err := s.repo.UpdateAppointmentSchedule(ctx, ScheduleUpdate{ID: b.ID, Data: s.day, Horario: "10:00", OwnerEmail: "b@example.com"})
	s.ErrorIs(err, ErrSlotConflict)
	s.False(ok)

	gotA, err := s.repo.GetAppointment(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal("10:00", gotA.Horario)
	s.Equal(StatusAgendado, gotA.Status)

	gotB, err := s.repo.GetAppointment(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal("11:00", gotB.Horario)
}

func (s *RepositorySuite) TestStatusCompareAndSet() {
	ctx := context.Background()
	s.seedUser("a@example.com", "52998224725")
	ag, err := s.repo.InsertAppointment(ctx, NovoAgendamento{UsuarioEmail: "a@example.com", Servico: "CIN", Data: s.day, Horario: "15:00", Protocolo: "CCCCCCCC"})
	s.Require().NoError(err)

	ok, err := s.repo.UpdateAppointmentStatus(ctx, StatusUpdate{ID: ag.ID, Status: StatusCancelado, OwnerEmail: "outro@example.com"})
	s.Require().NoError(err)
	s.False(ok)

	ok, err = s.repo.UpdateAppointmentStatus(ctx, StatusUpdate{ID: ag.ID, Status: StatusPresente, From: []string{StatusAgendado}})
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.repo.UpdateAppointmentStatus(ctx, StatusUpdate{ID: ag.ID, Status: StatusPresente, From: []string{StatusAgendado}})
	s.Require().NoError(err)
	s.False(ok)

	agenda, err := s.repo.ListDayAgenda(ctx, s.day)
	s.Require().NoError(err)
	s.Require().Len(agenda, 1)
	s.Equal("Cidadão 52998224725", agenda[0].Nome)

	att, err := s.repo.AggregateAttendance(ctx, s.day.AddDate(0, 0, -30))
	s.Require().NoError(err)
	s.Equal(Attendance{Total: 1, Presentes: 1}, att)
}

func (s *RepositorySuite) TestSetUserActive() {
	ctx := context.Background()
	s.seedUser("a@example.com", "52998224725")

	found, err := s.repo.SetUserActive(ctx, "A@example.com ", false)
	s.Require().NoError(err)
	s.True(found)
	u, err := s.repo.FindUserByEmail(ctx, "a@example.com")
	s.Require().NoError(err)
	s.False(u.Ativo)

	found, err = s.repo.SetUserActive(ctx, "a@example.com", true)
	s.Require().NoError(err)
	s.True(found)
	u, err = s.repo.FindUserByEmail(ctx, "a@example.com")
	s.Require().NoError(err)
	s.True(u.Ativo)

	found, err = s.repo.SetUserActive(ctx, "ninguem@example.com", false)
	s.Require().NoError(err)
	s.False(found)
}

func (s *RepositorySuite) TestCloseDaysBefore() {
	ctx := context.Background()
	s.seedUser("a@example.com", "52998224725")
	next := s.day.AddDate(0, 0, 1)

	past, err := s.repo.InsertAppointment(ctx, NovoAgendamento{UsuarioEmail: "a@example.com", Servico: "CIN", Data: s.day, Horario: "08:00", Protocolo: "DDDDDDDD"})
	s.Require().NoError(err)
	present, err := s.repo.InsertAppointment(ctx, NovoAgendamento{UsuarioEmail: "a@example.com", Servico: "CIN", Data: s.day, Horario: "09:00", Protocolo: "EEEEEEEE"})
	s.Require().NoError(err)
	_, err = s.repo.UpdateAppointmentStatus(ctx, StatusUpdate{ID: present.ID, Status: StatusPresente})
	s.Require().NoError(err)
	open, err := s.repo.InsertAppointment(ctx, NovoAgendamento{UsuarioEmail: "a@example.com", Servico: "CIN", Data: next, Horario: "08:00", Protocolo: "FFFFFFFF"})
	s.Require().NoError(err)

	out, err := s.repo.CloseDaysBefore(ctx, next)
	s.Require().NoError(err)
	s.Equal(Fechamento{Faltas: 1, Atendidos: 1}, out)

	for id, status := range map[int64]string{past.ID: StatusFaltou, present.ID: StatusAtendido, open.ID: StatusAgendado} {
		got, err := s.repo.GetAppointment(ctx, id)
		s.Require().NoError(err)
		s.Equal(status, got.Status)
	}
}
