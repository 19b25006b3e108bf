package agenda

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agendeid/atendimento/internal/metrics"
	"github.com/agendeid/atendimento/internal/repo"
	"github.com/agendeid/atendimento/internal/util"
)

const maxProtocolAttempts = 5

// Repository é o subconjunto do gateway de persistência usado pela agenda.
type Repository interface {
	FindUserByEmail(ctx context.Context, email string) (repo.Usuario, error)
	FindUserByCPF(ctx context.Context, cpf string) (repo.Usuario, error)
	InsertAppointment(ctx context.Context, input repo.NovoAgendamento) (repo.Agendamento, error)
	GetAppointment(ctx context.Context, id int64) (repo.Agendamento, error)
	UpdateAppointmentStatus(ctx context.Context, input repo.StatusUpdate) (bool, error)
	UpdateAppointmentSchedule(ctx context.Context, input repo.ScheduleUpdate) (bool, error)
	ListUserAppointments(ctx context.Context, email string) ([]repo.Agendamento, error)
	ListDayAgenda(ctx context.Context, day time.Time) ([]repo.AgendaItem, error)
	TakenSlots(ctx context.Context, day time.Time) ([]string, error)
}

// Service aloca horários e conduz o ciclo de vida dos agendamentos.
type Service struct {
	repo        Repository
	metrics     *metrics.Metrics
	loc         *time.Location
	now         func() time.Time
	newProtocol func() (string, error)
}

// NewService cria o serviço. loc define o que é "hoje"; m pode ser nil.
func NewService(r Repository, loc *time.Location, m *metrics.Metrics) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: r, metrics: m, loc: loc, now: time.Now, newProtocol: util.NewProtocol}
}

// ReserveInput descreve uma reserva.
type ReserveInput struct {
	Email       string
	Servico     string
	Data        time.Time
	Horario     string
	Observacoes *string
}

// RescheduleInput descreve uma remarcação. OwnerEmail vazio dispensa a checagem de dono.
type RescheduleInput struct {
	ID         int64
	Data       time.Time
	Horario    string
	OwnerEmail string
}

// Presence é o resultado da confirmação de presença.
type Presence struct {
	Agendamento  repo.Agendamento `json:"agendamento"`
	JaConfirmado bool             `json:"ja_confirmado"`
}

// Location devolve o fuso usado para datas.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Today devolve a data corrente no fuso configurado.
func (s *Service) Today() time.Time {
	return util.Day(s.now(), s.loc)
}

// IsFuture indica se o dia é estritamente posterior a hoje.
func (s *Service) IsFuture(day time.Time) bool {
	return repo.DateOnly(day).After(repo.DateOnly(s.Today()))
}

// AvailableSlots devolve a grade fixa menos os horários ocupados por agendamentos ativos.
func (s *Service) AvailableSlots(ctx context.Context, day time.Time) ([]string, error) {
	taken, err := s.repo.TakenSlots(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("horários ocupados: %w", err)
	}

	occupied := make(map[string]struct{}, len(taken))
	for _, h := range taken {
		occupied[h] = struct{}{}
	}

	free := make([]string, 0, len(Horarios))
	for _, h := range Horarios {
		if _, ok := occupied[h]; !ok {
			free = append(free, h)
		}
	}
	return free, nil
}

// Reserve grava o agendamento. A exclusividade do horário é decidida pelo repositório
// no momento da escrita; uma corrida perdida devolve ErrConflict.
func (s *Service) Reserve(ctx context.Context, input ReserveInput) (repo.Agendamento, error) {
	if !IsValidServico(input.Servico) {
		return repo.Agendamento{}, ErrInvalidService
	}
	if !IsValidSlot(input.Horario) {
		return repo.Agendamento{}, ErrInvalidSlot
	}
	if !s.IsFuture(input.Data) {
		return repo.Agendamento{}, ErrPastDate
	}

	for attempt := 1; attempt <= maxProtocolAttempts; attempt++ {
		protocolo, err := s.newProtocol()
		if err != nil {
			s.metrics.IncReservation(metrics.ReservaErro)
			return repo.Agendamento{}, fmt.Errorf("gerar protocolo: %w", err)
		}

		ag, err := s.repo.InsertAppointment(ctx, repo.NovoAgendamento{
			UsuarioEmail: strings.ToLower(input.Email),
			Servico:      input.Servico,
			Data:         input.Data,
			Horario:      input.Horario,
			Protocolo:    protocolo,
			Observacoes:  input.Observacoes,
		})
		switch {
		case err == nil:
			s.metrics.IncReservation(metrics.ReservaOK)
			log.Info().Int64("agendamento_id", ag.ID).Str("data", util.FormatDate(ag.Data)).Str("horario", ag.Horario).Msg("agendamento criado")
			return ag, nil
		case errors.Is(err, repo.ErrDuplicateProtocol):
			log.Warn().Int("tentativa", attempt).Msg("colisão de protocolo, gerando outro")
			continue
		case errors.Is(err, repo.ErrSlotConflict):
			s.metrics.IncReservation(metrics.ReservaConflito)
			return repo.Agendamento{}, ErrConflict
		default:
			s.metrics.IncReservation(metrics.ReservaErro)
			return repo.Agendamento{}, fmt.Errorf("inserir agendamento: %w", err)
		}
	}

	s.metrics.IncReservation(metrics.ReservaProtocolo)
	return repo.Agendamento{}, ErrProtocolExhausted
}

// Reschedule move um agendamento Agendado ou Presente para outro horário e o volta a Agendado.
func (s *Service) Reschedule(ctx context.Context, input RescheduleInput) (repo.Agendamento, error) {
	if !IsValidSlot(input.Horario) {
		return repo.Agendamento{}, ErrInvalidSlot
	}
	if !s.IsFuture(input.Data) {
		return repo.Agendamento{}, ErrPastDate
	}

	current, err := s.Owned(ctx, input.ID, input.OwnerEmail)
	if err != nil {
		return repo.Agendamento{}, err
	}
	if !canReschedule(current.Status) {
		return repo.Agendamento{}, ErrInvalidTransition
	}

	ok, err := s.repo.UpdateAppointmentSchedule(ctx, repo.ScheduleUpdate{
		ID:         input.ID,
		Data:       input.Data,
		Horario:    input.Horario,
		OwnerEmail: input.OwnerEmail,
		From:       []string{repo.StatusAgendado, repo.StatusPresente},
	})
	if err != nil {
		if errors.Is(err, repo.ErrSlotConflict) {
			s.metrics.IncReschedule(metrics.ReservaConflito)
			return repo.Agendamento{}, ErrConflict
		}
		s.metrics.IncReschedule(metrics.ReservaErro)
		return repo.Agendamento{}, fmt.Errorf("remarcar: %w", err)
	}
	if !ok {
		return repo.Agendamento{}, ErrNotFound
	}

	s.metrics.IncReschedule(metrics.ReservaOK)
	return s.repo.GetAppointment(ctx, input.ID)
}

// Cancel cancela agendamento do dono informado.
func (s *Service) Cancel(ctx context.Context, id int64, ownerEmail string) (repo.Agendamento, error) {
	current, err := s.Owned(ctx, id, ownerEmail)
	if err != nil {
		return repo.Agendamento{}, err
	}
	if err := cancelError(current.Status); err != nil {
		return repo.Agendamento{}, err
	}

	ok, err := s.repo.UpdateAppointmentStatus(ctx, repo.StatusUpdate{
		ID:         id,
		Status:     repo.StatusCancelado,
		OwnerEmail: ownerEmail,
		From:       []string{repo.StatusAgendado, repo.StatusPresente},
	})
	if err != nil {
		return repo.Agendamento{}, fmt.Errorf("cancelar: %w", err)
	}
	if !ok {
		// status mudou entre a leitura e a escrita
		latest, err := s.repo.GetAppointment(ctx, id)
		if err != nil {
			return repo.Agendamento{}, ErrNotFound
		}
		if err := cancelError(latest.Status); err != nil {
			return repo.Agendamento{}, err
		}
		return repo.Agendamento{}, ErrInvalidTransition
	}

	current.Status = repo.StatusCancelado
	log.Info().Int64("agendamento_id", id).Msg("agendamento cancelado")
	return current, nil
}

// MarkPresent confirma presença no dia informado. O identificador pode ser o ID do
// agendamento, o e-mail ou o CPF do cliente. Repetir a confirmação não é erro.
func (s *Service) MarkPresent(ctx context.Context, identifier string, onDate time.Time) (Presence, error) {
	candidates, err := s.appointmentsOn(ctx, identifier, onDate)
	if err != nil {
		return Presence{}, err
	}

	var confirmed *repo.Agendamento
	for i := range candidates {
		ag := candidates[i]
		switch ag.Status {
		case repo.StatusAgendado:
			ok, err := s.repo.UpdateAppointmentStatus(ctx, repo.StatusUpdate{
				ID:     ag.ID,
				Status: repo.StatusPresente,
				From:   []string{repo.StatusAgendado},
			})
			if err != nil {
				return Presence{}, fmt.Errorf("confirmar presença: %w", err)
			}
			if ok {
				ag.Status = repo.StatusPresente
				log.Info().Int64("agendamento_id", ag.ID).Msg("presença confirmada")
				return Presence{Agendamento: ag}, nil
			}
			// confirmado por outra requisição
			ag.Status = repo.StatusPresente
			confirmed = &ag
		case repo.StatusPresente:
			if confirmed == nil {
				confirmed = &ag
			}
		}
	}

	if confirmed != nil {
		return Presence{Agendamento: *confirmed, JaConfirmado: true}, nil
	}
	return Presence{}, ErrNotFound
}

func (s *Service) appointmentsOn(ctx context.Context, identifier string, onDate time.Time) ([]repo.Agendamento, error) {
	identifier = strings.TrimSpace(identifier)
	day := repo.DateOnly(onDate)

	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil && !util.IsValidCPF(identifier) {
		ag, err := s.repo.GetAppointment(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		if !repo.DateOnly(ag.Data).Equal(day) {
			return nil, ErrNotFound
		}
		return []repo.Agendamento{ag}, nil
	}

	user, err := s.FindClient(ctx, identifier)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.ListUserAppointments(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	var out []repo.Agendamento
	for _, ag := range all {
		if repo.DateOnly(ag.Data).Equal(day) {
			out = append(out, ag)
		}
	}
	return out, nil
}

// FindClient localiza usuário por e-mail ou CPF.
func (s *Service) FindClient(ctx context.Context, identifier string) (repo.Usuario, error) {
	identifier = strings.TrimSpace(identifier)

	var (
		user repo.Usuario
		err  error
	)
	switch {
	case strings.Contains(identifier, "@"):
		user, err = s.repo.FindUserByEmail(ctx, identifier)
	case len(util.OnlyDigits(identifier)) == 11:
		user, err = s.repo.FindUserByCPF(ctx, util.OnlyDigits(identifier))
	default:
		return repo.Usuario{}, ErrNotFound
	}
	if errors.Is(err, repo.ErrNotFound) {
		return repo.Usuario{}, ErrNotFound
	}
	return user, err
}

// Owned devolve o agendamento se pertencer ao e-mail informado (vazio aceita qualquer dono).
func (s *Service) Owned(ctx context.Context, id int64, email string) (repo.Agendamento, error) {
	ag, err := s.repo.GetAppointment(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return repo.Agendamento{}, ErrNotFound
	}
	if err != nil {
		return repo.Agendamento{}, err
	}
	if email != "" && !strings.EqualFold(ag.UsuarioEmail, email) {
		return repo.Agendamento{}, ErrNotFound
	}
	return ag, nil
}

// ListByUser lista todos os agendamentos do usuário.
func (s *Service) ListByUser(ctx context.Context, email string) ([]repo.Agendamento, error) {
	return s.repo.ListUserAppointments(ctx, email)
}

// ListActiveByUser lista agendamentos que ainda podem ser alterados ou cancelados.
func (s *Service) ListActiveByUser(ctx context.Context, email string) ([]repo.Agendamento, error) {
	all, err := s.repo.ListUserAppointments(ctx, email)
	if err != nil {
		return nil, err
	}
	var out []repo.Agendamento
	for _, ag := range all {
		if canReschedule(ag.Status) {
			out = append(out, ag)
		}
	}
	return out, nil
}

// DayAgenda lista a agenda do dia com os dados do cliente.
func (s *Service) DayAgenda(ctx context.Context, day time.Time) ([]repo.AgendaItem, error) {
	return s.repo.ListDayAgenda(ctx, day)
}

func canReschedule(status string) bool {
	return status == repo.StatusAgendado || status == repo.StatusPresente
}

func cancelError(status string) error {
	switch status {
	case repo.StatusAgendado, repo.StatusPresente:
		return nil
	case repo.StatusCancelado:
		return ErrAlreadyCancelled
	default:
		return ErrInvalidTransition
	}
}
