package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepository implementa o gateway em memória. Usado em testes e com USE_MEMORY_STORE.
type MemoryRepository struct {
	mu           sync.Mutex
	now          func() time.Time
	usuarios     []Usuario
	agendamentos []Agendamento
	nextUserID   int64
	nextAgID     int64
}

// NewMemoryRepository cria repositório vazio.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

// Ping sempre responde.
func (m *MemoryRepository) Ping(context.Context) error { return nil }

// FindUserByEmail busca usuário pelo e-mail.
func (m *MemoryRepository) FindUserByEmail(_ context.Context, email string) (Usuario, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.usuarios {
		if u.Email == email {
			return u, nil
		}
	}
	return Usuario{}, ErrNotFound
}

// FindUserByCPF busca usuário pelo CPF.
func (m *MemoryRepository) FindUserByCPF(_ context.Context, cpf string) (Usuario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.usuarios {
		if u.CPF == cpf {
			return u, nil
		}
	}
	return Usuario{}, ErrNotFound
}

// InsertUser cadastra usuário respeitando unicidade de CPF e e-mail.
func (m *MemoryRepository) InsertUser(_ context.Context, input NovoUsuario) (Usuario, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.usuarios {
		if u.CPF == input.CPF {
			return Usuario{}, ErrDuplicateCPF
		}
		if u.Email == email {
			return Usuario{}, ErrDuplicateEmail
		}
	}

	m.nextUserID++
	u := Usuario{
		ID:             m.nextUserID,
		Nome:           strings.TrimSpace(input.Nome),
		Sexo:           input.Sexo,
		Nacionalidade:  strings.TrimSpace(input.Nacionalidade),
		DataNascimento: DateOnly(input.DataNascimento),
		NomeMae:        strings.TrimSpace(input.NomeMae),
		CPF:            input.CPF,
		Email:          email,
		SenhaHash:      input.SenhaHash,
		Telefone:       input.Telefone,
		Perfil:         input.Perfil,
		Ativo:          true,
		CriadoEm:       m.now(),
	}
	m.usuarios = append(m.usuarios, u)
	return u, nil
}

// SetUserActive ativa ou desativa usuário; false quando o e-mail não existe.
func (m *MemoryRepository) SetUserActive(_ context.Context, email string, ativo bool) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.usuarios {
		if m.usuarios[i].Email == email {
			m.usuarios[i].Ativo = ativo
			return true, nil
		}
	}
	return false, nil
}

// InsertAppointment grava a reserva verificando o horário sob o mesmo lock.
func (m *MemoryRepository) InsertAppointment(_ context.Context, input NovoAgendamento) (Agendamento, error) {
	data := DateOnly(input.Data)
	email := strings.ToLower(input.UsuarioEmail)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasUserLocked(email) {
		return Agendamento{}, ErrNotFound
	}
	for _, a := range m.agendamentos {
		if a.Protocolo == input.Protocolo {
			return Agendamento{}, ErrDuplicateProtocol
		}
	}
	if m.slotTakenLocked(data, input.Horario, 0) {
		return Agendamento{}, ErrSlotConflict
	}

	m.nextAgID++
	ag := Agendamento{
		ID:           m.nextAgID,
		UsuarioEmail: email,
		Servico:      input.Servico,
		Data:         data,
		Horario:      input.Horario,
		Status:       StatusAgendado,
		Protocolo:    input.Protocolo,
		Observacoes:  input.Observacoes,
		CriadoEm:     m.now(),
	}
	m.agendamentos = append(m.agendamentos, ag)
	return ag, nil
}

// GetAppointment busca agendamento pelo ID.
func (m *MemoryRepository) GetAppointment(_ context.Context, id int64) (Agendamento, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(id); i >= 0 {
		return m.agendamentos[i], nil
	}
	return Agendamento{}, ErrNotFound
}

// UpdateAppointmentStatus altera status com filtros de dono e status anterior.
func (m *MemoryRepository) UpdateAppointmentStatus(_ context.Context, input StatusUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(input.ID)
	if i < 0 {
		return false, nil
	}
	ag := &m.agendamentos[i]
	if input.OwnerEmail != "" && ag.UsuarioEmail != strings.ToLower(input.OwnerEmail) {
		return false, nil
	}
	if len(input.From) > 0 && !contains(input.From, ag.Status) {
		return false, nil
	}
	if IsActiveStatus(input.Status) && !IsActiveStatus(ag.Status) && m.slotTakenLocked(ag.Data, ag.Horario, ag.ID) {
		return false, ErrSlotConflict
	}
	ag.Status = input.Status
	return true, nil
}

// UpdateAppointmentSchedule move o agendamento, verificando o novo horário sob o lock.
func (m *MemoryRepository) UpdateAppointmentSchedule(_ context.Context, input ScheduleUpdate) (bool, error) {
	data := DateOnly(input.Data)

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(input.ID)
	if i < 0 {
		return false, nil
	}
	ag := &m.agendamentos[i]
	if input.OwnerEmail != "" && ag.UsuarioEmail != strings.ToLower(input.OwnerEmail) {
		return false, nil
	}
	if len(input.From) > 0 && !contains(input.From, ag.Status) {
		return false, nil
	}
	if m.slotTakenLocked(data, input.Horario, ag.ID) {
		return false, ErrSlotConflict
	}
	ag.Data = data
	ag.Horario = input.Horario
	ag.Status = StatusAgendado
	return true, nil
}

// CloseDaysBefore fecha os dias anteriores a before.
func (m *MemoryRepository) CloseDaysBefore(_ context.Context, before time.Time) (Fechamento, error) {
	limit := DateOnly(before)

	m.mu.Lock()
	defer m.mu.Unlock()

	var out Fechamento
	for i := range m.agendamentos {
		ag := &m.agendamentos[i]
		if !ag.Data.Before(limit) {
			continue
		}
		switch ag.Status {
		case StatusAgendado:
			ag.Status = StatusFaltou
			out.Faltas++
		case StatusPresente:
			ag.Status = StatusAtendido
			out.Atendidos++
		}
	}
	return out, nil
}

// ListUserAppointments lista agendamentos do usuário por data e horário.
func (m *MemoryRepository) ListUserAppointments(_ context.Context, email string) ([]Agendamento, error) {
	email = strings.ToLower(email)
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []Agendamento
	for _, a := range m.agendamentos {
		if a.UsuarioEmail == email {
			items = append(items, a)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return lessAgendamento(items[i], items[j]) })
	return items, nil
}

// ListDayAgenda lista a agenda do dia com o nome do dono.
func (m *MemoryRepository) ListDayAgenda(ctx context.Context, day time.Time) ([]AgendaItem, error) {
	return m.ListAppointmentsBetween(ctx, day, day)
}

// ListAppointmentsBetween lista agendamentos em [from, to].
func (m *MemoryRepository) ListAppointmentsBetween(_ context.Context, from, to time.Time) ([]AgendaItem, error) {
	from, to = DateOnly(from), DateOnly(to)

	m.mu.Lock()
	defer m.mu.Unlock()

	var items []AgendaItem
	for _, a := range m.agendamentos {
		if a.Data.Before(from) || a.Data.After(to) {
			continue
		}
		item := AgendaItem{Agendamento: a}
		for _, u := range m.usuarios {
			if u.Email == a.UsuarioEmail {
				item.Nome = u.Nome
				break
			}
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool { return lessAgendamento(items[i].Agendamento, items[j].Agendamento) })
	return items, nil
}

// TakenSlots devolve horários ocupados por agendamentos ativos na data.
func (m *MemoryRepository) TakenSlots(_ context.Context, day time.Time) ([]string, error) {
	day = DateOnly(day)
	m.mu.Lock()
	defer m.mu.Unlock()

	var slots []string
	for _, a := range m.agendamentos {
		if a.Data.Equal(day) && IsActiveStatus(a.Status) {
			slots = append(slots, a.Horario)
		}
	}
	sort.Strings(slots)
	return slots, nil
}

// AggregateAttendance conta presenças e ausências a partir de since.
func (m *MemoryRepository) AggregateAttendance(_ context.Context, since time.Time) (Attendance, error) {
	since = DateOnly(since)
	m.mu.Lock()
	defer m.mu.Unlock()

	var out Attendance
	for _, a := range m.agendamentos {
		if a.Data.Before(since) {
			continue
		}
		out.Total++
		switch a.Status {
		case StatusPresente, StatusAtendido:
			out.Presentes++
		case StatusFaltou, StatusCancelado:
			out.Ausencias++
		}
	}
	return out, nil
}

// TopServices devolve o ranking de serviços a partir de since.
func (m *MemoryRepository) TopServices(_ context.Context, since time.Time, limit int) ([]ServiceCount, error) {
	since = DateOnly(since)
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	m.mu.Lock()
	counts := map[string]int{}
	for _, a := range m.agendamentos {
		if !a.Data.Before(since) {
			counts[a.Servico]++
		}
	}
	m.mu.Unlock()

	ranking := make([]ServiceCount, 0, len(counts))
	for servico, n := range counts {
		ranking = append(ranking, ServiceCount{Servico: servico, Quantidade: n})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Quantidade != ranking[j].Quantidade {
			return ranking[i].Quantidade > ranking[j].Quantidade
		}
		return ranking[i].Servico < ranking[j].Servico
	})
	if len(ranking) > limit {
		ranking = ranking[:limit]
	}
	return ranking, nil
}

func (m *MemoryRepository) hasUserLocked(email string) bool {
	for _, u := range m.usuarios {
		if u.Email == email {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) slotTakenLocked(data time.Time, horario string, ignoreID int64) bool {
	for _, a := range m.agendamentos {
		if a.ID != ignoreID && a.Data.Equal(data) && a.Horario == horario && IsActiveStatus(a.Status) {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) indexLocked(id int64) int {
	for i, a := range m.agendamentos {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func lessAgendamento(a, b Agendamento) bool {
	if !a.Data.Equal(b.Data) {
		return a.Data.Before(b.Data)
	}
	if a.Horario != b.Horario {
		return a.Horario < b.Horario
	}
	return a.ID < b.ID
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
