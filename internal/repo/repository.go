package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agendeid/atendimento/internal/db"
)

const uniqueViolation = "23505"

// Nomes das constraints definidas em internal/db/migrations.
const (
	constraintCPF       = "usuarios_cpf_key"
	constraintEmail     = "usuarios_email_key"
	constraintProtocolo = "agendamentos_protocolo_key"
	constraintSlot      = "agendamentos_slot_ativo_idx"
)

const usuarioColumns = `id, nome, sexo, nacionalidade, data_nascimento, nome_mae, cpf, email, senha_hash, telefone, perfil, ativo, criado_em`

const agendamentoColumns = `id, usuario_email, servico, data, horario, status, protocolo, observacoes, criado_em`

// Repository provê acesso às tabelas de usuários e agendamentos.
type Repository struct {
	pool *pgxpool.Pool
}

// New cria instância do repositório.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ping verifica a conexão com o banco.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// FindUserByEmail busca usuário pelo e-mail (case-insensitive).
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (Usuario, error) {
	query := `SELECT ` + usuarioColumns + ` FROM usuarios WHERE email = $1`
	return scanUsuario(r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

// SetUserActive ativa ou desativa a conta; false quando o e-mail não existe.
// Conta desativada não autentica, mas mantém o histórico de agendamentos.
func (r *Repository) SetUserActive(ctx context.Context, email string, ativo bool) (bool, error) {
	const query = `UPDATE usuarios SET ativo = $2 WHERE email = $1`
	tag, err := r.pool.Exec(ctx, query, strings.ToLower(strings.TrimSpace(email)), ativo)
	if err != nil {
		return false, fmt.Errorf("atualizar usuário: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FindUserByCPF busca usuário pelo CPF (apenas dígitos).
func (r *Repository) FindUserByCPF(ctx context.Context, cpf string) (Usuario, error) {
	query := `SELECT ` + usuarioColumns + ` FROM usuarios WHERE cpf = $1`
	return scanUsuario(r.pool.QueryRow(ctx, query, cpf))
}

// InsertUser cadastra usuário; devolve ErrDuplicateCPF ou ErrDuplicateEmail em conflito.
func (r *Repository) InsertUser(ctx context.Context, input NovoUsuario) (Usuario, error) {
	query := `
        INSERT INTO usuarios (nome, sexo, nacionalidade, data_nascimento, nome_mae, cpf, email, senha_hash, telefone, perfil)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING ` + usuarioColumns

	row := r.pool.QueryRow(ctx, query,
		strings.TrimSpace(input.Nome),
		input.Sexo,
		strings.TrimSpace(input.Nacionalidade),
		DateOnly(input.DataNascimento),
		strings.TrimSpace(input.NomeMae),
		input.CPF,
		strings.ToLower(strings.TrimSpace(input.Email)),
		input.SenhaHash,
		input.Telefone,
		input.Perfil,
	)

	user, err := scanUsuario(row)
	if err != nil {
		return Usuario{}, mapWriteError(err)
	}
	return user, nil
}

// InsertAppointment grava a reserva. A unicidade do horário é garantida pelo índice
// parcial agendamentos_slot_ativo_idx, então concorrência resulta em ErrSlotConflict.
func (r *Repository) InsertAppointment(ctx context.Context, input NovoAgendamento) (Agendamento, error) {
	query := `
        INSERT INTO agendamentos (usuario_email, servico, data, horario, status, protocolo, observacoes)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING ` + agendamentoColumns

	row := r.pool.QueryRow(ctx, query,
		strings.ToLower(input.UsuarioEmail),
		input.Servico,
		DateOnly(input.Data),
		input.Horario,
		StatusAgendado,
		input.Protocolo,
		input.Observacoes,
	)

	ag, err := scanAgendamento(row)
	if err != nil {
		return Agendamento{}, mapWriteError(err)
	}
	return ag, nil
}

// GetAppointment busca agendamento pelo ID.
func (r *Repository) GetAppointment(ctx context.Context, id int64) (Agendamento, error) {
	query := `SELECT ` + agendamentoColumns + ` FROM agendamentos WHERE id = $1`
	return scanAgendamento(r.pool.QueryRow(ctx, query, id))
}

// UpdateAppointmentStatus altera o status. OwnerEmail e From são filtros opcionais.
func (r *Repository) UpdateAppointmentStatus(ctx context.Context, input StatusUpdate) (bool, error) {
	const query = `
        UPDATE agendamentos
        SET status = $1
        WHERE id = $2
          AND ($3 = '' OR usuario_email = $3)
          AND (cardinality($4::text[]) = 0 OR status = ANY($4::text[]))
    `

	from := input.From
	if from == nil {
		from = []string{}
	}

	tag, err := r.pool.Exec(ctx, query, input.Status, input.ID, strings.ToLower(input.OwnerEmail), from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateAppointmentSchedule move o agendamento e reseta o status para Agendado.
// A linha é travada (FOR UPDATE) para conferir dono e status anterior antes da escrita.
func (r *Repository) UpdateAppointmentSchedule(ctx context.Context, input ScheduleUpdate) (bool, error) {
	var updated bool
	err := db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(ctx context.Context, tx pgx.Tx) error {
		var owner, status string
		err := tx.QueryRow(ctx, `SELECT usuario_email, status FROM agendamentos WHERE id = $1 FOR UPDATE`, input.ID).Scan(&owner, &status)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if input.OwnerEmail != "" && owner != strings.ToLower(input.OwnerEmail) {
			return nil
		}
		if len(input.From) > 0 && !contains(input.From, status) {
			return nil
		}

		const query = `UPDATE agendamentos SET data = $1, horario = $2, status = $3 WHERE id = $4`
		if _, err := tx.Exec(ctx, query, DateOnly(input.Data), input.Horario, StatusAgendado, input.ID); err != nil {
			return mapWriteError(err)
		}
		updated = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

// CloseDaysBefore fecha os dias anteriores a before: Agendado vira Faltou e Presente vira Atendido.
func (r *Repository) CloseDaysBefore(ctx context.Context, before time.Time) (Fechamento, error) {
	var out Fechamento
	err := db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(ctx context.Context, tx pgx.Tx) error {
		const query = `UPDATE agendamentos SET status = $1 WHERE status = $2 AND data < $3`
		tag, err := tx.Exec(ctx, query, StatusFaltou, StatusAgendado, DateOnly(before))
		if err != nil {
			return err
		}
		out.Faltas = tag.RowsAffected()

		tag, err = tx.Exec(ctx, query, StatusAtendido, StatusPresente, DateOnly(before))
		if err != nil {
			return err
		}
		out.Atendidos = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return Fechamento{}, fmt.Errorf("fechar dias: %w", err)
	}
	return out, nil
}

// ListUserAppointments lista agendamentos do usuário ordenados por data e horário.
func (r *Repository) ListUserAppointments(ctx context.Context, email string) ([]Agendamento, error) {
	query := `SELECT ` + agendamentoColumns + ` FROM agendamentos WHERE usuario_email = $1 ORDER BY data, horario`

	rows, err := r.pool.Query(ctx, query, strings.ToLower(email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Agendamento
	for rows.Next() {
		ag, err := scanAgendamento(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, ag)
	}
	return items, rows.Err()
}

// ListDayAgenda lista a agenda de um dia com nome e e-mail do dono.
func (r *Repository) ListDayAgenda(ctx context.Context, day time.Time) ([]AgendaItem, error) {
	return r.listAgenda(ctx, DateOnly(day), DateOnly(day))
}

// ListAppointmentsBetween lista agendamentos no intervalo fechado [from, to].
func (r *Repository) ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]AgendaItem, error) {
	return r.listAgenda(ctx, DateOnly(from), DateOnly(to))
}

func (r *Repository) listAgenda(ctx context.Context, from, to time.Time) ([]AgendaItem, error) {
	const query = `
        SELECT a.id, a.usuario_email, a.servico, a.data, a.horario, a.status, a.protocolo, a.observacoes, a.criado_em, u.nome
        FROM agendamentos a
        JOIN usuarios u ON u.email = a.usuario_email
        WHERE a.data BETWEEN $1 AND $2
        ORDER BY a.data, a.horario, a.id
    `

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []AgendaItem
	for rows.Next() {
		var it AgendaItem
		if err := rows.Scan(&it.ID, &it.UsuarioEmail, &it.Servico, &it.Data, &it.Horario, &it.Status, &it.Protocolo, &it.Observacoes, &it.CriadoEm, &it.Nome); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// TakenSlots devolve os horários ocupados por agendamentos ativos na data.
func (r *Repository) TakenSlots(ctx context.Context, day time.Time) ([]string, error) {
	const query = `
        SELECT horario FROM agendamentos
        WHERE data = $1 AND status = ANY($2::text[])
        ORDER BY horario
    `

	rows, err := r.pool.Query(ctx, query, DateOnly(day), ActiveStatuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		slots = append(slots, h)
	}
	return slots, rows.Err()
}

// AggregateAttendance conta presenças e ausências a partir de since.
func (r *Repository) AggregateAttendance(ctx context.Context, since time.Time) (Attendance, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status IN ('Presente', 'Atendido')),
               COUNT(*) FILTER (WHERE status IN ('Faltou', 'Cancelado'))
        FROM agendamentos
        WHERE data >= $1
    `

	var a Attendance
	if err := r.pool.QueryRow(ctx, query, DateOnly(since)).Scan(&a.Total, &a.Presentes, &a.Ausencias); err != nil {
		return Attendance{}, err
	}
	return a, nil
}

// TopServices devolve o ranking de serviços a partir de since.
func (r *Repository) TopServices(ctx context.Context, since time.Time, limit int) ([]ServiceCount, error) {
	const query = `
        SELECT servico, COUNT(*) AS quantidade
        FROM agendamentos
        WHERE data >= $1
        GROUP BY servico
        ORDER BY quantidade DESC, servico
        LIMIT $2
    `

	if limit <= 0 || limit > 50 {
		limit = 10
	}

	rows, err := r.pool.Query(ctx, query, DateOnly(since), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranking []ServiceCount
	for rows.Next() {
		var sc ServiceCount
		if err := rows.Scan(&sc.Servico, &sc.Quantidade); err != nil {
			return nil, err
		}
		ranking = append(ranking, sc)
	}
	return ranking, rows.Err()
}

// DateOnly reduz o instante ao dia civil em UTC, formato usado na coluna DATE.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func scanUsuario(row pgx.Row) (Usuario, error) {
	var u Usuario
	if err := row.Scan(&u.ID, &u.Nome, &u.Sexo, &u.Nacionalidade, &u.DataNascimento, &u.NomeMae, &u.CPF, &u.Email, &u.SenhaHash, &u.Telefone, &u.Perfil, &u.Ativo, &u.CriadoEm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}
	return u, nil
}

func scanAgendamento(row pgx.Row) (Agendamento, error) {
	var a Agendamento
	if err := row.Scan(&a.ID, &a.UsuarioEmail, &a.Servico, &a.Data, &a.Horario, &a.Status, &a.Protocolo, &a.Observacoes, &a.CriadoEm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agendamento{}, ErrNotFound
		}
		return Agendamento{}, err
	}
	return a, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case constraintCPF:
		return ErrDuplicateCPF
	case constraintEmail:
		return ErrDuplicateEmail
	case constraintProtocolo:
		return ErrDuplicateProtocol
	case constraintSlot:
		return ErrSlotConflict
	}
	return err
}
