package repo

import (
	"time"
)

// Perfis de usuário.
const (
	PerfilCliente     = "cliente"
	PerfilFuncionario = "funcionario"
)

// Status do ciclo de vida do agendamento.
const (
	StatusAgendado  = "Agendado"
	StatusPresente  = "Presente"
	StatusAtendido  = "Atendido"
	StatusCancelado = "Cancelado"
	StatusFaltou    = "Faltou"
)

// ActiveStatuses ocupam o horário: no máximo um por (data, horario).
var ActiveStatuses = []string{StatusAgendado, StatusPresente, StatusAtendido}

// IsActiveStatus indica se o status ocupa o horário.
func IsActiveStatus(status string) bool {
	for _, s := range ActiveStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Usuario representa cidadão ou funcionário cadastrado.
type Usuario struct {
	ID             int64     `json:"id"`
	Nome           string    `json:"nome"`
	Sexo           string    `json:"sexo"`
	Nacionalidade  string    `json:"nacionalidade"`
	DataNascimento time.Time `json:"data_nascimento"`
	NomeMae        string    `json:"nome_mae"`
	CPF            string    `json:"cpf"`
	Email          string    `json:"email"`
	SenhaHash      string    `json:"-"`
	Telefone       *string   `json:"telefone,omitempty"`
	Perfil         string    `json:"perfil"`
	Ativo          bool      `json:"ativo"`
	CriadoEm       time.Time `json:"criado_em"`
}

// IsFuncionario indica perfil de staff.
func (u Usuario) IsFuncionario() bool {
	return u.Perfil == PerfilFuncionario
}

// NovoUsuario encapsula campos de cadastro (senha já em hash).
type NovoUsuario struct {
	Nome           string
	Sexo           string
	Nacionalidade  string
	DataNascimento time.Time
	NomeMae        string
	CPF            string
	Email          string
	SenhaHash      string
	Telefone       *string
	Perfil         string
}

// Agendamento representa uma solicitação de serviço em um horário.
type Agendamento struct {
	ID           int64     `json:"id"`
	UsuarioEmail string    `json:"usuario_email"`
	Servico      string    `json:"servico"`
	Data         time.Time `json:"data"`
	Horario      string    `json:"horario"`
	Status       string    `json:"status"`
	Protocolo    string    `json:"protocolo"`
	Observacoes  *string   `json:"observacoes,omitempty"`
	CriadoEm     time.Time `json:"criado_em"`
}

// NovoAgendamento encapsula campos para reserva.
type NovoAgendamento struct {
	UsuarioEmail string
	Servico      string
	Data         time.Time
	Horario      string
	Protocolo    string
	Observacoes  *string
}

// StatusUpdate altera status com verificação opcional de dono e status anterior.
type StatusUpdate struct {
	ID         int64
	Status     string
	OwnerEmail string
	From       []string
}

// ScheduleUpdate move o agendamento para nova data/horário e volta a Agendado.
type ScheduleUpdate struct {
	ID         int64
	Data       time.Time
	Horario    string
	OwnerEmail string
	From       []string
}

// AgendaItem é uma linha da agenda com dados do dono.
type AgendaItem struct {
	Agendamento
	Nome string `json:"nome"`
}

// Attendance agrega comparecimento em uma janela.
type Attendance struct {
	Total     int `json:"total"`
	Presentes int `json:"presentes"`
	Ausencias int `json:"ausencias"`
}

// ServiceCount é uma linha do ranking de serviços.
type ServiceCount struct {
	Servico    string `json:"servico"`
	Quantidade int    `json:"quantidade"`
}

// Fechamento conta as transições aplicadas no fechamento de dias passados.
type Fechamento struct {
	Faltas    int64 `json:"faltas"`
	Atendidos int64 `json:"atendidos"`
}
