package conversa

import (
	"context"
	"errors"
	"time"

	"github.com/agendeid/atendimento/internal/repo"
)

// Step identifica a etapa corrente de um fluxo. O valor zero (Idle) é "sem fluxo".
type Step string

// Etapas dos fluxos de conversa.
const (
	Idle Step = ""

	CadastroNome          Step = "cadastro_nome"
	CadastroPerfil        Step = "cadastro_perfil"
	CadastroSexo          Step = "cadastro_sexo"
	CadastroNacionalidade Step = "cadastro_nacionalidade"
	CadastroNascimento    Step = "cadastro_nascimento"
	CadastroNomeMae       Step = "cadastro_nome_mae"
	CadastroCPF           Step = "cadastro_cpf"
	CadastroEmail         Step = "cadastro_email"
	CadastroSenha         Step = "cadastro_senha"

	LoginEmail Step = "login_email"
	LoginSenha Step = "login_senha"

	AgendarServico     Step = "agendar_servico"
	AgendarData        Step = "agendar_data"
	AgendarHorario     Step = "agendar_horario"
	AgendarConfirmacao Step = "agendar_confirmacao"

	CancelarID Step = "cancelar_id"

	AlterarID      Step = "alterar_id"
	AlterarOpcao   Step = "alterar_opcao"
	AlterarData    Step = "alterar_data"
	AlterarHorario Step = "alterar_horario"

	RelatorioMenu Step = "relatorio_menu"
)

var workflows = map[Step]string{
	CadastroNome: "cadastro", CadastroPerfil: "cadastro", CadastroSexo: "cadastro",
	CadastroNacionalidade: "cadastro", CadastroNascimento: "cadastro", CadastroNomeMae: "cadastro",
	CadastroCPF: "cadastro", CadastroEmail: "cadastro", CadastroSenha: "cadastro",
	LoginEmail: "login", LoginSenha: "login",
	AgendarServico: "agendamento", AgendarData: "agendamento", AgendarHorario: "agendamento", AgendarConfirmacao: "agendamento",
	CancelarID: "cancelamento",
	AlterarID: "alteracao", AlterarOpcao: "alteracao", AlterarData: "alteracao", AlterarHorario: "alteracao",
	RelatorioMenu: "relatorio",
}

// Valid indica se a etapa pertence à enumeração.
func (s Step) Valid() bool {
	if s == Idle {
		return true
	}
	_, ok := workflows[s]
	return ok
}

// Workflow devolve o nome do fluxo ao qual a etapa pertence ("" para Idle).
func (s Step) Workflow() string {
	return workflows[s]
}

// Chaves usadas em State.Data.
const (
	KeyNome          = "nome"
	KeyPerfil        = "perfil"
	KeySexo          = "sexo"
	KeyNacionalidade = "nacionalidade"
	KeyNascimento    = "data_nascimento"
	KeyNomeMae       = "nome_mae"
	KeyCPF           = "cpf"
	KeyEmail         = "email"
	KeyServico       = "servico"
	KeyData          = "data"
	KeyHorario       = "horario"
)

// State é a memória de trabalho de uma conversa.
type State struct {
	Step         Step              `json:"etapa"`
	Data         map[string]string `json:"dados,omitempty"`
	Agendamento  *repo.Agendamento `json:"agendamento,omitempty"`
	Horarios     []string          `json:"horarios,omitempty"`
	Tentativas   int               `json:"tentativas,omitempty"`
	AtualizadoEm time.Time         `json:"atualizado_em"`
}

// NewState inicia um fluxo na etapa informada.
func NewState(step Step) State {
	return State{Step: step, Data: map[string]string{}}
}

// Set grava um campo coletado.
func (s *State) Set(key, value string) {
	if s.Data == nil {
		s.Data = map[string]string{}
	}
	s.Data[key] = value
}

// Get lê um campo coletado.
func (s State) Get(key string) string {
	return s.Data[key]
}

// Clone copia o estado sem compartilhar mapas ou slices.
func (s State) Clone() State {
	out := s
	if s.Data != nil {
		out.Data = make(map[string]string, len(s.Data))
		for k, v := range s.Data {
			out.Data[k] = v
		}
	}
	if s.Horarios != nil {
		out.Horarios = append([]string(nil), s.Horarios...)
	}
	if s.Agendamento != nil {
		ag := *s.Agendamento
		out.Agendamento = &ag
	}
	return out
}

// ErrInvalidState indica registro corrompido ou com etapa desconhecida.
var ErrInvalidState = errors.New("estado de conversa inválido")

// Store guarda o estado por chave de conversa. Implementações são seguras para uso concorrente.
type Store interface {
	// Get devolve o estado; ok=false quando não há fluxo em andamento.
	Get(ctx context.Context, key string) (State, bool, error)
	Put(ctx context.Context, key string, state State) error
	Delete(ctx context.Context, key string) error
}
