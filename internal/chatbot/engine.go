package chatbot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/agendeid/atendimento/internal/agenda"
	"github.com/agendeid/atendimento/internal/conversa"
	"github.com/agendeid/atendimento/internal/intent"
	"github.com/agendeid/atendimento/internal/metrics"
	"github.com/agendeid/atendimento/internal/relatorio"
	"github.com/agendeid/atendimento/internal/repo"
	"github.com/agendeid/atendimento/internal/service"
	"github.com/agendeid/atendimento/internal/util"
)

// Accounts cobre cadastro e autenticação.
type Accounts interface {
	Authenticate(ctx context.Context, email, password string) (repo.Usuario, error)
	Register(ctx context.Context, input service.Registration) (repo.Usuario, error)
}

// Users resolve a identidade de quem fala e checa duplicidades durante o cadastro.
type Users interface {
	FindUserByEmail(ctx context.Context, email string) (repo.Usuario, error)
	FindUserByCPF(ctx context.Context, cpf string) (repo.Usuario, error)
}

// Deps reúne os colaboradores do motor.
type Deps struct {
	Store      conversa.Store
	Agenda     *agenda.Service
	Relatorios *relatorio.Service
	Accounts   Accounts
	Users      Users
	Intents    *intent.Chain
	Metrics    *metrics.Metrics

	// PermitirCadastroFuncionario libera o perfil funcionário no cadastro pelo chat.
	PermitirCadastroFuncionario bool
}

type stepHandler func(ctx context.Context, t *turn) (Reply, error)

// Engine conduz a conversa: lê o estado da chave, aplica a etapa corrente e grava o próximo estado.
type Engine struct {
	store      conversa.Store
	agenda     *agenda.Service
	relatorios *relatorio.Service
	accounts   Accounts
	users      Users
	intents    *intent.Chain
	metrics    *metrics.Metrics
	staffSelf  bool
	steps      map[conversa.Step]stepHandler
	logger     zerolog.Logger
}

// New cria o motor. Sem Intents, usa apenas palavras-chave.
func New(d Deps) *Engine {
	chain := d.Intents
	if chain == nil {
		chain = intent.NewChain(d.Metrics, intent.NewKeywordStrategy())
	}
	e := &Engine{
		store:      d.Store,
		agenda:     d.Agenda,
		relatorios: d.Relatorios,
		accounts:   d.Accounts,
		users:      d.Users,
		intents:    chain,
		metrics:    d.Metrics,
		staffSelf:  d.PermitirCadastroFuncionario,
		logger:     log.With().Str("component", "chatbot").Logger(),
	}
	e.steps = map[conversa.Step]stepHandler{
		conversa.CadastroNome:          e.cadastroNome,
		conversa.CadastroPerfil:        e.cadastroPerfil,
		conversa.CadastroSexo:          e.cadastroSexo,
		conversa.CadastroNacionalidade: e.cadastroNacionalidade,
		conversa.CadastroNascimento:    e.cadastroNascimento,
		conversa.CadastroNomeMae:       e.cadastroNomeMae,
		conversa.CadastroCPF:           e.cadastroCPF,
		conversa.CadastroEmail:         e.cadastroEmail,
		conversa.CadastroSenha:         e.cadastroSenha,
		conversa.LoginEmail:            e.loginEmail,
		conversa.LoginSenha:            e.loginSenha,
		conversa.AgendarServico:        e.agendarServico,
		conversa.AgendarData:           e.agendarData,
		conversa.AgendarHorario:        e.agendarHorario,
		conversa.AgendarConfirmacao:    e.agendarConfirmacao,
		conversa.CancelarID:            e.cancelarID,
		conversa.AlterarID:             e.alterarID,
		conversa.AlterarOpcao:          e.alterarOpcao,
		conversa.AlterarData:           e.alterarData,
		conversa.AlterarHorario:        e.alterarHorario,
		conversa.RelatorioMenu:         e.relatorioMenu,
	}
	return e
}

// turn é o contexto de um único turno. Handlers alteram state; Idle encerra o fluxo.
type turn struct {
	key    string
	text   string
	norm   string
	caller *repo.Usuario
	state  conversa.State
}

func (t *turn) goTo(step conversa.Step) {
	t.state.Step = step
}

func (t *turn) finish() {
	t.state = conversa.State{}
}

func (t *turn) isStaff() bool {
	return t.caller != nil && t.caller.IsFuncionario()
}

var abortWords = map[string]struct{}{"sair": {}, "parar": {}, "menu": {}}

// HandleTurn processa uma mensagem da conversa identificada por key (e-mail autenticado
// ou chave anônima). Falhas internas e panics são contidos: o estado da chave é
// descartado e a resposta é um pedido de desculpas. O erro só é devolvido quando ctx
// foi cancelado.
func (e *Engine) HandleTurn(ctx context.Context, key, rawText string) (reply Reply, err error) {
	start := time.Now()
	logger := e.logger.With().Str("conversa", key).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("panic no turno")
			e.discard(ctx, key)
			reply, err = Reply{Text: msgApology, Kind: KindError}, nil
		}
		e.metrics.ObserveTurn(string(reply.Kind), start)
	}()

	reply, err = e.handle(ctx, key, rawText)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Reply{Text: msgApology, Kind: KindError}, ctxErr
		}
		logger.Error().Err(err).Msg("falha ao processar turno")
		e.discard(ctx, key)
		return Reply{Text: msgApology, Kind: KindError}, nil
	}
	return reply, nil
}

func (e *Engine) handle(ctx context.Context, key, rawText string) (Reply, error) {
	caller, err := e.resolveCaller(ctx, key)
	if err != nil {
		return Reply{}, err
	}

	state, active, err := e.store.Get(ctx, key)
	if errors.Is(err, conversa.ErrInvalidState) {
		e.logger.Warn().Str("conversa", key).Msg("estado corrompido descartado")
		state, active = conversa.State{}, true
	} else if err != nil {
		return Reply{}, fmt.Errorf("ler estado: %w", err)
	}

	text := strings.TrimSpace(rawText)
	t := &turn{key: key, text: text, norm: util.Normalize(text), caller: caller, state: state}

	var reply Reply
	handler, inFlow := e.steps[state.Step]
	switch {
	case inFlow && isAbort(t.norm):
		t.finish()
		reply = cancelled(msgAborted)
	case inFlow && !allowed(state.Step, t):
		t.finish()
		reply = forbidden(msgNeedLogin)
	case inFlow:
		reply, err = handler(ctx, t)
	default:
		reply, err = e.idle(ctx, t)
	}
	if err != nil {
		return Reply{}, err
	}

	if err := e.persist(ctx, t, active); err != nil {
		return Reply{}, err
	}
	reply.Step = t.state.Step
	return reply, nil
}

func (e *Engine) persist(ctx context.Context, t *turn, existed bool) error {
	if t.state.Step == conversa.Idle {
		if !existed {
			return nil
		}
		if err := e.store.Delete(ctx, t.key); err != nil {
			return fmt.Errorf("limpar estado: %w", err)
		}
		return nil
	}
	t.state.AtualizadoEm = time.Now().UTC()
	if err := e.store.Put(ctx, t.key, t.state); err != nil {
		return fmt.Errorf("gravar estado: %w", err)
	}
	return nil
}

// EndConversation descarta qualquer fluxo em andamento da chave.
func (e *Engine) EndConversation(ctx context.Context, key string) error {
	return e.store.Delete(ctx, key)
}

func (e *Engine) discard(ctx context.Context, key string) {
	if err := e.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		e.logger.Error().Err(err).Str("conversa", key).Msg("falha ao descartar estado")
	}
}

// resolveCaller devolve o usuário ativo dono da chave, ou nil para conversas anônimas.
func (e *Engine) resolveCaller(ctx context.Context, key string) (*repo.Usuario, error) {
	if key == "" || util.IsAnonymousKey(key) || !strings.Contains(key, "@") {
		return nil, nil
	}
	user, err := e.users.FindUserByEmail(ctx, key)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("identificar usuário: %w", err)
	}
	if !user.Ativo {
		return nil, nil
	}
	return &user, nil
}

// allowed barra fluxos cujo dono deixou de ser identificável (logout ou conta desativada no meio do fluxo).
func allowed(step conversa.Step, t *turn) bool {
	switch step.Workflow() {
	case "cadastro", "login":
		return true
	case "relatorio":
		return t.isStaff()
	}
	return t.caller != nil
}

func isAbort(norm string) bool {
	_, ok := abortWords[strings.Trim(norm, "!.")]
	return ok
}

func firstName(u *repo.Usuario) string {
	if u == nil {
		return ""
	}
	if fields := strings.Fields(u.Nome); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
