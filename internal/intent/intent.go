package intent

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/agendeid/atendimento/internal/metrics"
)

// Label identifica uma intenção reconhecida.
type Label string

// Intenções gerais e de funcionário.
const (
	Saudacao          Label = "saudacao"
	Cadastro          Label = "cadastro"
	Login             Label = "login"
	Agendar           Label = "agendar"
	Alterar           Label = "alterar"
	Cancelar          Label = "cancelar"
	Consultar         Label = "consultar"
	Documentos        Label = "documentos"
	Atendente         Label = "atendente"
	Locais            Label = "locais"
	Logout            Label = "logout"
	AgendaFuncionario Label = "agenda_funcionario"
	ConfirmarPresenca Label = "confirmar_presenca"
	GerarRelatorio    Label = "gerar_relatorio"
	BuscarCliente     Label = "buscar_cliente"
	Desconhecido      Label = "desconhecido"
)

// aliases cobre as tags usadas pelo modelo treinado.
var aliases = map[string]Label{
	"cadastro_inicio":        Cadastro,
	"login_inicio":           Login,
	"iniciar_agendamento":    Agendar,
	"alterar_agendamento":    Alterar,
	"cancelar_agendamento":   Cancelar,
	"meus_agendamentos":      Consultar,
	"documentos_necessarios": Documentos,
	"falar_atendente":        Atendente,
	"locais_disponiveis":     Locais,
	"sair":                   Logout,
	"buscarCliente":          BuscarCliente,
}

var known = map[Label]struct{}{
	Saudacao: {}, Cadastro: {}, Login: {}, Agendar: {}, Alterar: {}, Cancelar: {}, Consultar: {},
	Documentos: {}, Atendente: {}, Locais: {}, Logout: {}, AgendaFuncionario: {},
	ConfirmarPresenca: {}, GerarRelatorio: {}, BuscarCliente: {}, Desconhecido: {},
}

// ParseLabel converte a tag externa em Label.
func ParseLabel(tag string) (Label, bool) {
	if l, ok := aliases[tag]; ok {
		return l, true
	}
	l := Label(tag)
	_, ok := known[l]
	return l, ok
}

// IsStaffOnly indica intenções restritas a funcionários.
func (l Label) IsStaffOnly() bool {
	switch l {
	case AgendaFuncionario, ConfirmarPresenca, GerarRelatorio, BuscarCliente:
		return true
	}
	return false
}

// RequiresIdentity indica intenções que exigem usuário autenticado.
func (l Label) RequiresIdentity() bool {
	switch l {
	case Agendar, Alterar, Cancelar, Consultar, Logout:
		return true
	}
	return l.IsStaffOnly()
}

// Prediction é a saída do classificador estatístico.
type Prediction struct {
	Label      Label
	Confidence float64
}

// Classifier é o contrato de execução do classificador: texto em, rótulo e confiança fora.
type Classifier interface {
	Classify(ctx context.Context, text string) (Prediction, error)
}

// Strategy tenta resolver uma intenção; ok=false passa a vez para a próxima.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, text string) (Label, bool)
}

// Chain aplica estratégias em ordem; a primeira que resolver vence.
type Chain struct {
	strategies []Strategy
	metrics    *metrics.Metrics
}

// NewChain monta a cadeia. m pode ser nil.
func NewChain(m *metrics.Metrics, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, metrics: m}
}

// Resolve devolve a intenção ou Desconhecido.
func (c *Chain) Resolve(ctx context.Context, text string) Label {
	for _, s := range c.strategies {
		if label, ok := s.Resolve(ctx, text); ok {
			c.metrics.IncClassification(s.Name())
			log.Debug().Str("estrategia", s.Name()).Str("intencao", string(label)).Msg("intenção resolvida")
			return label
		}
	}
	c.metrics.IncClassification("nenhuma")
	return Desconhecido
}

// DefaultThreshold é a confiança mínima (exclusiva) para aceitar o modelo.
const DefaultThreshold = 0.7

// ModelStrategy usa o classificador estatístico acima de um limiar.
type ModelStrategy struct {
	classifier Classifier
	threshold  float64
}

// NewModelStrategy cria a estratégia. threshold <= 0 usa DefaultThreshold.
func NewModelStrategy(c Classifier, threshold float64) *ModelStrategy {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &ModelStrategy{classifier: c, threshold: threshold}
}

// Name identifica a estratégia em métricas.
func (m *ModelStrategy) Name() string { return "modelo" }

// Resolve consulta o classificador; falhas são registradas e tratadas como "sem resposta".
func (m *ModelStrategy) Resolve(ctx context.Context, text string) (Label, bool) {
	if m.classifier == nil {
		return "", false
	}
	p, err := m.classifier.Classify(ctx, text)
	if err != nil {
		log.Warn().Err(err).Msg("classificador indisponível, usando palavras-chave")
		return "", false
	}
	if p.Label == "" || p.Label == Desconhecido || p.Confidence <= m.threshold {
		return "", false
	}
	return p.Label, true
}
