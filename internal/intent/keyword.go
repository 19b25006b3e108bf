package intent

import (
	"context"
	"strings"

	"github.com/agendeid/atendimento/internal/util"
)

type rule struct {
	label   Label
	phrases [][]string
}

func newRule(label Label, phrases ...string) rule {
	r := rule{label: label}
	for _, p := range phrases {
		r.phrases = append(r.phrases, strings.Fields(p))
	}
	return r
}

// Ordem importa: "remarcar consulta" deve cair em alterar antes de agendar.
var defaultRules = []rule{
	newRule(GerarRelatorio, "relatorio", "relatorios", "gerar relatorio"),
	newRule(AgendaFuncionario, "ver agenda", "agenda do dia"),
	newRule(ConfirmarPresenca, "confirmar presenca"),
	newRule(BuscarCliente, "buscar cliente"),
	newRule(Cadastro, "cadastro", "cadastrar", "registrar", "criar conta"),
	newRule(Login, "login", "entrar", "acessar"),
	newRule(Consultar, "meus agendamentos", "ver agendamentos", "consultar agendamentos", "minhas consultas"),
	newRule(Alterar, "alterar", "mudar", "remarcar", "reagendar"),
	newRule(Cancelar, "cancelar", "desmarcar"),
	newRule(Agendar, "agendar", "marcar", "horario", "consulta", "agendamento"),
	newRule(Documentos, "documentos", "documento", "papeis", "necessario"),
	newRule(Atendente, "atendente", "falar com alguem", "humano"),
	newRule(Locais, "local", "locais", "onde", "endereco"),
	newRule(Logout, "sair", "logout", "deslogar"),
}

var greetings = map[string]struct{}{
	"oi": {}, "ola": {}, "bom dia": {}, "boa tarde": {}, "boa noite": {},
	"e ai": {}, "opa": {}, "hello": {}, "hi": {}, "saudacoes": {}, "oi tudo bem": {},
}

// KeywordStrategy resolve intenções por palavras inteiras, sem acento e sem caixa.
type KeywordStrategy struct {
	rules []rule
}

// NewKeywordStrategy cria a estratégia com o mapa padrão.
func NewKeywordStrategy() *KeywordStrategy {
	return &KeywordStrategy{rules: defaultRules}
}

// Name identifica a estratégia em métricas.
func (k *KeywordStrategy) Name() string { return "palavra_chave" }

// Resolve procura saudações exatas e depois as frases de cada regra.
func (k *KeywordStrategy) Resolve(_ context.Context, text string) (Label, bool) {
	normalized := strings.Trim(util.Normalize(text), "!?.,")
	if normalized == "" {
		return "", false
	}
	if IsGreeting(normalized) {
		return Saudacao, true
	}

	words := strings.FieldsFunc(normalized, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?'
	})
	for _, r := range k.rules {
		for _, phrase := range r.phrases {
			if containsPhrase(words, phrase) {
				return r.label, true
			}
		}
	}
	return "", false
}

// IsGreeting indica se o texto inteiro é uma saudação.
func IsGreeting(text string) bool {
	_, ok := greetings[strings.Trim(util.Normalize(text), "!?.,")]
	return ok
}

func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return false
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, p := range phrase {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
