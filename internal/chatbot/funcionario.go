package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agendeid/atendimento/internal/agenda"
	"github.com/agendeid/atendimento/internal/conversa"
	"github.com/agendeid/atendimento/internal/intent"
	"github.com/agendeid/atendimento/internal/relatorio"
	"github.com/agendeid/atendimento/internal/util"
)

const maxTentativasMenu = 2

// ClienteResumo é o retorno de "buscar cliente".
type ClienteResumo struct {
	Nome  string `json:"nome"`
	Email string `json:"email"`
	CPF   string `json:"cpf"`
}

// staffCommand reconhece os comandos explícitos de funcionário antes do classificador.
func (e *Engine) staffCommand(ctx context.Context, t *turn) (Reply, bool, error) {
	words := strings.Fields(t.norm)
	switch {
	case t.norm == "agenda" || t.norm == "ver agenda" || t.norm == "agenda do dia":
		r, err := e.staffIntent(ctx, t, intent.AgendaFuncionario)
		return r, true, err
	case len(words) > 0 && words[0] == "confirmar":
		r, err := e.staffIntent(ctx, t, intent.ConfirmarPresenca)
		return r, true, err
	case t.norm == "relatorio" || t.norm == "relatorios" || t.norm == "gerar relatorio":
		r, err := e.staffIntent(ctx, t, intent.GerarRelatorio)
		return r, true, err
	case len(words) > 1 && words[0] == "buscar" && words[1] == "cliente":
		r, err := e.staffIntent(ctx, t, intent.BuscarCliente)
		return r, true, err
	}
	return Reply{}, false, nil
}

func (e *Engine) staffIntent(ctx context.Context, t *turn, label intent.Label) (Reply, error) {
	switch label {
	case intent.AgendaFuncionario:
		return e.dayAgenda(ctx)
	case intent.ConfirmarPresenca:
		return e.confirmPresence(ctx, t)
	case intent.GerarRelatorio:
		t.state = conversa.NewState(conversa.RelatorioMenu)
		return prompt(msgRelatorioMenu), nil
	case intent.BuscarCliente:
		return e.findClient(ctx, t)
	}
	return Reply{Text: msgUnknown, Kind: KindUnknown}, nil
}

func (e *Engine) dayAgenda(ctx context.Context) (Reply, error) {
	today := e.agenda.Today()
	items, err := e.agenda.DayAgenda(ctx, today)
	if err != nil {
		return Reply{}, fmt.Errorf("agenda do dia: %w", err)
	}
	if len(items) == 0 {
		return info(fmt.Sprintf("Nenhum agendamento para hoje (%s).", util.FormatDate(today))).with(items), nil
	}
	return info(fmt.Sprintf("Agenda do dia %s: %d agendamento(s).", util.FormatDate(today), len(items))).with(items), nil
}

// confirmPresence aceita "confirmar <id|email|cpf>" e "confirmar presença <id|email|cpf>".
func (e *Engine) confirmPresence(ctx context.Context, t *turn) (Reply, error) {
	identifier := presenceIdentifier(t.text)
	if identifier == "" {
		return invalid("Formato: 'confirmar <id do agendamento, e-mail ou CPF do cliente>'."), nil
	}

	p, err := e.agenda.MarkPresent(ctx, identifier, e.agenda.Today())
	if errors.Is(err, agenda.ErrNotFound) {
		return notFound(fmt.Sprintf("Nenhum agendamento pendente de presença para '%s' hoje.", identifier)), nil
	}
	if err != nil {
		return Reply{}, fmt.Errorf("confirmar presença: %w", err)
	}
	if p.JaConfirmado {
		return done(fmt.Sprintf("Presença já estava confirmada (ID %d, %s).", p.Agendamento.ID, p.Agendamento.Horario)).with(p), nil
	}
	return done(fmt.Sprintf("Presença confirmada! ID %d, %s às %s.", p.Agendamento.ID, p.Agendamento.Servico, p.Agendamento.Horario)).with(p), nil
}

func presenceIdentifier(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	rest := fields[1:]
	if util.Normalize(rest[0]) == "presenca" {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return ""
	}
	return rest[0]
}

func (e *Engine) findClient(ctx context.Context, t *turn) (Reply, error) {
	fields := strings.Fields(t.text)
	if len(fields) < 3 {
		return invalid("Formato: 'buscar cliente <CPF ou e-mail>'."), nil
	}
	user, err := e.agenda.FindClient(ctx, fields[2])
	if errors.Is(err, agenda.ErrNotFound) {
		return notFound("Cliente não encontrado."), nil
	}
	if err != nil {
		return Reply{}, fmt.Errorf("buscar cliente: %w", err)
	}
	return info(fmt.Sprintf("Cliente encontrado: %s (%s).", user.Nome, user.Email)).
		with(ClienteResumo{Nome: user.Nome, Email: user.Email, CPF: user.CPF}), nil
}

func (e *Engine) relatorioMenu(ctx context.Context, t *turn) (Reply, error) {
	switch t.norm {
	case "exit", "0":
		t.finish()
		return cancelled(msgRelatorioSaida), nil
	case "1":
		t.finish()
		return e.dayAgenda(ctx)
	case "2":
		c, err := e.relatorios.Attendance(ctx, relatorio.JanelaPadrao)
		if err != nil {
			return Reply{}, fmt.Errorf("relatório de comparecimento: %w", err)
		}
		t.finish()
		if c.Total == 0 {
			return info("Nenhum dado de comparecimento nos últimos 30 dias.").with(c), nil
		}
		return info(fmt.Sprintf("Comparecimento (30 dias): %d agendamentos, %d presentes, %d ausências, taxa %.1f%%.",
			c.Total, c.Presentes, c.Ausencias, c.Taxa)).with(c), nil
	case "3":
		ranking, err := e.relatorios.TopServices(ctx, relatorio.JanelaPadrao, relatorio.LimiteServicos)
		if err != nil {
			return Reply{}, fmt.Errorf("relatório de serviços: %w", err)
		}
		t.finish()
		if len(ranking) == 0 {
			return info("Nenhum serviço agendado nos últimos 30 dias.").with(ranking), nil
		}
		return info(fmt.Sprintf("Serviço mais demandado nos últimos 30 dias: %s (%d).", ranking[0].Servico, ranking[0].Quantidade)).with(ranking), nil
	}

	t.state.Tentativas++
	if t.state.Tentativas > maxTentativasMenu {
		t.finish()
		return cancelled("Muitas tentativas inválidas. Operação cancelada."), nil
	}
	return invalid(msgRelatorioError), nil
}
