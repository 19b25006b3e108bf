package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agendeid/atendimento/internal/agenda"
	"github.com/agendeid/atendimento/internal/conversa"
	"github.com/agendeid/atendimento/internal/repo"
	"github.com/agendeid/atendimento/internal/util"
)

var (
	confirmWords = map[string]struct{}{"sim": {}, "s": {}, "confirmar": {}, "confirmo": {}}
	denyWords    = map[string]struct{}{"nao": {}, "n": {}}
)

func (e *Engine) startBooking(t *turn) Reply {
	t.state = conversa.NewState(conversa.AgendarServico)
	return prompt("Qual serviço você precisa? 1 CIN, 2 CRNM, 3 Renovação CIN, 4 Renovação CRNM.").with(agenda.Servicos)
}

func (e *Engine) agendarServico(_ context.Context, t *turn) (Reply, error) {
	servico, ok := agenda.ParseServico(t.text)
	if !ok {
		return invalid("Serviços disponíveis: CIN, CRNM, Renovação CIN, Renovação CRNM.").with(agenda.Servicos), nil
	}
	t.state.Set(conversa.KeyServico, servico)
	t.goTo(conversa.AgendarData)
	return prompt("Para qual data você gostaria de agendar? (DD/MM/AAAA)"), nil
}

func (e *Engine) agendarData(ctx context.Context, t *turn) (Reply, error) {
	day, reply, ok := e.futureDate(t.text)
	if !ok {
		return reply, nil
	}
	slots, err := e.agenda.AvailableSlots(ctx, day)
	if err != nil {
		return Reply{}, err
	}
	if len(slots) == 0 {
		return invalid(fmt.Sprintf("Não há horários disponíveis para %s. Tente outra data.", t.text)), nil
	}
	t.state.Set(conversa.KeyData, util.FormatDate(day))
	t.state.Horarios = slots
	t.goTo(conversa.AgendarHorario)
	return prompt(slotsText(t.state.Get(conversa.KeyData), slots)).with(slots), nil
}

func (e *Engine) agendarHorario(ctx context.Context, t *turn) (Reply, error) {
	day, err := util.ParseDate(t.state.Get(conversa.KeyData), e.agenda.Location())
	if err != nil {
		return Reply{}, fmt.Errorf("data no estado: %w", err)
	}
	horario, reply, ok, err := e.pickSlot(ctx, t, day)
	if err != nil || !ok {
		return reply, err
	}

	t.state.Set(conversa.KeyHorario, horario)
	t.goTo(conversa.AgendarConfirmacao)
	return prompt(fmt.Sprintf("Confirme seu agendamento: %s em %s às %s. Digite SIM para confirmar ou NÃO para cancelar.",
		t.state.Get(conversa.KeyServico), t.state.Get(conversa.KeyData), horario)), nil
}

func (e *Engine) agendarConfirmacao(ctx context.Context, t *turn) (Reply, error) {
	if _, ok := denyWords[t.norm]; ok {
		t.finish()
		return cancelled("Agendamento cancelado."), nil
	}
	if _, ok := confirmWords[t.norm]; !ok {
		return invalid("Digite SIM para confirmar ou NÃO para cancelar."), nil
	}

	day, err := util.ParseDate(t.state.Get(conversa.KeyData), e.agenda.Location())
	if err != nil {
		return Reply{}, fmt.Errorf("data no estado: %w", err)
	}
	ag, err := e.agenda.Reserve(ctx, agenda.ReserveInput{
		Email:   t.caller.Email,
		Servico: t.state.Get(conversa.KeyServico),
		Data:    day,
		Horario: t.state.Get(conversa.KeyHorario),
	})
	switch {
	case err == nil:
	case errors.Is(err, agenda.ErrConflict):
		return e.slotLost(ctx, t, day, conversa.AgendarHorario)
	case errors.Is(err, agenda.ErrPastDate):
		t.goTo(conversa.AgendarData)
		return invalid("A data escolhida não é mais futura. Informe outra data (DD/MM/AAAA)."), nil
	default:
		return Reply{}, err
	}

	t.finish()
	return done(fmt.Sprintf("Agendamento de %s para %s às %s confirmado! Protocolo: %s. ID: %d.",
		ag.Servico, util.FormatDate(ag.Data), ag.Horario, ag.Protocolo, ag.ID)).with(ag), nil
}

func (e *Engine) startCancel(ctx context.Context, t *turn) (Reply, error) {
	items, err := e.agenda.ListActiveByUser(ctx, t.caller.Email)
	if err != nil {
		return Reply{}, err
	}
	if len(items) == 0 {
		return info("Você não possui agendamentos ativos para cancelar."), nil
	}
	t.state = conversa.NewState(conversa.CancelarID)
	return prompt("Digite o ID do agendamento que deseja cancelar.").with(items), nil
}

func (e *Engine) cancelarID(ctx context.Context, t *turn) (Reply, error) {
	id, ok := parseID(t.text)
	if !ok {
		return invalid("Por favor, digite um ID de agendamento válido (apenas números)."), nil
	}
	ag, err := e.agenda.Cancel(ctx, id, t.caller.Email)
	switch {
	case err == nil:
	case errors.Is(err, agenda.ErrNotFound):
		t.finish()
		return notFound("Agendamento não encontrado ou você não tem permissão para cancelá-lo."), nil
	case errors.Is(err, agenda.ErrAlreadyCancelled):
		return invalid("Esse agendamento já está cancelado. Digite outro ID ou 'sair'."), nil
	case errors.Is(err, agenda.ErrInvalidTransition):
		return invalid("Esse agendamento já foi encerrado e não pode ser cancelado. Digite outro ID ou 'sair'."), nil
	default:
		return Reply{}, err
	}
	t.finish()
	return done("Agendamento cancelado com sucesso!").with(ag), nil
}

func (e *Engine) startReschedule(ctx context.Context, t *turn) (Reply, error) {
	items, err := e.agenda.ListActiveByUser(ctx, t.caller.Email)
	if err != nil {
		return Reply{}, err
	}
	if len(items) == 0 {
		return info("Você não possui agendamentos ativos para alterar."), nil
	}
	t.state = conversa.NewState(conversa.AlterarID)
	return prompt("Digite o ID do agendamento que deseja alterar.").with(items), nil
}

func (e *Engine) alterarID(ctx context.Context, t *turn) (Reply, error) {
	id, ok := parseID(t.text)
	if !ok {
		return invalid("Por favor, digite um ID de agendamento válido (apenas números)."), nil
	}
	ag, err := e.agenda.Owned(ctx, id, t.caller.Email)
	if errors.Is(err, agenda.ErrNotFound) {
		t.finish()
		return notFound("Agendamento não encontrado ou você não tem permissão para alterá-lo."), nil
	}
	if err != nil {
		return Reply{}, err
	}
	if ag.Status != repo.StatusAgendado && ag.Status != repo.StatusPresente {
		return invalid(fmt.Sprintf("Agendamento com status %s não pode ser alterado. Digite outro ID ou 'sair'.", ag.Status)), nil
	}

	t.state.Agendamento = &ag
	t.goTo(conversa.AlterarOpcao)
	return prompt(fmt.Sprintf("Agendamento: %s em %s às %s. O que deseja alterar? 1 Data, 2 Horário, 3 Cancelar alteração.",
		ag.Servico, util.FormatDate(ag.Data), ag.Horario)).with(ag), nil
}

func (e *Engine) alterarOpcao(ctx context.Context, t *turn) (Reply, error) {
	switch t.norm {
	case "1", "data":
		t.goTo(conversa.AlterarData)
		return prompt("Digite a nova data (DD/MM/AAAA)."), nil
	case "2", "horario":
		day := t.state.Agendamento.Data
		if !e.agenda.IsFuture(day) {
			return invalid("Só é possível trocar o horário de agendamentos futuros. Digite 1 para escolher outra data."), nil
		}
		return e.offerSlots(ctx, t, day)
	case "3", "cancelar":
		t.finish()
		return cancelled("Alteração cancelada."), nil
	}
	return invalid("Opção inválida. Digite 1, 2 ou 3."), nil
}

func (e *Engine) alterarData(ctx context.Context, t *turn) (Reply, error) {
	day, reply, ok := e.futureDate(t.text)
	if !ok {
		return reply, nil
	}
	return e.offerSlots(ctx, t, day)
}

func (e *Engine) offerSlots(ctx context.Context, t *turn, day time.Time) (Reply, error) {
	slots, err := e.agenda.AvailableSlots(ctx, day)
	if err != nil {
		return Reply{}, err
	}
	label := util.FormatDate(day)
	if len(slots) == 0 {
		t.goTo(conversa.AlterarData)
		return invalid(fmt.Sprintf("Não há horários disponíveis para %s. Digite outra data.", label)), nil
	}
	t.state.Set(conversa.KeyData, label)
	t.state.Horarios = slots
	t.goTo(conversa.AlterarHorario)
	return prompt(slotsText(label, slots)).with(slots), nil
}

func (e *Engine) alterarHorario(ctx context.Context, t *turn) (Reply, error) {
	day, err := util.ParseDate(t.state.Get(conversa.KeyData), e.agenda.Location())
	if err != nil {
		return Reply{}, fmt.Errorf("data no estado: %w", err)
	}
	horario, reply, ok, err := e.pickSlot(ctx, t, day)
	if err != nil || !ok {
		return reply, err
	}

	ag, err := e.agenda.Reschedule(ctx, agenda.RescheduleInput{
		ID:         t.state.Agendamento.ID,
		Data:       day,
		Horario:    horario,
		OwnerEmail: t.caller.Email,
	})
	switch {
	case err == nil:
	case errors.Is(err, agenda.ErrConflict):
		return e.slotLost(ctx, t, day, conversa.AlterarHorario)
	case errors.Is(err, agenda.ErrNotFound):
		t.finish()
		return notFound("Agendamento não encontrado."), nil
	case errors.Is(err, agenda.ErrInvalidTransition):
		t.finish()
		return invalid("Este agendamento não pode mais ser alterado."), nil
	case errors.Is(err, agenda.ErrPastDate):
		t.goTo(conversa.AlterarData)
		return invalid("A data escolhida não é mais futura. Digite outra data."), nil
	default:
		return Reply{}, err
	}

	t.finish()
	return done(fmt.Sprintf("Agendamento alterado com sucesso! Nova data: %s às %s.", util.FormatDate(ag.Data), ag.Horario)).with(ag), nil
}

// pickSlot valida o horário contra a disponibilidade atual, não só a lista mostrada antes.
func (e *Engine) pickSlot(ctx context.Context, t *turn, day time.Time) (string, Reply, bool, error) {
	horario, valid := agenda.ParseSlot(t.text)
	if !valid {
		return "", invalid("Horário inválido. Escolha um dos horários listados.").with(t.state.Horarios), false, nil
	}
	slots, err := e.agenda.AvailableSlots(ctx, day)
	if err != nil {
		return "", Reply{}, false, err
	}
	t.state.Horarios = slots
	if !contains(slots, horario) {
		if len(slots) == 0 {
			t.goTo(dateStepFor(t.state.Step))
			return "", conflict("Os horários desta data acabaram de ser preenchidos. Informe outra data."), false, nil
		}
		return "", conflict("Horário indisponível. " + slotsText(util.FormatDate(day), slots)).with(slots), false, nil
	}
	return horario, Reply{}, true, nil
}

// slotLost trata a corrida perdida na escrita: volta à escolha de horário com a lista atualizada.
func (e *Engine) slotLost(ctx context.Context, t *turn, day time.Time, step conversa.Step) (Reply, error) {
	slots, err := e.agenda.AvailableSlots(ctx, day)
	if err != nil {
		return Reply{}, err
	}
	if len(slots) == 0 {
		t.goTo(dateStepFor(step))
		return conflict("Esse horário acabou de ser reservado e não há outros nesta data. Informe outra data."), nil
	}
	t.state.Horarios = slots
	t.goTo(step)
	return conflict("Esse horário acabou de ser reservado por outra pessoa. " + slotsText(util.FormatDate(day), slots)).with(slots), nil
}

func (e *Engine) futureDate(text string) (time.Time, Reply, bool) {
	day, err := util.ParseDate(text, e.agenda.Location())
	if err != nil {
		return time.Time{}, invalid("Formato de data inválido. Por favor, use DD/MM/AAAA."), false
	}
	if !e.agenda.IsFuture(day) {
		return time.Time{}, invalid("A data deve ser futura. Digite outra data."), false
	}
	return day, Reply{}, true
}

func dateStepFor(step conversa.Step) conversa.Step {
	if step.Workflow() == conversa.AlterarHorario.Workflow() {
		return conversa.AlterarData
	}
	return conversa.AgendarData
}

func slotsText(day string, slots []string) string {
	return fmt.Sprintf("Horários disponíveis para %s: %s. Qual horário você escolhe?", day, strings.Join(slots, ", "))
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	return id, err == nil && id > 0
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
