package chatbot

import (
	"context"
	"fmt"

	"github.com/agendeid/atendimento/internal/conversa"
	"github.com/agendeid/atendimento/internal/intent"
	"github.com/agendeid/atendimento/internal/repo"
)

// idle trata mensagens fora de fluxo: saudação, comandos de funcionário e intenções.
func (e *Engine) idle(ctx context.Context, t *turn) (Reply, error) {
	if t.norm == "" {
		return prompt(msgMenu), nil
	}
	if intent.IsGreeting(t.text) {
		return e.greet(t), nil
	}

	if t.isStaff() {
		if reply, ok, err := e.staffCommand(ctx, t); ok || err != nil {
			return reply, err
		}
	}

	label := e.intents.Resolve(ctx, t.text)
	if label.IsStaffOnly() {
		if !t.isStaff() {
			return forbidden(msgStaffOnly), nil
		}
		return e.staffIntent(ctx, t, label)
	}
	if label.RequiresIdentity() && t.caller == nil {
		return forbidden(msgNeedLogin), nil
	}

	switch label {
	case intent.Saudacao:
		return e.greet(t), nil
	case intent.Cadastro:
		t.state = conversa.NewState(conversa.CadastroNome)
		return prompt("Vamos começar o seu cadastro. Qual é o seu nome completo?"), nil
	case intent.Login:
		t.state = conversa.NewState(conversa.LoginEmail)
		return prompt("Vamos iniciar seu login. Qual é o seu e-mail?"), nil
	case intent.Agendar:
		return e.startBooking(t), nil
	case intent.Cancelar:
		return e.startCancel(ctx, t)
	case intent.Alterar:
		return e.startReschedule(ctx, t)
	case intent.Consultar:
		return e.listMine(ctx, t)
	case intent.Documentos:
		return info(msgDocumentos), nil
	case intent.Atendente:
		return info(msgAtendente), nil
	case intent.Locais:
		return info(msgLocais), nil
	case intent.Logout:
		t.finish()
		r := done(msgLogout)
		r.Signals = Signals{Logout: true, Redirect: "/"}
		return r, nil
	}
	return Reply{Text: msgUnknown, Kind: KindUnknown}, nil
}

func (e *Engine) greet(t *turn) Reply {
	if name := firstName(t.caller); name != "" {
		return info(fmt.Sprintf("Olá, %s! Como posso ajudar? %s", name, msgMenu))
	}
	return info("Olá! Como posso ajudar? " + msgMenu)
}

func (e *Engine) listMine(ctx context.Context, t *turn) (Reply, error) {
	items, err := e.agenda.ListByUser(ctx, t.caller.Email)
	if err != nil {
		return Reply{}, fmt.Errorf("listar agendamentos: %w", err)
	}
	if len(items) == 0 {
		return info("Você não possui agendamentos. Deseja 'agendar' um serviço?").with([]repo.Agendamento{}), nil
	}
	return info(fmt.Sprintf("Você possui %d agendamento(s).", len(items))).with(items), nil
}
