package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agendeid/atendimento/internal/conversa"
	"github.com/agendeid/atendimento/internal/repo"
	"github.com/agendeid/atendimento/internal/service"
	"github.com/agendeid/atendimento/internal/util"
)

var sexos = map[string]string{
	"m": "masculino", "masculino": "masculino",
	"f": "feminino", "feminino": "feminino",
	"o": "outro", "outro": "outro",
}

func (e *Engine) cadastroNome(_ context.Context, t *turn) (Reply, error) {
	if !util.RequireString(t.text) {
		return invalid("Por favor, informe seu nome completo."), nil
	}
	t.state.Set(conversa.KeyNome, t.text)
	t.goTo(conversa.CadastroPerfil)
	return prompt("Você é cliente ou funcionário? Digite 'cliente' ou 'funcionario'."), nil
}

func (e *Engine) cadastroPerfil(_ context.Context, t *turn) (Reply, error) {
	switch t.norm {
	case repo.PerfilCliente:
	case repo.PerfilFuncionario:
		if !e.staffSelf {
			return invalid("Cadastro de funcionário não está disponível pelo chat. Digite 'cliente'."), nil
		}
	default:
		return invalid("Por favor, digite 'cliente' ou 'funcionario'."), nil
	}
	t.state.Set(conversa.KeyPerfil, t.norm)
	t.goTo(conversa.CadastroSexo)
	return prompt("Qual é o seu sexo? (masculino/feminino/outro)"), nil
}

func (e *Engine) cadastroSexo(_ context.Context, t *turn) (Reply, error) {
	sexo, ok := sexos[t.norm]
	if !ok {
		return invalid("Por favor, digite 'masculino', 'feminino' ou 'outro'."), nil
	}
	t.state.Set(conversa.KeySexo, sexo)
	t.goTo(conversa.CadastroNacionalidade)
	return prompt("Qual é a sua nacionalidade?"), nil
}

func (e *Engine) cadastroNacionalidade(_ context.Context, t *turn) (Reply, error) {
	if !util.RequireString(t.text) {
		return invalid("Por favor, informe sua nacionalidade."), nil
	}
	t.state.Set(conversa.KeyNacionalidade, t.text)
	t.goTo(conversa.CadastroNascimento)
	return prompt("Qual a sua data de nascimento? (DD/MM/AAAA)"), nil
}

func (e *Engine) cadastroNascimento(_ context.Context, t *turn) (Reply, error) {
	birth, err := util.ParseDate(t.text, e.agenda.Location())
	if err != nil {
		return invalid("Formato de data inválido. Por favor, use DD/MM/AAAA."), nil
	}
	if birth.After(e.agenda.Today()) {
		return invalid("A data de nascimento não pode estar no futuro."), nil
	}
	t.state.Set(conversa.KeyNascimento, t.text)
	t.goTo(conversa.CadastroNomeMae)
	return prompt("Qual o nome completo da sua mãe?"), nil
}

func (e *Engine) cadastroNomeMae(_ context.Context, t *turn) (Reply, error) {
	if !util.RequireString(t.text) {
		return invalid("Por favor, informe o nome completo da sua mãe."), nil
	}
	t.state.Set(conversa.KeyNomeMae, t.text)
	t.goTo(conversa.CadastroCPF)
	return prompt("Agora, digite seu CPF (apenas números)."), nil
}

func (e *Engine) cadastroCPF(ctx context.Context, t *turn) (Reply, error) {
	cpf := util.OnlyDigits(t.text)
	if !util.IsValidCPF(cpf) {
		return invalid("CPF inválido. Por favor, digite os 11 números."), nil
	}
	_, err := e.users.FindUserByCPF(ctx, cpf)
	switch {
	case err == nil:
		return conflict("Este CPF já está cadastrado. Por favor, use outro."), nil
	case !errors.Is(err, repo.ErrNotFound):
		return Reply{}, fmt.Errorf("consultar cpf: %w", err)
	}
	t.state.Set(conversa.KeyCPF, cpf)
	t.goTo(conversa.CadastroEmail)
	return prompt("Qual o seu melhor e-mail?"), nil
}

func (e *Engine) cadastroEmail(ctx context.Context, t *turn) (Reply, error) {
	email := normalizeEmail(t.text)
	if !util.IsValidEmail(email) {
		return invalid("E-mail inválido. Por favor, digite um e-mail válido."), nil
	}
	_, err := e.users.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		return conflict("Este e-mail já está cadastrado. Por favor, use outro."), nil
	case !errors.Is(err, repo.ErrNotFound):
		return Reply{}, fmt.Errorf("consultar e-mail: %w", err)
	}
	t.state.Set(conversa.KeyEmail, email)
	t.goTo(conversa.CadastroSenha)
	return prompt("Crie uma senha para sua conta (mínimo 6 caracteres)."), nil
}

// cadastroSenha fecha o cadastro. A senha nunca é guardada no estado.
func (e *Engine) cadastroSenha(ctx context.Context, t *turn) (Reply, error) {
	if !util.IsValidPassword(t.text) {
		return invalid("Senha muito curta. Digite pelo menos 6 caracteres."), nil
	}

	birth, err := util.ParseDate(t.state.Get(conversa.KeyNascimento), e.agenda.Location())
	if err != nil {
		t.finish()
		return invalid("Dados incompletos. Por favor, comece o cadastro novamente."), nil
	}

	_, err = e.accounts.Register(ctx, service.Registration{
		Nome:           t.state.Get(conversa.KeyNome),
		Perfil:         t.state.Get(conversa.KeyPerfil),
		Sexo:           t.state.Get(conversa.KeySexo),
		Nacionalidade:  t.state.Get(conversa.KeyNacionalidade),
		DataNascimento: birth,
		NomeMae:        t.state.Get(conversa.KeyNomeMae),
		CPF:            t.state.Get(conversa.KeyCPF),
		Email:          t.state.Get(conversa.KeyEmail),
		Senha:          t.text,
	})
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrDuplicateEmail):
		t.goTo(conversa.CadastroEmail)
		return conflict("Este e-mail acabou de ser cadastrado por outra pessoa. Informe outro e-mail."), nil
	case errors.Is(err, repo.ErrDuplicateCPF):
		t.goTo(conversa.CadastroCPF)
		return conflict("Este CPF acabou de ser cadastrado. Verifique e digite novamente."), nil
	case errors.Is(err, service.ErrUnderage):
		t.finish()
		return invalid(fmt.Sprintf("É necessário ter pelo menos %d anos para se cadastrar.", service.IdadeMinima)), nil
	case errors.Is(err, service.ErrInvalidRegistration):
		t.finish()
		return invalid("Dados incompletos. Por favor, comece o cadastro novamente."), nil
	default:
		return Reply{}, fmt.Errorf("cadastrar usuário: %w", err)
	}

	t.finish()
	r := done("Cadastro concluído com sucesso! Faça login para continuar.")
	r.Signals = Signals{Registered: true, Redirect: "/"}
	return r, nil
}

func (e *Engine) loginEmail(_ context.Context, t *turn) (Reply, error) {
	email := normalizeEmail(t.text)
	if !util.IsValidEmail(email) {
		return invalid("E-mail inválido. Por favor, digite um e-mail válido."), nil
	}
	t.state.Set(conversa.KeyEmail, email)
	t.goTo(conversa.LoginSenha)
	return prompt("Qual a sua senha?"), nil
}

func (e *Engine) loginSenha(ctx context.Context, t *turn) (Reply, error) {
	user, err := e.accounts.Authenticate(ctx, t.state.Get(conversa.KeyEmail), t.text)
	if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrAccountDisabled) {
		t.finish()
		return Reply{Text: "E-mail ou senha incorretos. Digite 'login' para tentar novamente.", Kind: KindAuthFailure}, nil
	}
	if err != nil {
		return Reply{}, fmt.Errorf("autenticar: %w", err)
	}

	t.finish()
	redirect := "/painel_cliente"
	if user.IsFuncionario() {
		redirect = "/painel_funcionario"
	}
	r := done(fmt.Sprintf("Login realizado com sucesso! Bem-vindo(a), %s.", firstName(&user)))
	r.Signals = Signals{Login: &user, Redirect: redirect}
	return r, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
