package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agendeid/atendimento/internal/repo"
	"github.com/agendeid/atendimento/internal/service"
	"github.com/agendeid/atendimento/internal/util"
)

const maxContaBody = 8 << 10

type loginRequest struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

type cadastroRequest struct {
	Nome           string  `json:"nome"`
	Sexo           string  `json:"sexo"`
	Nacionalidade  string  `json:"nacionalidade"`
	DataNascimento string  `json:"data_nascimento"`
	NomeMae        string  `json:"nome_mae"`
	CPF            string  `json:"cpf"`
	Email          string  `json:"email"`
	Senha          string  `json:"senha"`
	Telefone       *string `json:"telefone"`
}

// sessaoResponse é devolvida por /login e /cadastro; Conversa passa a ser o e-mail.
type sessaoResponse struct {
	Token    string         `json:"token"`
	ExpiraEm time.Time      `json:"expira_em"`
	Usuario  *usuarioResumo `json:"usuario"`
	Conversa string         `json:"conversa"`
}

// Login autentica fora do chat (formulário do portal).
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxContaBody)).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "JSON inválido", nil)
		return
	}
	if !util.RequireString(payload.Email) || payload.Senha == "" {
		WriteError(w, http.StatusBadRequest, CodeValidation, "e-mail e senha são obrigatórios", nil)
		return
	}

	user, err := h.authService.Authenticate(r.Context(), payload.Email, payload.Senha)
	if err != nil {
		writeServiceError(w, err, "não foi possível autenticar")
		return
	}
	// um novo login recomeça a conversa do e-mail
	if err := h.engine.EndConversation(r.Context(), user.Email); err != nil {
		log.Warn().Err(err).Str("conversa", user.Email).Msg("falha ao limpar conversa no login")
	}

	h.startSession(w, http.StatusOK, user)
}

// Register cadastra um cliente pelo formulário do portal e já devolve a sessão.
// Funcionários continuam sendo criados pelo chat ou pela CLI.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var payload cadastroRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxContaBody)).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "JSON inválido", nil)
		return
	}

	if missing := payload.missing(); len(missing) > 0 {
		WriteError(w, http.StatusBadRequest, CodeValidation, "todos os campos obrigatórios devem ser preenchidos", map[string]any{"campos": missing})
		return
	}
	nascimento, err := util.ParseDate(payload.DataNascimento, h.agenda.Location())
	if err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "data de nascimento inválida, use DD/MM/AAAA", map[string]string{"campo": "data_nascimento"})
		return
	}
	if payload.Telefone != nil && util.RequireString(*payload.Telefone) && !util.IsValidTelefone(*payload.Telefone) {
		WriteError(w, http.StatusBadRequest, CodeValidation, "telefone inválido", map[string]string{"campo": "telefone"})
		return
	}

	user, err := h.authService.Register(r.Context(), service.Registration{
		Nome:           payload.Nome,
		Perfil:         repo.PerfilCliente,
		Sexo:           strings.TrimSpace(payload.Sexo),
		Nacionalidade:  payload.Nacionalidade,
		DataNascimento: nascimento,
		NomeMae:        payload.NomeMae,
		CPF:            payload.CPF,
		Email:          payload.Email,
		Senha:          payload.Senha,
		Telefone:       payload.Telefone,
	})
	if err != nil {
		writeServiceError(w, err, "não foi possível finalizar o cadastro")
		return
	}

	h.startSession(w, http.StatusCreated, user)
}

func (h *Handler) startSession(w http.ResponseWriter, status int, user repo.Usuario) {
	session, err := h.authService.IssueToken(user)
	if err != nil {
		log.Error().Err(err).Str("email", user.Email).Msg("falha ao emitir token")
		WriteError(w, http.StatusInternalServerError, CodeInternal, "não foi possível iniciar a sessão", nil)
		return
	}

	w.Header().Set(headerConversa, user.Email)
	WriteJSON(w, status, sessaoResponse{
		Token:    session.AccessToken,
		ExpiraEm: session.ExpiresAt,
		Usuario:  resumo(user),
		Conversa: user.Email,
	})
}

func (p cadastroRequest) missing() []string {
	var campos []string
	for _, f := range []struct {
		nome, valor string
	}{
		{"nome", p.Nome},
		{"sexo", p.Sexo},
		{"nacionalidade", p.Nacionalidade},
		{"data_nascimento", p.DataNascimento},
		{"nome_mae", p.NomeMae},
		{"cpf", p.CPF},
		{"email", p.Email},
		{"senha", p.Senha},
	} {
		if !util.RequireString(f.valor) {
			campos = append(campos, f.nome)
		}
	}
	return campos
}
