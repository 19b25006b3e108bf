package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agendeid/atendimento/internal/chatbot"
	httpmiddleware "github.com/agendeid/atendimento/internal/http/middleware"
	"github.com/agendeid/atendimento/internal/repo"
	"github.com/agendeid/atendimento/internal/util"
)

const (
	headerConversa     = "X-Conversa"
	maxChatBody        = 4 << 10
	maxMensagemRunes   = 500
	chatRequestTimeout = 10 * time.Second
)

type chatRequest struct {
	Mensagem string `json:"mensagem"`
}

type chatResponse struct {
	Resposta string         `json:"resposta"`
	Tipo     chatbot.Kind   `json:"tipo"`
	Etapa    string         `json:"etapa,omitempty"`
	Dados    any            `json:"dados,omitempty"`
	Conversa string         `json:"conversa"`
	Token    string         `json:"token,omitempty"`
	ExpiraEm *time.Time     `json:"expira_em,omitempty"`
	Usuario  *usuarioResumo `json:"usuario,omitempty"`
	Redirect string         `json:"redirect,omitempty"`
	Logout   bool           `json:"logout,omitempty"`
}

type usuarioResumo struct {
	Nome   string `json:"nome"`
	Email  string `json:"email"`
	Perfil string `json:"perfil"`
}

func resumo(u repo.Usuario) *usuarioResumo {
	return &usuarioResumo{Nome: u.Nome, Email: u.Email, Perfil: u.Perfil}
}

// Chat processa uma mensagem. Autenticados conversam pela chave do e-mail; anônimos
// pela chave enviada em X-Conversa, ou por uma nova chave devolvida em "conversa".
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "JSON inválido", nil)
		return
	}
	if len([]rune(payload.Mensagem)) > maxMensagemRunes {
		WriteError(w, http.StatusBadRequest, CodeValidation, "mensagem muito longa", nil)
		return
	}

	ctx := r.Context()
	claims := httpmiddleware.GetClaims(ctx)
	key := conversationKey(r)

	turnCtx, cancel := context.WithTimeout(ctx, chatRequestTimeout)
	defer cancel()

	reply, err := h.engine.HandleTurn(turnCtx, key, payload.Mensagem)
	if err != nil {
		WriteError(w, http.StatusServiceUnavailable, CodeTimeout, "não foi possível processar a mensagem", nil)
		return
	}

	resp := chatResponse{
		Resposta: reply.Text,
		Tipo:     reply.Kind,
		Etapa:    string(reply.Step),
		Dados:    reply.Data,
		Conversa: key,
		Redirect: reply.Signals.Redirect,
	}

	if user := reply.Signals.Login; user != nil {
		session, err := h.authService.IssueToken(*user)
		if err != nil {
			log.Error().Err(err).Str("email", user.Email).Msg("falha ao emitir token do chat")
			WriteError(w, http.StatusInternalServerError, CodeInternal, "não foi possível iniciar a sessão", nil)
			return
		}
		// a conversa anônima já foi encerrada pelo login
		resp.Conversa = user.Email
		resp.Token = session.AccessToken
		resp.ExpiraEm = &session.ExpiresAt
		resp.Usuario = resumo(*user)
	}

	if reply.Signals.Logout {
		if claims != nil {
			if err := h.authService.Logout(ctx, claims); err != nil {
				log.Error().Err(err).Str("email", claims.Email()).Msg("falha ao revogar token")
				WriteError(w, http.StatusInternalServerError, CodeInternal, "não foi possível encerrar a sessão", nil)
				return
			}
		}
		if err := h.engine.EndConversation(ctx, key); err != nil {
			log.Warn().Err(err).Str("conversa", key).Msg("falha ao limpar conversa no logout")
		}
		resp.Conversa = util.NewAnonymousKey()
		resp.Logout = true
	}

	w.Header().Set(headerConversa, resp.Conversa)
	WriteJSON(w, http.StatusOK, resp)
}

// conversationKey escolhe a chave da conversa: e-mail autenticado, chave anônima válida ou uma nova.
func conversationKey(r *http.Request) string {
	if subject := httpmiddleware.GetSubject(r.Context()); subject != "" {
		return subject
	}
	if key := strings.TrimSpace(r.Header.Get(headerConversa)); len(key) > len(util.AnonymousPrefix) && len(key) <= 64 && util.IsAnonymousKey(key) {
		return key
	}
	return util.NewAnonymousKey()
}

// Logout revoga o token corrente e descarta a conversa em andamento.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := httpmiddleware.GetClaims(ctx)
	if claims == nil {
		WriteError(w, http.StatusUnauthorized, CodeAuth, "token ausente", nil)
		return
	}

	if err := h.authService.Logout(ctx, claims); err != nil {
		log.Error().Err(err).Str("email", claims.Email()).Msg("falha ao revogar token")
		WriteError(w, http.StatusInternalServerError, CodeInternal, "não foi possível encerrar a sessão", nil)
		return
	}
	if err := h.engine.EndConversation(ctx, claims.Email()); err != nil {
		log.Warn().Err(err).Str("conversa", claims.Email()).Msg("falha ao limpar conversa no logout")
	}

	WriteJSON(w, http.StatusOK, map[string]any{"logout": true, "redirect": "/"})
}

// Me devolve o titular do token.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims := httpmiddleware.GetClaims(r.Context())
	if claims == nil {
		WriteError(w, http.StatusUnauthorized, CodeAuth, "token ausente", nil)
		return
	}
	WriteJSON(w, http.StatusOK, usuarioResumo{Nome: claims.Nome, Email: claims.Email(), Perfil: claims.Perfil})
}
