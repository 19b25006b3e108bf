package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/agendeid/atendimento/internal/relatorio"
	"github.com/agendeid/atendimento/internal/repo"
	"github.com/agendeid/atendimento/internal/service"
)

// Códigos estáveis do envelope de erro; o front do chat decide a mensagem por eles.
const (
	CodeAuth       = "AUTH"
	CodeValidation = "VALIDATION"
	CodeConflict   = "CONFLICT"
	CodeForbidden  = "FORBIDDEN"
	CodeRateLimit  = "RATE_LIMIT"
	CodeTimeout    = "TIMEOUT"
	CodeInternal   = "INTERNAL"
)

// responseEnvelope é o corpo de toda resposta da API: data ou error, nunca os dois.
type responseEnvelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody descreve a falha devolvida ao cliente.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON escreve envelope de sucesso.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, responseEnvelope{Data: data})
}

// WriteError escreve envelope de erro.
func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	writeEnvelope(w, status, responseEnvelope{Error: &ErrorBody{Code: code, Message: message, Details: details}})
}

func writeEnvelope(w http.ResponseWriter, status int, body responseEnvelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("falha ao escrever resposta")
	}
}

// writeServiceError traduz os erros de cadastro, login e relatórios para status e código.
// O que não for reconhecido vira 500 com a mensagem genérica informada.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, CodeAuth, "e-mail ou senha incorretos", nil)
	case errors.Is(err, service.ErrAccountDisabled):
		WriteError(w, http.StatusUnauthorized, CodeAuth, "conta desativada", nil)
	case errors.Is(err, repo.ErrDuplicateCPF):
		WriteError(w, http.StatusConflict, CodeConflict, "CPF já cadastrado", map[string]string{"campo": "cpf"})
	case errors.Is(err, repo.ErrDuplicateEmail):
		WriteError(w, http.StatusConflict, CodeConflict, "e-mail já cadastrado", map[string]string{"campo": "email"})
	case errors.Is(err, service.ErrUnderage):
		WriteError(w, http.StatusBadRequest, CodeValidation, "cadastro permitido apenas para maiores de 18 anos", nil)
	case errors.Is(err, service.ErrInvalidRegistration):
		WriteError(w, http.StatusBadRequest, CodeValidation, "dados de cadastro inválidos", nil)
	case errors.Is(err, relatorio.ErrInvalidPeriod):
		WriteError(w, http.StatusBadRequest, CodeValidation, "data_inicio posterior a data_fim", nil)
	default:
		log.Error().Err(err).Msg(fallback)
		WriteError(w, http.StatusInternalServerError, CodeInternal, fallback, nil)
	}
}
