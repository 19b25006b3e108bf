package chatbot

import (
	"github.com/agendeid/atendimento/internal/conversa"
	"github.com/agendeid/atendimento/internal/repo"
)

// Kind classifica a resposta de um turno para quem consome o chat.
type Kind string

// Tipos de resposta.
const (
	KindPrompt      Kind = "prompt"
	KindInvalid     Kind = "invalid"
	KindConflict    Kind = "conflict"
	KindNotFound    Kind = "not_found"
	KindAuthFailure Kind = "auth_failure"
	KindForbidden   Kind = "forbidden"
	KindDone        Kind = "done"
	KindCancelled   Kind = "cancelled"
	KindInfo        Kind = "info"
	KindUnknown     Kind = "unknown"
	KindError       Kind = "error"
)

// Signals são efeitos de sessão que a camada de transporte precisa aplicar.
type Signals struct {
	Login      *repo.Usuario `json:"-"`
	Logout     bool          `json:"logout,omitempty"`
	Registered bool          `json:"cadastro,omitempty"`
	Redirect   string        `json:"redirect,omitempty"`
}

// Reply é o resultado estruturado de um turno.
type Reply struct {
	Text    string        `json:"resposta"`
	Kind    Kind          `json:"tipo"`
	Step    conversa.Step `json:"etapa,omitempty"`
	Signals Signals       `json:"sinais"`
	Data    any           `json:"dados,omitempty"`
}

func prompt(text string) Reply    { return Reply{Text: text, Kind: KindPrompt} }
func invalid(text string) Reply   { return Reply{Text: text, Kind: KindInvalid} }
func conflict(text string) Reply  { return Reply{Text: text, Kind: KindConflict} }
func notFound(text string) Reply  { return Reply{Text: text, Kind: KindNotFound} }
func forbidden(text string) Reply { return Reply{Text: text, Kind: KindForbidden} }
func done(text string) Reply      { return Reply{Text: text, Kind: KindDone} }
func cancelled(text string) Reply { return Reply{Text: text, Kind: KindCancelled} }
func info(text string) Reply      { return Reply{Text: text, Kind: KindInfo} }

func (r Reply) with(data any) Reply {
	r.Data = data
	return r
}
