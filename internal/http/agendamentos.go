package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agendeid/atendimento/internal/relatorio"
	"github.com/agendeid/atendimento/internal/util"
)

// AvailableSlots lista os horários livres de uma data futura (?data=DD/MM/AAAA).
func (h *Handler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("data"))
	if raw == "" {
		WriteError(w, http.StatusBadRequest, CodeValidation, "data é obrigatória", nil)
		return
	}
	day, err := util.ParseDate(raw, h.agenda.Location())
	if err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "data inválida, use DD/MM/AAAA", nil)
		return
	}
	if !h.agenda.IsFuture(day) {
		WriteError(w, http.StatusBadRequest, CodeValidation, "a data deve ser futura", nil)
		return
	}

	slots, err := h.agenda.AvailableSlots(r.Context(), day)
	if err != nil {
		log.Error().Err(err).Str("data", raw).Msg("falha ao listar horários")
		WriteError(w, http.StatusInternalServerError, CodeInternal, "não foi possível listar horários", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"data":     util.FormatDate(day),
		"horarios": slots,
	})
}

// Reports gera o relatório do período (?tipo=estatistico|completo&data_inicio=&data_fim=).
// Sem datas, cobre os últimos 30 dias até hoje.
func (h *Handler) Reports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	today := h.agenda.Today()

	from, err := dateParam(q.Get("data_inicio"), today.AddDate(0, 0, -relatorio.JanelaPadrao), h.agenda.Location())
	if err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "data_inicio inválida, use DD/MM/AAAA", nil)
		return
	}
	to, err := dateParam(q.Get("data_fim"), today, h.agenda.Location())
	if err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "data_fim inválida, use DD/MM/AAAA", nil)
		return
	}

	var report any
	switch tipo := strings.TrimSpace(q.Get("tipo")); tipo {
	case "", "estatistico":
		report, err = h.relatorios.Statistical(r.Context(), from, to)
	case "completo":
		report, err = h.relatorios.Complete(r.Context(), from, to)
	default:
		WriteError(w, http.StatusBadRequest, CodeValidation, "tipo deve ser estatistico ou completo", nil)
		return
	}

	if err != nil {
		writeServiceError(w, err, "não foi possível gerar o relatório")
		return
	}

	WriteJSON(w, http.StatusOK, report)
}

func dateParam(raw string, def time.Time, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return util.ParseDate(raw, loc)
}
