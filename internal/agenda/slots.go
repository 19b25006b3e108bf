package agenda

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agendeid/atendimento/internal/util"
)

// Horarios são os rótulos fixos de atendimento, em ordem crescente.
var Horarios = []string{"08:00", "09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"}

// Serviços oferecidos.
const (
	ServicoCIN           = "CIN"
	ServicoCRNM          = "CRNM"
	ServicoRenovacaoCIN  = "RENOVACAO CIN"
	ServicoRenovacaoCRNM = "RENOVACAO CRNM"
)

// Servicos lista os serviços na ordem apresentada ao cidadão (opções 1 a 4).
var Servicos = []string{ServicoCIN, ServicoCRNM, ServicoRenovacaoCIN, ServicoRenovacaoCRNM}

// IsValidSlot indica se o rótulo pertence à grade fixa.
func IsValidSlot(horario string) bool {
	for _, h := range Horarios {
		if h == horario {
			return true
		}
	}
	return false
}

// ParseSlot normaliza entradas como "9", "9h", "09h00" e "9:00" para "09:00".
func ParseSlot(input string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(input))
	s = strings.TrimSuffix(s, "hs")
	s = strings.TrimSuffix(s, "h")
	s = strings.Replace(s, "h", ":", 1)

	hour, minute := s, "00"
	if before, after, ok := strings.Cut(s, ":"); ok {
		hour, minute = before, after
	}
	if minute == "" {
		minute = "00"
	}
	if minute != "00" {
		return "", false
	}
	h, err := strconv.Atoi(hour)
	if err != nil || h < 0 || h > 23 || len(hour) > 2 {
		return "", false
	}

	label := fmt.Sprintf("%02d:00", h)
	return label, IsValidSlot(label)
}

// ParseServico aceita o número da opção (1 a 4) ou o nome, sem acentos e em qualquer caixa.
func ParseServico(input string) (string, bool) {
	s := util.Normalize(input)
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= len(Servicos) {
		return Servicos[n-1], true
	}
	s = strings.ReplaceAll(s, "-", " ")
	for _, servico := range Servicos {
		if s == strings.ToLower(servico) {
			return servico, true
		}
	}
	switch s {
	case "renovar cin", "renovacao de cin":
		return ServicoRenovacaoCIN, true
	case "renovar crnm", "renovacao de crnm":
		return ServicoRenovacaoCRNM, true
	}
	return "", false
}

// IsValidServico indica se o serviço pertence ao catálogo.
func IsValidServico(servico string) bool {
	for _, s := range Servicos {
		if s == servico {
			return true
		}
	}
	return false
}
