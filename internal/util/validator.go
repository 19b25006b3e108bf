package util

import (
	"strings"
	"time"
	"unicode"
)

// DateLayout é o formato DD/MM/AAAA aceito em toda a conversa.
const DateLayout = "02/01/2006"

// MinPasswordLength é o tamanho mínimo de senha (após trim).
const MinPasswordLength = 6

// OnlyDigits remove tudo que não for dígito.
func OnlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidCPF confere os dois dígitos verificadores do CPF.
func IsValidCPF(s string) bool {
	cpf := OnlyDigits(s)
	if len(cpf) != 11 {
		return false
	}
	if strings.Count(cpf, cpf[:1]) == 11 {
		return false
	}

	d1 := cpfDigit(cpf[:9], 10)
	d2 := cpfDigit(cpf[:10], 11)
	return int(cpf[9]-'0') == d1 && int(cpf[10]-'0') == d2
}

func cpfDigit(partial string, weight int) int {
	sum := 0
	for i, r := range partial {
		sum += int(r-'0') * (weight - i)
	}
	d := 11 - sum%11
	if d > 9 {
		return 0
	}
	return d
}

// ParseDate interpreta estritamente DD/MM/AAAA na location informada.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
}

// IsValidDate indica se a string é uma data DD/MM/AAAA válida.
func IsValidDate(s string) bool {
	_, err := time.Parse(DateLayout, strings.TrimSpace(s))
	return err == nil
}

// IsValidEmail verifica o formato local@dominio.tld.
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || strings.IndexFunc(email, unicode.IsSpace) >= 0 {
		return false
	}
	if strings.Count(email, "@") != 1 {
		return false
	}
	local, domain, _ := strings.Cut(email, "@")
	if local == "" {
		return false
	}
	dot := strings.LastIndex(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}
	return true
}

// IsValidTelefone aceita DDD + número (10 dígitos fixo, 11 celular começando em 9),
// com ou sem máscara.
func IsValidTelefone(s string) bool {
	tel := OnlyDigits(s)
	switch len(tel) {
	case 10:
	case 11:
		if tel[2] != '9' {
			return false
		}
	default:
		return false
	}
	return tel[0] != '0' && tel[1] != '0'
}

// IsValidPassword verifica requisitos mínimos de senha.
func IsValidPassword(password string) bool {
	return len(strings.TrimSpace(password)) >= MinPasswordLength
}

// AgeOn calcula a idade completa em anos na data de referência.
func AgeOn(birth, ref time.Time) int {
	age := ref.Year() - birth.Year()
	if ref.Month() < birth.Month() || (ref.Month() == birth.Month() && ref.Day() < birth.Day()) {
		age--
	}
	return age
}

// Day trunca o instante para a meia-noite da location informada.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// FormatDate devolve a data em DD/MM/AAAA.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// RequireString garante string não vazia.
func RequireString(value string) bool {
	return strings.TrimSpace(value) != ""
}
