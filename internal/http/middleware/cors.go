package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// O widget do chat guarda a chave da conversa anônima em X-Conversa e precisa lê-la
// na resposta, então o cabeçalho entra tanto em Allow quanto em Expose.
const (
	corsAllowHeaders  = "Authorization, Content-Type, X-Conversa, X-Requested-With"
	corsAllowMethods  = "GET,POST,OPTIONS"
	corsExposeHeaders = "X-Conversa"
)

// originPolicy separa origens exatas (portal principal) de sufixos de subdomínio
// (sites das secretarias que embutem o widget).
type originPolicy struct {
	exact    map[string]struct{}
	suffixes []string // ".prefeitura.gov.br", sempre em minúsculas
}

func newOriginPolicy(allowed []string) originPolicy {
	p := originPolicy{exact: make(map[string]struct{}, len(allowed))}
	for _, entry := range allowed {
		e := strings.TrimSpace(entry)
		switch {
		case e == "":
		case strings.HasPrefix(e, "*."):
			p.suffixes = append(p.suffixes, strings.ToLower(strings.TrimPrefix(e, "*")))
		default:
			p.exact[e] = struct{}{}
		}
	}
	return p
}

// allows aceita a origem exata ou um subdomínio de um sufixo; o domínio raiz do
// sufixo não é aceito sozinho.
func (p originPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}
	if len(p.suffixes) == 0 {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, suf := range p.suffixes {
		if strings.HasSuffix(host, suf) && host != strings.TrimPrefix(suf, ".") {
			return true
		}
	}
	return false
}

// CORS libera o widget do chat para as origens de ALLOW_ORIGINS
// (ex.: https://agendeid.gov.br, *.prefeitura.gov.br). Preflight responde 204 sempre.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); policy.allows(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
