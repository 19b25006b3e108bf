package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/agendeid/atendimento/internal/auth"
	"github.com/agendeid/atendimento/internal/repo"
)

type contextKey string

const (
	ContextKeySubject contextKey = "subject"
	ContextKeyPerfil  contextKey = "perfil"
	ContextKeyClaims  contextKey = "claims"
)

// TokenChecker valida assinatura, audiência e revogação do token.
type TokenChecker interface {
	CheckToken(ctx context.Context, token string) (*auth.Claims, error)
}

// Identify injeta as claims quando há Bearer válido e deixa passar requisições sem token.
// Um token presente porém inválido ou revogado é rejeitado.
func Identify(checker TokenChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, ok := bearerClaims(w, r, checker, authHeader)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// Auth exige JWT de acesso válido e injeta claims no contexto.
func Auth(checker TokenChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}
			claims, ok := bearerClaims(w, r, checker, authHeader)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

func bearerClaims(w http.ResponseWriter, r *http.Request, checker TokenChecker, header string) (*auth.Claims, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
		return nil, false
	}
	claims, err := checker.CheckToken(r.Context(), strings.TrimSpace(parts[1]))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "token inválido")
		return nil, false
	}
	return claims, true
}

func withClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, ContextKeySubject, claims.Email())
	ctx = context.WithValue(ctx, ContextKeyPerfil, claims.Perfil)
	return context.WithValue(ctx, ContextKeyClaims, claims)
}

// GetSubject recupera o e-mail autenticado do contexto.
func GetSubject(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeySubject).(string)
	return val
}

// GetPerfil recupera o perfil autenticado do contexto.
func GetPerfil(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyPerfil).(string)
	return val
}

// GetClaims recupera as claims completas, ou nil para requisições anônimas.
func GetClaims(ctx context.Context) *auth.Claims {
	val, _ := ctx.Value(ContextKeyClaims).(*auth.Claims)
	return val
}

// RequireFuncionario garante perfil de funcionário.
func RequireFuncionario(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(GetPerfil(r.Context()), repo.PerfilFuncionario) {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusForbidden, "FORBIDDEN", "acesso restrito a funcionários")
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
