package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Audience identifica tokens emitidos para o chat.
const Audience = "agendeid-chat"

// ErrInvalidToken indica token malformado, expirado ou de outra audiência.
var ErrInvalidToken = errors.New("token inválido")

// Claims representa as informações presentes em um JWT de acesso.
type Claims struct {
	Perfil string `json:"perfil"`
	Nome   string `json:"nome,omitempty"`
	jwt.RegisteredClaims
}

// Email devolve o e-mail do titular (subject).
func (c *Claims) Email() string {
	return c.Subject
}

// IssuedToken é um token assinado com seus metadados.
type IssuedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// JWTManager encapsula geração e validação de tokens.
type JWTManager struct {
	secret    []byte
	accessTTL time.Duration
}

// NewJWTManager cria o gerenciador com segredo e TTL configurados.
func NewJWTManager(secret string, accessTTL time.Duration) *JWTManager {
	if accessTTL <= 0 {
		accessTTL = 2 * time.Hour
	}
	return &JWTManager{secret: []byte(secret), accessTTL: accessTTL}
}

// AccessTTL devolve a validade dos tokens emitidos.
func (m *JWTManager) AccessTTL() time.Duration {
	return m.accessTTL
}

// GenerateAccessToken cria um JWT HS256 cujo subject é o e-mail do usuário.
func (m *JWTManager) GenerateAccessToken(email, perfil, nome string) (IssuedToken, error) {
	now := time.Now().UTC()
	expires := now.Add(m.accessTTL)
	jti := uuid.NewString()

	claims := Claims{
		Perfil: perfil,
		Nome:   nome,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Audience:  jwt.ClaimStrings{Audience},
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Token: signed, ID: jti, ExpiresAt: expires}, nil
}

// ParseAndValidate verifica assinatura, expiração e audiência.
func (m *JWTManager) ParseAndValidate(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
