package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agendeid/atendimento/internal/auth"
	"github.com/agendeid/atendimento/internal/repo"
	"github.com/agendeid/atendimento/internal/util"
)

// IdadeMinima é a idade exigida no fechamento do cadastro.
const IdadeMinima = 18

var (
	// ErrInvalidCredentials indica falha na autenticação.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrAccountDisabled indica conta desativada.
	ErrAccountDisabled = errors.New("conta desativada")
	// ErrUnderage indica cadastro de menor de idade.
	ErrUnderage = errors.New("idade mínima não atingida")
	// ErrInvalidRegistration indica dados de cadastro incompletos ou inválidos.
	ErrInvalidRegistration = errors.New("cadastro inválido")
	// ErrTokenRevoked indica token encerrado por logout.
	ErrTokenRevoked = errors.New("token revogado")
)

type authRepository interface {
	FindUserByEmail(ctx context.Context, email string) (repo.Usuario, error)
	InsertUser(ctx context.Context, input repo.NovoUsuario) (repo.Usuario, error)
}

// AuthService concentra cadastro, autenticação e sessões do chat.
type AuthService struct {
	repo    authRepository
	jwt     *auth.JWTManager
	revoked auth.RevocationList
	loc     *time.Location
	now     func() time.Time
}

// NewAuthService cria novo serviço.
func NewAuthService(r authRepository, jwtMgr *auth.JWTManager, revoked auth.RevocationList, loc *time.Location) *AuthService {
	if loc == nil {
		loc = time.Local
	}
	if revoked == nil {
		revoked = auth.NewMemoryRevocationList()
	}
	return &AuthService{repo: r, jwt: jwtMgr, revoked: revoked, loc: loc, now: time.Now}
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// Registration reúne os campos coletados no fluxo de cadastro.
type Registration struct {
	Nome           string
	Perfil         string
	Sexo           string
	Nacionalidade  string
	DataNascimento time.Time
	NomeMae        string
	CPF            string
	Email          string
	Senha          string
	Telefone       *string
}

// Session é o resultado de um login bem-sucedido.
type Session struct {
	Usuario     repo.Usuario
	AccessToken string
	TokenID     string
	ExpiresAt   time.Time
}

// Authenticate confere e-mail e senha. Usuário inexistente e senha errada são indistinguíveis.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (repo.Usuario, error) {
	user, err := s.repo.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			auth.VerifyDummy(password)
			log.Warn().Msg("login: usuário não encontrado")
			return repo.Usuario{}, ErrInvalidCredentials
		}
		return repo.Usuario{}, err
	}

	ok, err := auth.Verify(password, user.SenhaHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: verify password failed")
		return repo.Usuario{}, ErrInvalidCredentials
	}
	if !ok {
		log.Warn().Msg("login: senha inválida")
		return repo.Usuario{}, ErrInvalidCredentials
	}
	if !user.Ativo {
		return repo.Usuario{}, ErrAccountDisabled
	}
	return user, nil
}

// Register aplica a idade mínima, gera o hash e grava o usuário.
// Duplicidades chegam como repo.ErrDuplicateCPF ou repo.ErrDuplicateEmail.
func (s *AuthService) Register(ctx context.Context, input Registration) (repo.Usuario, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	cpf := util.OnlyDigits(input.CPF)

	switch {
	case !util.RequireString(input.Nome),
		input.Perfil != repo.PerfilCliente && input.Perfil != repo.PerfilFuncionario,
		!util.IsValidCPF(cpf),
		!util.IsValidEmail(email),
		!util.IsValidPassword(input.Senha):
		return repo.Usuario{}, ErrInvalidRegistration
	}

	var telefone *string
	if input.Telefone != nil && strings.TrimSpace(*input.Telefone) != "" {
		if !util.IsValidTelefone(*input.Telefone) {
			return repo.Usuario{}, ErrInvalidRegistration
		}
		digits := util.OnlyDigits(*input.Telefone)
		telefone = &digits
	}

	today := util.Day(s.now(), s.loc)
	if util.AgeOn(input.DataNascimento, today) < IdadeMinima {
		return repo.Usuario{}, ErrUnderage
	}

	hash, err := auth.Hash(input.Senha)
	if err != nil {
		return repo.Usuario{}, fmt.Errorf("hash senha: %w", err)
	}

	user, err := s.repo.InsertUser(ctx, repo.NovoUsuario{
		Nome:           strings.TrimSpace(input.Nome),
		Sexo:           input.Sexo,
		Nacionalidade:  strings.TrimSpace(input.Nacionalidade),
		DataNascimento: input.DataNascimento,
		NomeMae:        strings.TrimSpace(input.NomeMae),
		CPF:            cpf,
		Email:          email,
		SenhaHash:      hash,
		Telefone:       telefone,
		Perfil:         input.Perfil,
	})
	if err != nil {
		return repo.Usuario{}, err
	}

	log.Info().Int64("usuario_id", user.ID).Str("perfil", user.Perfil).Msg("usuário cadastrado")
	return user, nil
}

// IssueToken emite o JWT de acesso do chat para o usuário.
func (s *AuthService) IssueToken(user repo.Usuario) (Session, error) {
	issued, err := s.jwt.GenerateAccessToken(user.Email, user.Perfil, user.Nome)
	if err != nil {
		return Session{}, err
	}
	return Session{Usuario: user, AccessToken: issued.Token, TokenID: issued.ID, ExpiresAt: issued.ExpiresAt}, nil
}

// CheckToken valida assinatura e revogação.
func (s *AuthService) CheckToken(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.jwt.ParseAndValidate(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("consultar revogação: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Logout revoga o token até a sua expiração natural.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if err := s.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revogar token: %w", err)
	}
	log.Info().Str("jti", claims.ID).Msg("sessão encerrada")
	return nil
}
