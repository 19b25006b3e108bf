package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendeid/atendimento/internal/auth"
	"github.com/agendeid/atendimento/internal/repo"
)

var hoje = time.Date(2026, time.October, 18, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*AuthService, *repo.MemoryRepository) {
	t.Helper()
	r := repo.NewMemoryRepository()
	svc := NewAuthService(r, auth.NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour), auth.NewMemoryRevocationList(), time.UTC)
	svc.now = func() time.Time { return hoje }
	return svc, r
}

func registration(email, cpf string, nascimento time.Time) Registration {
	return Registration{
		Nome:           "Maria Souza",
		Perfil:         repo.PerfilCliente,
		Sexo:           "feminino",
		Nacionalidade:  "brasileira",
		DataNascimento: nascimento,
		NomeMae:        "Ana Souza",
		CPF:            cpf,
		Email:          email,
		Senha:          "segredo1",
	}
}

func TestRegisterAgeGate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	quaseDezoito := time.Date(2008, time.October, 19, 0, 0, 0, 0, time.UTC)
	_, err := svc.Register(ctx, registration("nova@example.com", "529.982.247-25", quaseDezoito))
	assert.ErrorIs(t, err, ErrUnderage)

	dezoito := time.Date(2008, time.October, 18, 0, 0, 0, 0, time.UTC)
	user, err := svc.Register(ctx, registration("nova@example.com", "529.982.247-25", dezoito))
	require.NoError(t, err)
	assert.Equal(t, "52998224725", user.CPF)
	assert.NotEqual(t, "segredo1", user.SenhaHash)
}

func TestRegisterDuplicatesPassThrough(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	nasc := time.Date(1990, time.May, 10, 0, 0, 0, 0, time.UTC)

	_, err := svc.Register(ctx, registration("maria@example.com", "52998224725", nasc))
	require.NoError(t, err)

	_, err = svc.Register(ctx, registration("outra@example.com", "52998224725", nasc))
	assert.ErrorIs(t, err, repo.ErrDuplicateCPF)

	_, err = svc.Register(ctx, registration("MARIA@example.com", "12345678909", nasc))
	assert.ErrorIs(t, err, repo.ErrDuplicateEmail)

	invalid := registration("x@example.com", "11111111111", nasc)
	_, err = svc.Register(ctx, invalid)
	assert.ErrorIs(t, err, ErrInvalidRegistration)
}

func TestRegisterTelefone(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	nasc := time.Date(1990, time.May, 10, 0, 0, 0, 0, time.UTC)

	invalido := registration("tel@example.com", "52998224725", nasc)
	tel := "1234-5678"
	invalido.Telefone = &tel
	_, err := svc.Register(ctx, invalido)
	assert.ErrorIs(t, err, ErrInvalidRegistration)

	vazio := registration("vazio@example.com", "12345678909", nasc)
	branco := "  "
	vazio.Telefone = &branco
	user, err := svc.Register(ctx, vazio)
	require.NoError(t, err)
	assert.Nil(t, user.Telefone)

	valido := registration("tel@example.com", "52998224725", nasc)
	cel := "(61) 98765-4321"
	valido.Telefone = &cel
	user, err = svc.Register(ctx, valido)
	require.NoError(t, err)
	require.NotNil(t, user.Telefone)
	assert.Equal(t, "61987654321", *user.Telefone)
}

func TestAuthenticate(t *testing.T) {
	svc, r := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, registration("maria@example.com", "52998224725", time.Date(1990, time.May, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, " Maria@Example.com", "segredo1")
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", user.Email)

	_, err = svc.Authenticate(ctx, "maria@example.com", "errada")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "ninguem@example.com", "segredo1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	found, err := r.SetUserActive(ctx, "maria@example.com", false)
	require.NoError(t, err)
	require.True(t, found)
	_, err = svc.Authenticate(ctx, "maria@example.com", "segredo1")
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestTokenLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	svc.now = time.Now
	ctx := context.Background()

	session, err := svc.IssueToken(repo.Usuario{Email: "func@example.com", Perfil: repo.PerfilFuncionario, Nome: "Func"})
	require.NoError(t, err)

	claims, err := svc.CheckToken(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, repo.PerfilFuncionario, claims.Perfil)

	require.NoError(t, svc.Logout(ctx, claims))
	_, err = svc.CheckToken(ctx, session.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, err = svc.CheckToken(ctx, "lixo")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
