package auth

import (
	"errors"
	"sync"

	"github.com/alexedwards/argon2id"
)

var params = &argon2id.Params{
	Memory:      64 * 1024, // 64 MB
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// ErrEmptyPassword indica senha vazia.
var ErrEmptyPassword = errors.New("senha vazia")

var (
	dummyOnce sync.Once
	dummyHash string
)

// Hash gera um hash Argon2id (inclui os parâmetros dentro do próprio hash).
func Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	return argon2id.CreateHash(password, params)
}

// Verify compara a senha com o hash Argon2id (lendo parâmetros do próprio hash).
func Verify(password, encodedHash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, encodedHash)
}

// VerifyDummy gasta o mesmo custo de Verify quando o e-mail não existe,
// para que o tempo de resposta não revele contas cadastradas.
func VerifyDummy(password string) {
	dummyOnce.Do(func() {
		dummyHash, _ = argon2id.CreateHash("agendeid-dummy", params)
	})
	_, _ = argon2id.ComparePasswordAndHash(password, dummyHash)
}
