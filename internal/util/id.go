package util

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	protocolAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// ProtocolLength é o tamanho do código de protocolo exibido ao cidadão.
	ProtocolLength = 8
	// AnonymousPrefix identifica chaves de conversa ainda sem identidade.
	AnonymousPrefix = "anon_"
)

// NewProtocol gera código aleatório de 8 caracteres maiúsculos alfanuméricos.
func NewProtocol() (string, error) {
	var b strings.Builder
	b.Grow(ProtocolLength)
	max := big.NewInt(int64(len(protocolAlphabet)))
	for i := 0; i < ProtocolLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(protocolAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NewAnonymousKey cria chave temporária para conversas de login/cadastro.
func NewAnonymousKey() string {
	return AnonymousPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// IsAnonymousKey indica se a chave não representa um e-mail autenticado.
func IsAnonymousKey(key string) bool {
	return key == "" || strings.HasPrefix(key, AnonymousPrefix)
}
