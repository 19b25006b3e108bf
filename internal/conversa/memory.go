package conversa

import (
	"context"
	"sync"
	"time"
)

// MemoryStore mantém estados em um mapa protegido por RWMutex. Não expira entradas.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore cria store vazio.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

// Get devolve cópia do estado.
func (m *MemoryStore) Get(_ context.Context, key string) (State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[key]
	if !ok {
		return State{}, false, nil
	}
	return st.Clone(), true, nil
}

// Put grava cópia do estado.
func (m *MemoryStore) Put(_ context.Context, key string, state State) error {
	if !state.Step.Valid() {
		return ErrInvalidState
	}
	st := state.Clone()
	st.AtualizadoEm = time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key] = st
	return nil
}

// Delete remove o estado; chave ausente não é erro.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, key)
	return nil
}

// Len informa quantas conversas estão em andamento.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}
