package repo

import "errors"

var (
	// ErrNotFound é retornado quando nenhum registro é encontrado.
	ErrNotFound = errors.New("registro não encontrado")
	// ErrDuplicateCPF indica CPF já cadastrado.
	ErrDuplicateCPF = errors.New("cpf já cadastrado")
	// ErrDuplicateEmail indica e-mail já cadastrado.
	ErrDuplicateEmail = errors.New("email já cadastrado")
	// ErrDuplicateProtocol indica colisão de protocolo.
	ErrDuplicateProtocol = errors.New("protocolo já existe")
	// ErrSlotConflict indica horário já ocupado por agendamento ativo.
	ErrSlotConflict = errors.New("horário já ocupado")
)
