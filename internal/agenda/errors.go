package agenda

import "errors"

var (
	// ErrConflict indica que o horário foi ocupado por outro agendamento ativo.
	ErrConflict = errors.New("horário indisponível")
	// ErrNotFound indica agendamento inexistente ou de outro usuário.
	ErrNotFound = errors.New("agendamento não encontrado")
	// ErrAlreadyCancelled indica cancelamento repetido.
	ErrAlreadyCancelled = errors.New("agendamento já cancelado")
	// ErrInvalidTransition indica mudança de status não permitida.
	ErrInvalidTransition = errors.New("transição de status não permitida")
	// ErrInvalidSlot indica horário fora da grade.
	ErrInvalidSlot = errors.New("horário inválido")
	// ErrInvalidService indica serviço fora do catálogo.
	ErrInvalidService = errors.New("serviço inválido")
	// ErrPastDate indica data que não é posterior a hoje.
	ErrPastDate = errors.New("data deve ser futura")
	// ErrProtocolExhausted indica colisões sucessivas de protocolo.
	ErrProtocolExhausted = errors.New("não foi possível gerar protocolo único")
)
