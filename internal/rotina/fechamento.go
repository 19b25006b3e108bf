package rotina

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agendeid/atendimento/internal/metrics"
	"github.com/agendeid/atendimento/internal/repo"
	"github.com/agendeid/atendimento/internal/util"
)

// DefaultInterval é o intervalo entre fechamentos quando nenhum é configurado.
const DefaultInterval = time.Hour

// Repository aplica as transições de fim de dia.
type Repository interface {
	CloseDaysBefore(ctx context.Context, before time.Time) (repo.Fechamento, error)
}

// Fechamento encerra os dias passados: quem não compareceu vira Faltou e quem teve
// presença confirmada vira Atendido.
type Fechamento struct {
	repo     Repository
	loc      *time.Location
	interval time.Duration
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time

	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func NewFechamento(r Repository, loc *time.Location, interval time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Fechamento {
	if loc == nil {
		loc = time.Local
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Fechamento{
		repo:     r,
		loc:      loc,
		interval: interval,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start inicia o loop periódico. Chamadas repetidas são ignoradas.
func (f *Fechamento) Start(parent context.Context) {
	f.once.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		f.cancel = cancel
		go f.runLoop(ctx)
	})
}

// Stop encerra o loop e aguarda a execução corrente terminar.
func (f *Fechamento) Stop() {
	if f.cancel == nil {
		return
	}
	f.cancel()
	<-f.done
}

func (f *Fechamento) runLoop(ctx context.Context) {
	defer close(f.done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.logger.Info().Dur("interval", f.interval).Msg("fechamento: loop iniciado")

	if _, err := f.RunOnce(ctx); err != nil {
		f.logger.Error().Err(err).Msg("fechamento: primeira execução falhou")
	}

	for {
		select {
		case <-ctx.Done():
			f.logger.Info().Msg("fechamento: loop encerrado")
			return
		case <-ticker.C:
			if _, err := f.RunOnce(ctx); err != nil {
				f.logger.Error().Err(err).Msg("fechamento: execução periódica falhou")
			}
		}
	}
}

// RunOnce fecha todos os dias anteriores a hoje no fuso configurado.
func (f *Fechamento) RunOnce(ctx context.Context) (repo.Fechamento, error) {
	today := util.Day(f.now(), f.loc)
	out, err := f.repo.CloseDaysBefore(ctx, today)
	if err != nil {
		return repo.Fechamento{}, fmt.Errorf("fechar dias anteriores a %s: %w", util.FormatDate(today), err)
	}
	f.metrics.AddClosures(out.Faltas, out.Atendidos)
	if out.Faltas > 0 || out.Atendidos > 0 {
		f.logger.Info().Int64("faltas", out.Faltas).Int64("atendidos", out.Atendidos).Msg("fechamento: dias anteriores encerrados")
	}
	return out, nil
}
