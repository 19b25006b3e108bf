package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/agendeid/atendimento/internal/agenda"
	"github.com/agendeid/atendimento/internal/auth"
	"github.com/agendeid/atendimento/internal/chatbot"
	"github.com/agendeid/atendimento/internal/config"
	"github.com/agendeid/atendimento/internal/conversa"
	"github.com/agendeid/atendimento/internal/db"
	internalhttp "github.com/agendeid/atendimento/internal/http"
	"github.com/agendeid/atendimento/internal/intent"
	"github.com/agendeid/atendimento/internal/metrics"
	"github.com/agendeid/atendimento/internal/relatorio"
	"github.com/agendeid/atendimento/internal/repo"
	"github.com/agendeid/atendimento/internal/rotina"
	"github.com/agendeid/atendimento/internal/service"
)

// gateway é o conjunto de operações de persistência consumido pela API.
type gateway interface {
	agenda.Repository
	relatorio.Repository
	rotina.Repository
	InsertUser(ctx context.Context, input repo.NovoUsuario) (repo.Usuario, error)
	Ping(ctx context.Context) error
}

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()
	checks := map[string]internalhttp.CheckFunc{}

	var repository gateway
	if cfg.UseMemoryStore {
		log.Warn().Msg("USE_MEMORY_STORE ativo: dados não sobrevivem a reinícios")
		repository = repo.NewMemoryRepository()
	} else {
		if cfg.RunMigrations {
			if err := db.Migrate(cfg.DBDSN); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
		}
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer pool.Close()
		repository = repo.New(pool)
	}
	checks["db"] = repository.Ping

	var (
		store   conversa.Store = conversa.NewMemoryStore()
		revoked auth.RevocationList
	)
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis parse: %w", err)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()

		store = conversa.NewRedisStore(redisClient, cfg.ConversaTTL)
		revoked = auth.NewRedisRevocationList(redisClient)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		log.Warn().Msg("REDIS_URL ausente: conversas e revogações ficam em memória")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	strategies := []intent.Strategy{}
	if cfg.ClassifierURL != "" {
		classifier, err := intent.NewHTTPClassifier(cfg.ClassifierURL, cfg.ClassifierTimeout)
		if err != nil {
			return fmt.Errorf("classificador: %w", err)
		}
		strategies = append(strategies, intent.NewModelStrategy(classifier, intent.DefaultThreshold))
	}
	strategies = append(strategies, intent.NewKeywordStrategy())

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	authService := service.NewAuthService(repository, jwtManager, revoked, cfg.Location)
	agendaService := agenda.NewService(repository, cfg.Location, m)
	relatorios := relatorio.NewService(repository, cfg.Location)

	engine := chatbot.New(chatbot.Deps{
		Store:                       store,
		Agenda:                      agendaService,
		Relatorios:                  relatorios,
		Accounts:                    authService,
		Users:                       repository,
		Intents:                     intent.NewChain(m, strategies...),
		Metrics:                     m,
		PermitirCadastroFuncionario: cfg.PermitirCadastroFuncionario,
	})

	if cfg.FechamentoAtivo {
		fechamento := rotina.NewFechamento(repository, cfg.Location, cfg.FechamentoIntervalo, m,
			log.With().Str("component", "fechamento").Logger())
		fechamento.Start(ctx)
		defer fechamento.Stop()
	}

	handler := internalhttp.NewRouter(cfg, internalhttp.Dependencies{
		Engine:     engine,
		Auth:       authService,
		Agenda:     agendaService,
		Relatorios: relatorios,
		Gatherer:   registry,
		Checks:     checks,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
