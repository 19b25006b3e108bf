package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port           int
	DBDSN          string
	UseMemoryStore bool
	RunMigrations  bool
	RedisURL       string
	JWTAccessTTL   time.Duration
	JWTSecret      string
	AllowOrigins   []string
	Location       *time.Location

	ClassifierURL     string
	ClassifierTimeout time.Duration
	ConversaTTL       time.Duration

	PermitirCadastroFuncionario bool

	FechamentoAtivo     bool
	FechamentoIntervalo time.Duration

	RateLimitPublic RateLimitConfig
	RateLimitChat   RateLimitConfig
	// RateLimitAuth protege /login e /cadastro por IP; padrão de 5 por minuto.
	RateLimitAuth RateLimitConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	if cfg.UseMemoryStore, err = parseBoolEnv("USE_MEMORY_STORE", false); err != nil {
		return nil, err
	}
	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" && !cfg.UseMemoryStore {
		return nil, errors.New("DB_DSN obrigatório")
	}
	if cfg.RunMigrations, err = parseBoolEnv("RUN_MIGRATIONS", false); err != nil {
		return nil, err
	}

	// sem Redis, conversas e revogações ficam em memória
	cfg.RedisURL = strings.TrimSpace(getEnv("REDIS_URL", ""))

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", 2*time.Hour); err != nil {
		return nil, err
	}

	allowOrigins := strings.Split(getEnv("ALLOW_ORIGINS", ""), ",")
	for _, origin := range allowOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	tz := strings.TrimSpace(getEnv("TIMEZONE", "America/Sao_Paulo"))
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errors.New("TIMEZONE inválido")
	}
	cfg.Location = loc

	cfg.ClassifierURL = strings.TrimSpace(getEnv("CLASSIFIER_URL", ""))
	if cfg.ClassifierTimeout, err = parseDurationEnv("CLASSIFIER_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.ConversaTTL, err = parseDurationEnv("CONVERSA_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PermitirCadastroFuncionario, err = parseBoolEnv("PERMITIR_CADASTRO_FUNCIONARIO", true); err != nil {
		return nil, err
	}

	if cfg.FechamentoAtivo, err = parseBoolEnv("FECHAMENTO_ATIVO", true); err != nil {
		return nil, err
	}
	if cfg.FechamentoIntervalo, err = parseDurationEnv("FECHAMENTO_INTERVALO", time.Hour); err != nil {
		return nil, err
	}

	if cfg.RateLimitPublic, err = parseRateLimit("RATE_LIMIT_PUBLIC", RateLimitConfig{RequestsPerSecond: 10, Burst: 20}); err != nil {
		return nil, err
	}
	if cfg.RateLimitChat, err = parseRateLimit("RATE_LIMIT_CHAT", RateLimitConfig{RequestsPerSecond: 2, Burst: 10}); err != nil {
		return nil, err
	}
	if cfg.RateLimitAuth, err = parseRateLimit("RATE_LIMIT_AUTH", RateLimitConfig{RequestsPerSecond: 5.0 / 60, Burst: 5}); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil || dur <= 0 {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, errors.New(key + " inválido")
	}
	return b, nil
}

// parseRateLimit lê "<req/s>:<burst>", por exemplo "2:10".
func parseRateLimit(key string, def RateLimitConfig) (RateLimitConfig, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	rps, burst, ok := strings.Cut(val, ":")
	r, err1 := strconv.ParseFloat(rps, 64)
	b, err2 := strconv.Atoi(burst)
	if !ok || err1 != nil || err2 != nil || r <= 0 || b <= 0 {
		return RateLimitConfig{}, errors.New(key + " inválido")
	}
	return RateLimitConfig{RequestsPerSecond: r, Burst: b}, nil
}
