package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://agendeid@localhost/agendeid")
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.UseMemoryStore)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 2*time.Hour, cfg.JWTAccessTTL)
	assert.Equal(t, "America/Sao_Paulo", cfg.Location.String())
	assert.Equal(t, 30*time.Minute, cfg.ConversaTTL)
	assert.True(t, cfg.PermitirCadastroFuncionario)
	assert.True(t, cfg.FechamentoAtivo)
	assert.Equal(t, time.Hour, cfg.FechamentoIntervalo)
	assert.Equal(t, RateLimitConfig{RequestsPerSecond: 2, Burst: 10}, cfg.RateLimitChat)
	assert.Equal(t, 5, cfg.RateLimitAuth.Burst)
	assert.InDelta(t, 5.0/60, cfg.RateLimitAuth.RequestsPerSecond, 1e-9)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("USE_MEMORY_STORE", "true")
	t.Setenv("DB_DSN", "")
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("ALLOW_ORIGINS", "http://a.example, ,http://b.example")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("PERMITIR_CADASTRO_FUNCIONARIO", "false")
	t.Setenv("RATE_LIMIT_CHAT", "5:15")
	t.Setenv("RATE_LIMIT_AUTH", "0.5:3")
	t.Setenv("CLASSIFIER_URL", "http://classificador:5000/classificar")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.UseMemoryStore)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowOrigins)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.False(t, cfg.PermitirCadastroFuncionario)
	assert.Equal(t, RateLimitConfig{RequestsPerSecond: 5, Burst: 15}, cfg.RateLimitChat)
	assert.Equal(t, RateLimitConfig{RequestsPerSecond: 0.5, Burst: 3}, cfg.RateLimitAuth)
	assert.Equal(t, "http://classificador:5000/classificar", cfg.ClassifierURL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"sem dsn":          {"DB_DSN": "", "USE_MEMORY_STORE": "false"},
		"segredo curto":    {"JWT_SECRET": "curto"},
		"porta":            {"PORT": "abc"},
		"fuso":             {"TIMEZONE": "Marte/Olympus"},
		"rate limit":       {"RATE_LIMIT_PUBLIC": "10"},
		"rate limit auth":  {"RATE_LIMIT_AUTH": "0:5"},
		"booleano":         {"RUN_MIGRATIONS": "talvez"},
		"duracao negativa": {"CONVERSA_TTL": "-1m"},
		"intervalo":        {"FECHAMENTO_INTERVALO": "0s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DB_DSN", "postgres://agendeid@localhost/agendeid")
			t.Setenv("JWT_SECRET", secret)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
