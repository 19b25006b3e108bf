package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendeid/atendimento/internal/agenda"
	"github.com/agendeid/atendimento/internal/auth"
	"github.com/agendeid/atendimento/internal/chatbot"
	"github.com/agendeid/atendimento/internal/config"
	"github.com/agendeid/atendimento/internal/conversa"
	"github.com/agendeid/atendimento/internal/metrics"
	"github.com/agendeid/atendimento/internal/relatorio"
	"github.com/agendeid/atendimento/internal/repo"
	"github.com/agendeid/atendimento/internal/service"
	"github.com/agendeid/atendimento/internal/util"
)

const testSenha = "segredo123"

type apiHarness struct {
	handler http.Handler
	repo    *repo.MemoryRepository
	store   *conversa.MemoryStore
	agenda  *agenda.Service
}

func newAPIHarness(t *testing.T, checks map[string]CheckFunc) *apiHarness {
	t.Helper()
	return newAPIHarnessWithConfig(t, checks, &config.Config{
		RateLimitPublic: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		RateLimitChat:   config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		RateLimitAuth:   config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	})
}

func newAPIHarnessWithConfig(t *testing.T, checks map[string]CheckFunc, cfg *config.Config) *apiHarness {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	memRepo := repo.NewMemoryRepository()
	store := conversa.NewMemoryStore()
	agendaSvc := agenda.NewService(memRepo, time.UTC, m)
	authSvc := service.NewAuthService(memRepo, auth.NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour), auth.NewMemoryRevocationList(), time.UTC)
	relatorios := relatorio.NewService(memRepo, time.UTC)

	engine := chatbot.New(chatbot.Deps{
		Store:      store,
		Agenda:     agendaSvc,
		Relatorios: relatorios,
		Accounts:   authSvc,
		Users:      memRepo,
		Metrics:    m,
	})

	handler := NewRouter(cfg, Dependencies{
		Engine:     engine,
		Auth:       authSvc,
		Agenda:     agendaSvc,
		Relatorios: relatorios,
		Gatherer:   reg,
		Checks:     checks,
	})
	return &apiHarness{handler: handler, repo: memRepo, store: store, agenda: agendaSvc}
}

func (h *apiHarness) seedUser(t *testing.T, email, cpf, perfil string) {
	t.Helper()
	hash, err := auth.Hash(testSenha)
	require.NoError(t, err)
	_, err = h.repo.InsertUser(context.Background(), repo.NovoUsuario{
		Nome:           "Joana Lima",
		Sexo:           "feminino",
		Nacionalidade:  "brasileira",
		DataNascimento: time.Date(1985, time.March, 2, 0, 0, 0, 0, time.UTC),
		NomeMae:        "Rita Lima",
		CPF:            cpf,
		Email:          email,
		SenhaHash:      hash,
		Perfil:         perfil,
	})
	require.NoError(t, err)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *ErrorBody      `json:"error"`
}

func (h *apiHarness) do(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (h *apiHarness) chat(t *testing.T, msg string, headers map[string]string) chatResponse {
	t.Helper()
	payload, err := json.Marshal(chatRequest{Mensagem: msg})
	require.NoError(t, err)
	rec, env := h.do(t, http.MethodPost, "/chat", string(payload), headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp chatResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, resp.Conversa, rec.Header().Get(headerConversa))
	return resp
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHealth(t *testing.T) {
	h := newAPIHarness(t, nil)
	rec, env := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
}

func TestReadyReportsFailingDependencies(t *testing.T) {
	h := newAPIHarness(t, map[string]CheckFunc{
		"db":    func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rec, env := h.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, map[string]any{"redis": "connection refused"}, env.Error.Details)
}

func TestAnonymousChatMintsAndKeepsKey(t *testing.T) {
	h := newAPIHarness(t, nil)

	first := h.chat(t, "cadastro", nil)
	require.True(t, util.IsAnonymousKey(first.Conversa))
	assert.Equal(t, chatbot.KindPrompt, first.Tipo)
	assert.Equal(t, string(conversa.CadastroNome), first.Etapa)

	second := h.chat(t, "Joana Lima", map[string]string{headerConversa: first.Conversa})
	assert.Equal(t, first.Conversa, second.Conversa)
	assert.Equal(t, string(conversa.CadastroPerfil), second.Etapa)

	// uma chave que não é anônima nunca é aceita do cliente
	spoofed := h.chat(t, "oi", map[string]string{headerConversa: "joana@example.com"})
	assert.NotEqual(t, "joana@example.com", spoofed.Conversa)
	assert.True(t, util.IsAnonymousKey(spoofed.Conversa))
}

func TestChatLoginIssuesTokenAndLogoutRevokes(t *testing.T) {
	h := newAPIHarness(t, nil)
	h.seedUser(t, "joana@example.com", "52998224725", repo.PerfilCliente)

	start := h.chat(t, "login", nil)
	anon := map[string]string{headerConversa: start.Conversa}
	h.chat(t, "joana@example.com", anon)
	logged := h.chat(t, testSenha, anon)

	assert.Equal(t, chatbot.KindDone, logged.Tipo)
	require.NotEmpty(t, logged.Token)
	assert.Equal(t, "joana@example.com", logged.Conversa)
	assert.Equal(t, "/painel_cliente", logged.Redirect)
	require.NotNil(t, logged.Usuario)
	assert.Equal(t, repo.PerfilCliente, logged.Usuario.Perfil)
	assert.Zero(t, h.store.Len())

	rec, env := h.do(t, http.MethodGet, "/me", "", bearer(logged.Token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "joana@example.com")

	out := h.chat(t, "logout", bearer(logged.Token))
	assert.True(t, out.Logout)
	assert.Equal(t, "/", out.Redirect)
	assert.True(t, util.IsAnonymousKey(out.Conversa))

	rec, env = h.do(t, http.MethodPost, "/chat", `{"mensagem":"oi"}`, bearer(logged.Token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "AUTH", env.Error.Code)
}

func TestLogoutEndpointDropsConversation(t *testing.T) {
	h := newAPIHarness(t, nil)
	h.seedUser(t, "joana@example.com", "52998224725", repo.PerfilCliente)

	start := h.chat(t, "login", nil)
	anon := map[string]string{headerConversa: start.Conversa}
	h.chat(t, "joana@example.com", anon)
	token := h.chat(t, testSenha, anon).Token

	booking := h.chat(t, "agendar", bearer(token))
	require.Equal(t, string(conversa.AgendarServico), booking.Etapa)
	assert.Equal(t, 1, h.store.Len())

	rec, _ := h.do(t, http.MethodPost, "/logout", "", bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, h.store.Len())

	rec, _ = h.do(t, http.MethodPost, "/logout", "", bearer(token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatRejectsBadPayload(t *testing.T) {
	h := newAPIHarness(t, nil)

	rec, env := h.do(t, http.MethodPost, "/chat", `{"mensagem":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION", env.Error.Code)

	long, err := json.Marshal(chatRequest{Mensagem: strings.Repeat("a", maxMensagemRunes+1)})
	require.NoError(t, err)
	rec, _ = h.do(t, http.MethodPost, "/chat", string(long), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/chat", `{"mensagem":"oi"}`, bearer("nao-e-um-jwt"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAvailableSlots(t *testing.T) {
	h := newAPIHarness(t, nil)
	h.seedUser(t, "joana@example.com", "52998224725", repo.PerfilCliente)
	day := h.agenda.Today().AddDate(0, 0, 3)
	_, err := h.agenda.Reserve(context.Background(), agenda.ReserveInput{
		Email: "joana@example.com", Servico: agenda.ServicoCIN, Data: day, Horario: "09:00",
	})
	require.NoError(t, err)

	rec, env := h.do(t, http.MethodGet, "/agendamentos/disponiveis?data="+util.FormatDate(day), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data     string   `json:"data"`
		Horarios []string `json:"horarios"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Len(t, body.Horarios, len(agenda.Horarios)-1)
	assert.NotContains(t, body.Horarios, "09:00")

	for _, q := range []string{"", "?data=2026-10-20", "?data=" + util.FormatDate(h.agenda.Today())} {
		rec, _ := h.do(t, http.MethodGet, "/agendamentos/disponiveis"+q, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestReportsRequireStaff(t *testing.T) {
	h := newAPIHarness(t, nil)
	h.seedUser(t, "joana@example.com", "52998224725", repo.PerfilCliente)
	h.seedUser(t, "func@example.com", "11144477735", repo.PerfilFuncionario)

	login := func(email string) string {
		start := h.chat(t, "login", nil)
		anon := map[string]string{headerConversa: start.Conversa}
		h.chat(t, email, anon)
		return h.chat(t, testSenha, anon).Token
	}

	rec, _ := h.do(t, http.MethodGet, "/relatorios", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := h.do(t, http.MethodGet, "/relatorios", "", bearer(login("joana@example.com")))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	staff := bearer(login("func@example.com"))
	day := h.agenda.Today().AddDate(0, 0, 1)
	_, err := h.agenda.Reserve(context.Background(), agenda.ReserveInput{
		Email: "joana@example.com", Servico: agenda.ServicoCRNM, Data: day, Horario: "10:00",
	})
	require.NoError(t, err)

	period := "&data_inicio=" + util.FormatDate(h.agenda.Today()) + "&data_fim=" + util.FormatDate(day)
	rec, env = h.do(t, http.MethodGet, "/relatorios?tipo=completo"+period, "", staff)
	require.Equal(t, http.StatusOK, rec.Code)
	var completo relatorio.Completo
	require.NoError(t, json.Unmarshal(env.Data, &completo))
	assert.Equal(t, 1, completo.Total)

	rec, env = h.do(t, http.MethodGet, "/relatorios?tipo=estatistico"+period, "", staff)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats relatorio.Estatistico
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.PorStatus[repo.StatusAgendado])

	rec, _ = h.do(t, http.MethodGet, "/relatorios?tipo=pizza", "", staff)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	inverted := "?data_inicio=" + util.FormatDate(day) + "&data_fim=" + util.FormatDate(h.agenda.Today())
	rec, _ = h.do(t, http.MethodGet, "/relatorios"+inverted, "", staff)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newAPIHarness(t, nil)
	h.chat(t, "oi", nil)

	rec, _ := h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "agendeid_turnos_total")
}

func cadastroBody(t *testing.T, email, cpf, nascimento string, telefone *string) string {
	t.Helper()
	body, err := json.Marshal(cadastroRequest{
		Nome:           "Carla Mendes",
		Sexo:           "feminino",
		Nacionalidade:  "brasileira",
		DataNascimento: nascimento,
		NomeMae:        "Lúcia Mendes",
		CPF:            cpf,
		Email:          email,
		Senha:          testSenha,
		Telefone:       telefone,
	})
	require.NoError(t, err)
	return string(body)
}

func TestLoginEndpoint(t *testing.T) {
	h := newAPIHarness(t, nil)
	h.seedUser(t, "joana@example.com", "52998224725", repo.PerfilCliente)

	rec, env := h.do(t, http.MethodPost, "/login", `{"email":" Joana@Example.com ","senha":"`+testSenha+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sessao sessaoResponse
	require.NoError(t, json.Unmarshal(env.Data, &sessao))
	require.NotEmpty(t, sessao.Token)
	assert.Equal(t, "joana@example.com", sessao.Conversa)
	assert.Equal(t, "joana@example.com", rec.Header().Get(headerConversa))
	require.NotNil(t, sessao.Usuario)
	assert.Equal(t, repo.PerfilCliente, sessao.Usuario.Perfil)

	rec, env = h.do(t, http.MethodGet, "/me", "", bearer(sessao.Token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "joana@example.com")

	booking := h.chat(t, "agendar", bearer(sessao.Token))
	require.Equal(t, string(conversa.AgendarServico), booking.Etapa)
	require.Equal(t, 1, h.store.Len())
	rec, _ = h.do(t, http.MethodPost, "/login", `{"email":"joana@example.com","senha":"`+testSenha+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, h.store.Len())

	rec, env = h.do(t, http.MethodPost, "/login", `{"email":"joana@example.com","senha":"errada"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeAuth, env.Error.Code)

	rec, env = h.do(t, http.MethodPost, "/login", `{"email":"","senha":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeValidation, env.Error.Code)

	_, err := h.repo.SetUserActive(context.Background(), "joana@example.com", false)
	require.NoError(t, err)
	rec, env = h.do(t, http.MethodPost, "/login", `{"email":"joana@example.com","senha":"`+testSenha+`"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "conta desativada", env.Error.Message)
}

func TestCadastroEndpoint(t *testing.T) {
	h := newAPIHarness(t, nil)
	adulto := util.FormatDate(h.agenda.Today().AddDate(-30, 0, 0))
	telefone := "(61) 98765-4321"

	rec, env := h.do(t, http.MethodPost, "/cadastro", cadastroBody(t, "carla@example.com", "529.982.247-25", adulto, &telefone), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sessao sessaoResponse
	require.NoError(t, json.Unmarshal(env.Data, &sessao))
	assert.NotEmpty(t, sessao.Token)
	require.NotNil(t, sessao.Usuario)
	assert.Equal(t, repo.PerfilCliente, sessao.Usuario.Perfil)

	user, err := h.repo.FindUserByEmail(context.Background(), "carla@example.com")
	require.NoError(t, err)
	require.NotNil(t, user.Telefone)
	assert.Equal(t, "61987654321", *user.Telefone)
	assert.Equal(t, "52998224725", user.CPF)

	rec, env = h.do(t, http.MethodPost, "/cadastro", cadastroBody(t, "outra@example.com", "52998224725", adulto, nil), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeConflict, env.Error.Code)
	assert.Equal(t, map[string]any{"campo": "cpf"}, env.Error.Details)

	rec, env = h.do(t, http.MethodPost, "/cadastro", cadastroBody(t, "CARLA@example.com", "12345678909", adulto, nil), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, map[string]any{"campo": "email"}, env.Error.Details)
}

func TestCadastroEndpointValidation(t *testing.T) {
	h := newAPIHarness(t, nil)
	adulto := util.FormatDate(h.agenda.Today().AddDate(-30, 0, 0))
	menor := util.FormatDate(h.agenda.Today().AddDate(-17, 0, 0))
	fixoSemDDD := "1234-5678"

	cases := map[string]string{
		"menor de idade":  cadastroBody(t, "menor@example.com", "52998224725", menor, nil),
		"cpf inválido":    cadastroBody(t, "cpf@example.com", "11111111111", adulto, nil),
		"data inválida":   cadastroBody(t, "data@example.com", "52998224725", "1990-05-10", nil),
		"telefone":        cadastroBody(t, "tel@example.com", "52998224725", adulto, &fixoSemDDD),
		"campos ausentes": `{"nome":"Carla","email":"carla@example.com"}`,
		"json quebrado":   `{"nome":`,
		"e-mail inválido": cadastroBody(t, "carla@", "52998224725", adulto, nil),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec, env := h.do(t, http.MethodPost, "/cadastro", body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, CodeValidation, env.Error.Code)
		})
	}

	_, err := h.repo.FindUserByEmail(context.Background(), "menor@example.com")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestLoginRateLimitedByIP(t *testing.T) {
	h := newAPIHarnessWithConfig(t, nil, &config.Config{
		RateLimitPublic: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		RateLimitChat:   config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		RateLimitAuth:   config.RateLimitConfig{RequestsPerSecond: 5.0 / 60, Burst: 2},
	})
	body := `{"email":"ninguem@example.com","senha":"errada"}`

	for i := 0; i < 2; i++ {
		rec, _ := h.do(t, http.MethodPost, "/login", body, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec, env := h.do(t, http.MethodPost, "/cadastro", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeRateLimit, env.Error.Code)

	// o limite de /login não afeta o chat
	h.chat(t, "oi", nil)
}
