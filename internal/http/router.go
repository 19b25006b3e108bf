package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agendeid/atendimento/internal/agenda"
	"github.com/agendeid/atendimento/internal/chatbot"
	"github.com/agendeid/atendimento/internal/config"
	httpmiddleware "github.com/agendeid/atendimento/internal/http/middleware"
	"github.com/agendeid/atendimento/internal/relatorio"
	"github.com/agendeid/atendimento/internal/service"
)

// CheckFunc verifica uma dependência externa em /ready.
type CheckFunc func(ctx context.Context) error

// Dependencies reúne os serviços expostos pela API.
type Dependencies struct {
	Engine     *chatbot.Engine
	Auth       *service.AuthService
	Agenda     *agenda.Service
	Relatorios *relatorio.Service
	Gatherer   prometheus.Gatherer
	Checks     map[string]CheckFunc
}

type Handler struct {
	cfg           *config.Config
	engine        *chatbot.Engine
	authService   *service.AuthService
	agenda        *agenda.Service
	relatorios    *relatorio.Service
	checks        map[string]CheckFunc
	publicLimiter *httpmiddleware.RateLimiter
	chatLimiter   *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	h := &Handler{
		cfg:           cfg,
		engine:        deps.Engine,
		authService:   deps.Auth,
		agenda:        deps.Agenda,
		relatorios:    deps.Relatorios,
		checks:        deps.Checks,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		chatLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitChat.RequestsPerSecond, cfg.RateLimitChat.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)
		public.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
		public.Get("/agendamentos/disponiveis", h.AvailableSlots)
	})

	r.Group(func(conta chi.Router) {
		conta.Use(httpmiddleware.IPRateLimit(h.authLimiter))

		conta.Post("/login", h.Login)
		conta.Post("/cadastro", h.Register)
	})

	r.Group(func(chat chi.Router) {
		chat.Use(httpmiddleware.Identify(h.authService))
		chat.Use(httpmiddleware.ConversationRateLimit(h.chatLimiter))

		chat.Post("/chat", h.Chat)
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(h.authService))
		private.Use(httpmiddleware.ConversationRateLimit(h.chatLimiter))

		private.Post("/logout", h.Logout)
		private.Get("/me", h.Me)
		private.Group(func(staff chi.Router) {
			staff.Use(httpmiddleware.RequireFuncionario)
			staff.Get("/relatorios", h.Reports)
		})
	})

	return r
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida as dependências registradas (Postgres, Redis).
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failures := map[string]any{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		WriteError(w, http.StatusServiceUnavailable, CodeInternal, "dependências indisponíveis", failures)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}
