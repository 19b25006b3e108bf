package relatorio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/agendeid/atendimento/internal/repo"
	"github.com/agendeid/atendimento/internal/util"
)

// JanelaPadrao é a janela, em dias, dos relatórios do menu de funcionário.
const JanelaPadrao = 30

// LimiteServicos é o tamanho do ranking de serviços.
const LimiteServicos = 10

// ErrInvalidPeriod indica início posterior ao fim.
var ErrInvalidPeriod = errors.New("período inválido")

// Repository expõe as agregações usadas pelos relatórios.
type Repository interface {
	AggregateAttendance(ctx context.Context, since time.Time) (repo.Attendance, error)
	TopServices(ctx context.Context, since time.Time, limit int) ([]repo.ServiceCount, error)
	ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]repo.AgendaItem, error)
}

// Service gera relatórios somente leitura.
type Service struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

// NewService cria o serviço de relatórios.
func NewService(r Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: r, loc: loc, now: time.Now}
}

// Comparecimento resume presenças e ausências em uma janela.
type Comparecimento struct {
	repo.Attendance
	Dias int     `json:"dias"`
	Taxa float64 `json:"taxa_comparecimento"`
}

// Periodo delimita relatórios por intervalo.
type Periodo struct {
	Inicio string `json:"inicio"`
	Fim    string `json:"fim"`
}

// Estatistico agrega um período por status e por serviço.
type Estatistico struct {
	Tipo       string              `json:"tipo"`
	Periodo    Periodo             `json:"periodo"`
	PorStatus  map[string]int      `json:"stats_status"`
	PorServico []repo.ServiceCount `json:"stats_servicos"`
}

// Completo lista todos os agendamentos do período.
type Completo struct {
	Tipo         string            `json:"tipo"`
	Periodo      Periodo           `json:"periodo"`
	Total        int               `json:"total"`
	Agendamentos []repo.AgendaItem `json:"agendamentos"`
}

func (s *Service) since(days int) time.Time {
	if days <= 0 {
		days = JanelaPadrao
	}
	return util.Day(s.now(), s.loc).AddDate(0, 0, -days)
}

// Attendance conta presenças (Presente, Atendido) e ausências (Faltou, Cancelado) nos últimos dias.
func (s *Service) Attendance(ctx context.Context, days int) (Comparecimento, error) {
	if days <= 0 {
		days = JanelaPadrao
	}
	a, err := s.repo.AggregateAttendance(ctx, s.since(days))
	if err != nil {
		return Comparecimento{}, fmt.Errorf("comparecimento: %w", err)
	}

	out := Comparecimento{Attendance: a, Dias: days}
	if a.Total > 0 {
		out.Taxa = float64(a.Presentes) / float64(a.Total) * 100
	}
	return out, nil
}

// TopServices devolve os serviços mais agendados nos últimos dias.
func (s *Service) TopServices(ctx context.Context, days, limit int) ([]repo.ServiceCount, error) {
	if limit <= 0 {
		limit = LimiteServicos
	}
	ranking, err := s.repo.TopServices(ctx, s.since(days), limit)
	if err != nil {
		return nil, fmt.Errorf("ranking de serviços: %w", err)
	}
	return ranking, nil
}

// Statistical agrega o período [from, to] por status e serviço.
func (s *Service) Statistical(ctx context.Context, from, to time.Time) (Estatistico, error) {
	items, err := s.between(ctx, from, to)
	if err != nil {
		return Estatistico{}, err
	}

	porStatus := map[string]int{}
	porServico := map[string]int{}
	for _, it := range items {
		porStatus[it.Status]++
		porServico[it.Servico]++
	}

	ranking := make([]repo.ServiceCount, 0, len(porServico))
	for servico, n := range porServico {
		ranking = append(ranking, repo.ServiceCount{Servico: servico, Quantidade: n})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Quantidade != ranking[j].Quantidade {
			return ranking[i].Quantidade > ranking[j].Quantidade
		}
		return ranking[i].Servico < ranking[j].Servico
	})

	return Estatistico{
		Tipo:       "estatistico",
		Periodo:    Periodo{Inicio: util.FormatDate(from), Fim: util.FormatDate(to)},
		PorStatus:  porStatus,
		PorServico: ranking,
	}, nil
}

// Complete lista os agendamentos do período [from, to] com dados do cliente.
func (s *Service) Complete(ctx context.Context, from, to time.Time) (Completo, error) {
	items, err := s.between(ctx, from, to)
	if err != nil {
		return Completo{}, err
	}
	if items == nil {
		items = []repo.AgendaItem{}
	}
	return Completo{
		Tipo:         "completo",
		Periodo:      Periodo{Inicio: util.FormatDate(from), Fim: util.FormatDate(to)},
		Total:        len(items),
		Agendamentos: items,
	}, nil
}

func (s *Service) between(ctx context.Context, from, to time.Time) ([]repo.AgendaItem, error) {
	if repo.DateOnly(from).After(repo.DateOnly(to)) {
		return nil, ErrInvalidPeriod
	}
	items, err := s.repo.ListAppointmentsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("agendamentos do período: %w", err)
	}
	return items, nil
}
