package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/repository"
)

const (
	metricWindow  = 7 * 24 * time.Hour
	channelWindow = 30 * 24 * time.Hour
)

// DashboardService метрики кабинета. Атрибуция берётся из снапшотов событий и установок.
type DashboardService interface {
	Metrics(ctx context.Context, actor models.Actor) ([]models.DashboardMetric, error)
	ChannelPerformance(ctx context.Context, actor models.Actor) ([]models.ChannelPerformanceRow, error)
}

type dashboardService struct {
	stats repository.StatsRepository
	now   Clock
}

func NewDashboardService(stats repository.StatsRepository, now Clock) DashboardService {
	return &dashboardService{
		stats: stats,
		now:   orSystemClock(now),
	}
}

// windowTotals значения одного окна
type windowTotals struct {
	installs int64
	signups  int64
	spend    decimal.Decimal
	revenue  decimal.Decimal
}

func (t windowTotals) cac() decimal.Decimal {
	return CAC(t.spend, t.signups)
}

// roas числом для сравнения окон; 0 без расходов
func (t windowTotals) roas() decimal.Decimal {
	if !t.spend.IsPositive() {
		return decimal.Zero
	}
	return t.revenue.Div(t.spend)
}

// Metrics текущие 7 дней против предыдущих 7
func (s *dashboardService) Metrics(ctx context.Context, actor models.Actor) ([]models.DashboardMetric, error) {
	if !actor.Authorized {
		return nil, ErrForbidden
	}

	now := s.now()
	current := models.TimeRange{Start: now.Add(-metricWindow), End: now}
	previous := models.TimeRange{Start: now.Add(-2 * metricWindow), End: current.Start}

	cur, err := s.totals(ctx, actor.WorkspaceID, current)
	if err != nil {
		return nil, err
	}
	prev, err := s.totals(ctx, actor.WorkspaceID, previous)
	if err != nil {
		return nil, err
	}

	roasValue := "0.00x"
	if cur.spend.IsPositive() {
		roasValue = ROAS(cur.revenue, cur.spend)
	}

	return []models.DashboardMetric{
		{
			ID:    "installs",
			Label: "Installs",
			Value: FormatCompact(cur.installs),
			Trend: PercentChange(decimal.NewFromInt(cur.installs), decimal.NewFromInt(prev.installs)),
		},
		{
			ID:    "spend",
			Label: "Ad Spend",
			Value: FormatCurrency(cur.spend),
			Trend: PercentChange(cur.spend, prev.spend),
		},
		{
			ID:    "cac",
			Label: "CAC",
			Value: FormatCurrency(cur.cac()),
			Trend: PercentChange(cur.cac(), prev.cac()),
		},
		{
			ID:    "roas",
			Label: "ROAS",
			Value: roasValue,
			Trend: PercentChange(cur.roas(), prev.roas()),
		},
		{
			ID:    "revenue",
			Label: "Attributed Revenue",
			Value: FormatCurrency(cur.revenue),
			Trend: PercentChange(cur.revenue, prev.revenue),
		},
	}, nil
}

func (s *dashboardService) totals(ctx context.Context, workspaceID string, tr models.TimeRange) (windowTotals, error) {
	var (
		t   windowTotals
		err error
	)
	if t.installs, err = s.stats.CountInstalls(ctx, workspaceID, tr); err != nil {
		return t, err
	}
	if t.signups, err = s.stats.CountEvents(ctx, workspaceID, models.EventSignup, tr); err != nil {
		return t, err
	}
	if t.spend, err = s.stats.SumSpend(ctx, workspaceID, tr); err != nil {
		return t, err
	}
	if t.revenue, err = s.stats.SumEventValue(ctx, workspaceID, models.RevenueEvents, tr); err != nil {
		return t, err
	}
	return t, nil
}

// channelTotals строка разбивки до вычисления CAC/ROAS
type channelTotals struct {
	source, channel string
	installs        int64
	signups         int64
	revenue         decimal.Decimal
	spend           decimal.Decimal
}

// ChannelPerformance разбивка за 30 дней. Четыре группировки независимы:
// канал может встречаться только в одной из них.
func (s *dashboardService) ChannelPerformance(ctx context.Context, actor models.Actor) ([]models.ChannelPerformanceRow, error) {
	if !actor.Authorized {
		return nil, ErrForbidden
	}

	since := s.now().Add(-channelWindow)
	ws := actor.WorkspaceID

	installs, err := s.stats.InstallsByChannel(ctx, ws, since)
	if err != nil {
		return nil, err
	}
	signups, err := s.stats.EventsByChannel(ctx, ws, models.EventSignup, since)
	if err != nil {
		return nil, err
	}
	revenue, err := s.stats.EventValueByChannel(ctx, ws, models.RevenueEvents, since)
	if err != nil {
		return nil, err
	}
	spend, err := s.stats.SpendByChannel(ctx, ws, since)
	if err != nil {
		return nil, err
	}

	merged := make(map[[2]string]*channelTotals)
	var order []*channelTotals
	row := func(agg models.ChannelAggregate) *channelTotals {
		key := [2]string{models.OrOrganic(agg.Source), models.OrOrganic(agg.Channel)}
		if r, ok := merged[key]; ok {
			return r
		}
		r := &channelTotals{source: key[0], channel: key[1]}
		merged[key] = r
		order = append(order, r)
		return r
	}

	for _, a := range installs {
		row(a).installs += a.Count
	}
	for _, a := range signups {
		row(a).signups += a.Count
	}
	for _, a := range revenue {
		r := row(a)
		r.revenue = r.revenue.Add(a.Sum)
	}
	for _, a := range spend {
		r := row(a)
		r.spend = r.spend.Add(a.Sum)
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.installs != b.installs {
			return a.installs > b.installs
		}
		if a.source != b.source {
			return a.source < b.source
		}
		return a.channel < b.channel
	})

	rows := make([]models.ChannelPerformanceRow, 0, len(order))
	for _, r := range order {
		rows = append(rows, models.ChannelPerformanceRow{
			Source:     r.source,
			Channel:    r.channel,
			Installs:   r.installs,
			Signups:    r.signups,
			RevenueUSD: r.revenue.InexactFloat64(),
			SpendUSD:   r.spend.InexactFloat64(),
			CACUSD:     CAC(r.spend, r.signups).InexactFloat64(),
			ROAS:       ROAS(r.revenue, r.spend),
		})
	}
	return rows, nil
}
