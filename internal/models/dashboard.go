package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DashboardMetric struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
	Trend string `json:"trend"`
}

type ChannelPerformanceRow struct {
	Source     string  `json:"source"`
	Channel    string  `json:"channel"`
	Installs   int64   `json:"installs"`
	Signups    int64   `json:"signups"`
	RevenueUSD float64 `json:"revenue_usd"`
	SpendUSD   float64 `json:"spend_usd"`
	CACUSD     float64 `json:"cac_usd"`
	ROAS       string  `json:"roas"`
}

// TimeRange полуинтервал [Start, End)
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// ChannelAggregate одна группа GROUP BY (source, channel). Nil означает органику.
type ChannelAggregate struct {
	Source  *string
	Channel *string
	Count   int64
	Sum     decimal.Decimal
}
