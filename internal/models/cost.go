package models

import (
	"encoding/json"
	"time"
)

// AdCostEntry строка расходов. Уникальность по (source, channel, ..., date) не обеспечивается:
// повторный импорт создаёт дубликаты, агрегация их суммирует.
type AdCostEntry struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	AppID       *string         `json:"app_id"`
	Source      string          `json:"source"`
	Channel     string          `json:"channel"`
	Campaign    *string         `json:"campaign"`
	Adset       *string         `json:"adset"`
	Creative    *string         `json:"creative"`
	Date        time.Time       `json:"date"`
	CostUSD     float64         `json:"cost_usd"`
	Clicks      *int64          `json:"clicks"`
	Impressions *int64          `json:"impressions"`
	Installs    *int64          `json:"installs"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CostRowInput одна строка импорта. CostUSD == nil означает отсутствующее или нечисловое значение.
type CostRowInput struct {
	AppID       string
	Source      string
	Channel     string
	Campaign    string
	Adset       string
	Creative    string
	Date        string
	CostUSD     *float64
	Clicks      *float64
	Impressions *float64
	Installs    *float64
	Metadata    json.RawMessage
}

// ExternalCostRow нормализованная строка от рекламного провайдера
type ExternalCostRow struct {
	Date        string
	Source      string
	Channel     string
	Campaign    string
	Adset       string
	Creative    string
	CostUSD     float64
	Clicks      *float64
	Impressions *float64
	Installs    *float64
	Metadata    json.RawMessage
}

type SyncRequest struct {
	Provider  string
	StartDate string
	EndDate   string
	AppID     string
}
