package models

import (
	"encoding/json"
	"time"
)

// SkanPostback журнал постбэков SKAdNetwork, без связи с кликами и установками
type SkanPostback struct {
	ID              string          `json:"id"`
	WorkspaceID     string          `json:"workspace_id"`
	AppID           string          `json:"app_id"`
	CampaignID      *string         `json:"campaign_id"`
	ConversionValue *int64          `json:"conversion_value"`
	SourceAppID     *string         `json:"source_app_id,omitempty"`
	FidelityType    *string         `json:"fidelity_type,omitempty"`
	IsRedownload    *bool           `json:"is_redownload,omitempty"`
	PostbackAt      *time.Time      `json:"postback_at"`
	RawPayload      json.RawMessage `json:"raw_payload,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type SkanInput struct {
	AppID           string
	RawPayload      json.RawMessage
	CampaignID      string
	ConversionValue *float64
	SourceAppID     string
	FidelityType    string
	IsRedownload    *bool
	PostbackAt      string
}
