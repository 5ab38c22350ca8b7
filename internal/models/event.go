package models

import (
	"encoding/json"
	"time"
)

type EventName string

const (
	EventInstall             EventName = "INSTALL"
	EventSignup              EventName = "SIGNUP"
	EventTrialStart          EventName = "TRIAL_START"
	EventPurchase            EventName = "PURCHASE"
	EventSubscriptionStart   EventName = "SUBSCRIPTION_START"
	EventSubscriptionRenewal EventName = "SUBSCRIPTION_RENEWAL"
	EventCustom              EventName = "CUSTOM"
)

var canonicalEvents = map[string]EventName{
	"install":              EventInstall,
	"signup":               EventSignup,
	"trial_start":          EventTrialStart,
	"purchase":             EventPurchase,
	"subscription_start":   EventSubscriptionStart,
	"subscription_renewal": EventSubscriptionRenewal,
}

// RevenueEvents события, из которых считается атрибуцированная выручка
var RevenueEvents = []EventName{EventPurchase, EventSubscriptionStart, EventSubscriptionRenewal}

// CanonicalEventName маппит имя из API в словарь; неизвестные имена уходят в CUSTOM
func CanonicalEventName(raw string) EventName {
	if name, ok := canonicalEvents[raw]; ok {
		return name
	}
	return EventCustom
}

// Event неизменяем после создания. Дашборд читает только снапшот атрибуции события.
type Event struct {
	ID             string              `json:"id"`
	WorkspaceID    string              `json:"workspace_id"`
	AppID          string              `json:"app_id"`
	InstallID      *string             `json:"install_id"`
	EventName      EventName           `json:"event_name"`
	EventNameRaw   *string             `json:"event_name_raw,omitempty"`
	OccurredAt     time.Time           `json:"occurred_at"`
	Platform       Platform            `json:"platform"`
	DeviceID       *string             `json:"device_id,omitempty"`
	ExternalUserID *string             `json:"external_user_id,omitempty"`
	EventValue     *float64            `json:"event_value,omitempty"`
	Currency       *string             `json:"currency,omitempty"`
	Metadata       json.RawMessage     `json:"metadata,omitempty"`
	Attribution    AttributionSnapshot `json:"-"`
	CreatedAt      time.Time           `json:"created_at"`
}

type EventInput struct {
	EventName      string
	EventTimestamp string
	AppID          string
	Platform       Platform
	InstallID      string
	DeviceID       string
	UserID         string
	EventValue     *float64
	Currency       string
	Metadata       json.RawMessage
}

// ExternalUserBackfill проставляет external_user_id установке, у которой его ещё нет
type ExternalUserBackfill struct {
	InstallID      string
	ExternalUserID string
}
