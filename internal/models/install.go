package models

import (
	"time"
)

// Install ссылается максимум на одну ссылку и один клик.
// Поля атрибуции не меняются после создания; меняется только external_user_id.
type Install struct {
	ID              string              `json:"id"`
	WorkspaceID     string              `json:"workspace_id"`
	AppID           string              `json:"app_id"`
	LinkID          *string             `json:"link_id,omitempty"`
	ClickInternalID *string             `json:"click_internal_id,omitempty"`
	Platform        Platform            `json:"platform"`
	DeviceID        *string             `json:"device_id,omitempty"`
	ExternalUserID  *string             `json:"external_user_id,omitempty"`
	InstallReferrer *string             `json:"install_referrer,omitempty"`
	SkanCampaignID  *string             `json:"skan_campaign_id,omitempty"`
	InstalledAt     time.Time           `json:"installed_at"`
	Attribution     AttributionSnapshot `json:"-"`
	CreatedAt       time.Time           `json:"created_at"`
}

// InstallReport входящее сообщение об установке от SDK/бэкенда приложения
type InstallReport struct {
	AppID                 string
	Platform              Platform
	DeviceID              string
	ExternalUserID        string
	InstallReferrer       string
	AppStoreCampaignToken string
	ClickID               string
	LinkSlug              string
	SkanCampaignID        string
	InstalledAt           string
}

// InstallResult ответ матчинга
type InstallResult struct {
	InstallID      string              `json:"install_id"`
	Attribution    AttributionSnapshot `json:"-"`
	MatchedClickID *string             `json:"-"`
	MatchedLinkID  *string             `json:"-"`
}

// InstallAttribution развёрнутая атрибуция установки для кабинета
type InstallAttribution struct {
	InstallID   string
	Attribution AttributionSnapshot
	LinkID      *string
	LinkSlug    *string
	ClickID     *string
	ClickTime   *time.Time
}
