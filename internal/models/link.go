package models

import (
	"time"
)

// TrackingLink неизменяема после создания; slug уникален глобально
type TrackingLink struct {
	ID              string     `json:"id"`
	WorkspaceID     string     `json:"workspace_id"`
	AppID           string     `json:"app_id"`
	CreatedByUserID *string    `json:"created_by_user_id,omitempty"`
	Slug            string     `json:"slug"`
	Source          string     `json:"source"`
	Channel         string     `json:"channel"`
	Campaign        string     `json:"campaign"`
	Adset           *string    `json:"adset,omitempty"`
	Creative        *string    `json:"creative,omitempty"`
	InfluencerID    *string    `json:"influencer_id,omitempty"`
	DestinationURL  *string    `json:"destination_url,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	App             *MobileApp `json:"app,omitempty"`
}

type CreateLinkInput struct {
	AppID          string
	Source         string
	Channel        string
	Campaign       string
	Adset          string
	Creative       string
	InfluencerID   string
	DestinationURL string
}

// LinkSummary ссылка со счётчиками для списка в кабинете
type LinkSummary struct {
	TrackingLink
	AppName  string `json:"app_name"`
	Clicks   int64  `json:"clicks"`
	Installs int64  `json:"installs"`
}
