package models

import (
	"time"
)

// Click пишется ровно один раз на каждый редирект и больше не меняется
type Click struct {
	ID           string            `json:"id"`
	ClickID      string            `json:"click_id"`
	LinkID       string            `json:"link_id"`
	IPAddress    string            `json:"ip_address"`
	UserAgent    string            `json:"user_agent"`
	Referrer     string            `json:"referrer"`
	Locale       string            `json:"locale"`
	Country      string            `json:"country"`
	PlatformHint *Platform         `json:"platform_hint,omitempty"`
	Query        map[string]string `json:"query"`
	ClickedAt    time.Time         `json:"clicked_at"`

	// Link заполняется при поиске клика для матчинга установки
	Link *TrackingLink `json:"link,omitempty"`
}

// ClickRequest метаданные входящего редирект-запроса
type ClickRequest struct {
	UserAgent        string
	Referrer         string
	ForwardedFor     string
	RemoteIP         string
	Locale           string
	PlatformOverride string
	Query            map[string]string
}

// Redirect результат обработки клика
type Redirect struct {
	Location string
	ClickID  string // пусто, если слаг не найден
	Platform Platform
}
