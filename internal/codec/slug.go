// Package codec генерирует непрозрачные идентификаторы и кодирует токены атрибуции,
// которые переносятся через реферер Play Store и campaign token App Store.
package codec

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	maxSlugLength    = 50
	linkSuffixLength = 6
	opaqueIDLength   = 16

	defaultSourceSlug   = "src"
	defaultCampaignSlug = "cmp"

	ClickIDPrefix = "clk_"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// randomHex возвращает n hex-символов из случайного UUIDv4 (crypto/rand внутри)
func randomHex(n int) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return raw[:n]
}

// NewOpaqueID prefix + 16 hex-символов, безопасно для URL
func NewOpaqueID(prefix string) string {
	return prefix + randomHex(opaqueIDLength)
}

// NewClickID идентификатор клика вида clk_xxxxxxxxxxxxxxxx
func NewClickID() string {
	return NewOpaqueID(ClickIDPrefix)
}

// Slugify приводит текст к нижнему регистру, схлопывает всё кроме [a-z0-9] в один "-"
// и обрезает до 50 символов. Пустой вход даёт пустую строку.
func Slugify(value string) string {
	s := strings.ToLower(strings.TrimSpace(value))
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLength {
		s = s[:maxSlugLength]
	}
	return s
}

// BuildLinkSlug {source}-{campaign}-{6 hex}. Каждый вызов даёт новый слаг;
// уникальность обеспечивает случайный суффикс и unique-констрейнт в БД.
func BuildLinkSlug(source, campaign string) string {
	sourceSlug := Slugify(source)
	if sourceSlug == "" {
		sourceSlug = defaultSourceSlug
	}
	campaignSlug := Slugify(campaign)
	if campaignSlug == "" {
		campaignSlug = defaultCampaignSlug
	}
	return sourceSlug + "-" + campaignSlug + "-" + randomHex(linkSuffixLength)
}
