package codec

import (
	"net/url"
	"strings"
)

const (
	tokenSeparator = "."

	ReferrerClickIDParam  = "st_click_id"
	ReferrerLinkSlugParam = "st_link_slug"
)

// TokenValues значения, извлечённые из реферера или campaign token. Пустая строка означает отсутствие.
type TokenValues struct {
	LinkSlug string
	ClickID  string
}

// EncodeCampaignToken "{slug}.{clickId}", уходит в параметр ct App Store
func EncodeCampaignToken(linkSlug, clickID string) string {
	return linkSlug + tokenSeparator + clickID
}

// DecodeCampaignToken делит по первому разделителю; любая часть может отсутствовать
func DecodeCampaignToken(token string) TokenValues {
	if token == "" {
		return TokenValues{}
	}
	linkSlug, clickID, _ := strings.Cut(token, tokenSeparator)
	return TokenValues{LinkSlug: linkSlug, ClickID: clickID}
}

// ParseInstallReferrer читает st_click_id и st_link_slug из строки install referrer (query-string)
func ParseInstallReferrer(referrer string) TokenValues {
	if referrer == "" {
		return TokenValues{}
	}
	params, err := url.ParseQuery(strings.TrimPrefix(referrer, "?"))
	if err != nil && len(params) == 0 {
		return TokenValues{}
	}
	return TokenValues{
		ClickID:  params.Get(ReferrerClickIDParam),
		LinkSlug: params.Get(ReferrerLinkSlugParam),
	}
}

// BuildInstallReferrer строит вложенную query-строку для параметра referrer Play Store.
// Порядок параметров фиксирован, поэтому url.Values (сортирует ключи) не используется.
func BuildInstallReferrer(clickID, linkSlug, source, channel, campaign string) string {
	pairs := [][2]string{
		{ReferrerClickIDParam, clickID},
		{ReferrerLinkSlugParam, linkSlug},
		{"source", source},
		{"channel", channel},
		{"campaign", campaign},
	}

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[1]))
	}
	return b.String()
}

// EscapeComponent кодирует значение для query-параметра, пробел как %20
func EscapeComponent(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}
