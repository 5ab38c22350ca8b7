package models

const organicLabel = "organic"

type AttributionStatus string

const (
	StatusAttributed AttributionStatus = "ATTRIBUTED"
	StatusOrganic    AttributionStatus = "ORGANIC"
)

// AttributionSnapshot копия (source, channel, campaign) ссылки на момент матчинга.
// Не является живой связью: последующие изменения ссылки сюда не попадают.
type AttributionSnapshot struct {
	Status   AttributionStatus
	Source   *string
	Channel  *string
	Campaign *string
}

func OrganicSnapshot() AttributionSnapshot {
	return AttributionSnapshot{Status: StatusOrganic}
}

func SnapshotFromLink(link *TrackingLink) AttributionSnapshot {
	source, channel, campaign := link.Source, link.Channel, link.Campaign
	return AttributionSnapshot{
		Status:   StatusAttributed,
		Source:   &source,
		Channel:  &channel,
		Campaign: &campaign,
	}
}

// AttributionView представление снапшота для API: null заменяется на "organic"
type AttributionView struct {
	Status   AttributionStatus `json:"status"`
	Source   string            `json:"source"`
	Channel  string            `json:"channel"`
	Campaign string            `json:"campaign"`
}

func (s AttributionSnapshot) View() AttributionView {
	return AttributionView{
		Status:   s.Status,
		Source:   OrOrganic(s.Source),
		Channel:  OrOrganic(s.Channel),
		Campaign: OrOrganic(s.Campaign),
	}
}

// OrOrganic ключ группировки для дашборда
func OrOrganic(value *string) string {
	if value == nil || *value == "" {
		return organicLabel
	}
	return *value
}
