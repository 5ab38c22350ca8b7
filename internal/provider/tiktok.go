package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/SergeiKhy/sourcetrace/internal/models"
)

const (
	tiktokName           = "tiktok"
	DefaultTikTokBaseURL = "https://business-api.tiktok.com"
	tiktokReportPath     = "/open_api/v1.3/report/integrated/get/"
)

type tiktokReportRequest struct {
	AdvertiserID string   `json:"advertiser_id"`
	ReportType   string   `json:"report_type"`
	DataLevel    string   `json:"data_level"`
	Dimensions   []string `json:"dimensions"`
	Metrics      []string `json:"metrics"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	Page         int      `json:"page"`
	PageSize     int      `json:"page_size"`
}

type tiktokReportRow struct {
	StatTimeDay  string `json:"stat_time_day"`
	CampaignName string `json:"campaign_name"`
	AdgroupName  string `json:"adgroup_name"`
	AdName       string `json:"ad_name"`
	Spend        string `json:"spend"`
	Clicks       string `json:"clicks"`
	Impressions  string `json:"impressions"`
}

type tiktokResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		List     []tiktokReportRow `json:"list"`
		PageInfo struct {
			Page      int `json:"page"`
			TotalPage int `json:"total_page"`
		} `json:"page_info"`
	} `json:"data"`
}

// TikTokClient Business API integrated report, постраничная пагинация
type TikTokClient struct {
	accessToken  string
	advertiserID string
	baseURL      string
	http         *http.Client
}

func NewTikTokClient(accessToken, advertiserID, baseURL string, httpClient *http.Client) *TikTokClient {
	if baseURL == "" {
		baseURL = DefaultTikTokBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TikTokClient{
		accessToken:  accessToken,
		advertiserID: advertiserID,
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         httpClient,
	}
}

func (c *TikTokClient) Name() string {
	return tiktokName
}

func (c *TikTokClient) FetchCostRows(ctx context.Context, startDate, endDate string) ([]models.ExternalCostRow, error) {
	if c.accessToken == "" || c.advertiserID == "" {
		return nil, &UpstreamError{
			Provider: tiktokName,
			Message:  "missing TIKTOK_ACCESS_TOKEN or TIKTOK_ADVERTISER_ID",
		}
	}

	var out []models.ExternalCostRow
	for page, totalPages := 1, 1; page <= totalPages; page++ {
		payload, err := c.fetchPage(ctx, startDate, endDate, page)
		if err != nil {
			return nil, err
		}

		totalPages = payload.Data.PageInfo.TotalPage
		if totalPages == 0 {
			totalPages = 1
		}

		for _, row := range payload.Data.List {
			out = append(out, models.ExternalCostRow{
				Date:        firstNonEmpty(dayOnly(row.StatTimeDay), startDate),
				Source:      tiktokName,
				Channel:     ChannelPaidSocial,
				Campaign:    row.CampaignName,
				Adset:       row.AdgroupName,
				Creative:    row.AdName,
				CostUSD:     valueOr(parseNumber(row.Spend), 0),
				Clicks:      parseNumber(row.Clicks),
				Impressions: parseNumber(row.Impressions),
			})
		}
	}

	return out, nil
}

func (c *TikTokClient) fetchPage(ctx context.Context, startDate, endDate string, page int) (*tiktokResponse, error) {
	body, err := json.Marshal(tiktokReportRequest{
		AdvertiserID: c.advertiserID,
		ReportType:   "BASIC",
		DataLevel:    "AUCTION_AD",
		Dimensions:   []string{"stat_time_day", "campaign_name", "adgroup_name", "ad_name"},
		Metrics:      []string{"spend", "clicks", "impressions"},
		StartDate:    startDate,
		EndDate:      endDate,
		Page:         page,
		PageSize:     pageSize,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tiktokReportPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build tiktok request: %w", err)
	}
	req.Header.Set("Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &UpstreamError{Provider: tiktokName, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamFromResponse(tiktokName, resp)
	}

	var payload tiktokResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &UpstreamError{
			Provider: tiktokName,
			Status:   resp.StatusCode,
			Message:  "malformed response: " + err.Error(),
		}
	}

	// TikTok отвечает 200 и кладёт ошибку в code
	if payload.Code != 0 {
		return nil, &UpstreamError{Provider: tiktokName, Status: payload.Code, Message: payload.Message}
	}

	return &payload, nil
}

// dayOnly stat_time_day приходит как "YYYY-MM-DD HH:MM:SS"
func dayOnly(value string) string {
	if len(value) > len("2006-01-02") {
		return value[:len("2006-01-02")]
	}
	return value
}
