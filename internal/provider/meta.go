package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/SergeiKhy/sourcetrace/internal/models"
)

const (
	metaName           = "meta"
	DefaultMetaBaseURL = "https://graph.facebook.com/v22.0"
	metaInsightFields  = "date_start,campaign_name,adset_name,ad_name,spend,clicks,impressions,account_currency"
)

type metaInsightRow struct {
	DateStart       string `json:"date_start"`
	CampaignName    string `json:"campaign_name"`
	AdsetName       string `json:"adset_name"`
	AdName          string `json:"ad_name"`
	Spend           string `json:"spend"`
	Clicks          string `json:"clicks"`
	Impressions     string `json:"impressions"`
	AccountCurrency string `json:"account_currency"`
}

type metaInsightsResponse struct {
	Data   []metaInsightRow `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// MetaClient Graph API insights на уровне объявлений, по дням, с курсорной пагинацией
type MetaClient struct {
	accessToken string
	adAccountID string
	baseURL     string
	http        *http.Client
}

func NewMetaClient(accessToken, adAccountID, baseURL string, httpClient *http.Client) *MetaClient {
	if baseURL == "" {
		baseURL = DefaultMetaBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &MetaClient{
		accessToken: accessToken,
		adAccountID: adAccountID,
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        httpClient,
	}
}

func (c *MetaClient) Name() string {
	return metaName
}

func (c *MetaClient) FetchCostRows(ctx context.Context, startDate, endDate string) ([]models.ExternalCostRow, error) {
	if c.accessToken == "" || c.adAccountID == "" {
		return nil, &UpstreamError{
			Provider: metaName,
			Message:  "missing META_ACCESS_TOKEN or META_AD_ACCOUNT_ID",
		}
	}

	timeRange, err := json.Marshal(map[string]string{"since": startDate, "until": endDate})
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("level", "ad")
	params.Set("time_increment", "1")
	params.Set("fields", metaInsightFields)
	params.Set("time_range", string(timeRange))
	params.Set("limit", strconv.Itoa(pageSize))
	params.Set("access_token", c.accessToken)

	nextURL := fmt.Sprintf("%s/act_%s/insights?%s", c.baseURL, url.PathEscape(c.adAccountID), params.Encode())

	var out []models.ExternalCostRow
	for nextURL != "" {
		page, err := c.fetchPage(ctx, nextURL)
		if err != nil {
			return nil, err
		}

		for _, row := range page.Data {
			metadata, err := json.Marshal(map[string]string{
				"currency": firstNonEmpty(row.AccountCurrency, "USD"),
			})
			if err != nil {
				return nil, err
			}

			out = append(out, models.ExternalCostRow{
				Date:        firstNonEmpty(row.DateStart, startDate),
				Source:      metaName,
				Channel:     ChannelPaidSocial,
				Campaign:    row.CampaignName,
				Adset:       row.AdsetName,
				Creative:    row.AdName,
				CostUSD:     valueOr(parseNumber(row.Spend), 0),
				Clicks:      parseNumber(row.Clicks),
				Impressions: parseNumber(row.Impressions),
				Metadata:    metadata,
			})
		}

		nextURL = page.Paging.Next
	}

	return out, nil
}

func (c *MetaClient) fetchPage(ctx context.Context, pageURL string) (*metaInsightsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build meta request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &UpstreamError{Provider: metaName, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamFromResponse(metaName, resp)
	}

	var page metaInsightsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, &UpstreamError{
			Provider: metaName,
			Status:   resp.StatusCode,
			Message:  "malformed response: " + err.Error(),
		}
	}
	return &page, nil
}
