package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/SergeiKhy/sourcetrace/internal/models"
)

const (
	// ChannelPaidSocial канал, которым помечаются все строки от провайдеров
	ChannelPaidSocial = "paid_social"

	pageSize     = 200
	maxErrorBody = 4 << 10
)

// Fetcher возвращает нормализованные строки расходов за диапазон дат (YYYY-MM-DD, включительно)
type Fetcher interface {
	Name() string
	FetchCostRows(ctx context.Context, startDate, endDate string) ([]models.ExternalCostRow, error)
}

// UpstreamError ответ провайдера не 2xx или код ошибки в теле.
// Status 0 означает, что запрос не дошёл до провайдера (нет настроек, сеть).
type UpstreamError struct {
	Provider string
	Status   int
	Message  string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.Status, e.Message)
}

// Registry провайдеры по имени ("meta", "tiktok")
type Registry map[string]Fetcher

func NewRegistry(fetchers ...Fetcher) Registry {
	r := make(Registry, len(fetchers))
	for _, f := range fetchers {
		r[f.Name()] = f
	}
	return r
}

func (r Registry) Get(name string) (Fetcher, bool) {
	f, ok := r[name]
	return f, ok
}

// parseNumber провайдеры отдают метрики строками; пустое или нечисловое значение отсутствует
func parseNumber(value string) *float64 {
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return nil
	}
	return &f
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func firstNonEmpty(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// upstreamFromResponse читает тело ошибки с ограничением размера
func upstreamFromResponse(providerName string, resp *http.Response) *UpstreamError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &UpstreamError{
		Provider: providerName,
		Status:   resp.StatusCode,
		Message:  strings.TrimSpace(string(body)),
	}
}
