package service_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/service"
	"github.com/SergeiKhy/sourcetrace/internal/service/mocks"
)

func TestSkanService_Capture(t *testing.T) {
	f := newFixture()
	repo := mocks.NewMockSkanRepository()
	svc := service.NewSkanService(f.apps, repo, f.logger, nil)

	raw := json.RawMessage(`{"version":"4.0","ad-network-id":"x.skadnetwork","conversion-value":41.5}`)
	redownload := true
	postback, err := svc.Capture(f.ctx, f.actor(), &models.SkanInput{
		AppID:           f.iosApp.ID,
		RawPayload:      raw,
		CampaignID:      "42",
		ConversionValue: floatPtr(41.5),
		FidelityType:    "1",
		IsRedownload:    &redownload,
		PostbackAt:      "2025-03-14T10:00:00Z",
	})
	require.NoError(t, err)

	require.Len(t, repo.Postbacks, 1)
	assert.Equal(t, string(raw), string(postback.RawPayload), "payload хранится дословно")
	assert.Equal(t, int64(42), *postback.ConversionValue, "округление, не отбрасывание")
	assert.Equal(t, "42", *postback.CampaignID)
	assert.Nil(t, postback.SourceAppID)
	assert.True(t, *postback.IsRedownload)
	assert.Equal(t, time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC), *postback.PostbackAt)
}

func TestSkanService_Rounding(t *testing.T) {
	f := newFixture()
	svc := service.NewSkanService(f.apps, mocks.NewMockSkanRepository(), f.logger, nil)

	tests := []struct {
		in   float64
		want int64
	}{
		{2.4, 2},
		{2.5, 3},
		{-2.5, -3},
		{63, 63},
	}
	for _, tt := range tests {
		postback, err := svc.Capture(f.ctx, f.actor(), &models.SkanInput{
			AppID:           f.iosApp.ID,
			RawPayload:      json.RawMessage(`{}`),
			ConversionValue: floatPtr(tt.in),
		})
		require.NoError(t, err)
		assert.Equal(t, tt.want, *postback.ConversionValue, "%v", tt.in)
	}
}

// TestSkanService_InvalidPostbackAt непарсящаяся дата постбэка сохраняется как NULL
func TestSkanService_InvalidPostbackAt(t *testing.T) {
	f := newFixture()
	svc := service.NewSkanService(f.apps, mocks.NewMockSkanRepository(), f.logger, nil)

	postback, err := svc.Capture(f.ctx, f.actor(), &models.SkanInput{
		AppID:      f.iosApp.ID,
		RawPayload: json.RawMessage(`{"a":1}`),
		PostbackAt: "yesterday",
	})
	require.NoError(t, err)
	assert.Nil(t, postback.PostbackAt)
	assert.Nil(t, postback.ConversionValue)
}

func TestSkanService_Validation(t *testing.T) {
	f := newFixture()
	svc := service.NewSkanService(f.apps, mocks.NewMockSkanRepository(), f.logger, nil)

	var vErr *service.ValidationError
	_, err := svc.Capture(f.ctx, f.actor(), &models.SkanInput{RawPayload: json.RawMessage(`{}`)})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "app_id", vErr.Field)

	_, err = svc.Capture(f.ctx, f.actor(), &models.SkanInput{AppID: f.iosApp.ID, RawPayload: json.RawMessage(`null`)})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "raw_payload", vErr.Field)

	_, err = svc.Capture(f.ctx, f.actor(), &models.SkanInput{AppID: "nope", RawPayload: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, service.ErrAppNotFound)
}
