package collection

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/cardvault/internal/models"
)

func TestApplyFormDefaults(t *testing.T) {
	in := models.NewCardRecord{Player: "  Jude Bellingham ", Team: " ", Brand: "Topps"}
	require.NoError(t, ApplyFormDefaults(&in))

	assert.Equal(t, "Jude Bellingham", in.Player)
	assert.Equal(t, models.PlaceholderField, in.Team)
	assert.Equal(t, "Topps", in.Brand)
	assert.Equal(t, models.PlaceholderField, in.Set)
	assert.Equal(t, models.PlaceholderField, in.Variant)
	assert.Equal(t, models.RarityCommon, in.Rarity)
	assert.Equal(t, models.DefaultCondition, in.Condition)
	assert.Equal(t, models.StatusInCollection, in.Status)

	blank := models.NewCardRecord{Player: "   "}
	assert.ErrorIs(t, ApplyFormDefaults(&blank), ErrPlayerRequired)
}

func TestBuildPayload(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	soldAt := now.Add(-time.Hour)

	tests := []struct {
		name  string
		in    models.NewCardRecord
		check func(t *testing.T, c models.CardRecord)
	}{
		{
			name: "in collection drops sale fields",
			in:   models.NewCardRecord{Status: models.StatusInCollection, AskingPrice: float(5), SoldPrice: float(6), SoldAt: &soldAt},
			check: func(t *testing.T, c models.CardRecord) {
				assert.Nil(t, c.AskingPrice)
				assert.Nil(t, c.SoldPrice)
				assert.Nil(t, c.SoldAt)
			},
		},
		{
			name: "for sale keeps a finite asking price",
			in:   models.NewCardRecord{Status: models.StatusForSale, AskingPrice: float(math.NaN()), SoldPrice: float(6)},
			check: func(t *testing.T, c models.CardRecord) {
				require.NotNil(t, c.AskingPrice)
				assert.Zero(t, *c.AskingPrice)
				assert.Nil(t, c.SoldPrice)
			},
		},
		{
			name: "sold keeps an explicit sold date",
			in:   models.NewCardRecord{Status: models.StatusSold, SoldPrice: float(75), SoldAt: &soldAt},
			check: func(t *testing.T, c models.CardRecord) {
				require.NotNil(t, c.SoldAt)
				assert.True(t, c.SoldAt.Equal(soldAt))
				assert.Equal(t, 75.0, *c.SoldPrice)
			},
		},
		{
			name: "unknown status falls back to in collection",
			in:   models.NewCardRecord{Status: "Lost", Year: -1, Paid: -3},
			check: func(t *testing.T, c models.CardRecord) {
				assert.Equal(t, models.StatusInCollection, c.Status)
				assert.Zero(t, c.Year)
				assert.Zero(t, c.Paid)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := buildPayload("owner-1", tt.in, now)
			assert.Equal(t, "owner-1", c.OwnerID)
			assert.Empty(t, c.ID)
			tt.check(t, c)
		})
	}
}

func TestImageObjectPath(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	assert.Equal(t, "u1/1700000000123_Yamal_rookie__1_.jpg", ImageObjectPath("u1", "Yamal rookie (1).jpg", now))
	assert.Equal(t, "u1/1700000000123_image", ImageObjectPath("u1", "", now))
}
