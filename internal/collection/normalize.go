package collection

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/codyseavey/cardvault/internal/models"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]`)

// ApplyFormDefaults applies the add-card form rules: a player name is required,
// blank descriptive fields become a placeholder, and rarity, condition and status get defaults.
func ApplyFormDefaults(in *models.NewCardRecord) error {
	in.Player = strings.TrimSpace(in.Player)
	if in.Player == "" {
		return ErrPlayerRequired
	}
	for _, f := range []*string{&in.Team, &in.Brand, &in.Set, &in.Variant} {
		*f = strings.TrimSpace(*f)
		if *f == "" {
			*f = models.PlaceholderField
		}
	}
	if !in.Rarity.IsValid() {
		in.Rarity = models.RarityCommon
	}
	if strings.TrimSpace(in.Condition) == "" {
		in.Condition = models.DefaultCondition
	}
	if !in.Status.IsValid() {
		in.Status = models.StatusInCollection
	}
	return nil
}

// buildPayload turns create input into the row sent to the record service.
// Amounts are made finite and non-negative, and status-dependent fields are cleared or filled.
func buildPayload(ownerID string, in models.NewCardRecord, now time.Time) models.CardRecord {
	status := in.Status
	if !status.IsValid() {
		status = models.StatusInCollection
	}
	year := in.Year
	if year < 0 {
		year = 0
	}

	card := models.CardRecord{
		OwnerID:     ownerID,
		Player:      in.Player,
		Team:        in.Team,
		Year:        year,
		Brand:       in.Brand,
		Set:         in.Set,
		Variant:     in.Variant,
		Rarity:      in.Rarity,
		Condition:   in.Condition,
		Paid:        models.FiniteAmount(in.Paid),
		Value:       models.FiniteAmount(in.Value),
		Status:      status,
		AskingPrice: models.FiniteAmountPtr(in.AskingPrice),
		SoldPrice:   models.FiniteAmountPtr(in.SoldPrice),
		SoldAt:      in.SoldAt,
		ImageURL:    in.ImageURL,
	}
	if card.Status == models.StatusSold && card.SoldAt == nil {
		soldAt := now.UTC()
		card.SoldAt = &soldAt
	}
	card.EnforceStatusFields()
	return card
}

// validateImage checks that an upload is a non-empty image of acceptable size and
// returns the content type to store it with.
func validateImage(img *models.ImageUpload) (string, error) {
	if len(img.Data) == 0 {
		return "", &ImageUploadError{Reason: "empty file"}
	}
	if len(img.Data) > models.MaxImageUploadSize {
		return "", &ImageUploadError{Reason: fmt.Sprintf("file exceeds %d bytes", models.MaxImageUploadSize)}
	}
	if img.ContentType != "" && !strings.HasPrefix(img.ContentType, "image/") {
		return "", &ImageUploadError{Reason: "please upload an image file"}
	}
	detected := mimetype.Detect(img.Data).String()
	if !strings.HasPrefix(detected, "image/") {
		return "", &ImageUploadError{Reason: "please upload an image file"}
	}
	if img.ContentType != "" {
		return img.ContentType, nil
	}
	return detected, nil
}

// ImageObjectPath is where a card image lives in the bucket: <owner>/<unix millis>_<sanitised name>.
func ImageObjectPath(ownerID, fileName string, now time.Time) string {
	name := unsafeFileChars.ReplaceAllString(fileName, "_")
	if name == "" {
		name = "image"
	}
	return fmt.Sprintf("%s/%d_%s", ownerID, now.UnixMilli(), name)
}
