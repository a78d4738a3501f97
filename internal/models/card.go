package models

import (
	"math"
	"time"
)

type CardStatus string

const (
	StatusInCollection CardStatus = "In Collection"
	StatusForSale      CardStatus = "For Sale"
	StatusSold         CardStatus = "Sold"
)

// AllCardStatuses returns all valid card statuses
func AllCardStatuses() []CardStatus {
	return []CardStatus{StatusInCollection, StatusForSale, StatusSold}
}

// IsValid reports whether s is one of the known statuses
func (s CardStatus) IsValid() bool {
	switch s {
	case StatusInCollection, StatusForSale, StatusSold:
		return true
	}
	return false
}

type CardRarity string

const (
	RarityCommon    CardRarity = "Common"
	RarityRare      CardRarity = "Rare"
	RarityUltraRare CardRarity = "Ultra Rare"
)

// IsValid reports whether r is one of the known rarities
func (r CardRarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityUltraRare:
		return true
	}
	return false
}

const (
	DefaultCondition   = "Near Mint"
	PlaceholderField   = "—"
	CardImagesBucket   = "card-images"
	DefaultCardsTable  = "cards"
	MaxImageUploadSize = 10 << 20
)

// CardRecord is a single collectible owned by exactly one user
type CardRecord struct {
	ID      string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID string `json:"user_id" gorm:"column:user_id;not null;index"`

	Player  string `json:"player" gorm:"not null;index"`
	Team    string `json:"team"`
	Year    int    `json:"year"`
	Brand   string `json:"brand"`
	Set     string `json:"set" gorm:"column:set_name"`
	Variant string `json:"variant"`

	Rarity    CardRarity `json:"rarity" gorm:"default:'Common'"`
	Condition string     `json:"condition"`

	Paid  float64 `json:"paid"`
	Value float64 `json:"value"`

	Status CardStatus `json:"status" gorm:"not null;default:'In Collection';index"`

	AskingPrice *float64   `json:"asking_price"`
	SoldPrice   *float64   `json:"sold_price"`
	SoldAt      *time.Time `json:"sold_at"`

	ImageURL *string `json:"image_url"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName pins the table to the name the record service exposes
func (CardRecord) TableName() string {
	return DefaultCardsTable
}

// Profit is the unrealised gain of the card: current value minus what was paid
func (c CardRecord) Profit() float64 {
	return FiniteAmount(c.Value) - FiniteAmount(c.Paid)
}

// EnforceStatusFields clears the financial fields that don't apply to the record's status.
func (c *CardRecord) EnforceStatusFields() {
	if c.Status != StatusForSale {
		c.AskingPrice = nil
	}
	if c.Status != StatusSold {
		c.SoldPrice = nil
		c.SoldAt = nil
	}
}

// ImageUpload is an image file supplied alongside a new card
type ImageUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// NewCardRecord is the create input for a card; the owner, id and timestamps are assigned elsewhere
type NewCardRecord struct {
	Player    string
	Team      string
	Year      int
	Brand     string
	Set       string
	Variant   string
	Rarity    CardRarity
	Condition string

	Paid  float64
	Value float64

	Status      CardStatus
	AskingPrice *float64
	SoldPrice   *float64
	SoldAt      *time.Time

	ImageURL *string
	Image    *ImageUpload
}

// FiniteAmount collapses NaN, infinities and negatives to 0
func FiniteAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// FiniteAmountPtr applies FiniteAmount to an optional amount, keeping nil as nil
func FiniteAmountPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	n := FiniteAmount(*v)
	return &n
}

// Ordering describes the sort applied to a cards query
type Ordering struct {
	Column     string
	Descending bool
}

var (
	OrderCreatedAtDesc = Ordering{Column: "created_at", Descending: true}
	OrderIDDesc        = Ordering{Column: "id", Descending: true}
)

// String renders the ordering as column.direction, e.g. created_at.desc
func (o Ordering) String() string {
	if o.Descending {
		return o.Column + ".desc"
	}
	return o.Column + ".asc"
}
