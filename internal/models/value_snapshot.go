package models

import (
	"time"
)

// CollectionValueSnapshot stores one owner's daily collection totals for historical tracking
type CollectionValueSnapshot struct {
	ID              uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID         string    `json:"user_id" gorm:"column:user_id;not null;uniqueIndex:idx_snapshot_owner_date"`
	SnapshotDate    time.Time `json:"snapshot_date" gorm:"not null;uniqueIndex:idx_snapshot_owner_date"`
	TotalCards      int       `json:"total_cards"`
	UniquePlayers   int       `json:"unique_players"`
	TotalInvested   float64   `json:"total_invested"`
	CollectionValue float64   `json:"collection_value"`
	ForSaleCount    int       `json:"for_sale_count"`
	SoldCount       int       `json:"sold_count"`
	Revenue         float64   `json:"revenue"`
	RealisedProfit  float64   `json:"realised_profit"`
	CreatedAt       time.Time `json:"created_at"`
}

// ValueHistoryResponse is the API response for value history
type ValueHistoryResponse struct {
	Snapshots []CollectionValueSnapshot `json:"snapshots"`
	Period    string                    `json:"period"` // "week", "month", "3month", "year", "all"
}
