package models

// CollectionTotals is the derived, read-only summary of a list of cards
type CollectionTotals struct {
	TotalCards      int     `json:"total_cards"`
	UniquePlayers   int     `json:"unique_players"`
	TotalInvested   float64 `json:"total_invested"`
	CollectionValue float64 `json:"collection_value"`

	ForSaleCount    int     `json:"for_sale_count"`
	ForSaleAskTotal float64 `json:"for_sale_ask_total"`

	// SoldValue is the summed current value of sold cards, as shown on the KPI card
	SoldValue      float64 `json:"sold_value"`
	SoldCount      int     `json:"sold_count"`
	Revenue        float64 `json:"revenue"`
	RealisedProfit float64 `json:"realised_profit"`
}

// PlayerValue is one row of the "top players by value" ranking
type PlayerValue struct {
	Player string  `json:"player"`
	Value  float64 `json:"value"`
	Cards  int     `json:"cards"`
}

// CollectionStats is the API response for the dashboard summary
type CollectionStats struct {
	Totals     CollectionTotals `json:"totals"`
	TopPlayers []PlayerValue    `json:"top_players"`
}
