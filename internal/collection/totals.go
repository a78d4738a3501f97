package collection

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/codyseavey/cardvault/internal/models"
)

// ComputeTotals derives the collection summary from a list of cards. It is pure: no I/O, no state.
func ComputeTotals(records []models.CardRecord) models.CollectionTotals {
	totals := models.CollectionTotals{TotalCards: len(records)}
	players := make(map[string]struct{}, len(records))
	var soldPaid float64

	for _, c := range records {
		if key := playerKey(c.Player); key != "" {
			players[key] = struct{}{}
		}

		paid := models.FiniteAmount(c.Paid)
		value := models.FiniteAmount(c.Value)
		totals.TotalInvested += paid
		totals.CollectionValue += value

		switch c.Status {
		case models.StatusForSale:
			totals.ForSaleCount++
			if c.AskingPrice != nil {
				totals.ForSaleAskTotal += models.FiniteAmount(*c.AskingPrice)
			}
		case models.StatusSold:
			totals.SoldCount++
			totals.SoldValue += value
			if c.SoldPrice != nil {
				totals.Revenue += models.FiniteAmount(*c.SoldPrice)
			}
			soldPaid += paid
		}
	}

	totals.UniquePlayers = len(players)
	totals.RealisedProfit = totals.Revenue - soldPaid
	return totals
}

// TopPlayersByValue ranks players by the summed current value of their cards.
// Ties break on player name so the order is stable. n <= 0 returns every player.
func TopPlayersByValue(records []models.CardRecord, n int) []models.PlayerValue {
	byKey := make(map[string]*models.PlayerValue)
	var order []string
	for _, c := range records {
		key := playerKey(c.Player)
		if key == "" {
			continue
		}
		pv, ok := byKey[key]
		if !ok {
			pv = &models.PlayerValue{Player: strings.TrimSpace(c.Player)}
			byKey[key] = pv
			order = append(order, key)
		}
		pv.Value += models.FiniteAmount(c.Value)
		pv.Cards++
	}

	out := make([]models.PlayerValue, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return strings.ToLower(out[i].Player) < strings.ToLower(out[j].Player)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// FormatMoney renders an amount the way the KPI cards show it.
func FormatMoney(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		n = 0
	}
	if n < 0 {
		return fmt.Sprintf("-£%.2f", -n)
	}
	return fmt.Sprintf("£%.2f", n)
}

func playerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
