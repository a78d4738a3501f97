package collection

import (
	"net/url"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/codyseavey/cardvault/internal/models"
)

// FilterRecords keeps the cards whose player, team, brand, set or variant contain query,
// case-insensitively. A blank query keeps everything.
func FilterRecords(records []models.CardRecord, query string) []models.CardRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return records
	}
	var out []models.CardRecord
	for _, c := range records {
		haystack := strings.ToLower(strings.Join([]string{c.Player, c.Team, c.Brand, c.Set, c.Variant}, " "))
		if strings.Contains(haystack, q) {
			out = append(out, c)
		}
	}
	return out
}

type playerNames []string

func (p playerNames) String(i int) string { return p[i] }
func (p playerNames) Len() int            { return len(p) }

// MatchPlayers fuzzy-matches query against the distinct player names in records,
// best match first, at most n results (n <= 0 means no limit).
func MatchPlayers(records []models.CardRecord, query string, n int) []string {
	seen := make(map[string]struct{})
	var names playerNames
	for _, c := range records {
		key := playerKey(c.Player)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, strings.TrimSpace(c.Player))
	}

	matches := fuzzy.FindFrom(strings.TrimSpace(query), names)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, names[m.Index])
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}

// CompsQuery is the search phrase used to look up comparable sales for a card.
func CompsQuery(c models.CardRecord) string {
	var parts []string
	for _, p := range []string{c.Player, c.Brand, c.Set, c.Variant} {
		p = strings.TrimSpace(p)
		if p != "" && p != models.PlaceholderField {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// EbaySoldURL links to completed, sold eBay listings for query.
func EbaySoldURL(query string) string {
	return "https://www.ebay.co.uk/sch/i.html?_nkw=" + url.QueryEscape(query) + "&LH_Complete=1&LH_Sold=1"
}

// Point130URL links to 130point sales results for query.
func Point130URL(query string) string {
	return "https://130point.com/sales?q=" + url.QueryEscape(query)
}
