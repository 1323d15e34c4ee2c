package receipt

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-keeper/internal/models"
)

// StoreGroup is every receipt from one store, newest first.
type StoreGroup struct {
	StoreName string            `json:"store_name"`
	Website   string            `json:"website,omitempty"`
	Latest    int64             `json:"latest"` // CreatedAt of the newest receipt
	Receipts  []*models.Receipt `json:"receipts"`
	Totals    []models.Money    `json:"totals"` // one per currency
}

// groupByStore expects receipts newest first and keeps that order, so
// groups come out ordered by their newest receipt.
func groupByStore(receipts []*models.Receipt) []*StoreGroup {
	var groups []*StoreGroup
	byName := make(map[string]*StoreGroup)
	sums := make(map[string]map[string]decimal.Decimal)

	for _, r := range receipts {
		g, ok := byName[r.StoreName]
		if !ok {
			g = &StoreGroup{StoreName: r.StoreName, Latest: r.CreatedAt}
			byName[r.StoreName] = g
			sums[r.StoreName] = make(map[string]decimal.Decimal)
			groups = append(groups, g)
		}
		if g.Website == "" {
			g.Website = r.Website
		}
		g.Receipts = append(g.Receipts, r)
		sums[r.StoreName][r.Total.Currency] = sums[r.StoreName][r.Total.Currency].Add(r.Total.Amount)
	}

	for _, g := range groups {
		for currency, amount := range sums[g.StoreName] {
			g.Totals = append(g.Totals, models.NewMoney(amount, currency))
		}
		sort.Slice(g.Totals, func(i, j int) bool {
			return g.Totals[i].Currency < g.Totals[j].Currency
		})
	}
	return groups
}
