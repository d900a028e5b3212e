/*
report.go - Reporting Aggregator

PURPOSE:
  Read-only projections over orders and the movement ledger for a date
  range: sales totals, order count, average ticket, top products by
  revenue, and cash inflow/outflow/balance. No mutation; an empty range
  yields the zero Summary.

AGGREGATION RULES:
  - Total sales: sum of order totals for orders created in range,
    cancelled orders excluded.
  - Average ticket: totalSales / orderCount, defined as 0 when the
    count is 0.
  - Top products: items grouped by product, summed quantity and
    revenue, sorted by revenue descending, ties broken by product id
    ascending, first N kept.
  - Cash: inflow = sale + deposit movements, outflow = withdrawal +
    expense movements, balance = inflow - outflow. Opening and closing
    movements mirror session state and are not counted.
*/
package pos

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTopProducts is the top-N cutoff when the caller passes n <= 0.
const DefaultTopProducts = 5

// ProductSales is one row of the top-products ranking.
type ProductSales struct {
	ProductID ProductID
	Name      string
	Quantity  int
	Revenue   Money
}

// CashFlow summarizes ledger movement over a range.
type CashFlow struct {
	Inflow  Money
	Outflow Money
	Balance Money
}

// Summary is the report for a date range.
type Summary struct {
	From          time.Time
	To            time.Time
	TotalSales    Money
	OrderCount    int
	AverageTicket Money
	TopProducts   []ProductSales
	Cash          CashFlow
}

// Reporter derives summaries by replaying orders and movements. It
// never writes.
type Reporter struct {
	store Store
}

// NewReporter builds a reporter over any Store (transactional scoping
// is unnecessary for pure reads).
func NewReporter(store Store) *Reporter {
	return &Reporter{store: store}
}

// Summarize aggregates orders and movements with CreatedAt in
// [from, to). topN <= 0 selects DefaultTopProducts.
func (r *Reporter) Summarize(ctx context.Context, from, to time.Time, topN int) (*Summary, error) {
	if topN <= 0 {
		topN = DefaultTopProducts
	}

	orders, err := r.store.OrdersInRange(ctx, from, to)
	if err != nil {
		return nil, storageErr("report orders", err)
	}
	movements, err := r.store.MovementsInRange(ctx, from, to)
	if err != nil {
		return nil, storageErr("report movements", err)
	}

	summary := &Summary{
		From:          from,
		To:            to,
		TotalSales:    decimal.Zero,
		AverageTicket: decimal.Zero,
		Cash: CashFlow{
			Inflow:  decimal.Zero,
			Outflow: decimal.Zero,
			Balance: decimal.Zero,
		},
	}

	byProduct := make(map[ProductID]*ProductSales)
	for _, o := range orders {
		if o.Status == StatusCancelled {
			continue
		}
		summary.OrderCount++
		summary.TotalSales = summary.TotalSales.Add(o.Total)

		for _, item := range o.Items {
			ps, ok := byProduct[item.ProductID]
			if !ok {
				ps = &ProductSales{
					ProductID: item.ProductID,
					Name:      item.ProductName,
					Revenue:   decimal.Zero,
				}
				byProduct[item.ProductID] = ps
			}
			ps.Quantity += item.Quantity
			ps.Revenue = ps.Revenue.Add(item.Subtotal())
		}
	}

	if summary.OrderCount > 0 {
		summary.AverageTicket = summary.TotalSales.DivRound(
			decimal.NewFromInt(int64(summary.OrderCount)), 2)
	}

	summary.TopProducts = rankProducts(byProduct, topN)

	for _, m := range movements {
		switch m.Type {
		case MovementSale, MovementDeposit:
			summary.Cash.Inflow = summary.Cash.Inflow.Add(m.Amount)
		case MovementWithdrawal, MovementExpense:
			summary.Cash.Outflow = summary.Cash.Outflow.Add(m.Amount)
		}
	}
	summary.Cash.Balance = summary.Cash.Inflow.Sub(summary.Cash.Outflow)

	return summary, nil
}

// rankProducts orders by revenue descending, product id ascending on
// ties, and keeps the first n.
func rankProducts(byProduct map[ProductID]*ProductSales, n int) []ProductSales {
	ranked := make([]ProductSales, 0, len(byProduct))
	for _, ps := range byProduct {
		ranked = append(ranked, *ps)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].Revenue.Equal(ranked[j].Revenue) {
			return ranked[i].Revenue.GreaterThan(ranked[j].Revenue)
		}
		return ranked[i].ProductID < ranked[j].ProductID
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
