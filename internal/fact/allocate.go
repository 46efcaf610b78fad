// Package fact rebuilds the fact tables: order grain, line grain with
// proportional discount allocation, and the ingredient-level COGS estimate
// rolled back up onto lines.
package fact

import "shopdw/internal/staging"

// AllocateDiscount spreads an order-level discount over a line in proportion
// to the line's share of the order's gross product sales. A zero or negative
// gross allocates nothing; there is no base to apportion against.
func AllocateDiscount(grossLine, orderGross, orderDiscount float64) float64 {
	if orderGross <= 0 {
		return 0
	}
	return grossLine / orderGross * orderDiscount
}

// LineAggregate summarizes one order's lines for the order-grain fact.
type LineAggregate struct {
	UnitCount       int64
	LineItemCount   int64
	CalculatedGross float64
}

// AggregateLines computes per-order line summaries. The calculated gross
// (unit price times quantity, summed) is preferred over the export subtotal
// because the export rounds after discounting.
func AggregateLines(lines []staging.OrderLine) map[int64]LineAggregate {
	agg := make(map[int64]LineAggregate)
	for _, l := range lines {
		a := agg[l.OrderID]
		a.UnitCount += l.Quantity
		a.LineItemCount++
		a.CalculatedGross += priceOrZero(l.Price) * float64(l.Quantity)
		agg[l.OrderID] = a
	}
	return agg
}

// GrossProductSales picks the order's gross product sales: the line-derived
// figure when lines exist, otherwise subtotal plus discount reconstructs the
// pre-discount gross.
func GrossProductSales(agg *LineAggregate, subtotal *float64, discount float64) float64 {
	if agg != nil {
		return agg.CalculatedGross
	}
	var sub float64
	if subtotal != nil {
		sub = *subtotal
	}
	return sub + discount
}

func priceOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
