package pipeline

import (
	"context"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"shopdw/internal/schema"
)

// Summary is the end-of-run snapshot of the warehouse.
type Summary struct {
	Orders    int64
	LineItems int64
	Customers int64
	Products  int64
	Revenue   float64
	Units     float64
}

// Summarize reads the headline counts and totals from the warehouse.
func (p *Pipeline) Summarize(ctx context.Context) (Summary, error) {
	var s Summary
	var err error

	if s.Orders, err = p.Store.CountRows(ctx, schema.FactOrder); err != nil {
		return s, err
	}
	if s.LineItems, err = p.Store.CountRows(ctx, schema.FactOrderLine); err != nil {
		return s, err
	}
	if s.Customers, err = p.Store.CountRows(ctx, schema.DimCustomer); err != nil {
		return s, err
	}
	if s.Products, err = p.Store.CountRows(ctx, schema.DimProduct); err != nil {
		return s, err
	}
	if s.Revenue, err = p.Store.SumColumn(ctx, schema.FactOrder, "net_sales"); err != nil {
		return s, err
	}
	if s.Units, err = p.Store.SumColumn(ctx, schema.FactOrder, "unit_count"); err != nil {
		return s, err
	}
	return s, nil
}

// Write prints the summary for humans, with grouped thousands.
func (s Summary) Write(w io.Writer) {
	pr := message.NewPrinter(language.English)
	pr.Fprintf(w, "\nWarehouse summary:\n")
	pr.Fprintf(w, "  Orders:     %d\n", s.Orders)
	pr.Fprintf(w, "  Line items: %d\n", s.LineItems)
	pr.Fprintf(w, "  Customers:  %d\n", s.Customers)
	pr.Fprintf(w, "  Products:   %d\n", s.Products)
	pr.Fprintf(w, "  Revenue:    $%.2f\n", s.Revenue)
	pr.Fprintf(w, "  Units:      %.0f\n", s.Units)
}
