package staging

import (
	"testing"
)

// newRawTable builds the in-memory raw snapshot tests feed the normalizers.
func newRawTable(columns []string, rows ...[]any) *rawTable {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}
	return &rawTable{index: index, rows: rows}
}

func TestNormalizeOrders_DedupesByIDKeepingEarliest(t *testing.T) {
	t.Parallel()

	// The export repeats the order header on every line row. One row per id
	// must survive, chosen by created_at order, and blank ids are dropped.
	cols := []string{"id", "name", "email", "subtotal", "discount_amount", "refunded_amount", "created_at"}
	raw := newRawTable(cols,
		[]any{"1002", "#1002", "b@x.com", "30.00", "", "", "2025-02-01 10:00:00"},
		[]any{"1001", "#1001", "a@x.com", "20.00", "2.00", "0.00", "2025-01-01 10:00:00"},
		[]any{"1001", "#1001", "a@x.com", "20.00", "2.00", "0.00", "2025-01-01 10:00:00"},
		[]any{"", "#bad", "", "", "", "", ""},
	)

	orders := normalizeOrders(raw)
	if len(orders) != 2 {
		t.Fatalf("orders=%d, want 2", len(orders))
	}
	if orders[0].OrderID != 1001 || orders[1].OrderID != 1002 {
		t.Fatalf("order ids=%d,%d, want 1001,1002", orders[0].OrderID, orders[1].OrderID)
	}

	o := orders[0]
	if o.Subtotal == nil || *o.Subtotal != 20 {
		t.Fatalf("subtotal=%v, want 20", o.Subtotal)
	}
	if o.DiscountAmount != 2 {
		t.Fatalf("discount=%v, want 2", o.DiscountAmount)
	}
	if o.CreatedAt == nil {
		t.Fatalf("created_at=nil, want parsed")
	}

	// Missing discount defaults to zero, missing subtotal stays null.
	if orders[1].DiscountAmount != 0 {
		t.Fatalf("default discount=%v, want 0", orders[1].DiscountAmount)
	}
}

func TestNormalizeOrderLines_NumbersByItemName(t *testing.T) {
	t.Parallel()

	// Line numbers are assigned alphabetically by item name within an order,
	// starting at 1. Rows without an item name are not lines.
	cols := []string{"id", "name", "lineitem_name", "lineitem_quantity", "lineitem_price"}
	raw := newRawTable(cols,
		[]any{"1001", "#1001", "Oud 50ml", "2", "10.00"},
		[]any{"1001", "#1001", "Amber 30ml", "1", "15.00"},
		[]any{"1001", "#1001", "", "", ""},
		[]any{"1002", "#1002", "Zafran 50ml", "", "30.00"},
	)

	lines := normalizeOrderLines(raw)
	if len(lines) != 3 {
		t.Fatalf("lines=%d, want 3", len(lines))
	}

	if lines[0].Name != "Amber 30ml" || lines[0].LineNumber != 1 {
		t.Fatalf("first line=%q #%d, want Amber 30ml #1", lines[0].Name, lines[0].LineNumber)
	}
	if lines[1].Name != "Oud 50ml" || lines[1].LineNumber != 2 {
		t.Fatalf("second line=%q #%d, want Oud 50ml #2", lines[1].Name, lines[1].LineNumber)
	}

	// Numbering restarts per order; missing quantity defaults to 1.
	if lines[2].OrderID != 1002 || lines[2].LineNumber != 1 {
		t.Fatalf("third line order=%d #%d, want 1002 #1", lines[2].OrderID, lines[2].LineNumber)
	}
	if lines[2].Quantity != 1 {
		t.Fatalf("default quantity=%d, want 1", lines[2].Quantity)
	}
}

func TestNormalizeProducts_DedupesByHandle(t *testing.T) {
	t.Parallel()

	cols := []string{"handle", "title", "vendor", "variant_price", "published"}
	raw := newRawTable(cols,
		[]any{"oud-50", "Oud B", "House", "25.00", "TRUE"},
		[]any{"oud-50", "Oud A", "House", "24.00", "FALSE"},
		[]any{"", "orphan variant", "", "", ""},
	)

	products := normalizeProducts(raw)
	if len(products) != 1 {
		t.Fatalf("products=%d, want 1", len(products))
	}
	// First by (handle, title): "Oud A" beats "Oud B".
	if products[0].Title != "Oud A" {
		t.Fatalf("title=%q, want Oud A", products[0].Title)
	}
	if products[0].IsPublished {
		t.Fatalf("is_published=true, want false")
	}
}

func TestNormalizeMetaAds_SpendFallback(t *testing.T) {
	t.Parallel()

	cols := []string{"campaign_name", "amount_spent_usd", "impressions", "ctr"}
	raw := newRawTable(cols,
		[]any{"Launch", "$1,200.50", "10000", "1.93%"},
		[]any{"", "5.00", "", ""},
	)

	ads, err := normalizeMetaAds(raw)
	if err != nil {
		t.Fatalf("normalizeMetaAds: %v", err)
	}
	if len(ads) != 1 {
		t.Fatalf("ads=%d, want 1", len(ads))
	}
	if ads[0].AmountSpent != 1200.50 {
		t.Fatalf("amount_spent=%v, want 1200.50", ads[0].AmountSpent)
	}
	if ads[0].CTR == nil || *ads[0].CTR != 0.0193 {
		t.Fatalf("ctr=%v, want 0.0193", ads[0].CTR)
	}
}

func TestNormalizeMetaAds_UnrecognizedLayout(t *testing.T) {
	t.Parallel()

	raw := newRawTable([]string{"some_column"}, []any{"x"})
	if _, err := normalizeMetaAds(raw); err == nil {
		t.Fatalf("want error for layout without campaign_name")
	}
}

func TestNormalizeSKUMap_ActiveDefaultsTrue(t *testing.T) {
	t.Parallel()

	cols := []string{"internal_sku", "lineitem_name", "size_ml", "recipe_id", "is_active"}
	raw := newRawTable(cols,
		[]any{"OUD-50", "Oud 50ml", "50", "R1", ""},
		[]any{"AMB-30", "Amber 30ml", "30", "R2", "false"},
		[]any{"", "no sku", "", "", ""},
	)

	mappings := normalizeSKUMap(raw)
	if len(mappings) != 2 {
		t.Fatalf("mappings=%d, want 2", len(mappings))
	}
	if !mappings[0].IsActive {
		t.Fatalf("blank is_active should default true")
	}
	if mappings[1].IsActive {
		t.Fatalf("explicit false must stay false")
	}
	if mappings[0].SizeML == nil || *mappings[0].SizeML != 50 {
		t.Fatalf("size_ml=%v, want 50", mappings[0].SizeML)
	}
}
