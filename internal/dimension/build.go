// Package dimension rebuilds the star schema dimension tables from staging.
package dimension

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"shopdw/internal/identity"
	"shopdw/internal/schema"
	"shopdw/internal/staging"
	"shopdw/internal/storage"
)

// Builder rebuilds dim_product, dim_customer, dim_shipping_method and
// dim_material. dim_channel is seeded at schema init and dim_date comes
// from the calendar generator; neither is touched here.
type Builder struct {
	Store storage.Store
	Log   *zap.Logger

	// Fallbacks for products missing from the catalog export.
	DefaultVendor string
	DefaultPrice  float64
}

// Run rebuilds every derived dimension.
func (b *Builder) Run(ctx context.Context) error {
	skus, err := staging.ReadSKUMap(ctx, b.Store)
	if err != nil {
		return err
	}
	products, err := staging.ReadProducts(ctx, b.Store)
	if err != nil {
		return err
	}
	orders, err := staging.ReadOrders(ctx, b.Store)
	if err != nil {
		return err
	}
	customers, err := staging.ReadCustomers(ctx, b.Store)
	if err != nil {
		return err
	}
	materials, err := staging.ReadMaterialCosts(ctx, b.Store)
	if err != nil {
		return err
	}

	steps := []struct {
		table   string
		columns []string
		rows    [][]any
	}{
		{schema.DimProduct, productColumns, encodeProductRows(BuildProductRows(skus, products, b.DefaultVendor, b.DefaultPrice))},
		{schema.DimCustomer, customerColumns, encodeCustomerRows(BuildCustomerRows(orders, customers))},
		{schema.DimShippingMethod, shippingColumns, encodeShippingRows(BuildShippingRows(orders))},
		{schema.DimMaterial, materialColumns, encodeMaterialRows(materials)},
	}
	for _, s := range steps {
		if err := b.Store.Truncate(ctx, s.table); err != nil {
			return fmt.Errorf("truncate %s: %w", s.table, err)
		}
		if len(s.rows) > 0 {
			if err := b.Store.InsertRows(ctx, s.table, s.columns, s.rows); err != nil {
				return fmt.Errorf("load %s: %w", s.table, err)
			}
		}
		b.Log.Info("built dimension", zap.String("table", s.table), zap.Int("rows", len(s.rows)))
	}
	return nil
}

var (
	productColumns = []string{
		"internal_sku", "product_handle", "product_title", "size_ml",
		"recipe_id", "product_category", "vendor", "variant_price", "is_active",
	}
	customerColumns = []string{
		"customer_id_hash", "customer_id", "city", "province", "province_code",
		"country", "country_code", "accepts_email_marketing", "accepts_sms_marketing",
		"first_order_date", "total_orders", "total_spent", "customer_segment",
	}
	shippingColumns = []string{
		"shipping_method_code", "shipping_method_name", "is_local_delivery",
	}
	materialColumns = []string{
		"material_id", "material_name", "ingredient_match", "category", "unit",
		"cost_per_unit", "cost_per_ml", "has_known_cost", "supplier",
	}
)

// ProductRow is one dim_product row.
type ProductRow struct {
	InternalSKU  string
	Handle       string
	Title        string
	SizeML       *int64
	RecipeID     string
	Category     string
	Vendor       string
	VariantPrice float64
	IsActive     bool
}

// BuildProductRows derives dim_product from the SKU map, enriched from the
// catalog by handle. Vendor and price fall back to configured defaults so
// products absent from the export still roll up cleanly.
func BuildProductRows(skus []staging.SKUMapping, products []staging.Product, defaultVendor string, defaultPrice float64) []ProductRow {
	byHandle := make(map[string]staging.Product, len(products))
	for _, p := range products {
		if _, seen := byHandle[p.Handle]; !seen {
			byHandle[p.Handle] = p
		}
	}

	rows := make([]ProductRow, 0, len(skus))
	for _, s := range skus {
		vendor := defaultVendor
		price := defaultPrice
		if p, ok := byHandle[s.ProductHandle]; ok {
			if p.Vendor != "" {
				vendor = p.Vendor
			}
			if p.VariantPrice != nil {
				price = *p.VariantPrice
			}
		}
		rows = append(rows, ProductRow{
			InternalSKU:  s.InternalSKU,
			Handle:       s.ProductHandle,
			Title:        s.LineItemName,
			SizeML:       s.SizeML,
			RecipeID:     s.RecipeID,
			Category:     s.Category,
			Vendor:       vendor,
			VariantPrice: price,
			IsActive:     s.IsActive,
		})
	}
	return rows
}

// CustomerRow is one dim_customer row.
type CustomerRow struct {
	Hash                  string
	CustomerID            *int64
	City                  string
	Province              string
	ProvinceCode          string
	Country               string
	CountryCode           string
	AcceptsEmailMarketing bool
	AcceptsSMSMarketing   bool
	FirstOrderDate        *time.Time
	TotalOrders           int64
	TotalSpent            float64
	Segment               string
}

// Segment thresholds on lifetime order count.
const (
	SegmentProspect  = "prospect"
	SegmentNew       = "new"
	SegmentReturning = "returning"
)

func segmentFor(totalOrders int64) string {
	switch {
	case totalOrders <= 0:
		return SegmentProspect
	case totalOrders == 1:
		return SegmentNew
	default:
		return SegmentReturning
	}
}

// BuildCustomerRows derives dim_customer from the union of order emails.
// The order history is the identity source; the customer export only
// contributes demographics, joined by normalized email. Raw emails are
// replaced by their digest.
func BuildCustomerRows(orders []staging.Order, customers []staging.Customer) []CustomerRow {
	type stats struct {
		firstOrder *time.Time
		orderIDs   map[int64]bool
		spent      float64
	}

	byEmail := make(map[string]*stats)
	var emails []string
	for _, o := range orders {
		email := identity.NormalizeEmail(o.Email)
		if email == "" {
			continue
		}
		s, ok := byEmail[email]
		if !ok {
			s = &stats{orderIDs: make(map[int64]bool)}
			byEmail[email] = s
			emails = append(emails, email)
		}
		s.orderIDs[o.OrderID] = true
		if o.CreatedAt != nil && (s.firstOrder == nil || o.CreatedAt.Before(*s.firstOrder)) {
			s.firstOrder = o.CreatedAt
		}
		if o.Subtotal != nil {
			s.spent += *o.Subtotal - o.RefundedAmount
		}
	}
	sort.Strings(emails)

	demo := make(map[string]staging.Customer, len(customers))
	for _, c := range customers {
		key := identity.NormalizeEmail(c.Email)
		if key == "" {
			continue
		}
		if _, seen := demo[key]; !seen {
			demo[key] = c
		}
	}

	rows := make([]CustomerRow, 0, len(emails))
	for _, email := range emails {
		s := byEmail[email]
		row := CustomerRow{
			Hash:        identity.HashEmail(email),
			TotalOrders: int64(len(s.orderIDs)),
			TotalSpent:  s.spent,
			Segment:     segmentFor(int64(len(s.orderIDs))),
		}
		if s.firstOrder != nil {
			d := s.firstOrder.UTC().Truncate(24 * time.Hour)
			row.FirstOrderDate = &d
		}
		if c, ok := demo[email]; ok {
			id := c.CustomerID
			row.CustomerID = &id
			row.City = c.City
			row.Province = c.Province
			row.ProvinceCode = c.ProvinceCode
			row.Country = c.Country
			row.CountryCode = c.CountryCode
			row.AcceptsEmailMarketing = c.AcceptsEmailMarketing
			row.AcceptsSMSMarketing = c.AcceptsSMSMarketing
		}
		rows = append(rows, row)
	}
	return rows
}

// ShippingRow is one dim_shipping_method row.
type ShippingRow struct {
	Code    string
	Name    string
	IsLocal bool
}

// NormalizeShippingCode turns a shipping method label into its code.
func NormalizeShippingCode(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}

// BuildShippingRows derives dim_shipping_method from the distinct shipping
// methods seen on orders. When no order carries one, a single "unknown" row
// keeps the dimension non-empty for fact joins.
func BuildShippingRows(orders []staging.Order) []ShippingRow {
	byCode := make(map[string]ShippingRow)
	var codes []string
	for _, o := range orders {
		name := strings.TrimSpace(o.ShippingMethod)
		if name == "" {
			continue
		}
		code := NormalizeShippingCode(name)
		if _, seen := byCode[code]; seen {
			continue
		}
		byCode[code] = ShippingRow{
			Code:    code,
			Name:    name,
			IsLocal: strings.Contains(strings.ToLower(name), "local"),
		}
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return []ShippingRow{{Code: "unknown", Name: "Unknown", IsLocal: false}}
	}
	sort.Strings(codes)

	rows := make([]ShippingRow, 0, len(codes))
	for _, code := range codes {
		rows = append(rows, byCode[code])
	}
	return rows
}

func encodeProductRows(rows []ProductRow) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		var size any
		if r.SizeML != nil {
			size = *r.SizeML
		}
		out = append(out, []any{
			r.InternalSKU, r.Handle, r.Title, size,
			r.RecipeID, r.Category, r.Vendor, r.VariantPrice, r.IsActive,
		})
	}
	return out
}

func encodeCustomerRows(rows []CustomerRow) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		var id any
		if r.CustomerID != nil {
			id = *r.CustomerID
		}
		var first any
		if r.FirstOrderDate != nil {
			first = *r.FirstOrderDate
		}
		out = append(out, []any{
			r.Hash, id, r.City, r.Province, r.ProvinceCode,
			r.Country, r.CountryCode, r.AcceptsEmailMarketing, r.AcceptsSMSMarketing,
			first, r.TotalOrders, r.TotalSpent, r.Segment,
		})
	}
	return out
}

func encodeShippingRows(rows []ShippingRow) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.Code, r.Name, r.IsLocal})
	}
	return out
}

func encodeMaterialRows(materials []staging.MaterialCost) [][]any {
	out := make([][]any, 0, len(materials))
	for _, m := range materials {
		var perUnit, perML any
		if m.CostPerUnit != nil {
			perUnit = *m.CostPerUnit
		}
		if m.CostPerML != nil {
			perML = *m.CostPerML
		}
		out = append(out, []any{
			m.MaterialID, m.MaterialName, m.IngredientMatch, m.Category, m.Unit,
			perUnit, perML, m.HasKnownCost, m.Supplier,
		})
	}
	return out
}
