// Package staging turns schema-on-read raw tables into typed, deduplicated
// staging tables. All cleansing rules live here: later stages can assume
// staging rows are well-typed and keyed.
package staging

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"shopdw/internal/schema"
	"shopdw/internal/storage"
)

// Normalizer builds every staging table from the raw landing zone.
type Normalizer struct {
	Store storage.Store
	Log   *zap.Logger
}

// Run rebuilds all staging tables. The core exports (orders, products,
// customers, SKU map, materials, recipes) are required; the marketing and
// search tables are best-effort and only log a warning when their raw
// source is absent or malformed.
func (n *Normalizer) Run(ctx context.Context) error {
	orders, err := n.loadRaw(ctx, schema.RawOrders)
	if err != nil {
		return err
	}
	if orders == nil {
		return fmt.Errorf("staging: %s has not been loaded", schema.RawOrders)
	}

	if err := n.replace(ctx, schema.StgOrders, orderColumns, encodeOrders(normalizeOrders(orders))); err != nil {
		return err
	}
	if err := n.replace(ctx, schema.StgOrderLines, orderLineColumns, encodeOrderLines(normalizeOrderLines(orders))); err != nil {
		return err
	}

	steps := []struct {
		raw     string
		stg     string
		columns []string
		build   func(*rawTable) [][]any
	}{
		{schema.RawProducts, schema.StgProducts, productColumns,
			func(t *rawTable) [][]any { return encodeProducts(normalizeProducts(t)) }},
		{schema.RawCustomers, schema.StgCustomers, customerColumns,
			func(t *rawTable) [][]any { return encodeCustomers(normalizeCustomers(t)) }},
		{schema.RawSKUMap, schema.StgSKUMap, skuMapColumns,
			func(t *rawTable) [][]any { return encodeSKUMappings(normalizeSKUMap(t)) }},
		{schema.RawMaterialCosts, schema.StgMaterialCosts, materialColumns,
			func(t *rawTable) [][]any { return encodeMaterials(normalizeMaterials(t)) }},
		{schema.RawRecipes, schema.StgRecipes, recipeColumns,
			func(t *rawTable) [][]any { return encodeRecipes(normalizeRecipes(t)) }},
	}
	for _, s := range steps {
		t, err := n.loadRaw(ctx, s.raw)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("staging: %s has not been loaded", s.raw)
		}
		if err := n.replace(ctx, s.stg, s.columns, s.build(t)); err != nil {
			return err
		}
	}

	n.buildOptional(ctx, schema.RawMetaAds, schema.StgMetaAds, metaAdColumns,
		func(t *rawTable) ([][]any, error) {
			ads, err := normalizeMetaAds(t)
			return encodeMetaAds(ads), err
		})
	n.buildOptional(ctx, schema.RawSearchDaily, schema.StgSearchDaily, searchDayColumns,
		func(t *rawTable) ([][]any, error) {
			return encodeSearchDays(normalizeSearchDays(t)), nil
		})

	return nil
}

// buildOptional rebuilds a staging table whose raw source may be absent.
// Any failure leaves the staging table empty and logs a warning.
func (n *Normalizer) buildOptional(ctx context.Context, raw, stg string, columns []string, build func(*rawTable) ([][]any, error)) {
	t, err := n.loadRaw(ctx, raw)
	if err != nil {
		n.Log.Warn("could not read optional raw table", zap.String("table", raw), zap.Error(err))
		return
	}
	if t == nil {
		n.Log.Info("optional raw table not loaded, leaving staging empty", zap.String("table", raw))
		if err := n.Store.Truncate(ctx, stg); err != nil {
			n.Log.Warn("could not truncate", zap.String("table", stg), zap.Error(err))
		}
		return
	}

	rows, err := build(t)
	if err != nil {
		n.Log.Warn("could not build optional staging table", zap.String("table", stg), zap.Error(err))
		return
	}
	if err := n.replace(ctx, stg, columns, rows); err != nil {
		n.Log.Warn("could not load optional staging table", zap.String("table", stg), zap.Error(err))
	}
}

// replace truncates then loads one staging table.
func (n *Normalizer) replace(ctx context.Context, table string, columns []string, rows [][]any) error {
	if err := n.Store.Truncate(ctx, table); err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}
	if len(rows) > 0 {
		if err := n.Store.InsertRows(ctx, table, columns, rows); err != nil {
			return fmt.Errorf("load %s: %w", table, err)
		}
	}
	n.Log.Info("built staging table", zap.String("table", table), zap.Int("rows", len(rows)))
	return nil
}

// rawTable is an in-memory snapshot of a raw table: column index plus rows.
type rawTable struct {
	index map[string]int
	rows  [][]any
}

// loadRaw snapshots a raw table. A nil return means the table does not exist.
func (n *Normalizer) loadRaw(ctx context.Context, table string) (*rawTable, error) {
	columns, err := n.Store.ColumnNames(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, nil
	}

	rows, err := n.Store.SelectRows(ctx, table, columns)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}

	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}
	return &rawTable{index: index, rows: rows}, nil
}

func (t *rawTable) has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// get returns the trimmed text of one cell; missing columns read as blank.
func (t *rawTable) get(row []any, column string) string {
	i, ok := t.index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(storage.AsString(row[i]))
}

// normalizeOrders collapses the line-grained order export to one row per
// order id. Within an id, rows are ordered by created_at text and the first
// wins; the export repeats order headers on every line, so any row works,
// but the rule keeps reruns deterministic.
func normalizeOrders(t *rawTable) []Order {
	type candidate struct {
		created string
		row     []any
	}
	byID := make(map[int64][]candidate)
	var ids []int64
	for _, row := range t.rows {
		id := ParseInt(t.get(row, "id"))
		if id == nil {
			continue
		}
		if _, seen := byID[*id]; !seen {
			ids = append(ids, *id)
		}
		byID[*id] = append(byID[*id], candidate{created: t.get(row, "created_at"), row: row})
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	orders := make([]Order, 0, len(ids))
	for _, id := range ids {
		cands := byID[id]
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].created < cands[j].created })
		row := cands[0].row

		orders = append(orders, Order{
			OrderID:           id,
			OrderNumber:       t.get(row, "name"),
			Email:             t.get(row, "email"),
			FinancialStatus:   t.get(row, "financial_status"),
			FulfillmentStatus: t.get(row, "fulfillment_status"),
			Currency:          t.get(row, "currency"),
			Subtotal:          ParseMoney(t.get(row, "subtotal")),
			Shipping:          ParseMoney(t.get(row, "shipping")),
			Taxes:             ParseMoney(t.get(row, "taxes")),
			Total:             ParseMoney(t.get(row, "total")),
			DiscountCode:      t.get(row, "discount_code"),
			DiscountAmount:    MoneyOrZero(t.get(row, "discount_amount")),
			RefundedAmount:    MoneyOrZero(t.get(row, "refunded_amount")),
			ShippingMethod:    t.get(row, "shipping_method"),
			RiskLevel:         t.get(row, "risk_level"),
			Source:            t.get(row, "source"),
			PaymentMethod:     t.get(row, "payment_method"),
			BillingCity:       t.get(row, "billing_city"),
			BillingProvince:   t.get(row, "billing_province"),
			BillingCountry:    t.get(row, "billing_country"),
			BillingZip:        t.get(row, "billing_zip"),
			ShippingCity:      t.get(row, "shipping_city"),
			ShippingProvince:  t.get(row, "shipping_province"),
			ShippingCountry:   t.get(row, "shipping_country"),
			ShippingZip:       t.get(row, "shipping_zip"),
			CreatedAt:         ParseTime(t.get(row, "created_at")),
			PaidAt:            ParseTime(t.get(row, "paid_at")),
			FulfilledAt:       ParseTime(t.get(row, "fulfilled_at")),
			CancelledAt:       ParseTime(t.get(row, "cancelled_at")),
		})
	}
	return orders
}

// normalizeOrderLines keeps rows with a line-item name and numbers them
// within each order by item name, ascending, starting at 1.
func normalizeOrderLines(t *rawTable) []OrderLine {
	var lines []OrderLine
	for _, row := range t.rows {
		id := ParseInt(t.get(row, "id"))
		if id == nil {
			continue
		}
		name := t.get(row, "lineitem_name")
		if name == "" {
			continue
		}
		lines = append(lines, OrderLine{
			OrderID:           *id,
			OrderNumber:       t.get(row, "name"),
			Name:              name,
			SKU:               t.get(row, "lineitem_sku"),
			Quantity:          IntOrDefault(t.get(row, "lineitem_quantity"), 1),
			Price:             ParseMoney(t.get(row, "lineitem_price")),
			CompareAtPrice:    ParseMoney(t.get(row, "lineitem_compare_at_price")),
			Discount:          MoneyOrZero(t.get(row, "lineitem_discount")),
			FulfillmentStatus: t.get(row, "lineitem_fulfillment_status"),
			Vendor:            t.get(row, "vendor"),
			CreatedAt:         ParseTime(t.get(row, "created_at")),
		})
	}

	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].OrderID != lines[j].OrderID {
			return lines[i].OrderID < lines[j].OrderID
		}
		return lines[i].Name < lines[j].Name
	})

	var prev int64
	var next int64
	for i := range lines {
		if lines[i].OrderID != prev {
			prev = lines[i].OrderID
			next = 0
		}
		next++
		lines[i].LineNumber = next
	}
	return lines
}

// normalizeProducts keeps one row per handle, preferring the first row in
// (handle, title) order.
func normalizeProducts(t *rawTable) []Product {
	type candidate struct {
		title string
		row   []any
	}
	byHandle := make(map[string][]candidate)
	var handles []string
	for _, row := range t.rows {
		handle := t.get(row, "handle")
		if handle == "" {
			continue
		}
		if _, seen := byHandle[handle]; !seen {
			handles = append(handles, handle)
		}
		byHandle[handle] = append(byHandle[handle], candidate{title: t.get(row, "title"), row: row})
	}
	sort.Strings(handles)

	products := make([]Product, 0, len(handles))
	for _, handle := range handles {
		cands := byHandle[handle]
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].title < cands[j].title })
		row := cands[0].row

		products = append(products, Product{
			Handle:              handle,
			Title:               t.get(row, "title"),
			Vendor:              t.get(row, "vendor"),
			Category:            t.get(row, "product_category"),
			Type:                t.get(row, "type"),
			Tags:                t.get(row, "tags"),
			VariantSKU:          t.get(row, "variant_sku"),
			VariantPrice:        ParseMoney(t.get(row, "variant_price")),
			CompareAtPrice:      ParseMoney(t.get(row, "variant_compare_at_price")),
			VariantInventoryQty: IntOrDefault(t.get(row, "variant_inventory_qty"), 0),
			IsPublished:         ParseFlag(t.get(row, "published"), false),
			Status:              t.get(row, "status"),
		})
	}
	return products
}

func normalizeCustomers(t *rawTable) []Customer {
	var customers []Customer
	for _, row := range t.rows {
		id := ParseInt(t.get(row, "customer_id"))
		if id == nil {
			continue
		}
		customers = append(customers, Customer{
			CustomerID:            *id,
			FirstName:             t.get(row, "first_name"),
			LastName:              t.get(row, "last_name"),
			Email:                 t.get(row, "email"),
			AcceptsEmailMarketing: ParseFlag(t.get(row, "accepts_email_marketing"), false),
			AcceptsSMSMarketing:   ParseFlag(t.get(row, "accepts_sms_marketing"), false),
			City:                  t.get(row, "default_address_city"),
			Province:              t.get(row, "default_address_province_code"),
			ProvinceCode:          t.get(row, "default_address_province_code"),
			Country:               t.get(row, "default_address_country_code"),
			CountryCode:           t.get(row, "default_address_country_code"),
			Zip:                   t.get(row, "default_address_zip"),
			TotalSpent:            MoneyOrZero(t.get(row, "total_spent")),
			TotalOrders:           IntOrDefault(t.get(row, "total_orders"), 0),
		})
	}
	return customers
}

func normalizeSKUMap(t *rawTable) []SKUMapping {
	var mappings []SKUMapping
	for _, row := range t.rows {
		sku := t.get(row, "internal_sku")
		if sku == "" {
			continue
		}
		mappings = append(mappings, SKUMapping{
			InternalSKU:   sku,
			LineItemName:  t.get(row, "lineitem_name"),
			ProductHandle: t.get(row, "product_handle"),
			SizeML:        ParseInt(t.get(row, "size_ml")),
			RecipeID:      t.get(row, "recipe_id"),
			Category:      t.get(row, "product_category"),
			IsActive:      ParseFlag(t.get(row, "is_active"), true),
		})
	}
	return mappings
}

func normalizeMaterials(t *rawTable) []MaterialCost {
	var materials []MaterialCost
	for _, row := range t.rows {
		id := t.get(row, "material_id")
		if id == "" {
			continue
		}
		materials = append(materials, MaterialCost{
			MaterialID:      id,
			MaterialName:    t.get(row, "material_name"),
			IngredientMatch: t.get(row, "ingredient_match"),
			Category:        t.get(row, "category"),
			Unit:            t.get(row, "unit"),
			CostPerUnit:     ParseMoney(t.get(row, "cost_per_unit")),
			CostPerML:       ParseMoney(t.get(row, "cost_per_ml")),
			HasKnownCost:    ParseFlag(t.get(row, "has_known_cost"), false),
			Supplier:        t.get(row, "supplier"),
		})
	}
	return materials
}

func normalizeRecipes(t *rawTable) []RecipeLine {
	var recipes []RecipeLine
	for _, row := range t.rows {
		id := t.get(row, "recipe_id")
		if id == "" {
			continue
		}
		recipes = append(recipes, RecipeLine{
			RecipeID:        id,
			RecipeName:      t.get(row, "recipe_name"),
			Variant:         t.get(row, "variant"),
			BatchSizeML:     ParseInt(t.get(row, "batch_size_ml")),
			IngredientMatch: t.get(row, "ingredient_match"),
			Percent:         ParseFloat(t.get(row, "percent")),
			AmountML:        ParseFloat(t.get(row, "amount_ml")),
			MaterialID:      t.get(row, "material_id"),
		})
	}
	return recipes
}

// normalizeMetaAds requires the campaign_name column; ad exports vary and
// an unrecognizable layout is reported rather than loaded as garbage.
func normalizeMetaAds(t *rawTable) ([]MetaAd, error) {
	if !t.has("campaign_name") {
		return nil, fmt.Errorf("raw ads table has no campaign_name column")
	}
	var ads []MetaAd
	for _, row := range t.rows {
		name := t.get(row, "campaign_name")
		if name == "" {
			continue
		}
		spent := ParseMoney(t.get(row, "amount_spent"))
		if spent == nil {
			spent = ParseMoney(t.get(row, "amount_spent_usd"))
		}
		var amount float64
		if spent != nil {
			amount = *spent
		}
		ads = append(ads, MetaAd{
			CampaignName:     name,
			Reach:            ParseInt(t.get(row, "reach")),
			Impressions:      ParseInt(t.get(row, "impressions")),
			AmountSpent:      amount,
			LinkClicks:       ParseInt(t.get(row, "link_clicks")),
			LandingPageViews: ParseInt(t.get(row, "landing_page_views")),
			CPM:              ParseMoney(t.get(row, "cpm")),
			CPC:              ParseMoney(t.get(row, "cpc")),
			CTR:              ParsePercent(t.get(row, "ctr")),
		})
	}
	return ads, nil
}

func normalizeSearchDays(t *rawTable) []SearchDay {
	var days []SearchDay
	for _, row := range t.rows {
		date := ParseDate(t.get(row, "date"))
		if date == nil {
			continue
		}
		days = append(days, SearchDay{
			Date:        *date,
			Clicks:      ParseInt(t.get(row, "clicks")),
			Impressions: ParseInt(t.get(row, "impressions")),
			CTR:         ParsePercent(t.get(row, "ctr")),
			Position:    ParseFloat(t.get(row, "position")),
		})
	}
	return days
}
