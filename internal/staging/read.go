package staging

import (
	"context"
	"fmt"
	"time"

	"shopdw/internal/schema"
	"shopdw/internal/storage"
)

// Column orders are shared by the writers in build.go and the readers here,
// so encode and decode can never drift apart.
var (
	orderColumns = []string{
		"order_id", "order_number", "email", "financial_status", "fulfillment_status",
		"currency", "subtotal", "shipping", "taxes", "total", "discount_code",
		"discount_amount", "refunded_amount", "shipping_method", "risk_level",
		"source", "payment_method",
		"billing_city", "billing_province", "billing_country", "billing_zip",
		"shipping_city", "shipping_province", "shipping_country", "shipping_zip",
		"created_at", "paid_at", "fulfilled_at", "cancelled_at",
	}
	orderLineColumns = []string{
		"order_id", "order_number", "line_number", "lineitem_name", "lineitem_sku",
		"lineitem_quantity", "lineitem_price", "lineitem_compare_at_price",
		"lineitem_discount", "lineitem_fulfillment_status", "vendor", "created_at",
	}
	productColumns = []string{
		"handle", "title", "vendor", "product_category", "product_type", "tags",
		"variant_sku", "variant_price", "variant_compare_at_price",
		"variant_inventory_qty", "is_published", "status",
	}
	customerColumns = []string{
		"customer_id", "first_name", "last_name", "email",
		"accepts_email_marketing", "accepts_sms_marketing",
		"city", "province", "province_code", "country", "country_code", "zip",
		"total_spent", "total_orders",
	}
	skuMapColumns = []string{
		"internal_sku", "lineitem_name", "product_handle", "size_ml",
		"recipe_id", "product_category", "is_active",
	}
	materialColumns = []string{
		"material_id", "material_name", "ingredient_match", "category", "unit",
		"cost_per_unit", "cost_per_ml", "has_known_cost", "supplier",
	}
	recipeColumns = []string{
		"recipe_id", "recipe_name", "variant", "batch_size_ml",
		"ingredient_match", "percent", "amount_ml", "material_id",
	}
	metaAdColumns = []string{
		"campaign_name", "reach", "impressions", "amount_spent",
		"link_clicks", "landing_page_views", "cpm", "cpc", "ctr",
	}
	searchDayColumns = []string{
		"date", "clicks", "impressions", "ctr", "position",
	}
)

func encodeOrders(orders []Order) [][]any {
	rows := make([][]any, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, []any{
			o.OrderID, o.OrderNumber, o.Email, o.FinancialStatus, o.FulfillmentStatus,
			o.Currency, floatValue(o.Subtotal), floatValue(o.Shipping), floatValue(o.Taxes),
			floatValue(o.Total), o.DiscountCode,
			o.DiscountAmount, o.RefundedAmount, o.ShippingMethod, o.RiskLevel,
			o.Source, o.PaymentMethod,
			o.BillingCity, o.BillingProvince, o.BillingCountry, o.BillingZip,
			o.ShippingCity, o.ShippingProvince, o.ShippingCountry, o.ShippingZip,
			timeValue(o.CreatedAt), timeValue(o.PaidAt), timeValue(o.FulfilledAt), timeValue(o.CancelledAt),
		})
	}
	return rows
}

func encodeOrderLines(lines []OrderLine) [][]any {
	rows := make([][]any, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []any{
			l.OrderID, l.OrderNumber, l.LineNumber, l.Name, l.SKU,
			l.Quantity, floatValue(l.Price), floatValue(l.CompareAtPrice),
			l.Discount, l.FulfillmentStatus, l.Vendor, timeValue(l.CreatedAt),
		})
	}
	return rows
}

func encodeProducts(products []Product) [][]any {
	rows := make([][]any, 0, len(products))
	for _, p := range products {
		rows = append(rows, []any{
			p.Handle, p.Title, p.Vendor, p.Category, p.Type, p.Tags,
			p.VariantSKU, floatValue(p.VariantPrice), floatValue(p.CompareAtPrice),
			p.VariantInventoryQty, p.IsPublished, p.Status,
		})
	}
	return rows
}

func encodeCustomers(customers []Customer) [][]any {
	rows := make([][]any, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, []any{
			c.CustomerID, c.FirstName, c.LastName, c.Email,
			c.AcceptsEmailMarketing, c.AcceptsSMSMarketing,
			c.City, c.Province, c.ProvinceCode, c.Country, c.CountryCode, c.Zip,
			c.TotalSpent, c.TotalOrders,
		})
	}
	return rows
}

func encodeSKUMappings(mappings []SKUMapping) [][]any {
	rows := make([][]any, 0, len(mappings))
	for _, m := range mappings {
		rows = append(rows, []any{
			m.InternalSKU, m.LineItemName, m.ProductHandle, intValue(m.SizeML),
			m.RecipeID, m.Category, m.IsActive,
		})
	}
	return rows
}

func encodeMaterials(materials []MaterialCost) [][]any {
	rows := make([][]any, 0, len(materials))
	for _, m := range materials {
		rows = append(rows, []any{
			m.MaterialID, m.MaterialName, m.IngredientMatch, m.Category, m.Unit,
			floatValue(m.CostPerUnit), floatValue(m.CostPerML), m.HasKnownCost, m.Supplier,
		})
	}
	return rows
}

func encodeRecipes(recipes []RecipeLine) [][]any {
	rows := make([][]any, 0, len(recipes))
	for _, r := range recipes {
		rows = append(rows, []any{
			r.RecipeID, r.RecipeName, r.Variant, intValue(r.BatchSizeML),
			r.IngredientMatch, floatValue(r.Percent), floatValue(r.AmountML), r.MaterialID,
		})
	}
	return rows
}

func encodeMetaAds(ads []MetaAd) [][]any {
	rows := make([][]any, 0, len(ads))
	for _, a := range ads {
		rows = append(rows, []any{
			a.CampaignName, intValue(a.Reach), intValue(a.Impressions), a.AmountSpent,
			intValue(a.LinkClicks), intValue(a.LandingPageViews),
			floatValue(a.CPM), floatValue(a.CPC), floatValue(a.CTR),
		})
	}
	return rows
}

func encodeSearchDays(days []SearchDay) [][]any {
	rows := make([][]any, 0, len(days))
	for _, d := range days {
		rows = append(rows, []any{
			d.Date, intValue(d.Clicks), intValue(d.Impressions),
			floatValue(d.CTR), floatValue(d.Position),
		})
	}
	return rows
}

// ReadOrders loads stg_orders.
func ReadOrders(ctx context.Context, st storage.Store) ([]Order, error) {
	rows, err := st.SelectRows(ctx, schema.StgOrders, orderColumns)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", schema.StgOrders, err)
	}
	orders := make([]Order, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, Order{
			OrderID:           asInt(r[0]),
			OrderNumber:       storage.AsString(r[1]),
			Email:             storage.AsString(r[2]),
			FinancialStatus:   storage.AsString(r[3]),
			FulfillmentStatus: storage.AsString(r[4]),
			Currency:          storage.AsString(r[5]),
			Subtotal:          asFloatPtr(r[6]),
			Shipping:          asFloatPtr(r[7]),
			Taxes:             asFloatPtr(r[8]),
			Total:             asFloatPtr(r[9]),
			DiscountCode:      storage.AsString(r[10]),
			DiscountAmount:    asFloat(r[11]),
			RefundedAmount:    asFloat(r[12]),
			ShippingMethod:    storage.AsString(r[13]),
			RiskLevel:         storage.AsString(r[14]),
			Source:            storage.AsString(r[15]),
			PaymentMethod:     storage.AsString(r[16]),
			BillingCity:       storage.AsString(r[17]),
			BillingProvince:   storage.AsString(r[18]),
			BillingCountry:    storage.AsString(r[19]),
			BillingZip:        storage.AsString(r[20]),
			ShippingCity:      storage.AsString(r[21]),
			ShippingProvince:  storage.AsString(r[22]),
			ShippingCountry:   storage.AsString(r[23]),
			ShippingZip:       storage.AsString(r[24]),
			CreatedAt:         asTimePtr(r[25]),
			PaidAt:            asTimePtr(r[26]),
			FulfilledAt:       asTimePtr(r[27]),
			CancelledAt:       asTimePtr(r[28]),
		})
	}
	return orders, nil
}

// ReadOrderLines loads stg_order_lines.
func ReadOrderLines(ctx context.Context, st storage.Store) ([]OrderLine, error) {
	rows, err := st.SelectRows(ctx, schema.StgOrderLines, orderLineColumns)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", schema.StgOrderLines, err)
	}
	lines := make([]OrderLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, OrderLine{
			OrderID:           asInt(r[0]),
			OrderNumber:       storage.AsString(r[1]),
			LineNumber:        asInt(r[2]),
			Name:              storage.AsString(r[3]),
			SKU:               storage.AsString(r[4]),
			Quantity:          asInt(r[5]),
			Price:             asFloatPtr(r[6]),
			CompareAtPrice:    asFloatPtr(r[7]),
			Discount:          asFloat(r[8]),
			FulfillmentStatus: storage.AsString(r[9]),
			Vendor:            storage.AsString(r[10]),
			CreatedAt:         asTimePtr(r[11]),
		})
	}
	return lines, nil
}

// ReadProducts loads stg_products.
func ReadProducts(ctx context.Context, st storage.Store) ([]Product, error) {
	rows, err := st.SelectRows(ctx, schema.StgProducts, productColumns)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", schema.StgProducts, err)
	}
	products := make([]Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, Product{
			Handle:              storage.AsString(r[0]),
			Title:               storage.AsString(r[1]),
			Vendor:              storage.AsString(r[2]),
			Category:            storage.AsString(r[3]),
			Type:                storage.AsString(r[4]),
			Tags:                storage.AsString(r[5]),
			VariantSKU:          storage.AsString(r[6]),
			VariantPrice:        asFloatPtr(r[7]),
			CompareAtPrice:      asFloatPtr(r[8]),
			VariantInventoryQty: asInt(r[9]),
			IsPublished:         asBool(r[10]),
			Status:              storage.AsString(r[11]),
		})
	}
	return products, nil
}

// ReadCustomers loads stg_customers.
func ReadCustomers(ctx context.Context, st storage.Store) ([]Customer, error) {
	rows, err := st.SelectRows(ctx, schema.StgCustomers, customerColumns)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", schema.StgCustomers, err)
	}
	customers := make([]Customer, 0, len(rows))
	for _, r := range rows {
		customers = append(customers, Customer{
			CustomerID:            asInt(r[0]),
			FirstName:             storage.AsString(r[1]),
			LastName:              storage.AsString(r[2]),
			Email:                 storage.AsString(r[3]),
			AcceptsEmailMarketing: asBool(r[4]),
			AcceptsSMSMarketing:   asBool(r[5]),
			City:                  storage.AsString(r[6]),
			Province:              storage.AsString(r[7]),
			ProvinceCode:          storage.AsString(r[8]),
			Country:               storage.AsString(r[9]),
			CountryCode:           storage.AsString(r[10]),
			Zip:                   storage.AsString(r[11]),
			TotalSpent:            asFloat(r[12]),
			TotalOrders:           asInt(r[13]),
		})
	}
	return customers, nil
}

// ReadSKUMap loads stg_product_sku_map.
func ReadSKUMap(ctx context.Context, st storage.Store) ([]SKUMapping, error) {
	rows, err := st.SelectRows(ctx, schema.StgSKUMap, skuMapColumns)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", schema.StgSKUMap, err)
	}
	mappings := make([]SKUMapping, 0, len(rows))
	for _, r := range rows {
		mappings = append(mappings, SKUMapping{
			InternalSKU:   storage.AsString(r[0]),
			LineItemName:  storage.AsString(r[1]),
			ProductHandle: storage.AsString(r[2]),
			SizeML:        asIntPtr(r[3]),
			RecipeID:      storage.AsString(r[4]),
			Category:      storage.AsString(r[5]),
			IsActive:      asBool(r[6]),
		})
	}
	return mappings, nil
}

// ReadMaterialCosts loads stg_material_costs.
func ReadMaterialCosts(ctx context.Context, st storage.Store) ([]MaterialCost, error) {
	rows, err := st.SelectRows(ctx, schema.StgMaterialCosts, materialColumns)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", schema.StgMaterialCosts, err)
	}
	materials := make([]MaterialCost, 0, len(rows))
	for _, r := range rows {
		materials = append(materials, MaterialCost{
			MaterialID:      storage.AsString(r[0]),
			MaterialName:    storage.AsString(r[1]),
			IngredientMatch: storage.AsString(r[2]),
			Category:        storage.AsString(r[3]),
			Unit:            storage.AsString(r[4]),
			CostPerUnit:     asFloatPtr(r[5]),
			CostPerML:       asFloatPtr(r[6]),
			HasKnownCost:    asBool(r[7]),
			Supplier:        storage.AsString(r[8]),
		})
	}
	return materials, nil
}

// ReadRecipes loads stg_recipes.
func ReadRecipes(ctx context.Context, st storage.Store) ([]RecipeLine, error) {
	rows, err := st.SelectRows(ctx, schema.StgRecipes, recipeColumns)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", schema.StgRecipes, err)
	}
	recipes := make([]RecipeLine, 0, len(rows))
	for _, r := range rows {
		recipes = append(recipes, RecipeLine{
			RecipeID:        storage.AsString(r[0]),
			RecipeName:      storage.AsString(r[1]),
			Variant:         storage.AsString(r[2]),
			BatchSizeML:     asIntPtr(r[3]),
			IngredientMatch: storage.AsString(r[4]),
			Percent:         asFloatPtr(r[5]),
			AmountML:        asFloatPtr(r[6]),
			MaterialID:      storage.AsString(r[7]),
		})
	}
	return recipes, nil
}

// ReadMetaAds loads stg_meta_ads.
func ReadMetaAds(ctx context.Context, st storage.Store) ([]MetaAd, error) {
	rows, err := st.SelectRows(ctx, schema.StgMetaAds, metaAdColumns)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", schema.StgMetaAds, err)
	}
	ads := make([]MetaAd, 0, len(rows))
	for _, r := range rows {
		ads = append(ads, MetaAd{
			CampaignName:     storage.AsString(r[0]),
			Reach:            asIntPtr(r[1]),
			Impressions:      asIntPtr(r[2]),
			AmountSpent:      asFloat(r[3]),
			LinkClicks:       asIntPtr(r[4]),
			LandingPageViews: asIntPtr(r[5]),
			CPM:              asFloatPtr(r[6]),
			CPC:              asFloatPtr(r[7]),
			CTR:              asFloatPtr(r[8]),
		})
	}
	return ads, nil
}

// ReadSearchDays loads stg_search_daily.
func ReadSearchDays(ctx context.Context, st storage.Store) ([]SearchDay, error) {
	rows, err := st.SelectRows(ctx, schema.StgSearchDaily, searchDayColumns)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", schema.StgSearchDaily, err)
	}
	days := make([]SearchDay, 0, len(rows))
	for _, r := range rows {
		t, ok := storage.AsTime(r[0])
		if !ok {
			continue
		}
		days = append(days, SearchDay{
			Date:        t,
			Clicks:      asIntPtr(r[1]),
			Impressions: asIntPtr(r[2]),
			CTR:         asFloatPtr(r[3]),
			Position:    asFloatPtr(r[4]),
		})
	}
	return days, nil
}

// ---- encode/decode helpers for nullable columns ----

func floatValue(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func intValue(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func timeValue(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}

func asFloat(v any) float64 {
	f, _ := storage.AsFloat(v)
	return f
}

func asFloatPtr(v any) *float64 {
	if v == nil {
		return nil
	}
	f, ok := storage.AsFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func asInt(v any) int64 {
	n, _ := storage.AsInt(v)
	return n
}

func asIntPtr(v any) *int64 {
	if v == nil {
		return nil
	}
	n, ok := storage.AsInt(v)
	if !ok {
		return nil
	}
	return &n
}

func asBool(v any) bool {
	return storage.AsBool(v)
}

func asTimePtr(v any) *time.Time {
	if v == nil {
		return nil
	}
	t, ok := storage.AsTime(v)
	if !ok {
		return nil
	}
	return &t
}
