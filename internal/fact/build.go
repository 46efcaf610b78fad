package fact

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"shopdw/internal/dimension"
	"shopdw/internal/identity"
	"shopdw/internal/schema"
	"shopdw/internal/staging"
	"shopdw/internal/storage"
)

// Builder rebuilds all fact tables. Dimensions must already be built: keys
// are resolved through natural-key lookups against the dimension tables.
type Builder struct {
	Store storage.Store
	Log   *zap.Logger
}

// Run rebuilds fact_order, fact_order_line, fact_cogs_estimate and the
// marketing facts, in that order. Lines depend on order keys and the COGS
// rollup depends on line keys, so the sequence is fixed.
func (b *Builder) Run(ctx context.Context) error {
	if err := b.buildOrders(ctx); err != nil {
		return err
	}
	if err := b.buildOrderLines(ctx); err != nil {
		return err
	}
	if err := b.buildCOGS(ctx); err != nil {
		return err
	}
	if err := b.buildMarketingSpend(ctx); err != nil {
		return err
	}
	return b.buildSearchDaily(ctx)
}

var factOrderColumns = []string{
	"order_id", "order_number", "order_date_key", "customer_key", "channel_key",
	"shipping_method_key", "gross_product_sales", "order_discount_amount",
	"subtotal", "shipping_amount", "tax_amount", "total_amount", "refunded_amount",
	"net_sales", "line_item_count", "unit_count", "financial_status",
	"fulfillment_status", "risk_level", "created_at", "paid_at", "fulfilled_at",
}

func (b *Builder) buildOrders(ctx context.Context) error {
	orders, err := staging.ReadOrders(ctx, b.Store)
	if err != nil {
		return err
	}
	lines, err := staging.ReadOrderLines(ctx, b.Store)
	if err != nil {
		return err
	}

	customerKeys, err := b.Store.SelectKeyValue(ctx, schema.DimCustomer, "customer_id_hash", "customer_key")
	if err != nil {
		return err
	}
	channelKeys, err := b.Store.SelectKeyValue(ctx, schema.DimChannel, "channel_code", "channel_key")
	if err != nil {
		return err
	}
	shippingKeys, err := b.Store.SelectKeyValue(ctx, schema.DimShippingMethod, "shipping_method_code", "shipping_method_key")
	if err != nil {
		return err
	}

	webKey, ok := channelKeys["web"]
	if !ok {
		return fmt.Errorf("fact: dim_channel has no %q row", "web")
	}
	fallbackShipping, ok := anyShippingKey(shippingKeys)
	if !ok {
		return fmt.Errorf("fact: dim_shipping_method is empty")
	}

	agg := AggregateLines(lines)

	rows := make([][]any, 0, len(orders))
	for _, o := range orders {
		var orderAgg *LineAggregate
		if a, ok := agg[o.OrderID]; ok {
			orderAgg = &a
		}
		gross := GrossProductSales(orderAgg, o.Subtotal, o.DiscountAmount)

		lineCount, unitCount := int64(1), int64(1)
		if orderAgg != nil {
			lineCount, unitCount = orderAgg.LineItemCount, orderAgg.UnitCount
		}

		var customerKey any
		if key, ok := customerKeys[identity.HashEmail(o.Email)]; ok && o.Email != "" {
			customerKey = key
		}
		channelKey := webKey
		if key, ok := channelKeys[lower(o.Source)]; ok {
			channelKey = key
		}
		shippingKey := fallbackShipping
		if key, ok := shippingKeys[dimension.NormalizeShippingCode(o.ShippingMethod)]; ok {
			shippingKey = key
		}

		var dateKey any
		if o.CreatedAt != nil {
			dateKey = DateKey(*o.CreatedAt)
		}

		subtotal := floatOrZero(o.Subtotal)
		rows = append(rows, []any{
			o.OrderID, o.OrderNumber, dateKey, customerKey, channelKey,
			shippingKey, gross, o.DiscountAmount,
			subtotal, floatOrZero(o.Shipping), floatOrZero(o.Taxes), floatOrZero(o.Total), o.RefundedAmount,
			subtotal - o.RefundedAmount, lineCount, unitCount, o.FinancialStatus,
			o.FulfillmentStatus, o.RiskLevel, timeValue(o.CreatedAt), timeValue(o.PaidAt), timeValue(o.FulfilledAt),
		})
	}

	return b.replace(ctx, schema.FactOrder, factOrderColumns, rows)
}

var factOrderLineColumns = []string{
	"order_key", "order_id", "line_number", "product_key", "order_date_key",
	"quantity", "unit_price", "gross_line_revenue", "line_discount",
	"allocated_order_discount", "net_line_revenue",
}

// orderInfo is the slice of fact_order a line needs for allocation.
type orderInfo struct {
	orderKey int64
	dateKey  any
	discount float64
	gross    float64
}

func (b *Builder) buildOrderLines(ctx context.Context) error {
	lines, err := staging.ReadOrderLines(ctx, b.Store)
	if err != nil {
		return err
	}
	skus, err := staging.ReadSKUMap(ctx, b.Store)
	if err != nil {
		return err
	}
	productKeys, err := b.Store.SelectKeyValue(ctx, schema.DimProduct, "internal_sku", "product_key")
	if err != nil {
		return err
	}
	orders, err := b.readOrderInfo(ctx)
	if err != nil {
		return err
	}

	skuByName := make(map[string]string, len(skus))
	for _, s := range skus {
		if s.LineItemName == "" {
			continue
		}
		if _, seen := skuByName[s.LineItemName]; !seen {
			skuByName[s.LineItemName] = s.InternalSKU
		}
	}

	rows := make([][]any, 0, len(lines))
	for _, l := range lines {
		info, ok := orders[l.OrderID]
		if !ok {
			continue
		}

		gross := priceOrZero(l.Price) * float64(l.Quantity)
		allocated := AllocateDiscount(gross, info.gross, info.discount)
		net := gross - l.Discount - allocated

		var productKey any
		if sku, ok := skuByName[l.Name]; ok {
			if key, ok := productKeys[sku]; ok {
				productKey = key
			}
		}
		var unitPrice any
		if l.Price != nil {
			unitPrice = *l.Price
		}

		rows = append(rows, []any{
			info.orderKey, l.OrderID, l.LineNumber, productKey, info.dateKey,
			l.Quantity, unitPrice, gross, l.Discount,
			allocated, net,
		})
	}

	return b.replace(ctx, schema.FactOrderLine, factOrderLineColumns, rows)
}

func (b *Builder) readOrderInfo(ctx context.Context) (map[int64]orderInfo, error) {
	rows, err := b.Store.SelectRows(ctx, schema.FactOrder,
		[]string{"order_key", "order_id", "order_date_key", "order_discount_amount", "gross_product_sales"})
	if err != nil {
		return nil, err
	}
	orders := make(map[int64]orderInfo, len(rows))
	for _, r := range rows {
		orderKey, _ := storage.AsInt(r[0])
		orderID, _ := storage.AsInt(r[1])
		var dateKey any
		if r[2] != nil {
			if dk, ok := storage.AsInt(r[2]); ok {
				dateKey = dk
			}
		}
		discount, _ := storage.AsFloat(r[3])
		gross, _ := storage.AsFloat(r[4])
		orders[orderID] = orderInfo{orderKey: orderKey, dateKey: dateKey, discount: discount, gross: gross}
	}
	return orders, nil
}

var cogsColumns = []string{
	"order_line_key", "product_key", "material_key",
	"ingredient_name", "amount_ml", "cost_per_ml", "line_cost", "has_known_cost",
}

// productRecipe is the slice of dim_product the COGS estimate joins on.
type productRecipe struct {
	recipeID string
	sizeML   *int64
}

// factLine is the read-back fact_order_line row the rollup updates.
type factLine struct {
	key        int64
	productKey *int64
	quantity   int64
	netRevenue float64
}

func (b *Builder) buildCOGS(ctx context.Context) error {
	lines, err := b.readFactLines(ctx)
	if err != nil {
		return err
	}
	products, err := b.readProductRecipes(ctx)
	if err != nil {
		return err
	}
	materials, err := b.readMaterials(ctx)
	if err != nil {
		return err
	}
	recipes, err := staging.ReadRecipes(ctx, b.Store)
	if err != nil {
		return err
	}

	// Only the final variant of a recipe describes the sellable product;
	// test batches carry other variants.
	byRecipe := make(map[string][]staging.RecipeLine)
	for _, r := range recipes {
		if r.Variant != "final" {
			continue
		}
		byRecipe[r.RecipeID] = append(byRecipe[r.RecipeID], r)
	}

	var cogsRows [][]any
	rollups := make(map[int64]*CostRollup)
	for _, l := range lines {
		if l.productKey == nil {
			continue
		}
		p, ok := products[*l.productKey]
		if !ok {
			continue
		}
		for _, r := range byRecipe[p.recipeID] {
			if r.BatchSizeML == nil || p.sizeML == nil || *r.BatchSizeML != *p.sizeML {
				continue
			}
			m := materials[r.MaterialID]
			lineCost, known := EstimateIngredientCost(r.AmountML, m)

			var materialKey any
			if m != nil {
				materialKey = m.Key
			}
			var amountML any
			if r.AmountML != nil {
				amountML = *r.AmountML
			}
			var costPerML any
			if rate := EffectiveCostPerML(m); rate != nil {
				costPerML = *rate
			}

			cogsRows = append(cogsRows, []any{
				l.key, *l.productKey, materialKey,
				r.IngredientMatch, amountML, costPerML, lineCost, known,
			})

			roll := rollups[l.key]
			if roll == nil {
				roll = &CostRollup{}
				rollups[l.key] = roll
			}
			roll.Add(lineCost, known)
		}
	}

	if err := b.replace(ctx, schema.FactCOGSEstimate, cogsColumns, cogsRows); err != nil {
		return err
	}

	updates := make([][]any, 0, len(lines))
	for _, l := range lines {
		roll := rollups[l.key]
		var cogs float64
		var missing bool
		var margin, percent *float64
		if roll != nil {
			cogs = roll.TotalCost
			missing = roll.HasMissingCost
			margin, percent = LineMargin(l.netRevenue, l.quantity, roll.TotalCost)
		} else {
			// No recipe match: zero cost, flagged incomplete, and the whole
			// net revenue counts as margin.
			cogs = 0
			missing = true
			margin, _ = LineMargin(l.netRevenue, l.quantity, 0)
			full := 100.0
			percent = &full
		}
		updates = append(updates, []any{l.key, cogs, missing, floatValue(margin), floatValue(percent)})
	}

	if len(updates) > 0 {
		err = b.Store.UpdateRows(ctx, schema.FactOrderLine, "order_line_key",
			[]string{"estimated_cogs", "has_missing_cost", "gross_margin", "margin_percent"}, updates)
		if err != nil {
			return fmt.Errorf("update %s: %w", schema.FactOrderLine, err)
		}
	}
	b.Log.Info("rolled up line costs",
		zap.Int("lines", len(updates)),
		zap.Int("estimates", len(cogsRows)))
	return nil
}

func (b *Builder) readFactLines(ctx context.Context) ([]factLine, error) {
	rows, err := b.Store.SelectRows(ctx, schema.FactOrderLine,
		[]string{"order_line_key", "product_key", "quantity", "net_line_revenue"})
	if err != nil {
		return nil, err
	}
	lines := make([]factLine, 0, len(rows))
	for _, r := range rows {
		key, _ := storage.AsInt(r[0])
		l := factLine{key: key}
		if r[1] != nil {
			if pk, ok := storage.AsInt(r[1]); ok {
				l.productKey = &pk
			}
		}
		l.quantity, _ = storage.AsInt(r[2])
		l.netRevenue, _ = storage.AsFloat(r[3])
		lines = append(lines, l)
	}
	return lines, nil
}

func (b *Builder) readProductRecipes(ctx context.Context) (map[int64]productRecipe, error) {
	rows, err := b.Store.SelectRows(ctx, schema.DimProduct,
		[]string{"product_key", "recipe_id", "size_ml"})
	if err != nil {
		return nil, err
	}
	products := make(map[int64]productRecipe, len(rows))
	for _, r := range rows {
		key, _ := storage.AsInt(r[0])
		p := productRecipe{recipeID: storage.AsString(r[1])}
		if r[2] != nil {
			if size, ok := storage.AsInt(r[2]); ok {
				p.sizeML = &size
			}
		}
		products[key] = p
	}
	return products, nil
}

func (b *Builder) readMaterials(ctx context.Context) (map[string]*Material, error) {
	rows, err := b.Store.SelectRows(ctx, schema.DimMaterial,
		[]string{"material_key", "material_id", "cost_per_ml", "cost_per_unit", "has_known_cost"})
	if err != nil {
		return nil, err
	}
	materials := make(map[string]*Material, len(rows))
	for _, r := range rows {
		key, _ := storage.AsInt(r[0])
		id := storage.AsString(r[1])
		m := &Material{Key: key}
		if r[2] != nil {
			if v, ok := storage.AsFloat(r[2]); ok {
				m.CostPerML = &v
			}
		}
		if r[3] != nil {
			if v, ok := storage.AsFloat(r[3]); ok {
				m.CostPerUnit = &v
			}
		}
		m.HasKnownCost = storage.AsBool(r[4])
		materials[id] = m
	}
	return materials, nil
}

var spendColumns = []string{
	"campaign_name", "platform", "reach", "impressions", "amount_spent",
	"link_clicks", "landing_page_views", "cpm", "cpc", "ctr",
}

func (b *Builder) buildMarketingSpend(ctx context.Context) error {
	ads, err := staging.ReadMetaAds(ctx, b.Store)
	if err != nil {
		return err
	}
	rows := make([][]any, 0, len(ads))
	for _, a := range ads {
		rows = append(rows, []any{
			a.CampaignName, "meta", intValue(a.Reach), intValue(a.Impressions), a.AmountSpent,
			intValue(a.LinkClicks), intValue(a.LandingPageViews),
			floatValue(a.CPM), floatValue(a.CPC), floatValue(a.CTR),
		})
	}
	return b.replace(ctx, schema.FactMarketingSpend, spendColumns, rows)
}

var searchColumns = []string{"date_key", "clicks", "impressions", "ctr", "avg_position"}

func (b *Builder) buildSearchDaily(ctx context.Context) error {
	days, err := staging.ReadSearchDays(ctx, b.Store)
	if err != nil {
		return err
	}
	rows := make([][]any, 0, len(days))
	for _, d := range days {
		rows = append(rows, []any{
			DateKey(d.Date), intValue(d.Clicks), intValue(d.Impressions),
			floatValue(d.CTR), floatValue(d.Position),
		})
	}
	return b.replace(ctx, schema.FactSearchDaily, searchColumns, rows)
}

func (b *Builder) replace(ctx context.Context, table string, columns []string, rows [][]any) error {
	if err := b.Store.Truncate(ctx, table); err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}
	if len(rows) > 0 {
		if err := b.Store.InsertRows(ctx, table, columns, rows); err != nil {
			return fmt.Errorf("load %s: %w", table, err)
		}
	}
	b.Log.Info("built fact table", zap.String("table", table), zap.Int("rows", len(rows)))
	return nil
}

// anyShippingKey picks a deterministic fallback shipping key: the smallest.
func anyShippingKey(keys map[string]int64) (int64, bool) {
	if len(keys) == 0 {
		return 0, false
	}
	vals := make([]int64, 0, len(keys))
	for _, v := range keys {
		vals = append(vals, v)
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	return vals[0], true
}
