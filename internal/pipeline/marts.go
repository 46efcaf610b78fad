package pipeline

import (
	"context"

	"go.uber.org/zap"
)

// martViews are the KPI views layered over the star schema. The SQL sticks
// to the portable subset both backends accept; booleans are folded through
// CASE so Postgres and SQLite agree.
//
// PII rule: marts expose the customer hash and segment only, never emails
// or names.
var martViews = []struct {
	name string
	sql  string
}{
	{
		name: "mart_daily_sales",
		sql: `
SELECT
    order_date_key,
    COUNT(*)                  AS orders,
    SUM(unit_count)           AS units,
    SUM(gross_product_sales)  AS gross_product_sales,
    SUM(order_discount_amount) AS discounts,
    SUM(refunded_amount)      AS refunds,
    SUM(net_sales)            AS net_sales
FROM fact_order
GROUP BY order_date_key`,
	},
	{
		name: "mart_product_margin",
		sql: `
SELECT
    dp.internal_sku,
    dp.product_title,
    dp.product_category,
    SUM(fol.quantity)           AS units_sold,
    SUM(fol.net_line_revenue)   AS net_revenue,
    SUM(fol.estimated_cogs * fol.quantity) AS estimated_cogs,
    AVG(fol.margin_percent)     AS avg_margin_percent,
    MAX(CASE WHEN fol.has_missing_cost THEN 1 ELSE 0 END) AS has_missing_cost
FROM fact_order_line fol
JOIN dim_product dp ON dp.product_key = fol.product_key
GROUP BY dp.internal_sku, dp.product_title, dp.product_category`,
	},
	{
		name: "mart_customer_segments",
		sql: `
SELECT
    customer_segment,
    COUNT(*)          AS customers,
    SUM(total_orders) AS orders,
    SUM(total_spent)  AS lifetime_spend,
    AVG(total_spent)  AS avg_lifetime_spend
FROM dim_customer
GROUP BY customer_segment`,
	},
	{
		name: "mart_shipping_mix",
		sql: `
SELECT
    sm.shipping_method_code,
    sm.shipping_method_name,
    MAX(CASE WHEN sm.is_local_delivery THEN 1 ELSE 0 END) AS is_local_delivery,
    COUNT(*)              AS orders,
    SUM(fo.net_sales)     AS net_sales,
    SUM(fo.shipping_amount) AS shipping_collected
FROM fact_order fo
JOIN dim_shipping_method sm ON sm.shipping_method_key = fo.shipping_method_key
GROUP BY sm.shipping_method_code, sm.shipping_method_name`,
	},
}

// buildMarts (re)creates the KPI views. A broken view is logged and skipped;
// one bad mart must not take down the build.
func (p *Pipeline) buildMarts(ctx context.Context) error {
	for _, v := range martViews {
		if err := p.Store.ReplaceView(ctx, v.name, v.sql); err != nil {
			p.Log.Warn("could not build mart view", zap.String("view", v.name), zap.Error(err))
			continue
		}
		p.Log.Info("built mart view", zap.String("view", v.name))
	}
	return nil
}
