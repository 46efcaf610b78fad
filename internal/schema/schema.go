// Package schema declares the staging and warehouse tables the pipeline owns.
//
// Raw tables are not listed here: they are schema-on-read and created
// dynamically from CSV headers by the ingest stage.
package schema

import "shopdw/internal/storage"

// Table names. Staging tables carry the stg_ prefix, dimensions dim_, facts
// fact_; SQLite has no schemas, so prefixes stand in for raw/staging/warehouse.
const (
	RawOrders        = "raw_orders"
	RawProducts      = "raw_products"
	RawCustomers     = "raw_customers"
	RawDiscounts     = "raw_discounts"
	RawSKUMap        = "raw_product_sku_map"
	RawMaterialCosts = "raw_material_costs"
	RawRecipes       = "raw_recipes"
	RawMetaAds       = "raw_meta_ads"
	RawSearchDaily   = "raw_search_daily"

	StgOrders        = "stg_orders"
	StgOrderLines    = "stg_order_lines"
	StgProducts      = "stg_products"
	StgCustomers     = "stg_customers"
	StgSKUMap        = "stg_product_sku_map"
	StgMaterialCosts = "stg_material_costs"
	StgRecipes       = "stg_recipes"
	StgMetaAds       = "stg_meta_ads"
	StgSearchDaily   = "stg_search_daily"

	DimProduct        = "dim_product"
	DimCustomer       = "dim_customer"
	DimShippingMethod = "dim_shipping_method"
	DimChannel        = "dim_channel"
	DimMaterial       = "dim_material"
	DimDate           = "dim_date"

	FactOrder          = "fact_order"
	FactOrderLine      = "fact_order_line"
	FactCOGSEstimate   = "fact_cogs_estimate"
	FactMarketingSpend = "fact_marketing_spend"
	FactSearchDaily    = "fact_search_daily"
)

func serial(name string) *storage.PrimaryKeySpec {
	return &storage.PrimaryKeySpec{Name: name, Type: "serial"}
}

func col(name, typ string) storage.ColumnSpec {
	return storage.ColumnSpec{Name: name, Type: typ}
}

func reqCol(name, typ string) storage.ColumnSpec {
	return storage.ColumnSpec{Name: name, Type: typ, Nullable: storage.NotNull()}
}

func unique(columns ...string) storage.ConstraintSpec {
	return storage.ConstraintSpec{Kind: "unique", Columns: columns}
}

// Tables returns every table the pipeline creates at schema init, in
// dependency order (staging, dimensions, facts).
func Tables() []storage.TableSpec {
	return []storage.TableSpec{
		{
			Name: StgOrders,
			Columns: []storage.ColumnSpec{
				reqCol("order_id", "bigint"),
				col("order_number", "text"),
				col("email", "text"),
				col("financial_status", "text"),
				col("fulfillment_status", "text"),
				col("currency", "text"),
				col("subtotal", "double"),
				col("shipping", "double"),
				col("taxes", "double"),
				col("total", "double"),
				col("discount_code", "text"),
				reqCol("discount_amount", "double"),
				reqCol("refunded_amount", "double"),
				col("shipping_method", "text"),
				col("risk_level", "text"),
				col("source", "text"),
				col("payment_method", "text"),
				col("billing_city", "text"),
				col("billing_province", "text"),
				col("billing_country", "text"),
				col("billing_zip", "text"),
				col("shipping_city", "text"),
				col("shipping_province", "text"),
				col("shipping_country", "text"),
				col("shipping_zip", "text"),
				col("created_at", "timestamptz"),
				col("paid_at", "timestamptz"),
				col("fulfilled_at", "timestamptz"),
				col("cancelled_at", "timestamptz"),
			},
			Constraints: []storage.ConstraintSpec{unique("order_id")},
		},
		{
			Name: StgOrderLines,
			Columns: []storage.ColumnSpec{
				reqCol("order_id", "bigint"),
				col("order_number", "text"),
				reqCol("line_number", "integer"),
				reqCol("lineitem_name", "text"),
				col("lineitem_sku", "text"),
				reqCol("lineitem_quantity", "integer"),
				col("lineitem_price", "double"),
				col("lineitem_compare_at_price", "double"),
				reqCol("lineitem_discount", "double"),
				col("lineitem_fulfillment_status", "text"),
				col("vendor", "text"),
				col("created_at", "timestamptz"),
			},
			Constraints: []storage.ConstraintSpec{unique("order_id", "line_number")},
		},
		{
			Name: StgProducts,
			Columns: []storage.ColumnSpec{
				reqCol("handle", "text"),
				col("title", "text"),
				col("vendor", "text"),
				col("product_category", "text"),
				col("product_type", "text"),
				col("tags", "text"),
				col("variant_sku", "text"),
				col("variant_price", "double"),
				col("variant_compare_at_price", "double"),
				reqCol("variant_inventory_qty", "integer"),
				reqCol("is_published", "boolean"),
				col("status", "text"),
			},
			Constraints: []storage.ConstraintSpec{unique("handle")},
		},
		{
			Name: StgCustomers,
			Columns: []storage.ColumnSpec{
				reqCol("customer_id", "bigint"),
				col("first_name", "text"),
				col("last_name", "text"),
				col("email", "text"),
				reqCol("accepts_email_marketing", "boolean"),
				reqCol("accepts_sms_marketing", "boolean"),
				col("city", "text"),
				col("province", "text"),
				col("province_code", "text"),
				col("country", "text"),
				col("country_code", "text"),
				col("zip", "text"),
				reqCol("total_spent", "double"),
				reqCol("total_orders", "integer"),
			},
		},
		{
			Name: StgSKUMap,
			Columns: []storage.ColumnSpec{
				reqCol("internal_sku", "text"),
				col("lineitem_name", "text"),
				col("product_handle", "text"),
				col("size_ml", "integer"),
				col("recipe_id", "text"),
				col("product_category", "text"),
				reqCol("is_active", "boolean"),
			},
			Constraints: []storage.ConstraintSpec{unique("internal_sku")},
		},
		{
			Name: StgMaterialCosts,
			Columns: []storage.ColumnSpec{
				reqCol("material_id", "text"),
				col("material_name", "text"),
				col("ingredient_match", "text"),
				col("category", "text"),
				col("unit", "text"),
				col("cost_per_unit", "double"),
				col("cost_per_ml", "double"),
				reqCol("has_known_cost", "boolean"),
				col("supplier", "text"),
			},
			Constraints: []storage.ConstraintSpec{unique("material_id")},
		},
		{
			Name: StgRecipes,
			Columns: []storage.ColumnSpec{
				reqCol("recipe_id", "text"),
				col("recipe_name", "text"),
				col("variant", "text"),
				col("batch_size_ml", "integer"),
				col("ingredient_match", "text"),
				col("percent", "double"),
				col("amount_ml", "double"),
				col("material_id", "text"),
			},
		},
		{
			Name: StgMetaAds,
			Columns: []storage.ColumnSpec{
				reqCol("campaign_name", "text"),
				col("reach", "integer"),
				col("impressions", "integer"),
				reqCol("amount_spent", "double"),
				col("link_clicks", "integer"),
				col("landing_page_views", "integer"),
				col("cpm", "double"),
				col("cpc", "double"),
				col("ctr", "double"),
			},
		},
		{
			Name: StgSearchDaily,
			Columns: []storage.ColumnSpec{
				reqCol("date", "date"),
				col("clicks", "integer"),
				col("impressions", "integer"),
				col("ctr", "double"),
				col("position", "double"),
			},
		},

		// Dimensions.
		{
			Name:       DimProduct,
			PrimaryKey: serial("product_key"),
			Columns: []storage.ColumnSpec{
				reqCol("internal_sku", "text"),
				col("product_handle", "text"),
				col("product_title", "text"),
				col("size_ml", "integer"),
				col("recipe_id", "text"),
				col("product_category", "text"),
				reqCol("vendor", "text"),
				reqCol("variant_price", "double"),
				reqCol("is_active", "boolean"),
			},
			Constraints: []storage.ConstraintSpec{unique("internal_sku")},
		},
		{
			Name:       DimCustomer,
			PrimaryKey: serial("customer_key"),
			Columns: []storage.ColumnSpec{
				reqCol("customer_id_hash", "text"),
				col("customer_id", "bigint"),
				col("city", "text"),
				col("province", "text"),
				col("province_code", "text"),
				col("country", "text"),
				col("country_code", "text"),
				reqCol("accepts_email_marketing", "boolean"),
				reqCol("accepts_sms_marketing", "boolean"),
				col("first_order_date", "date"),
				reqCol("total_orders", "integer"),
				reqCol("total_spent", "double"),
				reqCol("customer_segment", "text"),
			},
			Constraints: []storage.ConstraintSpec{unique("customer_id_hash")},
		},
		{
			Name:       DimShippingMethod,
			PrimaryKey: serial("shipping_method_key"),
			Columns: []storage.ColumnSpec{
				reqCol("shipping_method_code", "text"),
				col("shipping_method_name", "text"),
				reqCol("is_local_delivery", "boolean"),
			},
			Constraints: []storage.ConstraintSpec{unique("shipping_method_code")},
		},
		{
			Name:       DimChannel,
			PrimaryKey: serial("channel_key"),
			Columns: []storage.ColumnSpec{
				reqCol("channel_code", "text"),
				col("channel_name", "text"),
			},
			Constraints: []storage.ConstraintSpec{unique("channel_code")},
		},
		{
			Name:       DimMaterial,
			PrimaryKey: serial("material_key"),
			Columns: []storage.ColumnSpec{
				reqCol("material_id", "text"),
				col("material_name", "text"),
				col("ingredient_match", "text"),
				col("category", "text"),
				col("unit", "text"),
				col("cost_per_unit", "double"),
				col("cost_per_ml", "double"),
				reqCol("has_known_cost", "boolean"),
				col("supplier", "text"),
			},
			Constraints: []storage.ConstraintSpec{unique("material_id")},
		},
		{
			// Populated by the external calendar generator; created here so
			// reporting joins never fail on a missing table.
			Name:       DimDate,
			PrimaryKey: &storage.PrimaryKeySpec{Name: "date_key", Type: "integer"},
			Columns: []storage.ColumnSpec{
				col("full_date", "date"),
				col("year", "integer"),
				col("quarter", "integer"),
				col("month", "integer"),
				col("day", "integer"),
				col("day_of_week", "integer"),
				col("is_weekend", "boolean"),
			},
		},

		// Facts.
		{
			Name:       FactOrder,
			PrimaryKey: serial("order_key"),
			Columns: []storage.ColumnSpec{
				reqCol("order_id", "bigint"),
				col("order_number", "text"),
				col("order_date_key", "integer"),
				col("customer_key", "bigint"),
				reqCol("channel_key", "bigint"),
				reqCol("shipping_method_key", "bigint"),
				reqCol("gross_product_sales", "double"),
				reqCol("order_discount_amount", "double"),
				reqCol("subtotal", "double"),
				reqCol("shipping_amount", "double"),
				reqCol("tax_amount", "double"),
				reqCol("total_amount", "double"),
				reqCol("refunded_amount", "double"),
				reqCol("net_sales", "double"),
				reqCol("line_item_count", "integer"),
				reqCol("unit_count", "integer"),
				col("financial_status", "text"),
				col("fulfillment_status", "text"),
				col("risk_level", "text"),
				col("created_at", "timestamptz"),
				col("paid_at", "timestamptz"),
				col("fulfilled_at", "timestamptz"),
			},
			Constraints: []storage.ConstraintSpec{unique("order_id")},
		},
		{
			Name:       FactOrderLine,
			PrimaryKey: serial("order_line_key"),
			Columns: []storage.ColumnSpec{
				reqCol("order_key", "bigint"),
				reqCol("order_id", "bigint"),
				reqCol("line_number", "integer"),
				col("product_key", "bigint"),
				col("order_date_key", "integer"),
				reqCol("quantity", "integer"),
				col("unit_price", "double"),
				reqCol("gross_line_revenue", "double"),
				reqCol("line_discount", "double"),
				reqCol("allocated_order_discount", "double"),
				reqCol("net_line_revenue", "double"),
				col("estimated_cogs", "double"),
				col("has_missing_cost", "boolean"),
				col("gross_margin", "double"),
				col("margin_percent", "double"),
			},
			Constraints: []storage.ConstraintSpec{unique("order_id", "line_number")},
		},
		{
			Name:       FactCOGSEstimate,
			PrimaryKey: serial("cogs_key"),
			Columns: []storage.ColumnSpec{
				reqCol("order_line_key", "bigint"),
				reqCol("product_key", "bigint"),
				col("material_key", "bigint"),
				col("ingredient_name", "text"),
				col("amount_ml", "double"),
				col("cost_per_ml", "double"),
				reqCol("line_cost", "double"),
				reqCol("has_known_cost", "boolean"),
			},
		},
		{
			Name:       FactMarketingSpend,
			PrimaryKey: serial("spend_key"),
			Columns: []storage.ColumnSpec{
				reqCol("campaign_name", "text"),
				reqCol("platform", "text"),
				col("reach", "integer"),
				col("impressions", "integer"),
				reqCol("amount_spent", "double"),
				col("link_clicks", "integer"),
				col("landing_page_views", "integer"),
				col("cpm", "double"),
				col("cpc", "double"),
				col("ctr", "double"),
			},
		},
		{
			Name: FactSearchDaily,
			Columns: []storage.ColumnSpec{
				reqCol("date_key", "integer"),
				col("clicks", "integer"),
				col("impressions", "integer"),
				col("ctr", "double"),
				col("avg_position", "double"),
			},
		},
	}
}

// ChannelSeed returns the static dim_channel rows ensured at schema init.
// The "web" row is the fallback the fact builder relies on, so it must be
// first and must always exist.
func ChannelSeed() (columns []string, rows [][]any) {
	columns = []string{"channel_code", "channel_name"}
	rows = [][]any{
		{"web", "Online Store"},
		{"pos", "Point of Sale"},
		{"iphone", "Mobile App (iOS)"},
		{"android", "Mobile App (Android)"},
		{"draft_order", "Draft Order"},
		{"shopify_draft_order", "Draft Order"},
	}
	return columns, rows
}
