package staging

import "time"

// Order is one deduplicated storefront order.
type Order struct {
	OrderID           int64
	OrderNumber       string
	Email             string
	FinancialStatus   string
	FulfillmentStatus string
	Currency          string
	Subtotal          *float64
	Shipping          *float64
	Taxes             *float64
	Total             *float64
	DiscountCode      string
	DiscountAmount    float64
	RefundedAmount    float64
	ShippingMethod    string
	RiskLevel         string
	Source            string
	PaymentMethod     string
	BillingCity       string
	BillingProvince   string
	BillingCountry    string
	BillingZip        string
	ShippingCity      string
	ShippingProvince  string
	ShippingCountry   string
	ShippingZip       string
	CreatedAt         *time.Time
	PaidAt            *time.Time
	FulfilledAt       *time.Time
	CancelledAt       *time.Time
}

// OrderLine is one line item, numbered within its order.
type OrderLine struct {
	OrderID           int64
	OrderNumber       string
	LineNumber        int64
	Name              string
	SKU               string
	Quantity          int64
	Price             *float64
	CompareAtPrice    *float64
	Discount          float64
	FulfillmentStatus string
	Vendor            string
	CreatedAt         *time.Time
}

// Product is one catalog product, deduplicated by handle.
type Product struct {
	Handle              string
	Title               string
	Vendor              string
	Category            string
	Type                string
	Tags                string
	VariantSKU          string
	VariantPrice        *float64
	CompareAtPrice      *float64
	VariantInventoryQty int64
	IsPublished         bool
	Status              string
}

// Customer is one registered storefront customer.
type Customer struct {
	CustomerID            int64
	FirstName             string
	LastName              string
	Email                 string
	AcceptsEmailMarketing bool
	AcceptsSMSMarketing   bool
	City                  string
	Province              string
	ProvinceCode          string
	Country               string
	CountryCode           string
	Zip                   string
	TotalSpent            float64
	TotalOrders           int64
}

// SKUMapping joins storefront line-item names to internal SKUs and recipes.
type SKUMapping struct {
	InternalSKU   string
	LineItemName  string
	ProductHandle string
	SizeML        *int64
	RecipeID      string
	Category      string
	IsActive      bool
}

// MaterialCost is one purchasable material with its unit economics.
type MaterialCost struct {
	MaterialID      string
	MaterialName    string
	IngredientMatch string
	Category        string
	Unit            string
	CostPerUnit     *float64
	CostPerML       *float64
	HasKnownCost    bool
	Supplier        string
}

// MetaAd is one paid campaign row from the ad export.
type MetaAd struct {
	CampaignName     string
	Reach            *int64
	Impressions      *int64
	AmountSpent      float64
	LinkClicks       *int64
	LandingPageViews *int64
	CPM              *float64
	CPC              *float64
	CTR              *float64
}

// SearchDay is one day of organic search performance.
type SearchDay struct {
	Date        time.Time
	Clicks      *int64
	Impressions *int64
	CTR         *float64
	Position    *float64
}

// RecipeLine is one ingredient of one recipe variant.
type RecipeLine struct {
	RecipeID        string
	RecipeName      string
	Variant         string
	BatchSizeML     *int64
	IngredientMatch string
	Percent         *float64
	AmountML        *float64
	MaterialID      string
}
