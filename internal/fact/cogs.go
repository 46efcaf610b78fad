package fact

// Material carries the cost fields of one dim_material row needed for the
// COGS estimate.
type Material struct {
	Key          int64
	CostPerML    *float64
	CostPerUnit  *float64
	HasKnownCost bool
}

// EstimateIngredientCost prices one recipe ingredient for one unit of
// product. Volume-priced materials cost amount_ml times cost_per_ml;
// materials priced per unit (packaging) cost one unit per line regardless
// of volume. An unknown material or unknown cost contributes zero and is
// flagged so the rollup can mark the line incomplete.
func EstimateIngredientCost(amountML *float64, m *Material) (lineCost float64, known bool) {
	if m == nil {
		return 0, false
	}
	if m.HasKnownCost && m.CostPerML != nil && amountML != nil {
		return *amountML * *m.CostPerML, true
	}
	if m.HasKnownCost && m.CostPerUnit != nil {
		return *m.CostPerUnit, true
	}
	return 0, m.HasKnownCost
}

// EffectiveCostPerML reports the rate recorded on the COGS estimate row:
// the volumetric rate when present, otherwise the per-unit rate.
func EffectiveCostPerML(m *Material) *float64 {
	if m == nil {
		return nil
	}
	if m.CostPerML != nil {
		return m.CostPerML
	}
	return m.CostPerUnit
}

// CostRollup is the per-line summary of its COGS estimate rows.
type CostRollup struct {
	TotalCost      float64
	HasMissingCost bool
}

// Add folds one ingredient estimate into the rollup. A single unknown-cost
// ingredient marks the whole line as missing cost data.
func (r *CostRollup) Add(lineCost float64, known bool) {
	r.TotalCost += lineCost
	if !known {
		r.HasMissingCost = true
	}
}

// LineMargin computes per-unit gross margin and margin percent for a line.
//
// Margin is net revenue per unit minus estimated unit COGS. The percent is
// clamped to 0 when the line earned nothing (free or fully refunded lines
// would otherwise divide by zero or report nonsense negatives). A zero
// quantity makes per-unit figures undefined, so both come back nil.
func LineMargin(netRevenue float64, quantity int64, totalCost float64) (margin, percent *float64) {
	if quantity == 0 {
		if netRevenue <= 0 {
			zero := 0.0
			return nil, &zero
		}
		return nil, nil
	}
	perUnit := netRevenue / float64(quantity)
	m := perUnit - totalCost
	margin = &m

	var p float64
	if netRevenue > 0 {
		p = m / perUnit * 100
	}
	percent = &p
	return margin, percent
}
