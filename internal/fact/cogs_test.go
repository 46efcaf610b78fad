package fact

import (
	"math"
	"testing"
)

func fp(v float64) *float64 { return &v }

func TestEstimateIngredientCost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		amountML  *float64
		material  *Material
		wantCost  float64
		wantKnown bool
	}{
		{
			name:      "volumetric_material",
			amountML:  fp(40),
			material:  &Material{CostPerML: fp(0.25), HasKnownCost: true},
			wantCost:  10,
			wantKnown: true,
		},
		{
			name:      "packaging_priced_per_unit",
			amountML:  nil,
			material:  &Material{CostPerUnit: fp(1.80), HasKnownCost: true},
			wantCost:  1.80,
			wantKnown: true,
		},
		{
			// Per-unit pricing ignores volume: one bottle, one cap.
			name:      "per_unit_wins_when_no_volume_rate",
			amountML:  fp(50),
			material:  &Material{CostPerUnit: fp(0.90), HasKnownCost: true},
			wantCost:  0.90,
			wantKnown: true,
		},
		{
			name:      "unknown_cost_material",
			amountML:  fp(40),
			material:  &Material{HasKnownCost: false},
			wantCost:  0,
			wantKnown: false,
		},
		{
			name:      "known_flag_but_no_rates",
			amountML:  fp(40),
			material:  &Material{HasKnownCost: true},
			wantCost:  0,
			wantKnown: true,
		},
		{
			name:      "missing_material",
			amountML:  fp(40),
			material:  nil,
			wantCost:  0,
			wantKnown: false,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cost, known := EstimateIngredientCost(tc.amountML, tc.material)
			if math.Abs(cost-tc.wantCost) > 1e-9 || known != tc.wantKnown {
				t.Fatalf("cost=%v known=%v, want %v/%v", cost, known, tc.wantCost, tc.wantKnown)
			}
		})
	}
}

func TestCostRollup_OneUnknownTaintsLine(t *testing.T) {
	t.Parallel()

	var r CostRollup
	r.Add(3.00, true)
	r.Add(0, false)
	r.Add(1.50, true)

	if r.TotalCost != 4.50 {
		t.Fatalf("total=%v, want 4.50", r.TotalCost)
	}
	if !r.HasMissingCost {
		t.Fatalf("has_missing_cost=false, want true")
	}

	var clean CostRollup
	clean.Add(2, true)
	if clean.HasMissingCost {
		t.Fatalf("all-known rollup flagged missing")
	}
}

func TestLineMargin(t *testing.T) {
	t.Parallel()

	// margin = net/qty - cogs; percent relative to per-unit net.
	margin, percent := LineMargin(18, 2, 4)
	if margin == nil || math.Abs(*margin-5) > 1e-9 {
		t.Fatalf("margin=%v, want 5", margin)
	}
	if percent == nil || math.Abs(*percent-(5.0/9.0*100)) > 1e-9 {
		t.Fatalf("percent=%v, want %v", percent, 5.0/9.0*100)
	}

	// Free or fully refunded lines clamp the percent to zero.
	margin, percent = LineMargin(0, 1, 2)
	if margin == nil || *margin != -2 {
		t.Fatalf("margin=%v, want -2", margin)
	}
	if percent == nil || *percent != 0 {
		t.Fatalf("percent=%v, want 0", percent)
	}

	// Zero quantity leaves per-unit figures undefined.
	margin, percent = LineMargin(10, 0, 2)
	if margin != nil || percent != nil {
		t.Fatalf("zero-qty margin=%v percent=%v, want nil/nil", margin, percent)
	}
	margin, percent = LineMargin(0, 0, 2)
	if margin != nil || percent == nil || *percent != 0 {
		t.Fatalf("zero-qty zero-net margin=%v percent=%v, want nil/0", margin, percent)
	}
}

func TestDateKey(t *testing.T) {
	t.Parallel()

	got := DateKey(mustTime(t, "2025-03-09T23:30:00-05:00"))
	// 23:30 -0500 is already March 10 in UTC; date keys are UTC-based.
	if got != 20250310 {
		t.Fatalf("DateKey=%d, want 20250310", got)
	}
}
