// =====================================
// File: internal/dlmm/strategy/planner.go
// =====================================
package strategy

import (
	"fmt"
	"math"

	"github.com/rovshanmuradov/dlmm-launcher/internal/dlmm/binmath"
)

// SpotBin is the bin the pool activates at for targetPrice.
func SpotBin(targetPrice float64, grid binmath.Grid) (binmath.Coordinate, error) {
	spot, err := binmath.PriceToBin(targetPrice, grid, binmath.RoundNearest)
	if err != nil {
		return binmath.Coordinate{}, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	return spot, nil
}

// Plan turns a strategy into ordered seed deposits. It performs no I/O, so
// callers run it before any irreversible step.
func Plan(targetPrice float64, grid binmath.Grid, totalBaseAmount uint64, s Strategy) ([]SeedPlan, error) {
	if math.IsNaN(targetPrice) || math.IsInf(targetPrice, 0) || targetPrice <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrice, targetPrice)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if totalBaseAmount == 0 {
		return nil, fmt.Errorf("%w: total base amount must be > 0", ErrInvalidAmount)
	}

	switch s.Kind {
	case KindSingleBin:
		return planSingleBin(targetPrice, grid, totalBaseAmount)
	default:
		return planCurvedRange(targetPrice, grid, totalBaseAmount, s)
	}
}

// Down rounding avoids the engine's price-boundary rejection seen with
// canonical rounding at some bin edges.
func planSingleBin(targetPrice float64, grid binmath.Grid, amount uint64) ([]SeedPlan, error) {
	bin, err := binmath.PriceToBin(targetPrice, grid, binmath.RoundDown)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	return []SeedPlan{{
		Label:       LabelSingleBin,
		MinPrice:    bin.Price,
		MaxPrice:    bin.Price,
		QuotedPrice: targetPrice,
		Rounding:    binmath.RoundDown,
		Amount:      amount,
		Shape:       Flat(),
		Side:        SideBase,
	}}, nil
}

func planCurvedRange(targetPrice float64, grid binmath.Grid, amount uint64, s Strategy) ([]SeedPlan, error) {
	spot, err := SpotBin(targetPrice, grid)
	if err != nil {
		return nil, err
	}
	// One tick above spot keeps the range strictly above the trading price
	// even after float rounding.
	lower, err := binmath.NextBin(spot, grid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	upper := targetPrice * s.RangeMultiplier
	if upper < lower.Price {
		return nil, fmt.Errorf("%w: upper price %.10g below spot+1 %.10g", ErrInvalidRange, upper, lower.Price)
	}

	plans := []SeedPlan{{
		Label:       LabelPrimary,
		MinPrice:    lower.Price,
		MaxPrice:    upper,
		QuotedPrice: targetPrice,
		Rounding:    binmath.RoundDown,
		Amount:      amount,
		Shape:       Curved(s.Curvature),
		Side:        SideBase,
	}}

	if s.Pad != nil {
		plans = append(plans, SeedPlan{
			Label:       LabelPad,
			MinPrice:    spot.Price,
			MaxPrice:    spot.Price * s.Pad.MaxFactor,
			QuotedPrice: targetPrice,
			Rounding:    binmath.RoundDown,
			Amount:      s.Pad.Amount,
			Shape:       Flat(),
			Side:        SideBase,
		})
	}
	return plans, nil
}
