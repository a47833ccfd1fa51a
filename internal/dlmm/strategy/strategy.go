// =====================================
// File: internal/dlmm/strategy/strategy.go
// =====================================
package strategy

import (
	"errors"
	"fmt"
	"math"

	"github.com/rovshanmuradov/dlmm-launcher/internal/dlmm/binmath"
)

var (
	ErrInvalidRange  = errors.New("invalid strategy range")
	ErrInvalidAmount = errors.New("invalid seed amount")
	ErrInvalidPrice  = errors.New("invalid target price")
)

// Kind names a liquidity-shape strategy.
type Kind string

const (
	KindSingleBin   Kind = "single_bin"
	KindCurvedRange Kind = "curved_range"
)

// ShapeKind describes how a deposit spreads across its bins.
type ShapeKind int

const (
	ShapeFlat ShapeKind = iota
	ShapeCurved
)

// Shape is the distribution of a deposit. Curvature is 1 for flat shapes.
type Shape struct {
	Kind      ShapeKind
	Curvature float64
}

// Flat is the uniform distribution.
func Flat() Shape { return Shape{Kind: ShapeFlat, Curvature: 1} }

// Curved returns a curved shape; curvature > 1 biases liquidity toward the top of the range.
func Curved(curvature float64) Shape { return Shape{Kind: ShapeCurved, Curvature: curvature} }

func (s Shape) String() string {
	if s.Kind == ShapeFlat {
		return "flat"
	}
	return fmt.Sprintf("curved(%.4g)", s.Curvature)
}

// TokenSide is the pool side a deposit is made in.
type TokenSide int

const (
	SideBase TokenSide = iota
	SideQuote
)

func (s TokenSide) String() string {
	if s == SideQuote {
		return "quote"
	}
	return "base"
}

// Plan labels.
const (
	LabelSingleBin = "single-bin"
	LabelPrimary   = "primary"
	LabelPad       = "pad"
)

// SeedPlan is one liquidity deposit instruction.
type SeedPlan struct {
	Label    string
	MinPrice float64
	MaxPrice float64
	// QuotedPrice is the price handed to the pool engine for single-bin
	// deposits; the engine applies Rounding itself.
	QuotedPrice float64
	Rounding    binmath.RoundMode
	Amount      uint64
	Shape       Shape
	Side        TokenSide
}

// IsSingleBin reports whether the plan targets exactly one bin.
func (p SeedPlan) IsSingleBin() bool {
	return p.MinPrice == p.MaxPrice
}

func (p SeedPlan) String() string {
	return fmt.Sprintf("%s[%.10g..%.10g amount=%d shape=%s side=%s]",
		p.Label, p.MinPrice, p.MaxPrice, p.Amount, p.Shape, p.Side)
}

// Pad is the optional flat deposit placed right at spot.
type Pad struct {
	MaxFactor float64
	Amount    uint64
}

// Strategy is the chosen liquidity shape plus its parameters.
type Strategy struct {
	Kind Kind
	// CurvedRange only.
	RangeMultiplier float64
	Curvature       float64
	Pad             *Pad
}

// SingleBin returns the single-bin strategy.
func SingleBin() Strategy {
	return Strategy{Kind: KindSingleBin}
}

// CurvedRange returns a curved range strategy. pad may be nil.
func CurvedRange(rangeMultiplier, curvature float64, pad *Pad) Strategy {
	return Strategy{
		Kind:            KindCurvedRange,
		RangeMultiplier: rangeMultiplier,
		Curvature:       curvature,
		Pad:             pad,
	}
}

// Validate checks the strategy parameters without a price or amount.
func (s Strategy) Validate() error {
	switch s.Kind {
	case KindSingleBin:
		return nil
	case KindCurvedRange:
		if !(s.RangeMultiplier > 1) || math.IsInf(s.RangeMultiplier, 0) {
			return fmt.Errorf("%w: range multiplier %v must be > 1", ErrInvalidRange, s.RangeMultiplier)
		}
		if !(s.Curvature > 0) || math.IsInf(s.Curvature, 0) {
			return fmt.Errorf("%w: curvature %v must be > 0", ErrInvalidRange, s.Curvature)
		}
		if s.Pad != nil {
			if !(s.Pad.MaxFactor > 1) || math.IsInf(s.Pad.MaxFactor, 0) {
				return fmt.Errorf("%w: pad factor %v must be > 1", ErrInvalidRange, s.Pad.MaxFactor)
			}
			if s.Pad.Amount == 0 {
				return fmt.Errorf("%w: pad amount must be > 0", ErrInvalidAmount)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidRange, s.Kind)
	}
}
