// =====================================
// File: internal/dlmm/binmath/binmath.go
// =====================================

// Package binmath maps human prices onto the discrete bin grid of a DLMM pool.
//
// A grid with bin step s (basis points) has ratio r = 1 + s/10000 and bin i
// sits at price r^i. All math is float64. A price within gridPointTolerance
// (relative) of r^n for the nearest n is treated as exactly bin n, so grid
// points round-trip at any bin step and index.
package binmath

import (
	"errors"
	"fmt"
	"math"
)

// BasisPointMax is the basis point denominator of a bin step.
const BasisPointMax = 10000

// Valid bin index range of the DLMM program.
const (
	MinBinID = -443636
	MaxBinID = 443636
)

// Relative price distance under which a price counts as a grid point. Far
// below the smallest bin spacing (1 bp) and far above log/pow drift.
const gridPointTolerance = 1e-10

var (
	ErrInvalidBinStep = errors.New("bin step must be positive")
	ErrInvalidPrice   = errors.New("price must be finite and positive")
	ErrBinOutOfRange  = errors.New("bin index out of range")
)

// RoundMode selects which grid point PriceToBin returns for an off-grid price.
type RoundMode int

const (
	RoundDown RoundMode = iota
	RoundUp
	RoundNearest
)

func (m RoundMode) String() string {
	switch m {
	case RoundDown:
		return "down"
	case RoundUp:
		return "up"
	case RoundNearest:
		return "nearest"
	default:
		return "unknown"
	}
}

// Grid is an immutable multiplicative price grid.
type Grid struct {
	binStep int
	ratio   float64
	logR    float64
}

// NewGrid builds a grid for binStepBps > 0.
func NewGrid(binStepBps int) (Grid, error) {
	if binStepBps <= 0 {
		return Grid{}, fmt.Errorf("%w: %d", ErrInvalidBinStep, binStepBps)
	}
	r := 1 + float64(binStepBps)/BasisPointMax
	return Grid{binStep: binStepBps, ratio: r, logR: math.Log(r)}, nil
}

// MustGrid is NewGrid for constants known to be valid.
func MustGrid(binStepBps int) Grid {
	g, err := NewGrid(binStepBps)
	if err != nil {
		panic(err)
	}
	return g
}

// BinStep returns the bin step in basis points.
func (g Grid) BinStep() int { return g.binStep }

// Ratio returns r, the price multiple between adjacent bins.
func (g Grid) Ratio() float64 { return g.ratio }

// Coordinate is a bin on the grid. Only this package constructs it.
type Coordinate struct {
	Index int
	Price float64
}

func (c Coordinate) String() string {
	return fmt.Sprintf("bin %d @ %.10g", c.Index, c.Price)
}

// BinToPrice returns the coordinate of bin index.
func BinToPrice(index int, grid Grid) (Coordinate, error) {
	if grid.ratio <= 1 {
		return Coordinate{}, ErrInvalidBinStep
	}
	if index < MinBinID || index > MaxBinID {
		return Coordinate{}, fmt.Errorf("%w: %d", ErrBinOutOfRange, index)
	}
	return Coordinate{Index: index, Price: math.Pow(grid.ratio, float64(index))}, nil
}

// PriceToBin snaps price onto the grid according to mode.
func PriceToBin(price float64, grid Grid, mode RoundMode) (Coordinate, error) {
	if grid.ratio <= 1 {
		return Coordinate{}, ErrInvalidBinStep
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return Coordinate{}, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}

	if mode < RoundDown || mode > RoundNearest {
		return Coordinate{}, fmt.Errorf("unknown rounding mode %d", mode)
	}

	// Index drift of log(r^i)/log(r) grows with |i| and 1/step, so grid
	// points are recognised by price, not by the raw index.
	raw := math.Log(price) / grid.logR
	nearest := math.Round(raw)
	if ApproxEqual(math.Pow(grid.ratio, nearest), price, gridPointTolerance) {
		return BinToPrice(int(nearest), grid)
	}

	idx := nearest
	switch mode {
	case RoundDown:
		idx = math.Floor(raw)
	case RoundUp:
		idx = math.Ceil(raw)
	}

	return BinToPrice(int(idx), grid)
}

// NextBin returns the bin directly above coord.
func NextBin(coord Coordinate, grid Grid) (Coordinate, error) {
	return BinToPrice(coord.Index+1, grid)
}

// ApproxEqual compares prices with relative tolerance tol.
func ApproxEqual(a, b, tol float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= tol*scale
}
