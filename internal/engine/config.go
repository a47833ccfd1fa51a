// =============================
// File: internal/engine/config.go
// =============================
package engine

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/dlmm-launcher/internal/dlmm/strategy"
)

// ActivationType selects when the pool starts trading.
type ActivationType string

const (
	ActivationImmediate ActivationType = "immediate"
	ActivationTimestamp ActivationType = "timestamp"
)

// Activation is the pool activation schedule.
type Activation struct {
	Type ActivationType
	// Point is the unix time trading opens at; nil for immediate activation.
	Point *int64
}

// ScheduleActivation returns a schedule opening delay after now. Immediate
// schedules ignore both.
func ScheduleActivation(typ ActivationType, now time.Time, delay time.Duration) (Activation, error) {
	switch typ {
	case ActivationImmediate:
		return Activation{Type: ActivationImmediate}, nil
	case ActivationTimestamp, "":
		point := now.Add(delay).Unix()
		return Activation{Type: ActivationTimestamp, Point: &point}, nil
	default:
		return Activation{}, fmt.Errorf("unknown activation type %q", typ)
	}
}

// PoolParams are the pool settings shared by every engine invocation.
type PoolParams struct {
	BaseMint                solana.PublicKey
	QuoteMint               solana.PublicKey
	BaseDecimals            uint8
	BinStep                 int
	FeeBps                  int
	InitialPrice            float64
	Activation              Activation
	HasAlphaVault           bool
	CreatorPoolOnOffControl bool
	// Pair names config files, e.g. "nomu_usdc".
	Pair string
}

// Config is the toolkit's JSON configuration. Field names follow the toolkit schema.
type Config struct {
	RPCURL                        string     `json:"rpcUrl"`
	DryRun                        bool       `json:"dryRun"`
	KeypairFilePath               string     `json:"keypairFilePath"`
	ComputeUnitPriceMicroLamports uint64     `json:"computeUnitPriceMicroLamports"`
	BaseMint                      string     `json:"baseMint"`
	QuoteMint                     string     `json:"quoteMint"`
	DLMM                          DLMMConfig `json:"dlmm"`

	SingleBinSeedLiquidity *SingleBinSeedConfig `json:"singleBinSeedLiquidity,omitempty"`
	LFGSeedLiquidity       *LFGSeedConfig       `json:"lfgSeedLiquidity,omitempty"`
}

// DLMMConfig is the "dlmm" block.
type DLMMConfig struct {
	BinStep                 int     `json:"binStep"`
	FeeBps                  int     `json:"feeBps"`
	InitialPrice            float64 `json:"initialPrice"`
	ActivationType          string  `json:"activationType"`
	ActivationPoint         *int64  `json:"activationPoint,omitempty"`
	PriceRounding           string  `json:"priceRounding"`
	HasAlphaVault           bool    `json:"hasAlphaVault"`
	CreatorPoolOnOffControl *bool   `json:"creatorPoolOnOffControl,omitempty"`
}

// SingleBinSeedConfig is the "singleBinSeedLiquidity" block.
type SingleBinSeedConfig struct {
	Price                       float64 `json:"price"`
	PriceRounding               string  `json:"priceRounding"`
	SeedAmount                  string  `json:"seedAmount"`
	BasePositionKeypairFilepath string  `json:"basePositionKeypairFilepath"`
	OperatorKeypairFilepath     string  `json:"operatorKeypairFilepath"`
	PositionOwner               string  `json:"positionOwner"`
	FeeOwner                    string  `json:"feeOwner"`
	LockReleasePoint            int64   `json:"lockReleasePoint"`
	SeedTokenXToPositionOwner   bool    `json:"seedTokenXToPositionOwner"`
}

// LFGSeedConfig is the "lfgSeedLiquidity" block (curved range deposit).
type LFGSeedConfig struct {
	MinPrice                    float64 `json:"minPrice"`
	MaxPrice                    float64 `json:"maxPrice"`
	SeedAmount                  string  `json:"seedAmount"`
	Curvature                   float64 `json:"curvature"`
	BasePositionKeypairFilepath string  `json:"basePositionKeypairFilepath"`
	OperatorKeypairFilepath     string  `json:"operatorKeypairFilepath"`
	PositionOwner               string  `json:"positionOwner"`
	FeeOwner                    string  `json:"feeOwner"`
	LockReleasePoint            int64   `json:"lockReleasePoint"`
	SeedTokenXToPositionOwner   bool    `json:"seedTokenXToPositionOwner"`
}

// Settings are the invocation-independent fields every config carries.
type Settings struct {
	RPCURL           string
	KeypairFile      string
	ComputeUnitPrice uint64
	DryRun           bool
}

// Pool and single-bin prices are always rounded down by the toolkit.
const priceRoundingDown = "down"

func (s Settings) base(p PoolParams) Config {
	return Config{
		RPCURL:                        s.RPCURL,
		DryRun:                        s.DryRun,
		KeypairFilePath:               s.KeypairFile,
		ComputeUnitPriceMicroLamports: s.ComputeUnitPrice,
		BaseMint:                      p.BaseMint.String(),
		QuoteMint:                     p.QuoteMint.String(),
		DLMM: DLMMConfig{
			BinStep:         p.BinStep,
			FeeBps:          p.FeeBps,
			InitialPrice:    p.InitialPrice,
			ActivationType:  activationTypeValue(p.Activation.Type),
			ActivationPoint: p.Activation.Point,
			PriceRounding:   priceRoundingDown,
			HasAlphaVault:   p.HasAlphaVault,
		},
	}
}

// The toolkit only knows "slot" and "timestamp"; immediate activation is a
// slot schedule without an activation point.
func activationTypeValue(t ActivationType) string {
	if t == ActivationImmediate {
		return "slot"
	}
	return string(ActivationTimestamp)
}

// BuildCreateConfig returns the pool creation config.
func BuildCreateConfig(s Settings, p PoolParams) Config {
	cfg := s.base(p)
	onOff := p.CreatorPoolOnOffControl
	cfg.DLMM.CreatorPoolOnOffControl = &onOff
	return cfg
}

// BuildSeedConfig returns the config for one seed plan: a single-bin block
// for single-bin plans, an LFG block otherwise.
func BuildSeedConfig(s Settings, p PoolParams, plan strategy.SeedPlan, owner solana.PublicKey) Config {
	cfg := s.base(p)
	amount := UIAmount(plan.Amount, p.BaseDecimals)

	if plan.IsSingleBin() {
		cfg.SingleBinSeedLiquidity = &SingleBinSeedConfig{
			Price:                       plan.QuotedPrice,
			PriceRounding:               plan.Rounding.String(),
			SeedAmount:                  amount,
			BasePositionKeypairFilepath: s.KeypairFile,
			OperatorKeypairFilepath:     s.KeypairFile,
			PositionOwner:               owner.String(),
			FeeOwner:                    owner.String(),
			LockReleasePoint:            0,
			SeedTokenXToPositionOwner:   true,
		}
		return cfg
	}

	cfg.LFGSeedLiquidity = &LFGSeedConfig{
		MinPrice:                    plan.MinPrice,
		MaxPrice:                    plan.MaxPrice,
		SeedAmount:                  amount,
		Curvature:                   plan.Shape.Curvature,
		BasePositionKeypairFilepath: s.KeypairFile,
		OperatorKeypairFilepath:     s.KeypairFile,
		PositionOwner:               owner.String(),
		FeeOwner:                    owner.String(),
		LockReleasePoint:            0,
		SeedTokenXToPositionOwner:   true,
	}
	return cfg
}

// UIAmount converts raw units to the decimal string the toolkit expects.
func UIAmount(raw uint64, decimals uint8) string {
	return decimal.NewFromUint64(raw).Shift(-int32(decimals)).String()
}

// ConfigFileName names the config file of one invocation.
func ConfigFileName(pair string, plan *strategy.SeedPlan) string {
	switch {
	case plan == nil:
		return fmt.Sprintf("create_dlmm_pool.%s.json", pair)
	case plan.IsSingleBin():
		return fmt.Sprintf("seed_single.%s.json", pair)
	case plan.Label == strategy.LabelPrimary:
		return fmt.Sprintf("seed_lfg.%s.json", pair)
	default:
		return fmt.Sprintf("seed_lfg_%s.%s.json", plan.Label, pair)
	}
}
