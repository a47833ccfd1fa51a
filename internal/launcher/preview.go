// internal/launcher/preview.go
package launcher

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/dlmm-launcher/internal/config"
	"github.com/rovshanmuradov/dlmm-launcher/internal/dlmm/binmath"
	"github.com/rovshanmuradov/dlmm-launcher/internal/dlmm/strategy"
	"github.com/rovshanmuradov/dlmm-launcher/internal/engine"
)

// Preview is what a run would do, computed without network calls.
type Preview struct {
	Pair      string
	Spot      binmath.Coordinate
	SpotNext  binmath.Coordinate
	Plans     []strategy.SeedPlan
	Create    engine.Config
	CreateAt  string
	Seeds     []engine.Config
	SeedFiles []string
}

// BuildPreview plans the seed deposits and renders the engine configs.
// Mints are not known before a run, so they are left as the zero key.
func BuildPreview(cfg *config.Config, owner solana.PublicKey) (*Preview, error) {
	pc, err := cfg.PipelineConfig()
	if err != nil {
		return nil, err
	}
	grid, err := binmath.NewGrid(pc.BinStep)
	if err != nil {
		return nil, err
	}
	plans, err := strategy.Plan(pc.StartPrice, grid, pc.SeedAmount, pc.Strategy)
	if err != nil {
		return nil, err
	}
	spot, err := strategy.SpotBin(pc.StartPrice, grid)
	if err != nil {
		return nil, err
	}
	next, err := binmath.NextBin(spot, grid)
	if err != nil {
		return nil, err
	}

	// Activation is scheduled at run time; the preview shows the type only.
	pool := engine.PoolParams{
		BaseDecimals:            pc.Base.Decimals,
		BinStep:                 pc.BinStep,
		FeeBps:                  pc.FeeBps,
		InitialPrice:            pc.StartPrice,
		Activation:              engine.Activation{Type: pc.ActivationType},
		HasAlphaVault:           pc.HasAlphaVault,
		CreatorPoolOnOffControl: pc.CreatorPoolOnOffControl,
		Pair:                    pc.Pair,
	}
	settings := cfg.EngineOptions(owner).Settings

	p := &Preview{
		Pair:     pc.Pair,
		Spot:     spot,
		SpotNext: next,
		Plans:    plans,
		Create:   engine.BuildCreateConfig(settings, pool),
		CreateAt: engine.ConfigFileName(pc.Pair, nil),
	}
	for i := range plans {
		p.Seeds = append(p.Seeds, engine.BuildSeedConfig(settings, pool, plans[i], owner))
		p.SeedFiles = append(p.SeedFiles, engine.ConfigFileName(pc.Pair, &plans[i]))
	}
	return p, nil
}
