// =================================
// File: internal/config/convert.go
// =================================
package config

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/dlmm-launcher/internal/dlmm/strategy"
	"github.com/rovshanmuradov/dlmm-launcher/internal/engine"
	"github.com/rovshanmuradov/dlmm-launcher/internal/funding"
	"github.com/rovshanmuradov/dlmm-launcher/internal/pipeline"
)

// ToRaw converts a UI amount such as "1000000.5" into raw token units.
// Amounts with more fractional digits than decimals are rejected.
func ToRaw(ui string, decimals uint8) (uint64, error) {
	if ui == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(ui)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", ui, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("invalid amount %q: negative", ui)
	}
	raw := d.Shift(int32(decimals))
	if !raw.Equal(raw.Truncate(0)) {
		return 0, fmt.Errorf("invalid amount %q: more than %d decimals", ui, decimals)
	}
	if raw.Cmp(decimal.NewFromUint64(^uint64(0))) > 0 {
		return 0, fmt.Errorf("invalid amount %q: overflows u64", ui)
	}
	return raw.BigInt().Uint64(), nil
}

// ExplorerURL returns the pool page pattern for the cluster, or "" when the
// cluster has no public UI.
func (c *Config) ExplorerURL() string {
	switch c.Cluster {
	case "devnet":
		return "https://devnet.meteora.ag/dlmm/%s"
	case "mainnet-beta":
		return "https://app.meteora.ag/dlmm/%s"
	default:
		return ""
	}
}

// StrategySpec builds the liquidity strategy. Pad amounts are in base units.
func (c *Config) StrategySpec() (strategy.Strategy, error) {
	if c.Strategy.Type == string(strategy.KindSingleBin) {
		return strategy.SingleBin(), nil
	}
	var pad *strategy.Pad
	if c.Strategy.Pad.Enabled {
		amount, err := ToRaw(c.Strategy.Pad.SeedAmount, c.BaseToken.Decimals)
		if err != nil {
			return strategy.Strategy{}, fmt.Errorf("strategy.pad.seed_amount: %w", err)
		}
		pad = &strategy.Pad{MaxFactor: c.Strategy.Pad.MaxFactor, Amount: amount}
	}
	s := strategy.CurvedRange(c.Strategy.RangeMultiplier, c.Strategy.Curvature, pad)
	return s, s.Validate()
}

// PipelineConfig turns the loaded configuration into the settings of one run.
func (c *Config) PipelineConfig() (pipeline.Config, error) {
	var out pipeline.Config

	base, err := tokenSpec(c.BaseToken, "base_token")
	if err != nil {
		return out, err
	}
	quoteToken, err := tokenSpec(c.QuoteToken.TokenConfig, "quote_token")
	if err != nil {
		return out, err
	}
	quote := pipeline.QuoteSpec{TokenSpec: quoteToken, Mode: pipeline.QuoteMode(c.QuoteToken.Mode)}
	if quote.Mode == pipeline.QuoteExisting {
		quote.Mint, err = solana.PublicKeyFromBase58(c.QuoteToken.Mint)
		if err != nil {
			return out, fmt.Errorf("quote_token.mint: %w", err)
		}
	}

	var recipient solana.PublicKey
	if c.RecipientWallet != "" {
		recipient, err = solana.PublicKeyFromBase58(c.RecipientWallet)
		if err != nil {
			return out, fmt.Errorf("recipient_wallet: %w", err)
		}
	}
	recipientBase, err := ToRaw(c.RecipientFunding.BaseAmount, base.Decimals)
	if err != nil {
		return out, fmt.Errorf("recipient_funding.base_amount: %w", err)
	}
	recipientQuote, err := ToRaw(c.RecipientFunding.QuoteAmount, quote.Decimals)
	if err != nil {
		return out, fmt.Errorf("recipient_funding.quote_amount: %w", err)
	}

	strat, err := c.StrategySpec()
	if err != nil {
		return out, err
	}
	seed, err := ToRaw(c.Strategy.SeedAmount, base.Decimals)
	if err != nil {
		return out, fmt.Errorf("strategy.seed_amount: %w", err)
	}

	activation := engine.ActivationTimestamp
	if c.DLMM.ActivationType == "immediate" {
		activation = engine.ActivationImmediate
	}

	out = pipeline.Config{
		Pair:                    pipeline.PairName(base.Symbol, quote.Symbol),
		Recipient:               recipient,
		Base:                    base,
		Quote:                   quote,
		RecipientBase:           recipientBase,
		RecipientQuote:          recipientQuote,
		BinStep:                 c.DLMM.BinStep,
		FeeBps:                  c.DLMM.FeeBps,
		StartPrice:              c.DLMM.StartPrice,
		ActivationType:          activation,
		ActivationDelay:         c.DLMM.ActivationDelay,
		HasAlphaVault:           c.DLMM.HasAlphaVault,
		CreatorPoolOnOffControl: c.DLMM.CreatorPoolOnOffControl,
		Strategy:                strat,
		SeedAmount:              seed,
		Funding: pipeline.FundingConfig{
			PreRunMinimum:  funding.SOLToLamports(c.Funding.MinSOL),
			PreSeedMinimum: funding.SOLToLamports(c.Funding.PreSeedMinSOL),
			PrePadMinimum:  funding.SOLToLamports(c.Funding.PrePadMinSOL),
			TopUp:          funding.SOLToLamports(c.Funding.AirdropSOL),
			MaxAttempts:    c.Funding.MaxAttempts,
			PollInterval:   c.Funding.PollInterval,
		},
		ExplorerURL: c.ExplorerURL(),
	}
	return out, out.Validate()
}

// EngineOptions configures the toolkit engine; the keypair path is the one
// written into the toolkit dir by the toolkit preparation.
func (c *Config) EngineOptions(owner solana.PublicKey) engine.CLIOptions {
	return engine.CLIOptions{
		Dir:     c.Toolkit.Dir,
		Runner:  c.Toolkit.Runner,
		RunArgs: []string{"run"},
		Scripts: engine.Scripts{
			CreatePool:    c.Toolkit.CreateScript,
			SeedSingleBin: c.Toolkit.SeedSingleBinScript,
			SeedLFG:       c.Toolkit.SeedLFGScript,
		},
		Settings: engine.Settings{
			RPCURL:           c.RPCList[0],
			KeypairFile:      "./keypair.json",
			ComputeUnitPrice: c.DLMM.ComputeUnitPriceMicroLamports,
			DryRun:           c.Toolkit.DryRun,
		},
		Owner: owner,
	}
}

func tokenSpec(t TokenConfig, section string) (pipeline.TokenSpec, error) {
	supply, err := ToRaw(t.Supply, t.Decimals)
	if err != nil {
		return pipeline.TokenSpec{}, fmt.Errorf("%s.supply: %w", section, err)
	}
	return pipeline.TokenSpec{Symbol: t.Symbol, Decimals: t.Decimals, Supply: supply}, nil
}
