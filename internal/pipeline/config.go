// =============================
// File: internal/pipeline/config.go
// =============================
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/dlmm-launcher/internal/dlmm/binmath"
	"github.com/rovshanmuradov/dlmm-launcher/internal/dlmm/strategy"
	"github.com/rovshanmuradov/dlmm-launcher/internal/engine"
)

// QuoteMode selects whether the quote token is created or already exists.
type QuoteMode string

const (
	QuoteCreate   QuoteMode = "create"
	QuoteExisting QuoteMode = "existing"
)

// TokenSpec describes one token. Supply is in raw units.
type TokenSpec struct {
	Symbol   string
	Decimals uint8
	Supply   uint64
}

// QuoteSpec describes the quote token; Mint is required in existing mode.
type QuoteSpec struct {
	TokenSpec
	Mode QuoteMode
	Mint solana.PublicKey
}

// Gate names.
const (
	GatePreRun  = "pre-run"
	GatePreSeed = "pre-seed"
	GatePrePad  = "pre-pad"
)

// FundingConfig sets the SOL floors (lamports) checked before spending steps.
type FundingConfig struct {
	PreRunMinimum  uint64
	PreSeedMinimum uint64
	// PrePadMinimum guards every seed plan after the first.
	PrePadMinimum uint64
	TopUp         uint64
	MaxAttempts   int
	PollInterval  time.Duration
}

// Config is everything one run needs. It is built once from the loaded
// configuration and never mutated.
type Config struct {
	Pair      string
	Recipient solana.PublicKey
	Base      TokenSpec
	Quote     QuoteSpec
	// Raw amounts moved to the recipient; zero skips the transfer.
	RecipientBase  uint64
	RecipientQuote uint64

	BinStep                 int
	FeeBps                  int
	StartPrice              float64
	ActivationType          engine.ActivationType
	ActivationDelay         time.Duration
	HasAlphaVault           bool
	CreatorPoolOnOffControl bool

	Strategy   strategy.Strategy
	SeedAmount uint64

	Funding FundingConfig
	// ExplorerURL is formatted with the pool address; empty disables links.
	ExplorerURL string
}

// Validate checks the config before any network call.
func (c Config) Validate() error {
	var errs []error
	if c.Pair == "" {
		errs = append(errs, errors.New("pair name is required"))
	}
	if c.Base.Supply == 0 {
		errs = append(errs, errors.New("base supply must be > 0"))
	}
	if c.SeedAmount > c.Base.Supply {
		errs = append(errs, fmt.Errorf("seed amount %d exceeds base supply %d", c.SeedAmount, c.Base.Supply))
	}
	if c.RecipientBase > c.Base.Supply {
		errs = append(errs, fmt.Errorf("recipient base amount %d exceeds base supply %d", c.RecipientBase, c.Base.Supply))
	}
	switch c.Quote.Mode {
	case QuoteCreate:
	case QuoteExisting:
		if c.Quote.Mint.IsZero() {
			errs = append(errs, errors.New("quote mint is required in existing mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown quote mode %q", c.Quote.Mode))
	}
	if _, err := binmath.NewGrid(c.BinStep); err != nil {
		errs = append(errs, err)
	}
	if c.FeeBps < 0 || c.FeeBps > binmath.BasisPointMax {
		errs = append(errs, fmt.Errorf("fee bps %d out of range", c.FeeBps))
	}
	if c.Funding.MaxAttempts < 1 {
		errs = append(errs, errors.New("funding max attempts must be >= 1"))
	}
	return errors.Join(errs...)
}

// PairName builds the config file pair name, e.g. "nomu_usdc".
func PairName(base, quote string) string {
	return strings.ToLower(base + "_" + quote)
}
