// =============================
// File: internal/pipeline/steps.go
// =============================
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/dlmm/strategy"
	"github.com/rovshanmuradov/dlmm-launcher/internal/engine"
)

// errNoPool is recorded when the pool cannot be found after all attempts.
var errNoPool = errors.New("pool not discoverable yet")

func (r *run) createBaseMint(ctx context.Context) (map[string]string, error) {
	payer := r.deps.Payer
	mint, err := r.deps.Tokens.CreateMint(ctx, payer, payer.PublicKey, r.cfg.Base.Decimals)
	if err != nil {
		return nil, err
	}
	r.state.BaseMint = &mint
	return map[string]string{
		"base_mint": mint.String(),
		"symbol":    r.cfg.Base.Symbol,
		"decimals":  strconv.Itoa(int(r.cfg.Base.Decimals)),
	}, nil
}

func (r *run) createQuoteMint(ctx context.Context) (map[string]string, error) {
	if r.cfg.Quote.Mode == QuoteExisting {
		mint := r.cfg.Quote.Mint
		r.state.QuoteMint = &mint
		return map[string]string{"quote_mint": mint.String(), "mode": string(QuoteExisting)}, nil
	}

	payer := r.deps.Payer
	mint, err := r.deps.Tokens.CreateMint(ctx, payer, payer.PublicKey, r.cfg.Quote.Decimals)
	if err != nil {
		return nil, err
	}
	r.state.QuoteMint = &mint
	return map[string]string{
		"quote_mint": mint.String(),
		"mode":       string(QuoteCreate),
		"symbol":     r.cfg.Quote.Symbol,
	}, nil
}

// distributeInitialSupply mints the base supply (and a created quote supply)
// into the payer's associated accounts.
func (r *run) distributeInitialSupply(ctx context.Context) (map[string]string, error) {
	payer := r.deps.Payer
	base, quote := *r.state.BaseMint, *r.state.QuoteMint

	baseATA, err := r.deps.Tokens.CreateOrGetAccount(ctx, payer, payer.PublicKey, base)
	if err != nil {
		return nil, fmt.Errorf("base account: %w", err)
	}
	r.state.PayerBaseATA = baseATA
	if _, err := r.deps.Tokens.MintTo(ctx, payer, base, baseATA, r.cfg.Base.Supply); err != nil {
		return nil, fmt.Errorf("mint base supply: %w", err)
	}
	effects := map[string]string{
		"payer_base_account": baseATA.String(),
		"base_minted":        engine.UIAmount(r.cfg.Base.Supply, r.cfg.Base.Decimals),
	}

	quoteATA, err := r.deps.Tokens.CreateOrGetAccount(ctx, payer, payer.PublicKey, quote)
	if err != nil {
		return effects, fmt.Errorf("quote account: %w", err)
	}
	r.state.PayerQuoteATA = quoteATA
	effects["payer_quote_account"] = quoteATA.String()

	if r.cfg.Quote.Mode == QuoteCreate && r.cfg.Quote.Supply > 0 {
		if _, err := r.deps.Tokens.MintTo(ctx, payer, quote, quoteATA, r.cfg.Quote.Supply); err != nil {
			return effects, fmt.Errorf("mint quote supply: %w", err)
		}
		effects["quote_minted"] = engine.UIAmount(r.cfg.Quote.Supply, r.cfg.Quote.Decimals)
	}
	return effects, nil
}

// fundRecipient sends base and quote to the recipient. A quote balance short
// of the requested amount skips the quote transfer with a warning.
func (r *run) fundRecipient(ctx context.Context) (map[string]string, error) {
	if r.cfg.Recipient.IsZero() {
		return map[string]string{"recipient": "none"}, nil
	}
	payer := r.deps.Payer
	recipient := r.cfg.Recipient
	effects := map[string]string{"recipient": recipient.String()}

	if r.cfg.RecipientBase > 0 {
		dst, err := r.deps.Tokens.CreateOrGetAccount(ctx, payer, recipient, *r.state.BaseMint)
		if err != nil {
			return effects, fmt.Errorf("recipient base account: %w", err)
		}
		if _, err := r.deps.Tokens.Transfer(ctx, payer, r.state.PayerBaseATA, dst, r.cfg.RecipientBase); err != nil {
			return effects, fmt.Errorf("base transfer: %w", err)
		}
		effects["base_sent"] = engine.UIAmount(r.cfg.RecipientBase, r.cfg.Base.Decimals)
	}

	if r.cfg.RecipientQuote > 0 {
		have, err := r.deps.Tokens.TokenBalance(ctx, r.state.PayerQuoteATA)
		if err != nil {
			return effects, fmt.Errorf("quote balance: %w", err)
		}
		if have < r.cfg.RecipientQuote {
			r.logger.Warn("Quote balance too low, skipping quote transfer",
				zap.String("have", engine.UIAmount(have, r.cfg.Quote.Decimals)),
				zap.String("want", engine.UIAmount(r.cfg.RecipientQuote, r.cfg.Quote.Decimals)))
			effects["quote_sent"] = "skipped"
			return effects, nil
		}
		dst, err := r.deps.Tokens.CreateOrGetAccount(ctx, payer, recipient, *r.state.QuoteMint)
		if err != nil {
			return effects, fmt.Errorf("recipient quote account: %w", err)
		}
		if _, err := r.deps.Tokens.Transfer(ctx, payer, r.state.PayerQuoteATA, dst, r.cfg.RecipientQuote); err != nil {
			return effects, fmt.Errorf("quote transfer: %w", err)
		}
		effects["quote_sent"] = engine.UIAmount(r.cfg.RecipientQuote, r.cfg.Quote.Decimals)
	}
	return effects, nil
}

func (r *run) prepareToolkit(ctx context.Context) (map[string]string, error) {
	return nil, r.deps.Toolkit.Prepare(ctx, r.deps.Payer)
}

// poolParams builds the pool settings once per run. The activation point is
// scheduled on first use so the delay covers the remaining setup transactions.
func (r *run) poolParams() (engine.PoolParams, error) {
	if r.pool != nil {
		return *r.pool, nil
	}
	act, err := engine.ScheduleActivation(r.cfg.ActivationType, r.deps.Now(), r.cfg.ActivationDelay)
	if err != nil {
		return engine.PoolParams{}, err
	}
	r.pool = &engine.PoolParams{
		BaseMint:                *r.state.BaseMint,
		QuoteMint:               *r.state.QuoteMint,
		BaseDecimals:            r.cfg.Base.Decimals,
		BinStep:                 r.cfg.BinStep,
		FeeBps:                  r.cfg.FeeBps,
		InitialPrice:            r.cfg.StartPrice,
		Activation:              act,
		HasAlphaVault:           r.cfg.HasAlphaVault,
		CreatorPoolOnOffControl: r.cfg.CreatorPoolOnOffControl,
		Pair:                    r.cfg.Pair,
	}
	return *r.pool, nil
}

func (r *run) createPool(ctx context.Context) (map[string]string, error) {
	pool, err := r.poolParams()
	if err != nil {
		return nil, err
	}
	res, err := r.deps.Engine.CreatePool(ctx, pool)
	r.state.CreateOutput = res.Output
	effects := toolEffects(res)
	effects["activation_type"] = string(pool.Activation.Type)
	if pool.Activation.Point != nil {
		effects["activation_point"] = strconv.FormatInt(*pool.Activation.Point, 10)
	}
	return effects, err
}

func (r *run) seed(plan strategy.SeedPlan) func(context.Context) (map[string]string, error) {
	return func(ctx context.Context) (map[string]string, error) {
		pool, err := r.poolParams()
		if err != nil {
			return nil, err
		}
		res, err := r.deps.Engine.SeedLiquidity(ctx, pool, plan)
		effects := toolEffects(res)
		effects["plan"] = plan.String()
		effects["amount"] = engine.UIAmount(plan.Amount, r.cfg.Base.Decimals)
		return effects, err
	}
}

func (r *run) resolvePoolAddress(ctx context.Context) (map[string]string, error) {
	res, err := r.deps.Resolver.Resolve(ctx, r.state.CreateOutput, *r.state.BaseMint, *r.state.QuoteMint)
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return map[string]string{"attempts": strconv.Itoa(res.Attempts)}, errNoPool
	}
	addr := res.Address
	r.state.PoolAddress = &addr
	return map[string]string{"pool_address": addr.String(), "source": res.Source}, nil
}

func toolEffects(res engine.Result) map[string]string {
	effects := map[string]string{"exit_code": strconv.Itoa(res.ExitCode)}
	if res.ConfigPath != "" {
		effects["config"] = res.ConfigPath
	}
	return effects
}
