// =====================================
// File: internal/resolver/resolver.go
// =====================================

// Package resolver finds the address of a freshly created pool, first from
// the creation output and then from pool listings.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/retry"
)

// Sources reported in Result.
const (
	SourceOutput  = "output"
	SourceListing = "listing"
)

var poolAddressPattern = regexp.MustCompile(`(?i)Pool address:\s*([1-9A-HJ-NP-Za-km-z]{32,44})`)

// errNotListed drives another listing attempt.
var errNotListed = errors.New("pool not listed yet")

// PoolInfo is one pool returned by a listing query.
type PoolInfo struct {
	Address solana.PublicKey
	MintA   solana.PublicKey
	MintB   solana.PublicKey
}

// Matches reports whether the pool trades base against quote in either order.
func (p PoolInfo) Matches(base, quote solana.PublicKey) bool {
	return (p.MintA.Equals(base) && p.MintB.Equals(quote)) ||
		(p.MintA.Equals(quote) && p.MintB.Equals(base))
}

// Lister queries pools trading the two mints.
type Lister interface {
	ListPools(ctx context.Context, base, quote solana.PublicKey) ([]PoolInfo, error)
}

// Result of a resolution. Found false means the pool is not discoverable yet;
// it may still exist.
type Result struct {
	Address  solana.PublicKey
	Found    bool
	Source   string
	Attempts int
}

// Options bound the listing poll.
type Options struct {
	// InitialDelay is waited once before the first listing probe.
	InitialDelay time.Duration
	MaxAttempts  int
	PollInterval time.Duration
}

// DefaultOptions waits 10s, then probes 6 times at 5s intervals.
func DefaultOptions() Options {
	return Options{InitialDelay: 10 * time.Second, MaxAttempts: 6, PollInterval: 5 * time.Second}
}

// Resolver resolves pool addresses.
type Resolver struct {
	lister Lister
	opts   Options
	logger *zap.Logger
}

// New creates a resolver. lister may be nil, leaving only the output parse.
func New(lister Lister, opts Options, logger *zap.Logger) *Resolver {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Resolver{lister: lister, opts: opts, logger: logger.Named("resolver")}
}

// ParsePoolAddress extracts the first "Pool address: <key>" from output.
func ParsePoolAddress(output string) (solana.PublicKey, bool) {
	for _, m := range poolAddressPattern.FindAllStringSubmatch(output, -1) {
		if key, err := solana.PublicKeyFromBase58(m[1]); err == nil {
			return key, true
		}
	}
	return solana.PublicKey{}, false
}

// Resolve returns the pool address for base/quote. Only context cancellation
// is reported as an error; an exhausted search returns Found false.
func (r *Resolver) Resolve(ctx context.Context, creationOutput string, base, quote solana.PublicKey) (Result, error) {
	if addr, ok := ParsePoolAddress(creationOutput); ok {
		r.logger.Info("Pool address found in creation output", zap.String("pool", addr.String()))
		return Result{Address: addr, Found: true, Source: SourceOutput}, nil
	}
	if r.lister == nil {
		r.logger.Warn("Pool address not in output and no listing configured")
		return Result{}, nil
	}

	if r.opts.InitialDelay > 0 {
		r.logger.Debug("Waiting before listing probe", zap.Duration("delay", r.opts.InitialDelay))
		timer := time.NewTimer(r.opts.InitialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{}, ctx.Err()
		case <-timer.C:
		}
	}

	attempts := 0
	res, err := retry.Do(ctx, retry.Policy{MaxAttempts: r.opts.MaxAttempts, Interval: r.opts.PollInterval}, r.logger,
		func(attempt int) (Result, error) {
			attempts = attempt
			pools, err := r.lister.ListPools(ctx, base, quote)
			if err != nil {
				r.logger.Warn("Pool listing failed", zap.Int("attempt", attempt), zap.Error(err))
				return Result{}, err
			}
			for _, p := range pools {
				if p.Matches(base, quote) {
					return Result{Address: p.Address, Found: true, Source: SourceListing}, nil
				}
			}
			return Result{}, errNotListed
		})
	res.Attempts = attempts

	switch {
	case err == nil:
		r.logger.Info("Pool address found in listing",
			zap.String("pool", res.Address.String()), zap.Int("attempts", attempts))
		return res, nil
	case ctx.Err() != nil:
		return res, fmt.Errorf("pool resolution cancelled: %w", ctx.Err())
	default:
		r.logger.Warn("Pool not discoverable yet",
			zap.String("base_mint", base.String()),
			zap.String("quote_mint", quote.String()),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return Result{Attempts: attempts}, nil
	}
}

// MultiLister queries each lister in order and merges their pools. A failing
// lister is skipped; the call fails only when every lister failed.
type MultiLister struct {
	Listers []Lister
	Logger  *zap.Logger
}

func (m MultiLister) ListPools(ctx context.Context, base, quote solana.PublicKey) ([]PoolInfo, error) {
	var (
		pools []PoolInfo
		errs  []error
		seen  = map[solana.PublicKey]bool{}
	)
	for _, l := range m.Listers {
		got, err := l.ListPools(ctx, base, quote)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("Lister failed", zap.Error(err))
			}
			errs = append(errs, err)
			continue
		}
		for _, p := range got {
			if !seen[p.Address] {
				seen[p.Address] = true
				pools = append(pools, p)
			}
		}
	}
	if len(errs) == len(m.Listers) && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return pools, nil
}
