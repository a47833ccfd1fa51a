// =====================================
// File: internal/funding/gate.go
// =====================================

// Package funding makes sure the operating account holds enough SOL before
// an operation spends it, topping it up from the cluster faucet when one exists.
package funding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/retry"
)

var (
	// ErrFundingTimeout is returned when the balance stays below the minimum
	// after every attempt.
	ErrFundingTimeout = errors.New("funding timeout: balance below minimum")

	// ErrFundingUnavailable is returned when the balance is short and the
	// cluster has no faucet.
	ErrFundingUnavailable = errors.New("funding unavailable: no faucet on this cluster")
)

// Ledger is the subset of the ledger client the gate needs.
type Ledger interface {
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error)
	Confirm(ctx context.Context, sig solana.Signature) error
}

// Requirement describes one gate invocation. Amounts are lamports.
type Requirement struct {
	Account      solana.PublicKey
	Minimum      uint64
	MaxAttempts  int
	PollInterval time.Duration
	// TopUp is the faucet request size; defaults to Minimum.
	TopUp uint64
}

// Gate checks and tops up balances.
type Gate struct {
	ledger Ledger
	faucet bool
	logger *zap.Logger
}

// NewGate creates a gate. faucet reports whether the cluster serves airdrops.
func NewGate(ledger Ledger, faucet bool, logger *zap.Logger) *Gate {
	return &Gate{
		ledger: ledger,
		faucet: faucet,
		logger: logger.Named("funding"),
	}
}

// FaucetAvailable reports whether cluster serves requestAirdrop.
func FaucetAvailable(cluster string) bool {
	switch cluster {
	case "devnet", "testnet", "localnet", "localhost":
		return true
	default:
		return false
	}
}

// LamportsToSOL formats lamports as a SOL decimal string.
func LamportsToSOL(lamports uint64) string {
	return decimal.NewFromUint64(lamports).Shift(-9).String()
}

// SOLToLamports converts a SOL amount to lamports, truncating below one lamport.
func SOLToLamports(sol float64) uint64 {
	d := decimal.NewFromFloat(sol).Shift(9).Truncate(0)
	if d.IsNegative() {
		return 0
	}
	return uint64(d.IntPart())
}

// EnsureBalance probes the balance up to req.MaxAttempts times, requesting a
// top-up after each short probe, and returns the first balance at or above
// req.Minimum. Probe and faucet failures are logged and consume an attempt.
func (g *Gate) EnsureBalance(ctx context.Context, req Requirement) (uint64, error) {
	if req.MaxAttempts < 1 {
		req.MaxAttempts = 1
	}
	topUp := req.TopUp
	if topUp == 0 {
		topUp = req.Minimum
	}

	logger := g.logger.With(
		zap.String("account", req.Account.String()),
		zap.String("min_sol", LamportsToSOL(req.Minimum)))

	var last uint64
	balance, err := retry.Do(ctx, retry.Policy{
		MaxAttempts: req.MaxAttempts,
		Interval:    req.PollInterval,
	}, logger, func(attempt int) (uint64, error) {
		bal, err := g.ledger.GetBalance(ctx, req.Account)
		if err != nil {
			logger.Warn("Balance probe failed", zap.Int("attempt", attempt), zap.Error(err))
			return 0, err
		}
		last = bal
		if bal >= req.Minimum {
			return bal, nil
		}

		if !g.faucet {
			return bal, retry.Permanent(fmt.Errorf("%w: have %s SOL, need %s SOL",
				ErrFundingUnavailable, LamportsToSOL(bal), LamportsToSOL(req.Minimum)))
		}

		logger.Info("Balance low, requesting airdrop",
			zap.Int("attempt", attempt),
			zap.String("balance_sol", LamportsToSOL(bal)),
			zap.String("airdrop_sol", LamportsToSOL(topUp)))
		g.topUp(ctx, logger, req.Account, topUp)

		return bal, fmt.Errorf("balance %s SOL below minimum", LamportsToSOL(bal))
	})

	if err != nil {
		if errors.Is(err, ErrFundingUnavailable) {
			return last, err
		}
		if errors.Is(err, retry.ErrAttemptsExhausted) {
			logger.Error("Funding gate exhausted", zap.Int("attempts", req.MaxAttempts),
				zap.String("balance_sol", LamportsToSOL(last)))
			return last, fmt.Errorf("%w: %s SOL < %s SOL after %d attempts",
				ErrFundingTimeout, LamportsToSOL(last), LamportsToSOL(req.Minimum), req.MaxAttempts)
		}
		return last, err
	}

	logger.Info("Balance sufficient", zap.String("balance_sol", LamportsToSOL(balance)))
	return balance, nil
}

func (g *Gate) topUp(ctx context.Context, logger *zap.Logger, account solana.PublicKey, lamports uint64) {
	sig, err := g.ledger.RequestAirdrop(ctx, account, lamports)
	if err != nil {
		logger.Warn("Airdrop request failed", zap.Error(err))
		return
	}
	if err := g.ledger.Confirm(ctx, sig); err != nil {
		logger.Warn("Airdrop not confirmed", zap.String("signature", sig.String()), zap.Error(err))
	}
}
