package funding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const sol = 1_000_000_000

// fakeLedger reaches `target` lamports on probe number `reachAt` (1-based);
// reachAt 0 never reaches it. failProbes lists probe numbers that error.
type fakeLedger struct {
	target     uint64
	reachAt    int
	failProbes map[int]bool

	probes   int
	airdrops int
	confirms int
}

func (f *fakeLedger) GetBalance(context.Context, solana.PublicKey) (uint64, error) {
	f.probes++
	if f.failProbes[f.probes] {
		return 0, errors.New("fetch failed")
	}
	if f.reachAt > 0 && f.probes >= f.reachAt {
		return f.target, nil
	}
	return f.target / 4, nil
}

func (f *fakeLedger) RequestAirdrop(context.Context, solana.PublicKey, uint64) (solana.Signature, error) {
	f.airdrops++
	return solana.Signature{}, nil
}

func (f *fakeLedger) Confirm(context.Context, solana.Signature) error {
	f.confirms++
	return nil
}

func requirement(max int) Requirement {
	return Requirement{
		Account:      solana.NewWallet().PublicKey(),
		Minimum:      2 * sol,
		MaxAttempts:  max,
		PollInterval: time.Millisecond,
	}
}

func TestEnsureBalanceSucceedsAfterExactlyKProbes(t *testing.T) {
	for k := 1; k <= 6; k++ {
		ledger := &fakeLedger{target: 2 * sol, reachAt: k}
		gate := NewGate(ledger, true, zaptest.NewLogger(t))

		bal, err := gate.EnsureBalance(context.Background(), requirement(6))
		require.NoError(t, err, "k=%d", k)
		assert.Equal(t, uint64(2*sol), bal)
		assert.Equal(t, k, ledger.probes, "k=%d", k)
		assert.Equal(t, k-1, ledger.airdrops, "one top-up per short probe")
	}
}

func TestEnsureBalanceTimesOutAfterMaxAttempts(t *testing.T) {
	ledger := &fakeLedger{target: 2 * sol}
	gate := NewGate(ledger, true, zap.NewNop())

	bal, err := gate.EnsureBalance(context.Background(), requirement(5))
	assert.ErrorIs(t, err, ErrFundingTimeout)
	assert.Equal(t, 5, ledger.probes)
	assert.Equal(t, uint64(sol/2), bal)
}

func TestEnsureBalanceTransientProbeFailuresAreRetried(t *testing.T) {
	ledger := &fakeLedger{target: 2 * sol, reachAt: 3, failProbes: map[int]bool{1: true, 2: true}}
	gate := NewGate(ledger, true, zap.NewNop())

	_, err := gate.EnsureBalance(context.Background(), requirement(4))
	require.NoError(t, err)
	assert.Equal(t, 3, ledger.probes)
	assert.Zero(t, ledger.airdrops)
}

func TestEnsureBalanceProbeFailuresExhaustBudget(t *testing.T) {
	ledger := &fakeLedger{target: 2 * sol, reachAt: 1, failProbes: map[int]bool{1: true, 2: true, 3: true}}
	gate := NewGate(ledger, true, zap.NewNop())

	_, err := gate.EnsureBalance(context.Background(), requirement(3))
	assert.ErrorIs(t, err, ErrFundingTimeout)
	assert.Equal(t, 3, ledger.probes)
}

func TestEnsureBalanceWithoutFaucetFailsFast(t *testing.T) {
	ledger := &fakeLedger{target: 2 * sol}
	gate := NewGate(ledger, false, zap.NewNop())

	_, err := gate.EnsureBalance(context.Background(), requirement(6))
	assert.ErrorIs(t, err, ErrFundingUnavailable)
	assert.Equal(t, 1, ledger.probes)
	assert.Zero(t, ledger.airdrops)
}

func TestEnsureBalanceWithoutFaucetPassesWhenFunded(t *testing.T) {
	ledger := &fakeLedger{target: 2 * sol, reachAt: 1}
	gate := NewGate(ledger, false, zap.NewNop())

	_, err := gate.EnsureBalance(context.Background(), requirement(6))
	assert.NoError(t, err)
}

func TestFaucetAvailable(t *testing.T) {
	assert.True(t, FaucetAvailable("devnet"))
	assert.True(t, FaucetAvailable("localnet"))
	assert.False(t, FaucetAvailable("mainnet-beta"))
}

func TestLamportConversions(t *testing.T) {
	assert.Equal(t, "1.5", LamportsToSOL(1_500_000_000))
	assert.Equal(t, uint64(1_500_000_000), SOLToLamports(1.5))
	assert.Equal(t, uint64(2_000_000_000), SOLToLamports(2))
	assert.Zero(t, SOLToLamports(-1))
}
