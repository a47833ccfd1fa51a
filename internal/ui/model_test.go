package ui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/events"
	"github.com/rovshanmuradov/dlmm-launcher/internal/logger"
	"github.com/rovshanmuradov/dlmm-launcher/internal/pipeline"
)

func testInfo() RunInfo {
	return RunInfo{
		Pair:     "nomu_usdc",
		Cluster:  "devnet",
		Payer:    "Gh9ZwEmdLJ8DscKNTkTqPbNwLNNBjuSzaG9Vp2KGtKJr",
		Strategy: "curved_range",
	}
}

func TestModelTracksSteps(t *testing.T) {
	m := NewModel(testInfo(), nil)
	at := time.Now()

	m.Update(StepStartedMsg{Step: pipeline.StepCreateBaseMint, At: at})
	view := m.View()
	assert.Contains(t, view, "CreateBaseMint")
	assert.Contains(t, view, "nomu_usdc")
	assert.Contains(t, view, "Gh9Z...tKJr")

	m.Update(StepFinishedMsg{Outcome: pipeline.StepOutcome{
		Name:    pipeline.StepCreateBaseMint,
		Status:  pipeline.StatusSucceeded,
		Effects: map[string]string{"base_mint": "Mint111"},
	}})
	assert.Contains(t, m.View(), "base_mint=Mint111")
	assert.False(t, m.Done())
}

func TestModelShowsUnresolvedPool(t *testing.T) {
	m := NewModel(testInfo(), nil)
	m.Update(StepFinishedMsg{Outcome: pipeline.StepOutcome{
		Name:   pipeline.StepResolvePoolAddress,
		Status: pipeline.StatusUnresolved,
		Reason: "pool not discoverable yet",
	}})
	view := m.View()
	assert.Contains(t, view, "ResolvePoolAddress")
	assert.Contains(t, view, "pool not discoverable yet")
	assert.NotContains(t, view, "✗")
}

func TestModelExitCode(t *testing.T) {
	m := NewModel(testInfo(), nil)
	assert.Equal(t, pipeline.ExitAborted, m.ExitCode())

	report := &pipeline.Report{Status: pipeline.RunFailed, RunID: "run-1"}
	m.Update(RunFinishedMsg{Report: report})
	assert.Equal(t, pipeline.ExitAborted, m.ExitCode(), "publishing still pending")
	assert.Contains(t, m.View(), "publishing report")

	m.Update(RunDoneMsg{Report: report})
	assert.True(t, m.Done())
	assert.Equal(t, pipeline.ExitFailed, m.ExitCode())
	assert.Contains(t, m.View(), "FAILED")
}

func TestModelStartError(t *testing.T) {
	m := NewModel(testInfo(), nil)
	m.Update(RunDoneMsg{Err: errors.New("keypair missing")})
	assert.Contains(t, m.View(), "keypair missing")
	assert.Equal(t, pipeline.ExitAborted, m.ExitCode())
}

func TestModelQuitAndLogToggle(t *testing.T) {
	buffer := logger.NewLogBuffer(10)
	buffer.Add("[INFO] pool created")
	buffer.Add("[DEBUG] raw output")

	m := NewModel(testInfo(), buffer)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	view := m.View()
	assert.Contains(t, view, "pool created")
	assert.NotContains(t, view, "raw output")

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	assert.Contains(t, m.View(), "raw output")

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("l")})
	assert.NotContains(t, m.View(), "pool created")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingSender) all() []tea.Msg {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tea.Msg(nil), r.msgs...)
}

func TestBridgeForwardsInOrder(t *testing.T) {
	bus := events.NewBus(zap.NewNop(), 16)
	sender := &recordingSender{}
	bridge := NewBridge(bus, sender, zap.NewNop())
	defer bridge.Close()

	obs := events.NewObserver(bus)
	obs.StepStarted(pipeline.StepCreatePool)
	obs.StepFinished(pipeline.StepOutcome{Name: pipeline.StepCreatePool, Status: pipeline.StatusSucceeded})
	obs.RunFinished(&pipeline.Report{Status: pipeline.RunSucceeded})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))

	msgs := sender.all()
	require.Len(t, msgs, 3)
	assert.IsType(t, StepStartedMsg{}, msgs[0])
	assert.IsType(t, StepFinishedMsg{}, msgs[1])
	assert.IsType(t, RunFinishedMsg{}, msgs[2])
	assert.Equal(t, uint64(3), bridge.Sent())
}
