package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/blockchain/solbc/rpc/rpctest"
)

func TestExecuteFailsOverOnTransientError(t *testing.T) {
	bad := rpctest.NewServer(t)
	bad.FailWith(http.StatusServiceUnavailable)

	good := rpctest.NewServer(t)
	good.Result("getBalance", rpctest.Context(1500))

	c, err := NewClient([]string{bad.URL, good.URL}, Options{Timeout: time.Second}, zap.NewNop())
	require.NoError(t, err)

	bal, err := c.GetBalance(context.Background(), solana.NewWallet().PublicKey(), "")
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), bal)
	assert.Equal(t, 1, bad.Calls("getBalance"))
	assert.Equal(t, 1, good.Calls("getBalance"))
}

func TestExecuteStopsOnNonTransientError(t *testing.T) {
	first := rpctest.NewServer(t)
	first.Handle("getBalance", func(json.RawMessage) (any, *rpctest.Error) {
		return nil, &rpctest.Error{Code: -32602, Message: "Invalid param: WrongSize"}
	})
	second := rpctest.NewServer(t)
	second.Result("getBalance", rpctest.Context(1))

	c, err := NewClient([]string{first.URL, second.URL}, Options{}, zap.NewNop())
	require.NoError(t, err)

	_, err = c.GetBalance(context.Background(), solana.NewWallet().PublicKey(), "")
	require.Error(t, err)

	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "getBalance", rpcErr.Method)
	assert.Equal(t, 0, second.Calls("getBalance"))
}

func TestHealthCheckDeactivatesFailingNodes(t *testing.T) {
	bad := rpctest.NewServer(t)
	bad.FailWith(http.StatusBadGateway)
	good := rpctest.NewServer(t)
	good.Result("getVersion", map[string]any{"solana-core": "1.18.0", "feature-set": 1})

	c, err := NewClient([]string{bad.URL, good.URL}, Options{}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, c.HealthCheck(context.Background()))
	assert.False(t, c.Nodes()[0].IsActive())
	assert.True(t, c.Nodes()[1].IsActive())
}

func TestHealthCheckAllDown(t *testing.T) {
	bad := rpctest.NewServer(t)
	bad.FailWith(http.StatusBadGateway)

	c, err := NewClient([]string{bad.URL}, Options{}, zap.NewNop())
	require.NoError(t, err)

	assert.ErrorIs(t, c.HealthCheck(context.Background()), ErrNoActiveClients)
	assert.True(t, c.Nodes()[0].IsActive(), "pool stays usable after a failed check")
}

func TestNewClientRequiresURLs(t *testing.T) {
	_, err := NewClient(nil, Options{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrNoActiveClients)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit text", errors.New("429 Too Many Requests"), true},
		{"timeout", context.DeadlineExceeded, true},
		{"reset", errors.New("read: connection reset by peer"), true},
		{"fetch failed", errors.New("fetch failed"), true},
		{"sentinel wrapped", NewError(ErrConnectionFailed, "u", "m"), true},
		{"canceled", context.Canceled, false},
		{"invalid params", errors.New("invalid params"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestMaskURL(t *testing.T) {
	assert.Equal(t, "https://devnet.helius-rpc.com/?api-key=***",
		MaskURL("https://devnet.helius-rpc.com/?api-key=18dccc6d"))
	assert.Equal(t, "https://api.devnet.solana.com", MaskURL("https://api.devnet.solana.com"))
}
