package solbc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/dlmm-launcher/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/dlmm-launcher/internal/blockchain/solbc/rpc/rpctest"
	"github.com/rovshanmuradov/dlmm-launcher/internal/wallet"
)

func newTestClient(t *testing.T, srv *rpctest.Server) *Client {
	t.Helper()
	pool, err := rpc.NewClient([]string{srv.URL}, rpc.Options{Timeout: time.Second}, zap.NewNop())
	require.NoError(t, err)
	return NewClient(pool, Options{ConfirmPoll: 10 * time.Millisecond, ConfirmTimeout: time.Second}, zaptest.NewLogger(t))
}

func tokenAccountJSON(amount string) map[string]any {
	return map[string]any{
		"pubkey": solana.NewWallet().PublicKey().String(),
		"account": map[string]any{
			"lamports":   2039280,
			"owner":      solana.TokenProgramID.String(),
			"executable": false,
			"rentEpoch":  0,
			"data": map[string]any{
				"program": "spl-token",
				"space":   165,
				"parsed": map[string]any{
					"type": "account",
					"info": map[string]any{
						"tokenAmount": map[string]any{"amount": amount, "decimals": 6},
					},
				},
			},
		},
	}
}

func TestGetBalance(t *testing.T) {
	srv := rpctest.NewServer(t)
	srv.Result("getBalance", rpctest.Context(2_000_000_000))

	bal, err := newTestClient(t, srv).GetBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000_000), bal)
}

func TestTokenBalance(t *testing.T) {
	srv := rpctest.NewServer(t)
	srv.Result("getTokenAccountBalance", rpctest.Context(map[string]any{
		"amount": "100000000000", "decimals": 6, "uiAmountString": "100000",
	}))

	bal, err := newTestClient(t, srv).TokenBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000_000_000), bal)
}

func TestTokenBalanceMissingAccountIsZero(t *testing.T) {
	srv := rpctest.NewServer(t)
	srv.Handle("getTokenAccountBalance", func(json.RawMessage) (any, *rpctest.Error) {
		return nil, &rpctest.Error{Code: -32602, Message: "Invalid param: could not find account"}
	})

	bal, err := newTestClient(t, srv).TokenBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestOwnerTokenBalanceSumsAccounts(t *testing.T) {
	srv := rpctest.NewServer(t)
	srv.Result("getTokenAccountsByOwner", rpctest.Context([]any{
		tokenAccountJSON("250"),
		tokenAccountJSON("750"),
	}))

	total, err := newTestClient(t, srv).OwnerTokenBalance(context.Background(),
		solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), total)
}

func TestConfirmPollsUntilConfirmed(t *testing.T) {
	srv := rpctest.NewServer(t)
	polls := 0
	srv.Handle("getSignatureStatuses", func(json.RawMessage) (any, *rpctest.Error) {
		polls++
		if polls < 3 {
			return rpctest.Context([]any{nil}), nil
		}
		return rpctest.Context([]any{map[string]any{
			"slot": 10, "confirmations": 1, "err": nil, "confirmationStatus": "confirmed",
		}}), nil
	})

	err := newTestClient(t, srv).Confirm(context.Background(), solana.Signature{})
	require.NoError(t, err)
	assert.Equal(t, 3, srv.Calls("getSignatureStatuses"))
}

func TestConfirmReportsOnChainFailure(t *testing.T) {
	srv := rpctest.NewServer(t)
	srv.Result("getSignatureStatuses", rpctest.Context([]any{map[string]any{
		"slot": 10, "confirmations": 1, "confirmationStatus": "confirmed",
		"err": map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 1}}},
	}}))

	err := newTestClient(t, srv).Confirm(context.Background(), solana.Signature{})
	assert.ErrorIs(t, err, ErrTransactionFailed)
}

func TestConfirmTimeout(t *testing.T) {
	srv := rpctest.NewServer(t)
	srv.Result("getSignatureStatuses", rpctest.Context([]any{nil}))

	pool, err := rpc.NewClient([]string{srv.URL}, rpc.Options{}, zap.NewNop())
	require.NoError(t, err)
	c := NewClient(pool, Options{ConfirmPoll: 5 * time.Millisecond, ConfirmTimeout: 50 * time.Millisecond}, zap.NewNop())

	err = c.Confirm(context.Background(), solana.Signature{})
	assert.ErrorIs(t, err, ErrConfirmationTimeout)
}

func TestTransferChecksSourceBalance(t *testing.T) {
	srv := rpctest.NewServer(t)
	srv.Result("getTokenAccountBalance", rpctest.Context(map[string]any{"amount": "10", "decimals": 6}))

	owner, err := wallet.Generate()
	require.NoError(t, err)

	_, err = newTestClient(t, srv).Transfer(context.Background(), owner,
		solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), 11)
	assert.ErrorIs(t, err, ErrInsufficientTokenBalance)
	assert.Zero(t, srv.Calls("sendTransaction"))
}

func TestProgramErrorFromLog(t *testing.T) {
	assert.Equal(t, "Invalid bin id",
		programErrorFromLog("Program log: AnchorError occurred. Error Code: InvalidBinId. Error Number: 6000. Error Message: Invalid bin id."))
	assert.Equal(t, "custom program error: 0x1",
		programErrorFromLog("Program Tokenkeg failed: custom program error: 0x1"))
	assert.Empty(t, programErrorFromLog("Program log: Instruction: MintTo"))
}
