package listing

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/dlmm-launcher/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/dlmm-launcher/internal/blockchain/solbc/rpc/rpctest"
	"github.com/rovshanmuradov/dlmm-launcher/internal/resolver"
)

func lbPairData(x, y solana.PublicKey) []byte {
	data := make([]byte, lbPairHeaderSize)
	copy(data, lbPairDiscriminator)
	data[76] = 0x2d // active id low byte
	data[80] = 25   // bin step
	copy(data[tokenXMintOffset:], x.Bytes())
	copy(data[tokenYMintOffset:], y.Bytes())
	return data
}

func TestDecodeLbPair(t *testing.T) {
	x := solana.NewWallet().PublicKey()
	y := solana.NewWallet().PublicKey()

	h, err := decodeLbPair(lbPairData(x, y))
	require.NoError(t, err)
	assert.Equal(t, x, h.TokenXMint)
	assert.Equal(t, y, h.TokenYMint)
	assert.Equal(t, uint16(25), h.BinStep)
	assert.Equal(t, int32(0x2d), h.ActiveID)

	_, err = decodeLbPair(make([]byte, 10))
	assert.Error(t, err)

	bad := lbPairData(x, y)
	bad[0] ^= 0xff
	_, err = decodeLbPair(bad)
	assert.Error(t, err)
}

func TestProgramListerQueriesBothMintOrders(t *testing.T) {
	base := solana.NewWallet().PublicKey()
	quote := solana.NewWallet().PublicKey()
	pool := solana.NewWallet().PublicKey()

	srv := rpctest.NewServer(t)
	srv.Handle("getProgramAccounts", func(params json.RawMessage) (any, *rpctest.Error) {
		// The pool was created with quote as token X.
		if gjson.GetBytes(params, "1.filters.1.memcmp.bytes").String() != quote.String() {
			return []any{}, nil
		}
		assert.Equal(t, DLMMProgramID.String(), gjson.GetBytes(params, "0").String())
		return []any{map[string]any{
			"pubkey": pool.String(),
			"account": map[string]any{
				"lamports":   7_000_000,
				"owner":      DLMMProgramID.String(),
				"executable": false,
				"rentEpoch":  0,
				"data":       []string{base64.StdEncoding.EncodeToString(lbPairData(quote, base)), "base64"},
			},
		}}, nil
	})

	client, err := rpc.NewClient([]string{srv.URL}, rpc.Options{Timeout: time.Second}, zap.NewNop())
	require.NoError(t, err)

	pools, err := NewProgramLister(client, zaptest.NewLogger(t)).ListPools(context.Background(), base, quote)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, pool, pools[0].Address)
	assert.True(t, pools[0].Matches(base, quote))
	assert.Equal(t, 2, srv.Calls("getProgramAccounts"))
}

func TestAPIListerFiltersPairs(t *testing.T) {
	base := solana.NewWallet().PublicKey()
	quote := solana.NewWallet().PublicKey()
	pool := solana.NewWallet().PublicKey()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pair/all", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"address": solana.NewWallet().PublicKey().String(), "mint_x": base.String(), "mint_y": solana.NewWallet().PublicKey().String()},
			{"address": "garbage", "mint_x": base.String(), "mint_y": quote.String()},
			{"address": pool.String(), "mint_x": quote.String(), "mint_y": base.String(), "bin_step": 25},
		})
	}))
	t.Cleanup(srv.Close)

	pools, err := NewAPILister(srv.URL+"/", nil, zap.NewNop()).ListPools(context.Background(), base, quote)
	require.NoError(t, err)
	assert.Equal(t, []resolver.PoolInfo{{Address: pool, MintA: quote, MintB: base}}, pools)
}

func TestAPIListerHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := NewAPILister(srv.URL, nil, zap.NewNop()).ListPools(context.Background(),
		solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey())
	assert.ErrorContains(t, err, "503")
}

func TestResolverWithAPILister(t *testing.T) {
	base := solana.NewWallet().PublicKey()
	quote := solana.NewWallet().PublicKey()
	pool := solana.NewWallet().PublicKey()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"address": pool.String(), "mint_x": base.String(), "mint_y": quote.String()},
		})
	}))
	t.Cleanup(srv.Close)

	r := resolver.New(NewAPILister(srv.URL, nil, zap.NewNop()),
		resolver.Options{MaxAttempts: 2, PollInterval: time.Millisecond}, zap.NewNop())
	res, err := r.Resolve(context.Background(), "Pool creation failed", base, quote)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, pool, res.Address)
}
