// internal/resolver/listing/api.go
package listing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/resolver"
)

// DefaultDevnetAPI is the DLMM pair API for devnet.
const DefaultDevnetAPI = "https://devnet-dlmm-api.meteora.ag"

// APILister lists pools through the HTTP pair API.
type APILister struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAPILister creates a lister for baseURL. httpClient may be nil.
func NewAPILister(baseURL string, httpClient *http.Client, logger *zap.Logger) *APILister {
	if baseURL == "" {
		baseURL = DefaultDevnetAPI
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &APILister{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.Named("api_lister"),
	}
}

// ListPools fetches every pair and keeps the ones trading base against quote.
func (l *APILister) ListPools(ctx context.Context, base, quote solana.PublicKey) ([]resolver.PoolInfo, error) {
	url := l.baseURL + "/pair/all"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("API returned invalid JSON")
	}

	var pools []resolver.PoolInfo
	gjson.ParseBytes(body).ForEach(func(_, pair gjson.Result) bool {
		p, ok := parsePair(pair)
		if ok && p.Matches(base, quote) {
			pools = append(pools, p)
		}
		return true
	})
	l.logger.Debug("Pair API queried", zap.Int("matches", len(pools)))
	return pools, nil
}

func parsePair(pair gjson.Result) (resolver.PoolInfo, bool) {
	addr, err1 := solana.PublicKeyFromBase58(pair.Get("address").String())
	x, err2 := solana.PublicKeyFromBase58(pair.Get("mint_x").String())
	y, err3 := solana.PublicKeyFromBase58(pair.Get("mint_y").String())
	if err1 != nil || err2 != nil || err3 != nil {
		return resolver.PoolInfo{}, false
	}
	return resolver.PoolInfo{Address: addr, MintA: x, MintB: y}, true
}
