// internal/blockchain/solbc/rpc/client.go
package rpc

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTimeout = 15 * time.Second
	retryDelay     = 500 * time.Millisecond
	healthTimeout  = 5 * time.Second
)

// NodeClient is a single RPC endpoint.
type NodeClient struct {
	Client *solanarpc.Client
	URL    string

	mu      sync.RWMutex
	active  bool
	success uint64
	errors  uint64
	latency time.Duration
}

func newNode(endpoint string) *NodeClient {
	return &NodeClient{Client: solanarpc.New(endpoint), URL: endpoint, active: true}
}

// SetActive toggles whether the node is picked for requests.
func (n *NodeClient) SetActive(state bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.active = state
}

// IsActive reports whether the node is picked for requests.
func (n *NodeClient) IsActive() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.active
}

// Metrics returns success count, error count and smoothed latency.
func (n *NodeClient) Metrics() (uint64, uint64, time.Duration) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return atomic.LoadUint64(&n.success), atomic.LoadUint64(&n.errors), n.latency
}

func (n *NodeClient) record(ok bool, latency time.Duration) {
	if ok {
		atomic.AddUint64(&n.success, 1)
	} else {
		atomic.AddUint64(&n.errors, 1)
	}
	n.mu.Lock()
	if n.latency == 0 {
		n.latency = latency
	} else {
		n.latency = (n.latency + latency) / 2
	}
	n.mu.Unlock()
}

// Options tune the client.
type Options struct {
	// RateLimit caps requests per second across all nodes; 0 disables it.
	RateLimit int
	Timeout   time.Duration
}

// Client rotates requests across RPC endpoints and fails over on transient errors.
type Client struct {
	nodes   []*NodeClient
	current int
	mu      sync.Mutex
	limiter ratelimit.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates a client over urls; the first URL is tried first.
func NewClient(urls []string, opts Options, logger *zap.Logger) (*Client, error) {
	if len(urls) == 0 {
		return nil, ErrNoActiveClients
	}
	nodes := make([]*NodeClient, 0, len(urls))
	for _, u := range urls {
		nodes = append(nodes, newNode(u))
	}

	limiter := ratelimit.NewUnlimited()
	if opts.RateLimit > 0 {
		limiter = ratelimit.New(opts.RateLimit)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Client{
		nodes:   nodes,
		limiter: limiter,
		timeout: opts.Timeout,
		logger:  logger.Named("rpc-client"),
	}, nil
}

// Nodes returns the configured endpoints.
func (c *Client) Nodes() []*NodeClient {
	return c.nodes
}

// Primary returns the first endpoint's URL.
func (c *Client) Primary() string {
	return c.nodes[0].URL
}

func (c *Client) next() *NodeClient {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < len(c.nodes); i++ {
		node := c.nodes[(c.current+i)%len(c.nodes)]
		if node.IsActive() {
			c.current = (c.current + i) % len(c.nodes)
			return node
		}
	}
	return nil
}

func (c *Client) rotate() {
	c.mu.Lock()
	c.current = (c.current + 1) % len(c.nodes)
	c.mu.Unlock()
}

// Execute runs op against the current node. Transient failures rotate to the
// next node, one pass over the pool at most; other errors return at once.
func (c *Client) Execute(ctx context.Context, method string, op func(context.Context, *solanarpc.Client) error) error {
	var lastErr error
	for attempt := 0; attempt < len(c.nodes); attempt++ {
		node := c.next()
		if node == nil {
			return ErrNoActiveClients
		}

		c.limiter.Take()
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		start := time.Now()
		err := op(reqCtx, node.Client)
		cancel()
		node.record(err == nil, time.Since(start))

		if err == nil {
			return nil
		}

		lastErr = NewError(err, MaskURL(node.URL), method)
		if !IsTransient(lastErr) || ctx.Err() != nil {
			return lastErr
		}

		c.logger.Debug("RPC request failed, trying next node",
			zap.String("method", method),
			zap.String("url", MaskURL(node.URL)),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		c.rotate()

		if attempt < len(c.nodes)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	return lastErr
}

// HealthCheck probes every endpoint concurrently, deactivating the ones that
// fail. It errors only when no endpoint is healthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, node := range c.nodes {
		node := node
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(gctx, healthTimeout)
			defer cancel()

			start := time.Now()
			_, err := node.Client.GetVersion(probeCtx)
			node.record(err == nil, time.Since(start))
			node.SetActive(err == nil)
			if err != nil {
				c.logger.Warn("Node health check failed",
					zap.String("url", MaskURL(node.URL)),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, node := range c.nodes {
		if node.IsActive() {
			return nil
		}
	}
	// Keep the pool usable; a later call may succeed on a flaky public endpoint.
	for _, node := range c.nodes {
		node.SetActive(true)
	}
	return ErrNoActiveClients
}

// GetBalance returns the lamport balance of account.
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey, commitment solanarpc.CommitmentType) (uint64, error) {
	var out uint64
	err := c.Execute(ctx, "getBalance", func(ctx context.Context, rc *solanarpc.Client) error {
		res, err := rc.GetBalance(ctx, account, commitment)
		if err != nil {
			return err
		}
		out = res.Value
		return nil
	})
	return out, err
}

// RequestAirdrop asks the cluster faucet for lamports.
func (c *Client) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	var sig solana.Signature
	err := c.Execute(ctx, "requestAirdrop", func(ctx context.Context, rc *solanarpc.Client) error {
		var err error
		sig, err = rc.RequestAirdrop(ctx, account, lamports, solanarpc.CommitmentConfirmed)
		return err
	})
	return sig, err
}

// GetLatestBlockhash returns the latest finalized blockhash.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var hash solana.Hash
	err := c.Execute(ctx, "getLatestBlockhash", func(ctx context.Context, rc *solanarpc.Client) error {
		res, err := rc.GetLatestBlockhash(ctx, solanarpc.CommitmentFinalized)
		if err != nil {
			return err
		}
		hash = res.Value.Blockhash
		return nil
	})
	return hash, err
}

// SendTransaction submits a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	var sig solana.Signature
	err := c.Execute(ctx, "sendTransaction", func(ctx context.Context, rc *solanarpc.Client) error {
		var err error
		sig, err = rc.SendTransactionWithOpts(ctx, tx, solanarpc.TransactionOpts{
			SkipPreflight:       false,
			PreflightCommitment: solanarpc.CommitmentConfirmed,
		})
		return err
	})
	return sig, err
}

// GetSignatureStatus returns the status of sig, nil when unknown to the node.
func (c *Client) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*solanarpc.SignatureStatusesResult, error) {
	var status *solanarpc.SignatureStatusesResult
	err := c.Execute(ctx, "getSignatureStatuses", func(ctx context.Context, rc *solanarpc.Client) error {
		res, err := rc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			return err
		}
		if res != nil && len(res.Value) > 0 {
			status = res.Value[0]
		}
		return nil
	})
	return status, err
}

// GetMinimumBalanceForRentExemption returns the rent-exempt minimum for size bytes.
func (c *Client) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	var out uint64
	err := c.Execute(ctx, "getMinimumBalanceForRentExemption", func(ctx context.Context, rc *solanarpc.Client) error {
		var err error
		out, err = rc.GetMinimumBalanceForRentExemption(ctx, size, solanarpc.CommitmentConfirmed)
		return err
	})
	return out, err
}

// GetAccountInfo returns account info or rpc.ErrNotFound.
func (c *Client) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*solanarpc.GetAccountInfoResult, error) {
	var out *solanarpc.GetAccountInfoResult
	err := c.Execute(ctx, "getAccountInfo", func(ctx context.Context, rc *solanarpc.Client) error {
		var err error
		out, err = rc.GetAccountInfoWithOpts(ctx, account, &solanarpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: solanarpc.CommitmentConfirmed,
		})
		return err
	})
	return out, err
}

// GetTokenAccountBalance returns the raw amount held by a token account.
func (c *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*solanarpc.GetTokenAccountBalanceResult, error) {
	var out *solanarpc.GetTokenAccountBalanceResult
	err := c.Execute(ctx, "getTokenAccountBalance", func(ctx context.Context, rc *solanarpc.Client) error {
		var err error
		out, err = rc.GetTokenAccountBalance(ctx, account, solanarpc.CommitmentConfirmed)
		return err
	})
	return out, err
}

// GetTokenAccountsByOwner returns the owner's accounts for mint, JSON-parsed.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner, mint solana.PublicKey) (*solanarpc.GetTokenAccountsResult, error) {
	var out *solanarpc.GetTokenAccountsResult
	err := c.Execute(ctx, "getTokenAccountsByOwner", func(ctx context.Context, rc *solanarpc.Client) error {
		var err error
		out, err = rc.GetTokenAccountsByOwner(ctx, owner,
			&solanarpc.GetTokenAccountsConfig{Mint: mint.ToPointer()},
			&solanarpc.GetTokenAccountsOpts{
				Encoding:   solana.EncodingJSONParsed,
				Commitment: solanarpc.CommitmentConfirmed,
			})
		return err
	})
	return out, err
}

// GetProgramAccounts lists program accounts matching opts.
func (c *Client) GetProgramAccounts(ctx context.Context, program solana.PublicKey, opts *solanarpc.GetProgramAccountsOpts) (solanarpc.GetProgramAccountsResult, error) {
	var out solanarpc.GetProgramAccountsResult
	err := c.Execute(ctx, "getProgramAccounts", func(ctx context.Context, rc *solanarpc.Client) error {
		var err error
		out, err = rc.GetProgramAccountsWithOpts(ctx, program, opts)
		return err
	})
	return out, err
}

// MaskURL hides query strings (API keys) in endpoint URLs for logging.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	parts := strings.Split(u.RawQuery, "&")
	for i, p := range parts {
		if k, _, ok := strings.Cut(p, "="); ok {
			parts[i] = k + "=***"
		}
	}
	u.RawQuery = strings.Join(parts, "&")
	return u.String()
}

func (c *Client) String() string {
	return fmt.Sprintf("rpc.Client(%d nodes, primary=%s)", len(c.nodes), MaskURL(c.Primary()))
}
