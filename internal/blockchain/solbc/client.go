// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/blockchain/solbc/rpc"
)

var (
	// ErrAccountNotFound is returned when a queried account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrConfirmationTimeout is returned when a signature is not confirmed in time.
	ErrConfirmationTimeout = errors.New("transaction confirmation timeout")

	// ErrTransactionFailed is returned when a confirmed transaction carries an error.
	ErrTransactionFailed = errors.New("transaction failed on-chain")

	// ErrInsufficientTokenBalance is returned when a transfer source holds less than requested.
	ErrInsufficientTokenBalance = errors.New("insufficient token balance")
)

// Options tune transaction submission and confirmation.
type Options struct {
	Commitment     solanarpc.CommitmentType
	ConfirmTimeout time.Duration
	ConfirmPoll    time.Duration
	// SendTimeout bounds the whole build-sign-send-confirm retry loop.
	SendTimeout time.Duration
	// ComputeUnitPrice adds a SetComputeUnitPrice instruction when > 0 (micro-lamports).
	ComputeUnitPrice uint64
	// WebsocketURL enables signature subscriptions for confirmation; polling is the fallback.
	WebsocketURL string
}

// DefaultOptions returns the settings used by the launcher.
func DefaultOptions() Options {
	return Options{
		Commitment:     solanarpc.CommitmentConfirmed,
		ConfirmTimeout: 60 * time.Second,
		ConfirmPoll:    500 * time.Millisecond,
		SendTimeout:    90 * time.Second,
	}
}

// Client – адаптер к Solana: баланс, airdrop, подтверждение и SPL-токены.
type Client struct {
	rpc    *rpc.Client
	opts   Options
	logger *zap.Logger
}

// NewClient создаёт клиент поверх пула RPC-узлов.
func NewClient(rpcClient *rpc.Client, opts Options, logger *zap.Logger) *Client {
	def := DefaultOptions()
	if opts.Commitment == "" {
		opts.Commitment = def.Commitment
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = def.ConfirmTimeout
	}
	if opts.ConfirmPoll <= 0 {
		opts.ConfirmPoll = def.ConfirmPoll
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = def.SendTimeout
	}
	return &Client{
		rpc:    rpcClient,
		opts:   opts,
		logger: logger.Named("solbc-client"),
	}
}

// RPC exposes the underlying node pool.
func (c *Client) RPC() *rpc.Client {
	return c.rpc
}

// GetBalance получает баланс аккаунта в лампортах.
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	bal, err := c.rpc.GetBalance(ctx, account, c.opts.Commitment)
	if err != nil {
		c.logger.Debug("GetBalance error", zap.String("account", account.String()), zap.Error(err))
		return 0, err
	}
	return bal, nil
}

// RequestAirdrop asks the cluster faucet for lamports. Only devnet, testnet
// and local validators serve it.
func (c *Client) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	sig, err := c.rpc.RequestAirdrop(ctx, account, lamports)
	if err != nil {
		c.logger.Warn("RequestAirdrop error",
			zap.String("account", account.String()),
			zap.Uint64("lamports", lamports),
			zap.Error(err))
		return solana.Signature{}, err
	}
	c.logger.Info("Airdrop requested",
		zap.String("account", account.String()),
		zap.Uint64("lamports", lamports),
		zap.String("signature", sig.String()))
	return sig, nil
}

// Confirm ожидает подтверждения транзакции. With a websocket endpoint it
// subscribes to the signature; otherwise, or if the subscription fails, it polls.
func (c *Client) Confirm(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ConfirmTimeout)
	defer cancel()

	if c.opts.WebsocketURL != "" {
		err := c.confirmWS(ctx, sig)
		if err == nil || errors.Is(err, ErrTransactionFailed) {
			return err
		}
		c.logger.Debug("Websocket confirmation unavailable, polling",
			zap.String("signature", sig.String()), zap.Error(err))
	}
	return c.confirmPoll(ctx, sig)
}

func (c *Client) confirmWS(ctx context.Context, sig solana.Signature) error {
	wsClient, err := ws.Connect(ctx, c.opts.WebsocketURL)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}
	defer wsClient.Close()

	sub, err := wsClient.SignatureSubscribe(sig, c.opts.Commitment)
	if err != nil {
		return fmt.Errorf("signature subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	res, err := sub.Recv(ctx)
	if err != nil {
		return err
	}
	if res.Value.Err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, res.Value.Err)
	}
	return nil
}

func (c *Client) confirmPoll(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(c.opts.ConfirmPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s", ErrConfirmationTimeout, sig)
			}
			return ctx.Err()
		case <-ticker.C:
			status, err := c.rpc.GetSignatureStatus(ctx, sig)
			if err != nil {
				c.logger.Warn("Error getting signature status", zap.Error(err))
				continue
			}
			if status == nil {
				continue
			}
			if status.Err != nil {
				return fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
			}
			if status.ConfirmationStatus == solanarpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == solanarpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}

// TokenBalance returns the raw amount held by a token account, 0 when the
// account does not exist yet.
func (c *Client) TokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	res, err := c.rpc.GetTokenAccountBalance(ctx, account)
	if err != nil {
		if IsAccountNotFoundError(err) {
			return 0, nil
		}
		return 0, err
	}
	if res == nil || res.Value == nil {
		return 0, nil
	}
	amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: token amount %q: %v", rpc.ErrInvalidResponse, res.Value.Amount, err)
	}
	return amount, nil
}

// AccountExists reports whether account is present on the ledger.
func (c *Client) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	info, err := c.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		if IsAccountNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return info != nil && info.Value != nil, nil
}

func (c *Client) String() string {
	return fmt.Sprintf("solbc.Client(%s)", c.rpc)
}
