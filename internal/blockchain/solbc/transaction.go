// =============================
// File: internal/blockchain/solbc/transaction.go
// =============================
package solbc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/dlmm-launcher/internal/wallet"
)

var (
	errNoSignatures   = errors.New("transaction has no signatures")
	errNoBlockhash    = errors.New("transaction has no recent blockhash")
	errNoInstructions = errors.New("transaction has no instructions")
)

// SendAndConfirm строит, подписывает, отправляет и подтверждает транзакцию.
// A fresh blockhash is fetched on every attempt; transient RPC failures and
// expired blockhashes are retried, everything else is permanent.
func (c *Client) SendAndConfirm(ctx context.Context, payer *wallet.Wallet, signers []*wallet.Wallet, instructions ...solana.Instruction) (solana.Signature, error) {
	if c.opts.ComputeUnitPrice > 0 {
		instructions = append([]solana.Instruction{
			computebudget.NewSetComputeUnitPriceInstruction(c.opts.ComputeUnitPrice).Build(),
		}, instructions...)
	}

	op := func() (solana.Signature, error) {
		tx, err := c.createSignedTransaction(ctx, payer, signers, instructions)
		if err != nil {
			return solana.Signature{}, err
		}
		return c.submitAndConfirm(ctx, tx)
	}

	sig, err := backoff.Retry(
		ctx,
		op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(c.opts.SendTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("Retrying transaction", zap.Duration("next", next), zap.Error(err))
		}),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	return sig, err
}

func (c *Client) createSignedTransaction(ctx context.Context, payer *wallet.Wallet, signers []*wallet.Wallet, instructions []solana.Instruction) (*solana.Transaction, error) {
	blockhash, err := c.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		if rpc.IsTransient(err) {
			return nil, err
		}
		return nil, backoff.Permanent(fmt.Errorf("failed to get recent blockhash: %w", err))
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer.PublicKey))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create transaction: %w", err))
	}

	if err := payer.SignTransaction(tx, signers...); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to sign transaction: %w", err))
	}

	if err := validateTransaction(tx); err != nil {
		return nil, backoff.Permanent(err)
	}
	return tx, nil
}

func (c *Client) submitAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransaction(ctx, tx)
	if err != nil {
		if isBlockhashError(err) || rpc.IsTransient(err) {
			return solana.Signature{}, err // временная ошибка, пересобираем
		}
		return solana.Signature{}, backoff.Permanent(fmt.Errorf("transaction failed: %w", analyzeSendError(err, c.logger)))
	}

	// A sent transaction is never rebuilt: it may still land.
	if err := c.Confirm(ctx, sig); err != nil {
		return sig, backoff.Permanent(fmt.Errorf("confirm %s: %w", sig, err))
	}

	c.logger.Debug("Transaction confirmed", zap.String("signature", sig.String()))
	return sig, nil
}

func validateTransaction(tx *solana.Transaction) error {
	if len(tx.Signatures) == 0 {
		return errNoSignatures
	}
	if tx.Message.RecentBlockhash == (solana.Hash{}) {
		return errNoBlockhash
	}
	if len(tx.Message.Instructions) == 0 {
		return errNoInstructions
	}
	return nil
}
