// internal/blockchain/solbc/token.go
package solbc

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/wallet"
)

// CreateMint creates and initializes a new SPL mint with authority as the
// mint authority and no freeze authority.
func (c *Client) CreateMint(ctx context.Context, payer *wallet.Wallet, authority solana.PublicKey, decimals uint8) (solana.PublicKey, error) {
	mintKey, err := wallet.Generate()
	if err != nil {
		return solana.PublicKey{}, err
	}

	rent, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, token.MINT_SIZE)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to get mint rent: %w", err)
	}

	createIx := system.NewCreateAccountInstruction(
		rent,
		token.MINT_SIZE,
		solana.TokenProgramID,
		payer.PublicKey,
		mintKey.PublicKey,
	).Build()

	initIx := token.NewInitializeMint2InstructionBuilder().
		SetDecimals(decimals).
		SetMintAuthority(authority).
		SetMintAccount(mintKey.PublicKey).
		Build()

	sig, err := c.SendAndConfirm(ctx, payer, []*wallet.Wallet{mintKey}, createIx, initIx)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to create mint: %w", err)
	}

	c.logger.Info("Mint created",
		zap.String("mint", mintKey.PublicKey.String()),
		zap.Uint8("decimals", decimals),
		zap.String("signature", sig.String()))
	return mintKey.PublicKey, nil
}

// CreateOrGetAccount returns owner's associated token account for mint,
// creating it when missing.
func (c *Client) CreateOrGetAccount(ctx context.Context, payer *wallet.Wallet, owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ix, ata, err := wallet.CreateATAIdempotentInstruction(payer.PublicKey, owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive ATA: %w", err)
	}

	exists, err := c.AccountExists(ctx, ata)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if exists {
		return ata, nil
	}

	if _, err := c.SendAndConfirm(ctx, payer, nil, ix); err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to create ATA for %s: %w", owner, err)
	}
	c.logger.Info("Token account created",
		zap.String("owner", owner.String()),
		zap.String("mint", mint.String()),
		zap.String("account", ata.String()))
	return ata, nil
}

// MintTo mints amount raw units of mint into destination.
func (c *Client) MintTo(ctx context.Context, authority *wallet.Wallet, mint, destination solana.PublicKey, amount uint64) (solana.Signature, error) {
	ix := token.NewMintToInstruction(amount, mint, destination, authority.PublicKey, nil).Build()
	sig, err := c.SendAndConfirm(ctx, authority, nil, ix)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to mint %d to %s: %w", amount, destination, err)
	}
	return sig, nil
}

// Transfer moves amount raw units from source to destination. The source
// balance is checked first so that a short account fails without a transaction.
func (c *Client) Transfer(ctx context.Context, owner *wallet.Wallet, source, destination solana.PublicKey, amount uint64) (solana.Signature, error) {
	balance, err := c.TokenBalance(ctx, source)
	if err != nil {
		return solana.Signature{}, err
	}
	if balance < amount {
		return solana.Signature{}, fmt.Errorf("%w: %s holds %d, need %d", ErrInsufficientTokenBalance, source, balance, amount)
	}

	ix := token.NewTransferInstruction(amount, source, destination, owner.PublicKey, nil).Build()
	sig, err := c.SendAndConfirm(ctx, owner, nil, ix)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to transfer %d to %s: %w", amount, destination, err)
	}
	return sig, nil
}

// OwnerTokenBalance sums the raw balance of every token account owner holds for mint.
func (c *Client) OwnerTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	res, err := c.rpc.GetTokenAccountsByOwner(ctx, owner, mint)
	if err != nil {
		return 0, err
	}
	if res == nil {
		return 0, nil
	}

	var total uint64
	for _, acc := range res.Value {
		if acc == nil || acc.Account.Data == nil {
			continue
		}
		raw := acc.Account.Data.GetRawJSON()
		amount := gjson.GetBytes(raw, "parsed.info.tokenAmount.amount")
		if !amount.Exists() {
			continue
		}
		v, err := strconv.ParseUint(amount.String(), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("token account %s: %w", acc.Pubkey, err)
		}
		total += v
	}
	return total, nil
}
