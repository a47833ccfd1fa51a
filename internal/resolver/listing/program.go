// =====================================
// File: internal/resolver/listing/program.go
// =====================================

// Package listing implements pool listing queries for the resolver: an
// on-chain scan of the DLMM program accounts and the public pair API.
package listing

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/dlmm-launcher/internal/resolver"
)

// DLMMProgramID is the Meteora DLMM program, same address on devnet and mainnet.
var DLMMProgramID = solana.MustPublicKeyFromBase58("LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo")

// Offsets inside an LbPair account.
const (
	tokenXMintOffset = 88
	tokenYMintOffset = 120
	lbPairHeaderSize = tokenYMintOffset + 32
)

// lbPairDiscriminator is the Anchor account discriminator of LbPair.
var lbPairDiscriminator = accountDiscriminator("LbPair")

func accountDiscriminator(name string) []byte {
	hash := sha256.Sum256([]byte("account:" + name))
	return hash[:8]
}

// lbPairHeader is the LbPair prefix up to both token mints.
type lbPairHeader struct {
	Discriminator           [8]byte
	StaticParameters        [32]byte
	VariableParameters      [32]byte
	BumpSeed                [1]byte
	BinStepSeed             [2]byte
	PairType                uint8
	ActiveID                int32
	BinStep                 uint16
	Status                  uint8
	RequireBaseFactorSeed   uint8
	BaseFactorSeed          [2]byte
	ActivationType          uint8
	CreatorPoolOnOffControl uint8
	TokenXMint              solana.PublicKey
	TokenYMint              solana.PublicKey
}

func decodeLbPair(data []byte) (*lbPairHeader, error) {
	if len(data) < lbPairHeaderSize {
		return nil, fmt.Errorf("lb pair data too short: %d bytes", len(data))
	}
	var h lbPairHeader
	if err := bin.NewBinDecoder(data).Decode(&h); err != nil {
		return nil, fmt.Errorf("failed to decode lb pair: %w", err)
	}
	if !bytes.Equal(h.Discriminator[:], lbPairDiscriminator) {
		return nil, errors.New("not an lb pair account")
	}
	return &h, nil
}

// ProgramLister finds pools by scanning DLMM program accounts with memcmp
// filters on both token mints.
type ProgramLister struct {
	client  *rpc.Client
	program solana.PublicKey
	logger  *zap.Logger
}

// NewProgramLister creates an on-chain lister over client.
func NewProgramLister(client *rpc.Client, logger *zap.Logger) *ProgramLister {
	return &ProgramLister{client: client, program: DLMMProgramID, logger: logger.Named("program_lister")}
}

// ListPools queries both mint orders; the program sorts neither.
func (l *ProgramLister) ListPools(ctx context.Context, base, quote solana.PublicKey) ([]resolver.PoolInfo, error) {
	var pools []resolver.PoolInfo
	for _, pair := range [][2]solana.PublicKey{{base, quote}, {quote, base}} {
		accounts, err := l.client.GetProgramAccounts(ctx, l.program, pairFilter(pair[0], pair[1]))
		if err != nil && !errors.Is(err, solanarpc.ErrNotFound) {
			return nil, err
		}
		for _, acc := range accounts {
			if acc == nil || acc.Account == nil || acc.Account.Data == nil {
				continue
			}
			h, err := decodeLbPair(acc.Account.Data.GetBinary())
			if err != nil {
				l.logger.Debug("Skipping account", zap.String("account", acc.Pubkey.String()), zap.Error(err))
				continue
			}
			pools = append(pools, resolver.PoolInfo{Address: acc.Pubkey, MintA: h.TokenXMint, MintB: h.TokenYMint})
		}
	}
	l.logger.Debug("Program accounts scanned", zap.Int("pools", len(pools)))
	return pools, nil
}

func pairFilter(x, y solana.PublicKey) *solanarpc.GetProgramAccountsOpts {
	offset, length := uint64(0), uint64(lbPairHeaderSize)
	return &solanarpc.GetProgramAccountsOpts{
		Commitment: solanarpc.CommitmentConfirmed,
		Filters: []solanarpc.RPCFilter{
			{Memcmp: &solanarpc.RPCFilterMemcmp{Offset: 0, Bytes: solana.Base58(lbPairDiscriminator)}},
			{Memcmp: &solanarpc.RPCFilterMemcmp{Offset: tokenXMintOffset, Bytes: solana.Base58(x.Bytes())}},
			{Memcmp: &solanarpc.RPCFilterMemcmp{Offset: tokenYMintOffset, Bytes: solana.Base58(y.Bytes())}},
		},
		DataSlice: &solanarpc.DataSlice{Offset: &offset, Length: &length},
	}
}
