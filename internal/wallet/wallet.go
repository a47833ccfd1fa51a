// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// AssociatedTokenProgramID is the SPL associated token account program.
var AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

// Wallet представляет кошелёк Solana, подписывающий транзакции пайплайна.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey

	mu       sync.Mutex
	ataCache map[solana.PublicKey]solana.PublicKey // кеш ATA по mint
}

func newWallet(key solana.PrivateKey) *Wallet {
	return &Wallet{
		PrivateKey: key,
		PublicKey:  key.PublicKey(),
		ataCache:   make(map[solana.PublicKey]solana.PublicKey),
	}
}

// FromBase58 создаёт кошелёк из base58-encoded приватного ключа.
func FromBase58(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	return newWallet(solana.PrivateKey(privateKeyBytes)), nil
}

// LoadKeypairFile reads a solana-keygen JSON keypair (an array of 64 bytes).
func LoadKeypairFile(path string) (*Wallet, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", path, err)
	}
	return newWallet(key), nil
}

// Generate creates a fresh random keypair. Used for new mint accounts.
func Generate() (*Wallet, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return newWallet(key), nil
}

// KeygenJSON returns the key in the solana-keygen file format.
func (w *Wallet) KeygenJSON() ([]byte, error) {
	values := make([]int, len(w.PrivateKey))
	for i, b := range w.PrivateKey {
		values[i] = int(b)
	}
	return json.Marshal(values)
}

// WriteKeygenFile writes the key to path with owner-only permissions.
func (w *Wallet) WriteKeygenFile(path string) error {
	data, err := w.KeygenJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write keypair %s: %w", path, err)
	}
	return nil
}

// SignTransaction подписывает транзакцию ключом кошелька и дополнительными
// подписантами (например, keypair нового mint-аккаунта).
func (w *Wallet) SignTransaction(tx *solana.Transaction, extra ...*Wallet) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.PublicKey) {
			return &w.PrivateKey
		}
		for _, e := range extra {
			if key.Equals(e.PublicKey) {
				return &e.PrivateKey
			}
		}
		return nil
	})
	return err
}

// ATA возвращает адрес ассоциированного токен-аккаунта кошелька для mint.
func (w *Wallet) ATA(mint solana.PublicKey) (solana.PublicKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ata, ok := w.ataCache[mint]; ok {
		return ata, nil
	}
	ata, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	w.ataCache[mint] = ata
	return ata, nil
}

// CreateATAIdempotentInstruction builds the associated token program's
// CreateIdempotent instruction: it succeeds when the account already exists.
func CreateATAIdempotentInstruction(payer, owner, mint solana.PublicKey) (solana.Instruction, solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}

	return solana.NewInstruction(
		AssociatedTokenProgramID,
		[]*solana.AccountMeta{
			{PublicKey: payer, IsWritable: true, IsSigner: true},
			{PublicKey: ata, IsWritable: true, IsSigner: false},
			{PublicKey: owner, IsWritable: false, IsSigner: false},
			{PublicKey: mint, IsWritable: false, IsSigner: false},
			{PublicKey: solana.SystemProgramID, IsWritable: false, IsSigner: false},
			{PublicKey: solana.TokenProgramID, IsWritable: false, IsSigner: false},
		},
		[]byte{1}, // 1 = CreateIdempotent
	), ata, nil
}

// String возвращает публичный ключ кошелька.
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
