// Package solana is the destination chain client: RPC access, key loading, associated
// token account derivation and SPL mint transactions, built on solana-go.
package solana

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	solanago "github.com/gagliardetto/solana-go"
)

type (
	// PublicKey is an account address or program derived address
	PublicKey = solanago.PublicKey
	// Transaction is a signed destination transaction
	Transaction = solanago.Transaction
)

// DefaultMemoProgramID is the SPL memo v2 program
var DefaultMemoProgramID = solanago.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

var errKeyMismatch = errors.New("keypair public key does not match secret")

// ParsePublicKey decodes a base58 address
func ParsePublicKey(s string) (PublicKey, error) {
	pk, err := solanago.PublicKeyFromBase58(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return pk, nil
}

// LoadKeypair accepts a base58 encoded 64 byte secret key, a JSON byte array as written
// by solana-keygen, or a path to such a JSON file.
func LoadKeypair(s string) (solanago.PrivateKey, error) {
	s = strings.TrimSpace(s)

	var (
		key solanago.PrivateKey
		err error
	)
	switch {
	case s == "":
		return nil, fmt.Errorf("empty keypair")
	case strings.HasPrefix(s, "["):
		var raw []byte
		raw, err = keygenBytes(s)
		key = solanago.PrivateKey(raw)
	case strings.HasSuffix(s, ".json"):
		key, err = solanago.PrivateKeyFromSolanaKeygenFile(s)
	default:
		key, err = solanago.PrivateKeyFromBase58(s)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid keypair: %w", err)
	}
	if err := checkKeypair(key); err != nil {
		return nil, err
	}
	return key, nil
}

// keygenBytes decodes the JSON integer array solana-keygen writes
func keygenBytes(s string) ([]byte, error) {
	var ints []int
	if err := json.Unmarshal([]byte(s), &ints); err != nil {
		return nil, err
	}
	raw := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("byte %d at %d out of range", v, i)
		}
		raw[i] = byte(v)
	}
	return raw, nil
}

// checkKeypair rejects secrets whose embedded public half was not derived from the seed
func checkKeypair(key solanago.PrivateKey) error {
	if len(key) != 64 {
		return fmt.Errorf("invalid keypair length %d", len(key))
	}
	msg := []byte("bridge-relayer keypair check")
	sig, err := key.Sign(msg)
	if err != nil {
		return fmt.Errorf("invalid keypair: %w", err)
	}
	if !sig.Verify(key.PublicKey(), msg) {
		return errKeyMismatch
	}
	return nil
}

// FindAssociatedTokenAddress derives owner's token account for mint under tokenProgram,
// which is the legacy token program or token-2022.
func FindAssociatedTokenAddress(owner, mint, tokenProgram PublicKey) (PublicKey, error) {
	ata, _, err := solanago.FindProgramAddress(
		[][]byte{owner[:], tokenProgram[:], mint[:]},
		solanago.SPLAssociatedTokenAccountProgramID,
	)
	return ata, err
}
