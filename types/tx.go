package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// TxKeySize is the size of the transaction key index.
const TxKeySize = sha256.Size

type (
	// Tx is an arbitrary byte array.
	// NOTE: Tx has no types at this level, so when wire encoded it's just length-prefixed.
	Tx []byte

	// TxKey is the fixed length array key used as an index.
	TxKey [TxKeySize]byte
)

// Key returns the sha256 hash of the wire encoded transaction.
func (tx Tx) Key() TxKey {
	return sha256.Sum256(tx)
}

// String returns the hex-encoded transaction as a string.
func (tx Tx) String() string {
	return fmt.Sprintf("Tx{%X}", []byte(tx))
}

func (key TxKey) String() string {
	return fmt.Sprintf("TxKey{%X}", key[:])
}

// TxKeyFromBytes converts a slice into a TxKey. It errors unless the slice is
// exactly TxKeySize bytes.
func TxKeyFromBytes(bz []byte) (TxKey, error) {
	if len(bz) != TxKeySize {
		return TxKey{}, fmt.Errorf("incorrect tx key size: expected %d, got %d", TxKeySize, len(bz))
	}
	var key TxKey
	copy(key[:], bz)
	return key, nil
}

// TxKeyFromHex parses a hex-encoded TxKey.
func TxKeyFromHex(s string) (TxKey, error) {
	bz, err := hex.DecodeString(s)
	if err != nil {
		return TxKey{}, err
	}
	return TxKeyFromBytes(bz)
}

// Equal compares two transactions byte for byte.
func (tx Tx) Equal(other Tx) bool {
	return bytes.Equal(tx, other)
}
