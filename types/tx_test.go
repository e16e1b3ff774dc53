package types

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTxKey(t *testing.T) {
	tx := Tx("hello world")
	key := tx.Key()
	require.EqualValues(t, sha256.Sum256(tx), key)

	// same bytes, same key
	require.Equal(t, key, Tx("hello world").Key())
	require.NotEqual(t, key, Tx("hello worlds").Key())
}

func TestTxKeyFromBytes(t *testing.T) {
	tx := Tx("tx")
	key := tx.Key()

	got, err := TxKeyFromBytes(key[:])
	require.NoError(t, err)
	require.Equal(t, key, got)

	_, err = TxKeyFromBytes(key[:TxKeySize-1])
	require.Error(t, err)
	_, err = TxKeyFromBytes(nil)
	require.Error(t, err)
}

func TestTxKeyFromHex(t *testing.T) {
	key := Tx("tx").Key()

	got, err := TxKeyFromHex(hex.EncodeToString(key[:]))
	require.NoError(t, err)
	require.Equal(t, key, got)

	_, err = TxKeyFromHex("zzzz")
	require.Error(t, err)
	_, err = TxKeyFromHex("abcd")
	require.Error(t, err)
}

func TestTxEqual(t *testing.T) {
	require.True(t, Tx("a").Equal(Tx("a")))
	require.False(t, Tx("a").Equal(Tx("b")))
}
