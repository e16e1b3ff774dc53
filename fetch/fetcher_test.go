package fetch

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tangramnet/txfetch/config"
	"github.com/tangramnet/txfetch/libs/log"
	"github.com/tangramnet/txfetch/types"
)

var t0 = time.Unix(1_700_000_000, 0)

func setup(t *testing.T, mutate func(*config.FetchConfig)) *Fetcher {
	t.Helper()
	cfg := config.DefaultFetchConfig()
	if mutate != nil {
		mutate(cfg)
	}
	f, err := NewFetcher(cfg, log.NewNopLogger())
	require.NoError(t, err)
	return f
}

func TestFetcherRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultFetchConfig()
	cfg.RequestTimeout = 0
	_, err := NewFetcher(cfg, log.NewNopLogger())
	require.Error(t, err)
}

func TestFetcherDropsUnknownPeer(t *testing.T) {
	f := setup(t, nil)
	f.Announce("stranger", types.Tx("tx").Key(), true, t0)
	require.Zero(t, f.Size())
}

func TestFetcherPreferredRequestedImmediately(t *testing.T) {
	f := setup(t, nil)
	f.AddPeer("peer")
	key := types.Tx("tx").Key()

	f.Announce("peer", key, true, t0)
	keys, expired := f.Poll("peer", t0)
	require.Equal(t, []types.TxKey{key}, keys)
	require.Empty(t, expired)
	require.Equal(t, 1, f.CountInFlight("peer"))
	f.Tracker().SanityCheck()
}

func TestFetcherDelaysNonPreferred(t *testing.T) {
	f := setup(t, nil)
	f.AddPeer("peer")
	key := types.Tx("tx").Key()

	f.Announce("peer", key, false, t0)

	keys, _ := f.Poll("peer", t0)
	require.Empty(t, keys, "non-preferred announcement must wait out the delay")

	keys, _ = f.Poll("peer", t0.Add(config.DefaultFetchConfig().NonPreferredDelay))
	require.Equal(t, []types.TxKey{key}, keys)
}

func TestFetcherInFlightCap(t *testing.T) {
	f := setup(t, func(cfg *config.FetchConfig) {
		cfg.MaxInFlightPerPeer = 2
	})
	f.AddPeer("peer")
	for i := 0; i < 5; i++ {
		f.Announce("peer", types.Tx(fmt.Sprintf("tx%d", i)).Key(), true, t0)
	}

	first, _ := f.Poll("peer", t0)
	require.Len(t, first, 2)
	require.Equal(t, 2, f.CountInFlight("peer"))

	// no free slots, nothing more to request
	keys, _ := f.Poll("peer", t0)
	require.Empty(t, keys)

	// a response frees one slot for the next candidate
	f.ReceivedTx("peer", first[0])
	keys, _ = f.Poll("peer", t0)
	require.Len(t, keys, 1)
	require.Equal(t, 2, f.CountInFlight("peer"))
	f.Tracker().SanityCheck()
}

func TestFetcherAnnouncementCap(t *testing.T) {
	f := setup(t, func(cfg *config.FetchConfig) {
		cfg.MaxPeerAnnouncements = 3
	})
	f.AddPeer("peer")
	for i := 0; i < 10; i++ {
		f.Announce("peer", types.Tx(fmt.Sprintf("tx%d", i)).Key(), true, t0)
	}
	require.Equal(t, 3, f.Size())
}

func TestFetcherReceivedTxShedsLateAnnouncements(t *testing.T) {
	f := setup(t, nil)
	f.AddPeer("a")
	f.AddPeer("b")
	key := types.Tx("tx").Key()

	f.Announce("a", key, true, t0)
	keys, _ := f.Poll("a", t0)
	require.Equal(t, []types.TxKey{key}, keys)

	f.ReceivedTx("a", key)
	require.Zero(t, f.Size())

	// a late announcement of the same transaction is dropped outright
	f.Announce("b", key, true, t0)
	require.Zero(t, f.Size())
	f.Tracker().SanityCheck()
}

func TestFetcherExpiryRetriesOtherPeer(t *testing.T) {
	cfg := config.DefaultFetchConfig()
	f := setup(t, nil)
	f.AddPeer("a")
	f.AddPeer("b")
	key := types.Tx("tx").Key()

	f.Announce("a", key, true, t0)
	f.Announce("b", key, true, t0)

	first, _ := f.Poll("a", t0)
	second, _ := f.Poll("b", t0)
	require.Len(t, append(first, second...), 1, "only one peer may win the race")

	// whoever won, the loser takes over after the timeout
	after := t0.Add(cfg.RequestTimeout + time.Second)
	retryPeer := "a"
	if len(first) == 1 {
		retryPeer = "b"
	}
	keys, expired := f.Poll(retryPeer, after)
	require.Equal(t, []types.TxKey{key}, keys)
	require.Len(t, expired, 1)
	f.Tracker().SanityCheck()
}

func TestFetcherRemovePeer(t *testing.T) {
	f := setup(t, nil)
	f.AddPeer("peer")
	f.Announce("peer", types.Tx("tx").Key(), true, t0)
	require.Equal(t, 1, f.Size())

	f.RemovePeer("peer")
	require.Zero(t, f.Size())

	// removing twice is harmless
	f.RemovePeer("peer")
	require.Zero(t, f.Size())
}

func TestFetcherOverloadedPeerDelay(t *testing.T) {
	cfg := config.DefaultFetchConfig()
	f := setup(t, func(c *config.FetchConfig) {
		c.MaxInFlightPerPeer = 1
	})
	f.AddPeer("peer")
	keyA := types.Tx("a").Key()
	keyB := types.Tx("b").Key()

	f.Announce("peer", keyA, true, t0)
	keys, _ := f.Poll("peer", t0)
	require.Equal(t, []types.TxKey{keyA}, keys)

	// the peer is at its cap, so the next announcement is pushed back
	f.Announce("peer", keyB, true, t0)
	f.ReceivedTx("peer", keyA)

	keys, _ = f.Poll("peer", t0)
	require.Empty(t, keys)
	keys, _ = f.Poll("peer", t0.Add(cfg.OverloadedPeerDelay))
	require.Equal(t, []types.TxKey{keyB}, keys)
}
