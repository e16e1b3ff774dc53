package txrequest

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tangramnet/txfetch/types"
)

func TestPriorityDeterministicUnderFixedSecret(t *testing.T) {
	a := NewTracker(WithSecret(testSecret(0x01)))
	b := NewTracker(WithSecret(testSecret(0x01)))
	c := NewTracker(WithSecret(testSecret(0x02)))

	var sameSecretMatches, diffSecretMatches int
	for i := 0; i < 64; i++ {
		key := testKey(fmt.Sprintf("tx%d", i))
		peer := PeerID(i%8 + 1)
		preferred := i%2 == 0

		if a.ComputePriority(key, peer, preferred) == b.ComputePriority(key, peer, preferred) {
			sameSecretMatches++
		}
		if a.ComputePriority(key, peer, preferred) == c.ComputePriority(key, peer, preferred) {
			diffSecretMatches++
		}
	}
	require.Equal(t, 64, sameSecretMatches)
	require.Zero(t, diffSecretMatches)
}

// Preferred announcements outrank non-preferred ones for the same
// transaction, whatever the secret and whatever the peers.
func TestPriorityPreferredOutranks(t *testing.T) {
	for trial := 0; trial < 16; trial++ {
		tracker := NewTracker()
		key := testKey(fmt.Sprintf("tx%d", trial))
		for peer := PeerID(1); peer <= 8; peer++ {
			for other := PeerID(1); other <= 8; other++ {
				require.Greater(t,
					tracker.ComputePriority(key, peer, true),
					tracker.ComputePriority(key, other, false),
				)
			}
		}
	}
}

func TestPreferredPeerAlwaysSelected(t *testing.T) {
	for trial := 0; trial < 16; trial++ {
		var (
			tracker        = NewTracker()
			key            = testKey("tx")
			pref    PeerID = 1
			nonPref PeerID = 2
		)
		tracker.Announce(nonPref, key, false, t0)
		tracker.Announce(pref, key, true, t0)

		keys, _ := tracker.Requestable(pref, t0)
		require.Equal(t, []types.TxKey{key}, keys, "trial %d", trial)
		keys, _ = tracker.Requestable(nonPref, t0)
		require.Empty(t, keys, "trial %d", trial)
	}
}

// Within one preference class the winner depends on the tracker secret:
// across many instances neither symmetric peer wins every race.
func TestPriorityUnpredictableWithinClass(t *testing.T) {
	var (
		key            = testKey("tx")
		peerA   PeerID = 1
		peerB   PeerID = 2
		winsA   int
	)

	const trials = 64
	for i := 0; i < trials; i++ {
		tracker := NewTracker()
		tracker.Announce(peerA, key, false, t0)
		tracker.Announce(peerB, key, false, t0)
		if keys, _ := tracker.Requestable(peerA, t0); len(keys) == 1 {
			winsA++
		}
	}
	require.Greater(t, winsA, 0)
	require.Less(t, winsA, trials)
}

func TestPriorityDistinctPerPeer(t *testing.T) {
	tracker := NewTracker()
	for i := 0; i < 16; i++ {
		key := testKey(fmt.Sprintf("tx%d", i))
		seen := make(map[uint64]PeerID)
		for peer := PeerID(1); peer <= 16; peer++ {
			pri := tracker.ComputePriority(key, peer, false)
			prev, dup := seen[pri]
			require.False(t, dup, "peers %d and %d collide on %v", prev, peer, key)
			seen[pri] = peer
		}
	}
}

// Announcing the same transaction at different times must not change the
// priority: it is a pure function of (transaction, peer, preferred).
func TestPriorityIgnoresTime(t *testing.T) {
	tracker := NewTracker()
	key := testKey("tx")
	p1 := tracker.ComputePriority(key, 1, false)

	tracker.Announce(1, key, false, t0)
	tracker.Announce(1, key, false, t0.Add(time.Hour))

	require.Equal(t, p1, tracker.ComputePriority(key, 1, false))
}
