package fetch

import (
	"fmt"
	"math"

	cmtsync "github.com/tangramnet/txfetch/libs/sync"
	"github.com/tangramnet/txfetch/txrequest"
)

// MaxActiveIDs is the cap on simultaneously registered peers. ID 0 is
// reserved as the "unknown peer" sentinel.
const MaxActiveIDs = math.MaxUint16

// peerIDs hands out compact uint16 handles for the string peer addresses
// the network layer uses, so the tracker can index by small integers.
type peerIDs struct {
	mtx       cmtsync.RWMutex
	peerMap   map[string]txrequest.PeerID
	nextID    txrequest.PeerID
	activeIDs map[txrequest.PeerID]struct{}
}

func newPeerIDs() *peerIDs {
	return &peerIDs{
		peerMap:   make(map[string]txrequest.PeerID),
		activeIDs: make(map[txrequest.PeerID]struct{}),
		nextID:    1, // reserve 0 for the unknown peer
	}
}

// Reserve searches for the next unused ID and assigns it to the peer.
// Reserving an already registered peer returns its existing ID.
func (ids *peerIDs) Reserve(peer string) txrequest.PeerID {
	ids.mtx.Lock()
	defer ids.mtx.Unlock()

	if id, ok := ids.peerMap[peer]; ok {
		return id
	}
	curID := ids.nextPeerID()
	ids.peerMap[peer] = curID
	ids.activeIDs[curID] = struct{}{}
	return curID
}

// nextPeerID returns the next unused peer ID to use.
// This assumes that ids's mutex is already locked.
func (ids *peerIDs) nextPeerID() txrequest.PeerID {
	if len(ids.activeIDs) == MaxActiveIDs {
		panic(fmt.Sprintf("node has maximum %d active IDs and wanted to get one more", MaxActiveIDs))
	}

	_, idExists := ids.activeIDs[ids.nextID]
	for idExists || ids.nextID == 0 {
		ids.nextID++
		_, idExists = ids.activeIDs[ids.nextID]
	}
	curID := ids.nextID
	ids.nextID++
	return curID
}

// Reclaim returns the ID reserved for the peer back to the unused pool.
func (ids *peerIDs) Reclaim(peer string) (txrequest.PeerID, bool) {
	ids.mtx.Lock()
	defer ids.mtx.Unlock()

	removedID, ok := ids.peerMap[peer]
	if ok {
		delete(ids.activeIDs, removedID)
		delete(ids.peerMap, peer)
	}
	return removedID, ok
}

// Get returns the ID reserved for the peer, or 0 if the peer is unknown.
func (ids *peerIDs) Get(peer string) txrequest.PeerID {
	ids.mtx.RLock()
	defer ids.mtx.RUnlock()

	return ids.peerMap[peer]
}
