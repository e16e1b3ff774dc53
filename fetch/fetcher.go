package fetch

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tangramnet/txfetch/config"
	"github.com/tangramnet/txfetch/libs/log"
	cmtsync "github.com/tangramnet/txfetch/libs/sync"
	"github.com/tangramnet/txfetch/txrequest"
	"github.com/tangramnet/txfetch/types"
)

// Fetcher is the download manager the network layer talks to. It wraps
// the request tracker with the policy the tracker deliberately does not
// own: announce delays, per-peer caps, request expiry times and a cache
// of recently received transactions. It also provides the external
// serialization the tracker requires, so it is safe for concurrent use.
//
// Time is passed in on every call. The caller decides how often to Poll;
// nothing here runs in the background.
type Fetcher struct {
	mtx    cmtsync.Mutex
	logger log.Logger
	cfg    *config.FetchConfig

	tracker *txrequest.Tracker
	ids     *peerIDs

	// recentTxs holds keys of recently received transactions so late
	// duplicate announcements can be shed without touching the tracker.
	recentTxs *lru.Cache[types.TxKey, struct{}]
}

func NewFetcher(cfg *config.FetchConfig, logger log.Logger, opts ...txrequest.TrackerOption) (*Fetcher, error) {
	if err := cfg.ValidateBasic(); err != nil {
		return nil, err
	}
	recentTxs, err := lru.New[types.TxKey, struct{}](cfg.RecentTxCacheSize)
	if err != nil {
		return nil, err
	}
	return &Fetcher{
		logger:    logger,
		cfg:       cfg,
		tracker:   txrequest.NewTracker(opts...),
		ids:       newPeerIDs(),
		recentTxs: recentTxs,
	}, nil
}

// AddPeer registers a peer address and returns its compact handle.
// Announcements from unregistered peers are dropped.
func (f *Fetcher) AddPeer(peer string) txrequest.PeerID {
	return f.ids.Reserve(peer)
}

// RemovePeer drops the peer's handle and every announcement it made.
func (f *Fetcher) RemovePeer(peer string) {
	id, ok := f.ids.Reclaim(peer)
	if !ok {
		return
	}
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.tracker.DisconnectedPeer(id)
	f.logger.Debug("removed peer", "peer", peer, "id", id)
}

// Announce records that peer claims to know the transaction.
//
// Non-preferred announcements are delayed so preferred peers get the
// first shot at the same transaction, and peers at their in-flight cap
// are delayed further. Announcements past the per-peer cap and
// announcements of recently received transactions are dropped.
func (f *Fetcher) Announce(peer string, key types.TxKey, preferred bool, now time.Time) {
	id := f.ids.Get(peer)
	if id == 0 {
		f.logger.Debug("dropping announcement from unknown peer", "peer", peer)
		return
	}
	if f.recentTxs.Contains(key) {
		return
	}

	f.mtx.Lock()
	defer f.mtx.Unlock()

	if f.tracker.Count(id) >= f.cfg.MaxPeerAnnouncements {
		f.logger.Debug("dropping announcement, peer at cap", "peer", peer, "key", key)
		return
	}

	reqTime := now
	if !preferred {
		reqTime = reqTime.Add(f.cfg.NonPreferredDelay)
	}
	if f.tracker.CountInFlight(id) >= f.cfg.MaxInFlightPerPeer {
		reqTime = reqTime.Add(f.cfg.OverloadedPeerDelay)
	}
	f.tracker.Announce(id, key, preferred, reqTime)
}

// Poll returns the transactions to request from peer right now, oldest
// announcement first, capped by the peer's free in-flight slots. Each
// returned key is already marked as requested with the configured
// timeout; the caller only has to send the wire messages. Expired
// in-flight requests (to any peer) discovered during the poll are
// returned as well.
func (f *Fetcher) Poll(peer string, now time.Time) ([]types.TxKey, []txrequest.ExpiredRequest) {
	id := f.ids.Get(peer)
	if id == 0 {
		return nil, nil
	}

	f.mtx.Lock()
	defer f.mtx.Unlock()

	keys, expired := f.tracker.Requestable(id, now)
	for _, exp := range expired {
		f.logger.Debug("request expired", "key", exp.Key, "id", exp.Peer)
	}

	budget := f.cfg.MaxInFlightPerPeer - f.tracker.CountInFlight(id)
	if budget < 0 {
		budget = 0
	}
	if len(keys) > budget {
		keys = keys[:budget]
	}
	expiry := now.Add(f.cfg.RequestTimeout)
	for _, key := range keys {
		f.tracker.RequestSent(id, key, expiry)
	}
	return keys, expired
}

// ReceivedTx records a transaction arriving from peer, solicited or not.
func (f *Fetcher) ReceivedTx(peer string, key types.TxKey) {
	id := f.ids.Get(peer)
	f.recentTxs.Add(key, struct{}{})
	if id == 0 {
		return
	}
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.tracker.ReceivedResponse(id, key)
}

// Forget drops all interest in the transaction, e.g. once it is included
// in a block.
func (f *Fetcher) Forget(key types.TxKey) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.tracker.Forget(key)
}

// Size returns the number of announcements currently tracked.
func (f *Fetcher) Size() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.tracker.Size()
}

// CountInFlight returns the number of outstanding requests to peer.
func (f *Fetcher) CountInFlight(peer string) int {
	id := f.ids.Get(peer)
	if id == 0 {
		return 0
	}
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.tracker.CountInFlight(id)
}

// Tracker exposes the underlying tracker for test harnesses that want to
// run its sanity check. Production callers must go through the Fetcher.
func (f *Fetcher) Tracker() *txrequest.Tracker {
	return f.tracker
}
