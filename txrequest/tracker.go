package txrequest

import (
	"fmt"
	"sort"
	"time"

	"github.com/tangramnet/txfetch/types"
)

// PeerID uniquely identifies a connected peer for the lifetime of the
// connection. ID 0 is conventionally reserved by callers (see the fetch
// package) but the tracker itself attaches no meaning to it.
type PeerID uint16

// announcementState is the lifecycle position of a single
// (transaction, peer) record.
//
//	absent -> candidateDelayed -> candidateReady -> candidateBest
//	       -> requested -> completed -> absent
//
// with shortcuts from any candidate or requested state to completed
// (response, supersede, expiry) and unconditional removal to absent
// (disconnect, forget).
type announcementState uint8

const (
	stateCandidateDelayed announcementState = iota
	stateCandidateReady
	stateCandidateBest
	stateRequested
	stateCompleted
)

func (s announcementState) isCandidate() bool {
	return s <= stateCandidateBest
}

func (s announcementState) String() string {
	switch s {
	case stateCandidateDelayed:
		return "candidate-delayed"
	case stateCandidateReady:
		return "candidate-ready"
	case stateCandidateBest:
		return "candidate-best"
	case stateRequested:
		return "requested"
	case stateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// announcement is the record for one (transaction, peer) relationship.
type announcement struct {
	state     announcementState
	preferred bool

	// sequence is assigned at creation and never reused. Requestable
	// orders its results by it, so the oldest announcement of a peer is
	// served first.
	sequence uint64

	// time is the earliest request time while the announcement is a
	// candidate and the expiry time once it has been requested.
	time time.Time

	// priority is precomputed at creation; it never changes because the
	// triple it is derived from never changes.
	priority uint64
}

// ExpiredRequest identifies an in-flight request that passed its expiry
// time without a response. Callers typically use it to free an in-flight
// slot and adjust peer scoring.
type ExpiredRequest struct {
	Peer PeerID
	Key  types.TxKey
}

type peerCounts struct {
	tracked    int
	inFlight   int
	candidates int
}

// Tracker decides which peer, among the many that announced a pending
// transaction, the node should request it from and when.
//
// The tracker is a pure state machine: it owns no timers, spawns no
// goroutines and never reads the wall clock. Callers pass "now" into
// Requestable and re-poll as often as they need. It also performs no
// internal locking; all calls must come from a single execution context
// or be serialized externally (the fetch package does the latter).
type Tracker struct {
	computer priorityComputer
	metrics  *Metrics

	nextSequence uint64
	size         int

	// announcements indexes every live record by transaction, then peer.
	announcements map[types.TxKey]map[PeerID]*announcement

	// byPeer is the reverse index, so that DisconnectedPeer runs
	// proportional to the peer's own record count.
	byPeer map[PeerID]map[types.TxKey]struct{}

	// requested holds the single in-flight request per transaction.
	requested map[types.TxKey]PeerID

	counts map[PeerID]*peerCounts
}

// TrackerOption sets an optional parameter on the Tracker.
type TrackerOption func(*Tracker)

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) TrackerOption {
	return func(t *Tracker) { t.metrics = metrics }
}

// WithSecret fixes the priority secret instead of drawing a random one.
// Priorities become reproducible across runs; only useful in tests.
func WithSecret(secret [SecretSize]byte) TrackerOption {
	return func(t *Tracker) { t.computer = priorityComputer{secret: secret} }
}

func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		computer:      newPriorityComputer(),
		metrics:       NopMetrics(),
		announcements: make(map[types.TxKey]map[PeerID]*announcement),
		byPeer:        make(map[PeerID]map[types.TxKey]struct{}),
		requested:     make(map[types.TxKey]PeerID),
		counts:        make(map[PeerID]*peerCounts),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Announce records that peer claims to know the transaction. The first
// announcement for an untracked (transaction, peer) pair creates a
// candidate that becomes eligible for selection once reqTime has passed;
// repeat announcements are no-ops and keep the original sequence number
// and request time.
func (t *Tracker) Announce(peer PeerID, key types.TxKey, preferred bool, reqTime time.Time) {
	peers, ok := t.announcements[key]
	if ok {
		if _, exists := peers[peer]; exists {
			return
		}
	} else {
		peers = make(map[PeerID]*announcement)
		t.announcements[key] = peers
	}

	peers[peer] = &announcement{
		state:     stateCandidateDelayed,
		preferred: preferred,
		sequence:  t.nextSequence,
		time:      reqTime,
		priority:  t.computer.compute(key, peer, preferred),
	}
	t.nextSequence++
	t.size++

	if _, ok := t.byPeer[peer]; !ok {
		t.byPeer[peer] = make(map[types.TxKey]struct{})
	}
	t.byPeer[peer][key] = struct{}{}

	counts := t.countsFor(peer)
	counts.tracked++
	counts.candidates++

	t.metrics.AnnouncedTxs.Add(1)
	t.updateGauges()
}

// RequestSent marks the candidate announcement from peer as the
// transaction's in-flight request, expiring at expiry. If another peer's
// request for the same transaction is still in flight it is superseded
// (completed), so at most one request per transaction is ever
// outstanding. A no-op unless (key, peer) is tracked as a candidate.
func (t *Tracker) RequestSent(peer PeerID, key types.TxKey, expiry time.Time) {
	peers := t.announcements[key]
	ann, ok := peers[peer]
	if !ok || !ann.state.isCandidate() {
		return
	}

	if prev, inFlight := t.requested[key]; inFlight {
		t.complete(key, prev, peers[prev])
	}
	// Any best designation for this transaction is void while a request
	// is in flight.
	for p, other := range peers {
		if p != peer && other.state == stateCandidateBest {
			other.state = stateCandidateReady
		}
	}

	counts := t.countsFor(peer)
	counts.candidates--
	counts.inFlight++
	ann.state = stateRequested
	ann.time = expiry
	t.requested[key] = peer

	t.metrics.RequestedTxs.Add(1)
	t.updateGauges()
}

// ReceivedResponse records that peer answered (or refused) for the
// transaction. The announcement is completed whatever state it was in,
// which covers late, duplicate and unsolicited responses alike. Unknown
// (key, peer) pairs are ignored.
func (t *Tracker) ReceivedResponse(peer PeerID, key types.TxKey) {
	peers := t.announcements[key]
	ann, ok := peers[peer]
	if !ok {
		return
	}
	if ann.state != stateCompleted {
		t.complete(key, peer, ann)
	}
	t.cleanupTx(key)
	t.updateGauges()
}

// DisconnectedPeer removes every announcement belonging to peer.
// Transactions the peer was the only announcer of disappear from the
// table in the same call.
func (t *Tracker) DisconnectedPeer(peer PeerID) {
	for key := range t.byPeer[peer] {
		t.drop(key, peer)
		t.cleanupTx(key)
	}
	t.updateGauges()
}

// Forget removes every announcement of the transaction across all peers,
// typically because it was confirmed or otherwise no longer needed.
func (t *Tracker) Forget(key types.TxKey) {
	for peer := range t.announcements[key] {
		t.drop(key, peer)
	}
	t.updateGauges()
}

// Requestable returns the transactions the caller should now request
// from peer, oldest announcement first, together with the in-flight
// requests (from any peer) that expired at or before now.
//
// Expired requests are reported exactly once and their transactions
// become eligible for re-selection by the remaining candidates. Only the
// set of expired pairs is meaningful; their order is unspecified. Every
// returned key should be followed by a RequestSent call (or a deliberate
// decision not to request), otherwise the same keys come back on the
// next poll.
func (t *Tracker) Requestable(peer PeerID, now time.Time) ([]types.TxKey, []ExpiredRequest) {
	var expired []ExpiredRequest

	// Expire in-flight requests first: a timed-out request frees its
	// transaction for the election below.
	for key, reqPeer := range t.requested {
		ann := t.announcements[key][reqPeer]
		if ann.time.After(now) {
			continue
		}
		expired = append(expired, ExpiredRequest{Peer: reqPeer, Key: key})
		t.complete(key, reqPeer, ann)
		t.cleanupTx(key)
		t.metrics.ExpiredTxs.Add(1)
	}

	type readyTx struct {
		sequence uint64
		key      types.TxKey
	}
	var selected []readyTx
	for key := range t.byPeer[peer] {
		peers := t.announcements[key]
		ann := peers[peer]
		if !ann.state.isCandidate() || ann.time.After(now) {
			continue
		}
		if _, inFlight := t.requested[key]; inFlight {
			continue
		}
		if best, ok := t.electBest(peers, now); ok && best == peer {
			selected = append(selected, readyTx{ann.sequence, key})
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].sequence < selected[j].sequence
	})

	keys := make([]types.TxKey, len(selected))
	for i, s := range selected {
		keys[i] = s.key
	}
	t.updateGauges()
	return keys, expired
}

// electBest promotes the transaction's due delayed candidates to ready
// and moves the best designation to the ready candidate with the highest
// priority. Priorities are distinct per transaction, so the winner is
// unique whenever any ready candidate exists.
func (t *Tracker) electBest(peers map[PeerID]*announcement, now time.Time) (PeerID, bool) {
	var (
		winner    PeerID
		winnerAnn *announcement
	)
	for p, ann := range peers {
		if !ann.state.isCandidate() || ann.time.After(now) {
			continue
		}
		if ann.state == stateCandidateDelayed {
			ann.state = stateCandidateReady
		}
		if winnerAnn == nil || ann.priority > winnerAnn.priority {
			winner, winnerAnn = p, ann
		}
	}
	if winnerAnn == nil {
		return 0, false
	}
	for p, ann := range peers {
		if p != winner && ann.state == stateCandidateBest {
			ann.state = stateCandidateReady
		}
	}
	winnerAnn.state = stateCandidateBest
	return winner, true
}

// ComputePriority exposes the priority of a (transaction, peer,
// preferred) triple under this tracker's secret. Used by model tests to
// mirror selection; callers have no need for it.
func (t *Tracker) ComputePriority(key types.TxKey, peer PeerID, preferred bool) uint64 {
	return t.computer.compute(key, peer, preferred)
}

// Count returns the number of announcements tracked for peer, completed
// ones included.
func (t *Tracker) Count(peer PeerID) int {
	if c, ok := t.counts[peer]; ok {
		return c.tracked
	}
	return 0
}

// CountInFlight returns the number of peer's announcements that are
// in-flight requests. Callers use it to enforce per-peer outstanding
// request caps; the tracker itself enforces none.
func (t *Tracker) CountInFlight(peer PeerID) int {
	if c, ok := t.counts[peer]; ok {
		return c.inFlight
	}
	return 0
}

// CountCandidates returns the number of peer's announcements still in a
// candidate state.
func (t *Tracker) CountCandidates(peer PeerID) int {
	if c, ok := t.counts[peer]; ok {
		return c.candidates
	}
	return 0
}

// Size returns the total number of announcements in the table.
func (t *Tracker) Size() int {
	return t.size
}

func (t *Tracker) countsFor(peer PeerID) *peerCounts {
	c, ok := t.counts[peer]
	if !ok {
		c = &peerCounts{}
		t.counts[peer] = c
	}
	return c
}

// complete moves a live announcement to the completed state, releasing
// the in-flight slot if it held one. The record stays in the table until
// cleanupTx purges the transaction.
func (t *Tracker) complete(key types.TxKey, peer PeerID, ann *announcement) {
	counts := t.countsFor(peer)
	switch {
	case ann.state.isCandidate():
		counts.candidates--
	case ann.state == stateRequested:
		counts.inFlight--
		delete(t.requested, key)
	}
	ann.state = stateCompleted
}

// drop removes a single announcement entirely, whatever its state.
func (t *Tracker) drop(key types.TxKey, peer PeerID) {
	peers := t.announcements[key]
	ann, ok := peers[peer]
	if !ok {
		return
	}

	counts := t.countsFor(peer)
	switch {
	case ann.state.isCandidate():
		counts.candidates--
	case ann.state == stateRequested:
		counts.inFlight--
		delete(t.requested, key)
	}
	counts.tracked--
	if counts.tracked == 0 {
		delete(t.counts, peer)
	}
	t.size--

	delete(peers, peer)
	if len(peers) == 0 {
		delete(t.announcements, key)
	}
	delete(t.byPeer[peer], key)
	if len(t.byPeer[peer]) == 0 {
		delete(t.byPeer, peer)
	}
}

// cleanupTx purges the transaction once every remaining announcement is
// completed, so the table only holds live interest. Runs after every
// operation that can complete or remove an announcement; there is no
// background sweep.
func (t *Tracker) cleanupTx(key types.TxKey) {
	peers, ok := t.announcements[key]
	if !ok {
		return
	}
	for _, ann := range peers {
		if ann.state != stateCompleted {
			return
		}
	}
	for peer := range peers {
		t.drop(key, peer)
	}
}

func (t *Tracker) updateGauges() {
	t.metrics.Size.Set(float64(t.size))
	t.metrics.InFlight.Set(float64(len(t.requested)))
}
