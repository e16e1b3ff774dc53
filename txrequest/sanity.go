package txrequest

import "fmt"

// SanityCheck recomputes every counter and index from the raw
// announcement table and panics on the first inconsistency it finds:
// more than one in-flight request per transaction, a transaction
// surviving with only completed announcements, a best designation that
// is not priority-consistent, or counter/index drift.
//
// Inconsistencies are programming errors, not runtime conditions, hence
// the panic. Intended for test harnesses; it walks the whole table and
// has no place on a hot path.
func (t *Tracker) SanityCheck() {
	recomputed := make(map[PeerID]*peerCounts)
	total := 0

	for key, peers := range t.announcements {
		if len(peers) == 0 {
			panic(fmt.Sprintf("empty announcement entry for %v", key))
		}

		var (
			requestedPeers int
			allCompleted   = true
			bestPeers      int
			bestPriority   uint64
			maxReady       uint64
			haveReady      bool
		)
		for peer, ann := range peers {
			if _, ok := t.byPeer[peer][key]; !ok {
				panic(fmt.Sprintf("announcement (%v, %d) missing from peer index", key, peer))
			}

			counts, ok := recomputed[peer]
			if !ok {
				counts = &peerCounts{}
				recomputed[peer] = counts
			}
			counts.tracked++
			total++

			switch {
			case ann.state.isCandidate():
				counts.candidates++
				allCompleted = false
			case ann.state == stateRequested:
				counts.inFlight++
				allCompleted = false
				requestedPeers++
				if holder, ok := t.requested[key]; !ok || holder != peer {
					panic(fmt.Sprintf("in-flight request (%v, %d) missing from request index", key, peer))
				}
			}

			switch ann.state {
			case stateCandidateBest:
				bestPeers++
				bestPriority = ann.priority
			case stateCandidateReady:
				if !haveReady || ann.priority > maxReady {
					maxReady = ann.priority
					haveReady = true
				}
			}
		}

		if requestedPeers > 1 {
			panic(fmt.Sprintf("%d simultaneous in-flight requests for %v", requestedPeers, key))
		}
		if allCompleted {
			panic(fmt.Sprintf("transaction %v survived with only completed announcements", key))
		}
		if bestPeers > 1 {
			panic(fmt.Sprintf("%d best designations for %v", bestPeers, key))
		}
		if bestPeers == 1 {
			if requestedPeers > 0 {
				panic(fmt.Sprintf("best designation coexists with an in-flight request for %v", key))
			}
			if haveReady && maxReady >= bestPriority {
				panic(fmt.Sprintf("best designation for %v is not the highest-priority ready candidate", key))
			}
		}
	}

	if total != t.size {
		panic(fmt.Sprintf("size counter %d, table holds %d", t.size, total))
	}
	if len(recomputed) != len(t.counts) {
		panic(fmt.Sprintf("counters kept for %d peers, table names %d", len(t.counts), len(recomputed)))
	}
	for peer, want := range recomputed {
		got, ok := t.counts[peer]
		if !ok || *got != *want {
			panic(fmt.Sprintf("counters for peer %d drifted: kept %+v, recomputed %+v", peer, got, want))
		}
	}
	for key, peer := range t.requested {
		ann, ok := t.announcements[key][peer]
		if !ok || ann.state != stateRequested {
			panic(fmt.Sprintf("request index names (%v, %d) but no in-flight announcement exists", key, peer))
		}
	}
	for peer, keys := range t.byPeer {
		if len(keys) == 0 {
			panic(fmt.Sprintf("empty peer index entry for %d", peer))
		}
		for key := range keys {
			if _, ok := t.announcements[key][peer]; !ok {
				panic(fmt.Sprintf("peer index names (%v, %d) but no announcement exists", key, peer))
			}
		}
	}
}
