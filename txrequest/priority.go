package txrequest

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/minio/highwayhash"

	"github.com/tangramnet/txfetch/types"
)

// SecretSize is the size of the keyed-hash secret behind priority
// computation.
const SecretSize = 32

// priorityComputer computes the selection priority of a
// (transaction, peer, preferred) triple.
//
// The returned value must be unpredictable to a party that only observes
// which peers win request races, otherwise an attacker could position
// itself to always be selected first and censor the transaction. A keyed
// hash over the triple gives every tracker instance its own total order.
// The preferred flag is placed on the top bit so that preferred
// announcements always outrank non-preferred ones for the same
// transaction, while ordering within each class stays keyed.
type priorityComputer struct {
	secret [SecretSize]byte
}

func newPriorityComputer() priorityComputer {
	var secret [SecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		panic(err)
	}
	return priorityComputer{secret: secret}
}

func (c priorityComputer) compute(key types.TxKey, peer PeerID, preferred bool) uint64 {
	buf := make([]byte, types.TxKeySize+3)
	copy(buf, key[:])
	binary.LittleEndian.PutUint16(buf[types.TxKeySize:], uint16(peer))
	if preferred {
		buf[types.TxKeySize+2] = 1
	}
	priority := highwayhash.Sum64(buf, c.secret[:]) >> 1
	if preferred {
		priority |= uint64(1) << 63
	}
	return priority
}
