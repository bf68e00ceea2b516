package helper

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

const (
	nodeBits     = 10
	sequenceBits = 12

	nodeMask     = (1 << nodeBits) - 1
	sequenceMask = (1 << sequenceBits) - 1

	timestampShift = nodeBits + sequenceBits
)

// PrincipalIDGenerator mints 64-bit principal ids: a millisecond
// timestamp in the high bits, random node bits, and a per-millisecond
// sequence. Ids are positive, unique within a process, and roughly
// time-ordered.
type PrincipalIDGenerator struct {
	mu       sync.Mutex
	node     int64
	lastMs   int64
	sequence int64
	nowMs    func() int64
}

func NewPrincipalIDGenerator() *PrincipalIDGenerator {
	var buf [8]byte
	rand.Read(buf[:])
	return &PrincipalIDGenerator{
		node:  int64(binary.BigEndian.Uint64(buf[:])) & nodeMask,
		nowMs: func() int64 { return time.Now().UnixMilli() },
	}
}

// Next returns the next principal id. It blocks briefly when the
// per-millisecond sequence is exhausted.
func (g *PrincipalIDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.nowMs()
	if ms < g.lastMs {
		// Clock went backwards; keep issuing against the last
		// observed millisecond so ids stay unique.
		ms = g.lastMs
	}
	if ms == g.lastMs {
		g.sequence = (g.sequence + 1) & sequenceMask
		if g.sequence == 0 {
			// Sequence exhausted for this millisecond; wait out the
			// clock.
			for ms <= g.lastMs {
				time.Sleep(100 * time.Microsecond)
				ms = g.nowMs()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastMs = ms

	return ms<<timestampShift | g.node<<sequenceBits | g.sequence
}
