// Package idgen generates roughly time-ordered uint64 identifiers for
// notifications and delivery records: 41 bits of millisecond timestamp,
// 10 bits derived from the owning user, 12 bits of sequence.
package idgen

import (
	"hash/fnv"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	timestampBits = 41
	shardBits     = 10
	sequenceBits  = 12

	shardShift     = sequenceBits
	timestampShift = shardBits + sequenceBits

	sequenceMask  = (1 << sequenceBits) - 1
	shardMask     = (1 << shardBits) - 1
	timestampMask = (1 << timestampBits) - 1

	// 2024-01-01 00:00:00 UTC in milliseconds.
	epochMillis = int64(1704067200000)
)

type Generator struct {
	sequence int64
}

func NewGenerator() *Generator {
	return &Generator{}
}

// NextID builds an id for the given user at the given instant. A zero time
// means "now".
func (g *Generator) NextID(userID int64, at time.Time) uint64 {
	var timestamp int64
	if at.IsZero() {
		timestamp = time.Now().UnixMilli() - epochMillis
	} else {
		timestamp = at.UnixMilli() - epochMillis
	}

	shard := userShard(userID)
	seq := (atomic.AddInt64(&g.sequence, 1) - 1) & sequenceMask

	return uint64((timestamp&timestampMask)<<timestampShift |
		(shard&shardMask)<<shardShift |
		seq)
}

// ExtractTimestamp recovers the creation instant embedded in an id.
func ExtractTimestamp(id uint64) time.Time {
	timestamp := (int64(id) >> timestampShift) & timestampMask
	return time.UnixMilli(timestamp + epochMillis)
}

func userShard(userID int64) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(userID, 10)))
	return int64(h.Sum32()) & shardMask
}
