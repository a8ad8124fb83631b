package snowflake

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

const (
	// epoch is 2025-01-01 00:00:00 UTC in milliseconds.
	epoch int64 = 1735689600000

	nodeBits     = 10
	sequenceBits = 12

	maxNodeID   = -1 ^ (-1 << nodeBits)
	maxSequence = -1 ^ (-1 << sequenceBits)

	nodeShift      = sequenceBits
	timestampShift = nodeBits + sequenceBits
)

// ID is a time-ordered 63-bit identifier.
type ID int64

// String returns the decimal form of the ID. Decimal strings of equal length sort
// in generation order.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Int64 returns the ID as int64.
func (id ID) Int64() int64 {
	return int64(id)
}

// Time returns the millisecond timestamp embedded in the ID.
func (id ID) Time() int64 {
	return (int64(id) >> timestampShift) + epoch
}

// Node generates IDs for one process. Safe for concurrent use.
type Node struct {
	mu       sync.Mutex
	nodeID   int64
	sequence int64
	lastTime int64
	now      func() int64
}

// NewNode creates a generator for nodeID in [0, 1023].
func NewNode(nodeID int64) (*Node, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		return nil, fmt.Errorf("snowflake: node id %d out of range [0, %d]", nodeID, maxNodeID)
	}
	return &Node{
		nodeID: nodeID,
		now:    func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// Generate returns the next ID. IDs from one Node are strictly increasing.
func (n *Node) Generate() ID {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if now < n.lastTime {
		// clock went backwards; keep monotonic
		now = n.lastTime
	}

	if now == n.lastTime {
		n.sequence = (n.sequence + 1) & maxSequence
		if n.sequence == 0 {
			// sequence exhausted, wait for the next millisecond
			for now <= n.lastTime {
				now = n.now()
			}
		}
	} else {
		n.sequence = 0
	}

	n.lastTime = now

	id := ((now - epoch) << timestampShift) |
		(n.nodeID << nodeShift) |
		n.sequence

	return ID(id)
}
