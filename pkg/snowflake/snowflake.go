package snowflake

import (
	"errors"
	"strconv"
	"sync"
	"time"
)

const (
	// Epoch 2024-01-01 00:00:00 UTC in milliseconds
	Epoch int64 = 1704067200000

	NodeBits uint8 = 10
	StepBits uint8 = 12

	nodeMask  = -1 ^ (-1 << NodeBits)
	stepMask  = -1 ^ (-1 << StepBits)
	timeShift = NodeBits + StepBits
	nodeShift = StepBits
)

// ErrInvalidNode node id outside [0, 1023]
var ErrInvalidNode = errors.New("snowflake: invalid node id")

// IDGenerator ID generator using the snowflake layout: 41 bits time, 10 bits node, 12 bits step
type IDGenerator struct {
	mu        sync.Mutex
	timestamp int64
	nodeID    int64
	step      int64
	now       func() int64
}

// NewIDGenerator creates a new ID generator
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	if nodeID < 0 || nodeID > nodeMask {
		return nil, ErrInvalidNode
	}
	return &IDGenerator{
		nodeID: nodeID,
		now:    func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// NextID generates a new ID
func (g *IDGenerator) NextID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now < g.timestamp {
		// clock moved backwards, keep issuing from the last seen millisecond
		now = g.timestamp
	}

	if now == g.timestamp {
		g.step = (g.step + 1) & stepMask
		if g.step == 0 {
			for now <= g.timestamp {
				now = g.now()
			}
		}
	} else {
		g.step = 0
	}
	g.timestamp = now

	return ((now - Epoch) << timeShift) | (g.nodeID << nodeShift) | g.step
}

// NextCode returns prefix followed by a fresh id in decimal
func (g *IDGenerator) NextCode(prefix string) string {
	return prefix + strconv.FormatInt(g.NextID(), 10)
}

// ParseID splits an id into unix millis, node id and step
func ParseID(id int64) (timestamp int64, nodeID int64, step int64) {
	step = id & stepMask
	nodeID = (id >> nodeShift) & nodeMask
	timestamp = (id >> timeShift) + Epoch
	return
}
