package utils

import (
	"github.com/bwmarrin/snowflake"
)

// IDGenerator hands out snowflake ids shared by every store backend.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator creates a generator for the given node number (0-1023).
func NewIDGenerator(node int64) (*IDGenerator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}
	return &IDGenerator{node: n}, nil
}

func (g *IDGenerator) Next() int64 {
	return g.node.Generate().Int64()
}
