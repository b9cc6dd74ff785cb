package config

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
)

// ErrWrongChainID is returned when the node serves a different chain than
// the one pinned in the configuration.
var ErrWrongChainID = errors.New("wrong chain ID")

// ChainIDReader reads the chain id from a node.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// VerifyChainID asks the node for its chain id and checks it against the
// id pinned for the network.
// It returns the node's chain id and any error encountered.
func VerifyChainID(ctx context.Context, n *Network, c ChainIDReader) (*big.Int, error) {
	id, err := c.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read chain id")
	}
	if n.ChainID != 0 && (!id.IsUint64() || id.Uint64() != n.ChainID) {
		return nil, errors.Wrapf(ErrWrongChainID, "node at %s reports %v, expected %d", n.URL, id, n.ChainID)
	}
	return id, nil
}
