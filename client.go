// Package client provides a thin wrapper of the go-ethereum JSON-RPC client
// for a single token contract's node.
package client

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"gopkg.in/op/go-logging.v1"

	"github.com/hashcloak/erc20-cli/config"
	"github.com/hashcloak/erc20-cli/pkg/log"
	"github.com/hashcloak/erc20-cli/pkg/poa"
)

// ErrReceiptTimeout is returned when no receipt shows up before the
// configured receipt timeout.
var ErrReceiptTimeout = errors.New("timed out waiting for transaction receipt")

// Client is a JSON-RPC connection to one node.
type Client struct {
	*ethclient.Client

	rpc            *rpc.Client
	url            string
	decoder        poa.Decoder
	pollInterval   time.Duration
	receiptTimeout time.Duration
	log            *logging.Logger
}

// Receipt is a transaction receipt together with the header of the block
// that included the transaction.
type Receipt struct {
	*types.Receipt

	Header *poa.Header
}

// Option configures a Client.
type Option func(*Client)

// WithDecoder replaces the header decoder picked from the network config.
func WithDecoder(d poa.Decoder) Option {
	return func(c *Client) {
		c.decoder = d
	}
}

// Dial connects to the network's endpoint. Every request goes through a
// transport that stamps it with the next request id. Proof-of-authority
// networks get the proof-of-authority header decoder.
// It returns a Client and any error encountered.
func Dial(ctx context.Context, network *config.Network, txCfg *config.Transaction, logBackend *log.Backend, opts ...Option) (*Client, error) {
	c := &Client{
		url:            network.URL,
		decoder:        poa.Standard{},
		pollInterval:   txCfg.PollInterval.Duration,
		receiptTimeout: txCfg.ReceiptTimeout.Duration,
		log:            logBackend.GetLogger("client"),
	}
	if network.PoA {
		c.decoder = poa.ProofOfAuthority{}
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := &http.Client{Transport: newIDTransport(http.DefaultTransport, c.log)}
	rc, err := rpc.DialOptions(ctx, network.URL, rpc.WithHTTPClient(hc))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", network.URL)
	}
	c.rpc = rc
	c.Client = ethclient.NewClient(rc)
	c.log.Infof("Using %s with %s header decoding", network.URL, c.decoder.Name())
	return c, nil
}

// NativeBalance returns the native currency balance of addr at the latest
// block.
func (c *Client) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	bal, err := c.BalanceAt(ctx, addr, nil)
	return bal, errors.Wrap(err, "eth_getBalance failed")
}

// Nonce returns the pending transaction count of addr.
func (c *Client) Nonce(ctx context.Context, addr common.Address) (uint64, error) {
	nonce, err := c.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, errors.Wrap(err, "eth_getTransactionCount failed")
	}
	c.log.Debugf("Nonce of %s is %d", addr.Hex(), nonce)
	return nonce, nil
}

// GasPrice returns the node's gas price as is.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.SuggestGasPrice(ctx)
	return price, errors.Wrap(err, "eth_gasPrice failed")
}

// SendRawTransaction submits a signed, binary encoded transaction.
// It returns the transaction hash reported by the node.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Bytes(raw)); err != nil {
		return common.Hash{}, errors.Wrap(err, "eth_sendRawTransaction failed")
	}
	c.log.Noticef("Submitted transaction %s", hash.Hex())
	return hash, nil
}

// Header reads a block header through the client's header decoder. A nil
// number reads the latest block.
func (c *Client) Header(ctx context.Context, number *big.Int) (*poa.Header, error) {
	arg := "latest"
	if number != nil {
		arg = hexutil.EncodeBig(number)
	}
	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, "eth_getBlockByNumber", arg, false); err != nil {
		return nil, errors.Wrap(err, "eth_getBlockByNumber failed")
	}
	h, err := c.decoder.Decode(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode block %s", arg)
	}
	return h, nil
}

// WaitForReceipt polls for the receipt of hash until it is mined or the
// receipt timeout elapses, then reads the header of the including block.
// It returns the Receipt and any error encountered.
func (c *Client) WaitForReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		r, err := c.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			return c.completeReceipt(ctx, r)
		case errors.Is(err, ethereum.NotFound):
			c.log.Debugf("Receipt for %s not found yet", hash.Hex())
		case ctx.Err() == nil:
			return nil, errors.Wrap(err, "eth_getTransactionReceipt failed")
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, errors.Wrapf(ErrReceiptTimeout, "%s after %v", hash.Hex(), c.receiptTimeout)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) completeReceipt(ctx context.Context, r *types.Receipt) (*Receipt, error) {
	h, err := c.Header(ctx, r.BlockNumber)
	if err != nil {
		return nil, err
	}
	if r.Status == types.ReceiptStatusSuccessful {
		c.log.Noticef("Transaction %s mined in block %v", r.TxHash.Hex(), r.BlockNumber)
	} else {
		c.log.Warningf("Transaction %s failed in block %v", r.TxHash.Hex(), r.BlockNumber)
	}
	if h.Signer != nil {
		c.log.Infof("Block %v sealed by %s", h.Number, h.Signer.Hex())
	}
	return &Receipt{Receipt: r, Header: h}, nil
}
