// Package testnode runs an in-process JSON-RPC node that serves the eth
// methods the erc20 client uses, backed by an in-memory token.
package testnode

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"io/ioutil"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/hashcloak/erc20-cli/pkg/poa"
	"github.com/hashcloak/erc20-cli/pkg/token"
)

// Token is the state of the contract served by the node.
type Token struct {
	Address  common.Address
	Name     string
	Symbol   string
	Decimals uint8
	Supply   *big.Int
	Balances map[common.Address]*big.Int

	// Minter, when set, is the only account whose mint succeeds.
	Minter *common.Address

	// MintAmount is credited by every successful mint.
	MintAmount *big.Int
}

func (t *Token) balance(a common.Address) *big.Int {
	if b, ok := t.Balances[a]; ok {
		return b
	}
	return new(big.Int)
}

// Node is a fake chain node.
type Node struct {
	URL string

	// ChainID, GasPrice and Nonces are reported as is.
	ChainID  *big.Int
	GasPrice *big.Int
	Nonces   map[common.Address]uint64

	// Token is the contract at Token.Address.
	Token *Token

	// PendingPolls is the number of receipt polls answered with null
	// before the receipt shows up.
	PendingPolls int

	// Sealer, when set, seals headers proof-of-authority style.
	Sealer *ecdsa.PrivateKey

	mu       sync.Mutex
	t        *testing.T
	abi      abi.ABI
	calls    []string
	ids      []uint64
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	polls    map[common.Hash]int
	block    int64
}

// New starts a node serving a token with 18 decimals. The node is
// stopped when the test ends.
func New(t *testing.T) *Node {
	parsed, err := abi.JSON(strings.NewReader(token.ABI))
	require.NoError(t, err)

	n := &Node{
		ChainID:  big.NewInt(1337),
		GasPrice: big.NewInt(1000000000),
		Nonces:   make(map[common.Address]uint64),
		Token: &Token{
			Address:    common.HexToAddress("0x00000000000000000000000000000000000000aa"),
			Name:       "Test Token",
			Symbol:     "TST",
			Decimals:   18,
			Supply:     new(big.Int),
			Balances:   make(map[common.Address]*big.Int),
			MintAmount: new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
		},
		t:        t,
		abi:      parsed,
		receipts: make(map[common.Hash]*types.Receipt),
		polls:    make(map[common.Hash]int),
		block:    100,
	}

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", &ethAPI{n}))
	t.Cleanup(srv.Stop)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := ioutil.ReadAll(r.Body)
		if err == nil {
			if id := gjson.GetBytes(body, "id"); id.Type == gjson.Number {
				n.mu.Lock()
				n.ids = append(n.ids, id.Uint())
				n.mu.Unlock()
			}
		}
		r.Body = ioutil.NopCloser(bytes.NewReader(body))
		srv.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	n.URL = ts.URL
	return n
}

// Credit sets the token balance of a and raises the supply accordingly.
func (n *Node) Credit(a common.Address, amount *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Token.Balances[a] = new(big.Int).Set(amount)
	n.Token.Supply.Add(n.Token.Supply, amount)
}

// Balance returns the token balance of a.
func (n *Node) Balance(a common.Address) *big.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return new(big.Int).Set(n.Token.balance(a))
}

// Calls returns the eth methods served so far, in order. Contract reads
// are reported as "eth_call:<method>".
func (n *Node) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

// RequestIDs returns the JSON-RPC ids of the requests received so far.
func (n *Node) RequestIDs() []uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uint64(nil), n.ids...)
}

// Sent returns the transactions submitted so far.
func (n *Node) Sent() []*types.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*types.Transaction(nil), n.sent...)
}

func (n *Node) record(method string) {
	n.calls = append(n.calls, method)
}

// apply executes tx against the token and returns the receipt status.
func (n *Node) apply(from common.Address, tx *types.Transaction) uint64 {
	if tx.To() == nil || *tx.To() != n.Token.Address {
		return types.ReceiptStatusFailed
	}
	m, err := n.abi.MethodById(tx.Data())
	if err != nil {
		return types.ReceiptStatusFailed
	}
	args, err := m.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		return types.ReceiptStatusFailed
	}
	tok := n.Token
	switch m.Name {
	case "transfer":
		to, amount := args[0].(common.Address), args[1].(*big.Int)
		if tok.balance(from).Cmp(amount) < 0 {
			return types.ReceiptStatusFailed
		}
		tok.Balances[from] = new(big.Int).Sub(tok.balance(from), amount)
		tok.Balances[to] = new(big.Int).Add(tok.balance(to), amount)
	case "mint":
		if tok.Minter != nil && *tok.Minter != from {
			return types.ReceiptStatusFailed
		}
		to := args[0].(common.Address)
		tok.Balances[to] = new(big.Int).Add(tok.balance(to), tok.MintAmount)
		tok.Supply = new(big.Int).Add(tok.Supply, tok.MintAmount)
	default:
		return types.ReceiptStatusFailed
	}
	return types.ReceiptStatusSuccessful
}

func (n *Node) header(number int64) *types.Header {
	h := &types.Header{
		Difficulty: big.NewInt(2),
		Number:     big.NewInt(number),
		GasLimit:   30000000,
		Time:       uint64(1600000000 + number),
		Extra:      []byte("testnode"),
	}
	if n.Sealer != nil {
		h.Extra = make([]byte, poa.ExtraVanity+poa.ExtraSeal)
		sig, err := crypto.Sign(poa.SealHash(h).Bytes(), n.Sealer)
		require.NoError(n.t, err)
		copy(h.Extra[poa.ExtraVanity:], sig)
	}
	return h
}

// CallArgs is the eth_call argument object.
type CallArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Data  *hexutil.Bytes  `json:"data"`
	Input *hexutil.Bytes  `json:"input"`
}

func (a CallArgs) data() []byte {
	if a.Input != nil {
		return *a.Input
	}
	if a.Data != nil {
		return *a.Data
	}
	return nil
}

type ethAPI struct {
	n *Node
}

func (api *ethAPI) ChainId() *hexutil.Big {
	api.n.mu.Lock()
	defer api.n.mu.Unlock()
	api.n.record("eth_chainId")
	return (*hexutil.Big)(api.n.ChainID)
}

func (api *ethAPI) GasPrice() *hexutil.Big {
	api.n.mu.Lock()
	defer api.n.mu.Unlock()
	api.n.record("eth_gasPrice")
	return (*hexutil.Big)(api.n.GasPrice)
}

func (api *ethAPI) GetTransactionCount(addr common.Address, block string) hexutil.Uint64 {
	api.n.mu.Lock()
	defer api.n.mu.Unlock()
	api.n.record("eth_getTransactionCount")
	return hexutil.Uint64(api.n.Nonces[addr])
}

func (api *ethAPI) GetBalance(addr common.Address, block string) *hexutil.Big {
	api.n.mu.Lock()
	defer api.n.mu.Unlock()
	api.n.record("eth_getBalance")
	return (*hexutil.Big)(big.NewInt(1))
}

func (api *ethAPI) Call(args CallArgs, block string) (hexutil.Bytes, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()

	if args.To == nil || *args.To != n.Token.Address {
		n.record("eth_call")
		return hexutil.Bytes{}, nil
	}
	data := args.data()
	m, err := n.abi.MethodById(data)
	if err != nil {
		n.record("eth_call")
		return nil, errors.New("execution reverted")
	}
	n.record("eth_call:" + m.Name)

	tok := n.Token
	var out []interface{}
	switch m.Name {
	case "name":
		out = []interface{}{tok.Name}
	case "symbol":
		out = []interface{}{tok.Symbol}
	case "decimals":
		out = []interface{}{tok.Decimals}
	case "totalSupply":
		out = []interface{}{tok.Supply}
	case "balanceOf":
		in, err := m.Inputs.Unpack(data[4:])
		if err != nil {
			return nil, err
		}
		out = []interface{}{tok.balance(in[0].(common.Address))}
	default:
		return nil, errors.New("execution reverted")
	}
	return m.Outputs.Pack(out...)
}

func (api *ethAPI) SendRawTransaction(raw hexutil.Bytes) (common.Hash, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	n.record("eth_sendRawTransaction")

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, err
	}
	from, err := types.Sender(types.LatestSignerForChainID(n.ChainID), tx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "invalid sender")
	}
	if tx.Nonce() != n.Nonces[from] {
		return common.Hash{}, errors.Errorf("nonce too low: next nonce %d, tx nonce %d", n.Nonces[from], tx.Nonce())
	}
	n.Nonces[from]++
	n.sent = append(n.sent, tx)

	n.block++
	n.receipts[tx.Hash()] = &types.Receipt{
		Status:            n.apply(from, tx),
		CumulativeGasUsed: 50000,
		GasUsed:           50000,
		Logs:              []*types.Log{},
		TxHash:            tx.Hash(),
		BlockNumber:       big.NewInt(n.block),
	}
	return tx.Hash(), nil
}

func (api *ethAPI) GetTransactionReceipt(hash common.Hash) (*types.Receipt, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	n.record("eth_getTransactionReceipt")

	r, ok := n.receipts[hash]
	if !ok || n.polls[hash] < n.PendingPolls {
		n.polls[hash]++
		return nil, nil
	}
	return r, nil
}

func (api *ethAPI) GetBlockByNumber(number string, full bool) (json.RawMessage, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	n.record("eth_getBlockByNumber")

	num := n.block
	if number != "latest" {
		v, err := hexutil.DecodeBig(number)
		if err != nil {
			return nil, err
		}
		num = v.Int64()
	}
	return json.Marshal(n.header(num))
}
