// Package commands implements the info, mint and transfer commands on top
// of the RPC client and the token binding.
package commands

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"gopkg.in/op/go-logging.v1"

	client "github.com/hashcloak/erc20-cli"
	"github.com/hashcloak/erc20-cli/config"
	"github.com/hashcloak/erc20-cli/pkg/gentxn"
	"github.com/hashcloak/erc20-cli/pkg/log"
	"github.com/hashcloak/erc20-cli/pkg/token"
)

// Backend is the node access the commands need. *client.Client
// implements it.
type Backend interface {
	token.Caller
	config.ChainIDReader

	Nonce(ctx context.Context, addr common.Address) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (*client.Receipt, error)
}

// Dispatcher runs commands against one token contract and prints their
// results to out.
type Dispatcher struct {
	backend Backend
	token   *token.Token
	network *config.Network
	out     io.Writer
	log     *logging.Logger
}

// New returns a Dispatcher for the token at contract on network.
func New(backend Backend, contract common.Address, network *config.Network, out io.Writer, logBackend *log.Backend) (*Dispatcher, error) {
	t, err := token.New(contract, backend, logBackend)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		backend: backend,
		token:   t,
		network: network,
		out:     out,
		log:     logBackend.GetLogger("commands"),
	}, nil
}

// Info prints the token name and symbol and the scaled total supply, and
// the scaled balance of addr when addr is not nil.
func (d *Dispatcher) Info(ctx context.Context, addr *common.Address) error {
	name, err := d.token.Name(ctx)
	if err != nil {
		return err
	}
	symbol, err := d.token.Symbol(ctx)
	if err != nil {
		return err
	}
	decimals, err := d.token.Decimals(ctx)
	if err != nil {
		return err
	}
	supply, err := d.token.TotalSupply(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(d.out, "%s (%s)\n", name, symbol)
	fmt.Fprintf(d.out, "  total_supply: %s\n", token.Amount{Raw: supply, Decimals: decimals})
	if addr == nil {
		return nil
	}

	bal, err := d.Balance(ctx, *addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "  balance: %s (%s)\n", bal, addr.Hex())
	return nil
}

// Balance returns the scaled token balance of addr.
func (d *Dispatcher) Balance(ctx context.Context, addr common.Address) (token.Amount, error) {
	return d.token.Balance(ctx, addr)
}

// Transfer sends amount raw token units from key's account to to.
func (d *Dispatcher) Transfer(ctx context.Context, key *ecdsa.PrivateKey, to common.Address, amount *big.Int) (*client.Receipt, error) {
	return d.execute(ctx, key, gentxn.Transfer{To: to, Amount: amount})
}

// Mint calls mint(to) signed by key. Whether key may mint is up to the
// contract.
func (d *Dispatcher) Mint(ctx context.Context, key *ecdsa.PrivateKey, to common.Address) (*client.Receipt, error) {
	return d.execute(ctx, key, gentxn.Mint{To: to})
}

// execute builds, signs and submits call, then waits for its receipt,
// printing both balances before and after.
func (d *Dispatcher) execute(ctx context.Context, key *ecdsa.PrivateKey, call gentxn.Call) (*client.Receipt, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)
	to := call.Recipient()

	if err := d.printBalances(ctx, from, to); err != nil {
		return nil, err
	}

	nonce, err := d.backend.Nonce(ctx, from)
	if err != nil {
		return nil, err
	}
	gasPrice, err := d.backend.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	chainID, err := config.VerifyChainID(ctx, d.network, d.backend)
	if err != nil {
		return nil, err
	}

	req, err := gentxn.NewRequest(call, d.token, from, nonce, gasPrice)
	if err != nil {
		return nil, err
	}
	tx, raw, err := gentxn.Sign(req, key, chainID)
	if err != nil {
		return nil, err
	}
	d.log.Infof("Sending %v from %s with nonce %d", call, from.Hex(), nonce)

	hash, err := d.backend.SendRawTransaction(ctx, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to submit %v", call)
	}
	if hash != tx.Hash() {
		d.log.Warningf("Node returned hash %s for transaction %s", hash.Hex(), tx.Hash().Hex())
	}
	fmt.Fprintf(d.out, " txn: %s\n\n", hash.Hex())

	receipt, err := d.backend.WaitForReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	if err := d.printBalances(ctx, from, to); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (d *Dispatcher) printBalances(ctx context.Context, from, to common.Address) error {
	fromBal, err := d.Balance(ctx, from)
	if err != nil {
		return err
	}
	toBal, err := d.Balance(ctx, to)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "from: %s (%s)\n", from.Hex(), fromBal)
	fmt.Fprintf(d.out, "  to: %s (%s)\n\n", to.Hex(), toBal)
	return nil
}
