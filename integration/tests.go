// Command integration runs a token transfer against a live development
// node and checks that the transaction was mined and moved the balance.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	client "github.com/hashcloak/erc20-cli"
	"github.com/hashcloak/erc20-cli/config"
	"github.com/hashcloak/erc20-cli/pkg/commands"
	"github.com/hashcloak/erc20-cli/pkg/keys"
	"github.com/hashcloak/erc20-cli/pkg/log"
	"github.com/hashcloak/erc20-cli/pkg/token"
)

type TestSuite struct {
	cfg        *config.Config
	rinkeby    bool
	contract   ethCommon.Address
	recipient  ethCommon.Address
	amount     *big.Int
	resolver   *keys.Resolver
	logBackend *log.Backend
}

func (s *TestSuite) checkTransfer(ctx context.Context) error {
	network := s.cfg.Network(s.rinkeby)
	c, err := client.Dial(ctx, network, s.cfg.Transaction, s.logBackend)
	if err != nil {
		return err
	}
	defer c.Close()

	key, err := s.resolver.Resolve()
	if err != nil {
		return err
	}
	d, err := commands.New(c, s.contract, network, os.Stdout, s.logBackend)
	if err != nil {
		return err
	}

	before, err := d.Balance(ctx, s.recipient)
	if err != nil {
		return err
	}
	receipt, err := d.Transfer(ctx, key, s.recipient, s.amount)
	if err != nil {
		return err
	}
	if receipt.BlockNumber == nil {
		return errors.New("receipt has no block number")
	}
	if receipt.Status != ethTypes.ReceiptStatusSuccessful {
		return errors.Errorf("transaction %s failed in block %v", receipt.TxHash.Hex(), receipt.BlockNumber)
	}

	after, err := d.Balance(ctx, s.recipient)
	if err != nil {
		return err
	}
	moved := new(big.Int).Sub(after.Raw, before.Raw)
	if crypto.PubkeyToAddress(key.PublicKey) != s.recipient && moved.Cmp(s.amount) != 0 {
		return errors.Errorf("recipient balance moved by %v, expected %v", moved, s.amount)
	}
	fmt.Printf("Transfer mined in block %v: %v\n", receipt.BlockNumber, receipt.TxHash.Hex())
	return nil
}

func main() {
	cfgFile := flag.String("c", "", "Path to the erc20 config file")
	rinkeby := flag.Bool("rinkeby", false, "Use the test network from the config")
	contract := flag.String("contract", config.DefaultContract, "Token contract address")
	to := flag.String("to", config.DefaultAddrTo, "Recipient address")
	amount := flag.String("amount", "1", "Raw amount to transfer")
	keyFile := flag.String("k", "", "File holding the sender's hex private key")
	flag.Parse()

	cfg := config.Default()
	if *cfgFile != "" {
		var err error
		if cfg, err = config.LoadFile(*cfgFile); err != nil {
			panic("ERROR In loading config: " + err.Error())
		}
	}
	logBackend, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		panic("ERROR In creating log backend: " + err.Error())
	}
	contractAddr, err := token.ParseAddress(*contract)
	if err != nil {
		panic(err)
	}
	recipient, err := token.ParseAddress(*to)
	if err != nil {
		panic(err)
	}
	value, err := token.ParseAmount(*amount)
	if err != nil {
		panic(err)
	}

	testSuite := &TestSuite{
		cfg:        cfg,
		rinkeby:    *rinkeby,
		contract:   contractAddr,
		recipient:  recipient,
		amount:     value,
		resolver:   &keys.Resolver{Hex: os.Getenv("ERC20_FROM_PRIVKEY"), File: *keyFile},
		logBackend: logBackend,
	}
	if err := testSuite.checkTransfer(context.Background()); err != nil {
		panic(fmt.Sprintf("Transfer error: %+v", err))
	}
}
