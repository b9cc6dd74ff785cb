// Package token binds the token contract: it encodes calls against the
// fixed ABI and decodes their results.
package token

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"gopkg.in/op/go-logging.v1"

	"github.com/hashcloak/erc20-cli/pkg/log"
)

// ErrNoData is returned when a read call comes back empty, which is what a
// call to an address without code looks like.
var ErrNoData = errors.New("call returned no data")

// Caller executes read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Token is a token contract deployed at Address.
type Token struct {
	Address common.Address

	abi    abi.ABI
	caller Caller
	log    *logging.Logger
}

// New binds the token at address, reading through caller.
func New(address common.Address, caller Caller, logBackend *log.Backend) (*Token, error) {
	parsed, err := abi.JSON(strings.NewReader(ABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse token ABI")
	}
	return &Token{
		Address: address,
		abi:     parsed,
		caller:  caller,
		log:     logBackend.GetLogger("token"),
	}, nil
}

func (t *Token) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := t.abi.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s", method)
	}
	t.log.Debugf("eth_call %s(%v) on %s", method, args, t.Address.Hex())

	out, err := t.caller.CallContract(ctx, ethereum.CallMsg{To: &t.Address, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "%s call failed", method)
	}
	if len(out) == 0 {
		return nil, errors.Wrapf(ErrNoData, "%s on %s", method, t.Address.Hex())
	}
	res, err := t.abi.Unpack(method, out)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unpack %s result", method)
	}
	if len(res) != 1 {
		return nil, errors.Errorf("%s returned %d values", method, len(res))
	}
	return res, nil
}

// Name returns the token name.
func (t *Token) Name(ctx context.Context) (string, error) {
	res, err := t.call(ctx, "name")
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(res[0], new(string)).(*string), nil
}

// Symbol returns the token symbol.
func (t *Token) Symbol(ctx context.Context) (string, error) {
	res, err := t.call(ctx, "symbol")
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(res[0], new(string)).(*string), nil
}

// Decimals returns the number of decimals amounts are scaled by.
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	res, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(res[0], new(uint8)).(*uint8), nil
}

// TotalSupply returns the raw total supply.
func (t *Token) TotalSupply(ctx context.Context) (*big.Int, error) {
	res, err := t.call(ctx, "totalSupply")
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(res[0], new(big.Int)).(*big.Int), nil
}

// BalanceOf returns the raw balance of owner.
func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	res, err := t.call(ctx, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(res[0], new(big.Int)).(*big.Int), nil
}

// Balance returns the balance of owner scaled by the token decimals.
// Decimals are read again on every call.
func (t *Token) Balance(ctx context.Context, owner common.Address) (Amount, error) {
	decimals, err := t.Decimals(ctx)
	if err != nil {
		return Amount{}, err
	}
	raw, err := t.BalanceOf(ctx, owner)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Raw: raw, Decimals: decimals}, nil
}

// PackTransfer encodes transfer(to, amount). The amount is raw and is not
// scaled by the token decimals.
func (t *Token) PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	data, err := t.abi.Pack("transfer", to, amount)
	return data, errors.Wrap(err, "failed to pack transfer")
}

// PackMint encodes mint(to).
func (t *Token) PackMint(to common.Address) ([]byte, error) {
	data, err := t.abi.Pack("mint", to)
	return data, errors.Wrap(err, "failed to pack mint")
}

// Method returns the ABI method selected by the first four bytes of data.
func (t *Token) Method(data []byte) (*abi.Method, error) {
	return t.abi.MethodById(data)
}
