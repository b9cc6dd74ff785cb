package token

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/hashcloak/erc20-cli/pkg/log"
)

var (
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	holderAddr   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

// fakeCaller answers eth_call by method name, packing the configured
// outputs with the token ABI.
type fakeCaller struct {
	t       *testing.T
	abi     abi.ABI
	outputs map[string][]interface{}
	raw     map[string][]byte
	calls   []string
}

func newFakeCaller(t *testing.T) *fakeCaller {
	parsed, err := abi.JSON(strings.NewReader(ABI))
	require.NoError(t, err)
	return &fakeCaller{
		t:       t,
		abi:     parsed,
		outputs: make(map[string][]interface{}),
		raw:     make(map[string][]byte),
	}
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	require.Equal(f.t, contractAddr, *msg.To)
	require.Nil(f.t, block)

	m, err := f.abi.MethodById(msg.Data)
	require.NoError(f.t, err)
	f.calls = append(f.calls, m.Name)

	if b, ok := f.raw[m.Name]; ok {
		return b, nil
	}
	out, ok := f.outputs[m.Name]
	if !ok {
		return nil, errors.Errorf("execution reverted: %s", m.Name)
	}
	return m.Outputs.Pack(out...)
}

func newTestToken(t *testing.T, caller Caller) *Token {
	tok, err := New(contractAddr, caller, log.NewNop())
	require.NoError(t, err)
	return tok
}

func TestMetadata(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	fc := newFakeCaller(t)
	fc.outputs["name"] = []interface{}{"Test Token"}
	fc.outputs["symbol"] = []interface{}{"TST"}
	fc.outputs["decimals"] = []interface{}{uint8(6)}
	fc.outputs["totalSupply"] = []interface{}{big.NewInt(1234567)}
	tok := newTestToken(t, fc)

	name, err := tok.Name(ctx)
	require.NoError(err)
	require.Equal("Test Token", name)

	symbol, err := tok.Symbol(ctx)
	require.NoError(err)
	require.Equal("TST", symbol)

	decimals, err := tok.Decimals(ctx)
	require.NoError(err)
	require.Equal(uint8(6), decimals)

	supply, err := tok.TotalSupply(ctx)
	require.NoError(err)
	require.Equal(int64(1234567), supply.Int64())
}

func TestBalanceScalesByDecimals(t *testing.T) {
	require := require.New(t)

	raw, ok := new(big.Int).SetString("5000000000000000000", 10)
	require.True(ok)

	fc := newFakeCaller(t)
	fc.outputs["decimals"] = []interface{}{uint8(18)}
	fc.outputs["balanceOf"] = []interface{}{raw}
	tok := newTestToken(t, fc)

	bal, err := tok.Balance(context.Background(), holderAddr)
	require.NoError(err)
	require.Equal(0, bal.Float().Cmp(big.NewFloat(5.0)))
	require.Equal("5.0", bal.String())
	require.Equal([]string{"decimals", "balanceOf"}, fc.calls)

	// decimals are not cached between calls
	_, err = tok.Balance(context.Background(), holderAddr)
	require.NoError(err)
	require.Equal([]string{"decimals", "balanceOf", "decimals", "balanceOf"}, fc.calls)
}

func TestBalanceMatchesRawOverDecimals(t *testing.T) {
	for _, tc := range []struct {
		raw      int64
		decimals uint8
	}{
		{0, 18},
		{1, 0},
		{1, 18},
		{123456789, 3},
		{1000, 2},
	} {
		fc := newFakeCaller(t)
		fc.outputs["decimals"] = []interface{}{tc.decimals}
		fc.outputs["balanceOf"] = []interface{}{big.NewInt(tc.raw)}
		tok := newTestToken(t, fc)

		bal, err := tok.Balance(context.Background(), holderAddr)
		require.NoError(t, err)

		want := new(big.Float).SetPrec(256).SetInt64(tc.raw)
		want.Quo(want, new(big.Float).SetPrec(256).SetInt(pow10(tc.decimals)))
		require.Equal(t, 0, bal.Float().Cmp(want), "raw=%d decimals=%d", tc.raw, tc.decimals)
	}
}

func TestCallErrors(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	fc := newFakeCaller(t)
	fc.raw["decimals"] = []byte{}
	tok := newTestToken(t, fc)

	_, err := tok.Decimals(ctx)
	require.True(errors.Is(err, ErrNoData))

	_, err = tok.BalanceOf(ctx, holderAddr)
	require.Error(err)
	require.Contains(err.Error(), "execution reverted")

	fc.raw["name"] = []byte{0x01, 0x02}
	_, err = tok.Name(ctx)
	require.Error(err)
}

func TestPackCalls(t *testing.T) {
	require := require.New(t)

	tok := newTestToken(t, newFakeCaller(t))

	data, err := tok.PackTransfer(holderAddr, big.NewInt(42))
	require.NoError(err)
	require.Equal(common.FromHex("0xa9059cbb"), data[:4])
	m, err := tok.Method(data)
	require.NoError(err)
	require.Equal("transfer", m.Name)
	args, err := m.Inputs.Unpack(data[4:])
	require.NoError(err)
	require.Equal(holderAddr, args[0])
	require.Equal(int64(42), args[1].(*big.Int).Int64())

	data, err = tok.PackMint(holderAddr)
	require.NoError(err)
	m, err = tok.Method(data)
	require.NoError(err)
	require.Equal("mint", m.Name)
	require.Len(data, 4+32)
}
