package gentxn

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/hashcloak/erc20-cli/pkg/log"
	"github.com/hashcloak/erc20-cli/pkg/token"
)

var (
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	recipient    = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func newTestToken(t *testing.T) *token.Token {
	tok, err := token.New(contractAddr, nil, log.NewNop())
	require.NoError(t, err)
	return tok
}

func TestTransferRequest(t *testing.T) {
	require := require.New(t)

	key, err := crypto.GenerateKey()
	require.NoError(err)
	from := crypto.PubkeyToAddress(key.PublicKey)
	tok := newTestToken(t)

	req, err := NewRequest(Transfer{To: recipient, Amount: big.NewInt(7)}, tok, from, 3, big.NewInt(1000))
	require.NoError(err)
	require.NotNil(req.From)
	require.Equal(from, *req.From)
	require.Equal(contractAddr, req.To)
	require.Equal(uint64(2100000), req.Gas)
	require.Equal(uint64(3), req.Nonce)
	require.Equal(0, req.Value.Sign())

	tx, raw, err := Sign(req, key, big.NewInt(4))
	require.NoError(err)

	decoded := new(types.Transaction)
	require.NoError(decoded.UnmarshalBinary(raw))
	require.Equal(tx.Hash(), decoded.Hash())
	require.Equal(uint64(GasLimit), decoded.Gas())
	require.Equal(uint64(3), decoded.Nonce())
	require.Equal(contractAddr, *decoded.To())
	require.Equal(int64(4), decoded.ChainId().Int64())

	sender, err := types.Sender(types.NewEIP155Signer(big.NewInt(4)), decoded)
	require.NoError(err)
	require.Equal(from, sender)

	m, err := tok.Method(decoded.Data())
	require.NoError(err)
	require.Equal("transfer", m.Name)
}

// Mint requests deliberately carry no From, unlike transfers; this keeps
// the sender check out of the mint path.
func TestMintRequestOmitsFrom(t *testing.T) {
	require := require.New(t)

	key, err := crypto.GenerateKey()
	require.NoError(err)
	tok := newTestToken(t)

	req, err := NewRequest(Mint{To: recipient}, tok, crypto.PubkeyToAddress(key.PublicKey), 0, big.NewInt(1))
	require.NoError(err)
	require.Nil(req.From)
	require.Equal(uint64(GasLimit), req.Gas)

	tx, _, err := Sign(req, key, big.NewInt(1))
	require.NoError(err)
	m, err := tok.Method(tx.Data())
	require.NoError(err)
	require.Equal("mint", m.Name)
}

func TestSignRejectsForeignFrom(t *testing.T) {
	require := require.New(t)

	key, err := crypto.GenerateKey()
	require.NoError(err)
	other, err := crypto.GenerateKey()
	require.NoError(err)

	req, err := NewRequest(Transfer{To: recipient, Amount: big.NewInt(1)}, newTestToken(t),
		crypto.PubkeyToAddress(other.PublicKey), 0, big.NewInt(1))
	require.NoError(err)

	_, _, err = Sign(req, key, big.NewInt(1))
	require.True(errors.Is(err, ErrFromMismatch))
}

func TestCallStrings(t *testing.T) {
	require.Equal(t, "mint("+recipient.Hex()+")", Mint{To: recipient}.String())
	require.Equal(t, "transfer("+recipient.Hex()+", 9)", Transfer{To: recipient, Amount: big.NewInt(9)}.String())
	require.Equal(t, recipient, Transfer{To: recipient}.Recipient())
}
