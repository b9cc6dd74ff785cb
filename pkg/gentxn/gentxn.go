// Package gentxn builds and signs token transactions.
package gentxn

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/hashcloak/erc20-cli/pkg/token"
)

// GasLimit is the gas limit of every transfer and mint transaction.
const GasLimit = 2100000

// ErrFromMismatch is returned when a request names a sender that is not
// the signing key's address.
var ErrFromMismatch = errors.New("from field does not match the signing key")

// Call is a state-mutating token method call: Transfer or Mint.
type Call interface {
	// Encode returns the ABI encoded calldata.
	Encode(t *token.Token) ([]byte, error)

	// Recipient is the account receiving tokens.
	Recipient() common.Address

	fmt.Stringer
}

// Transfer moves Amount raw token units from the sender to To.
type Transfer struct {
	To     common.Address
	Amount *big.Int
}

// Encode implements Call.
func (c Transfer) Encode(t *token.Token) ([]byte, error) { return t.PackTransfer(c.To, c.Amount) }

// Recipient implements Call.
func (c Transfer) Recipient() common.Address { return c.To }

func (c Transfer) String() string { return fmt.Sprintf("transfer(%s, %v)", c.To.Hex(), c.Amount) }

// Mint asks the contract to mint tokens to To.
type Mint struct {
	To common.Address
}

// Encode implements Call.
func (c Mint) Encode(t *token.Token) ([]byte, error) { return t.PackMint(c.To) }

// Recipient implements Call.
func (c Mint) Recipient() common.Address { return c.To }

func (c Mint) String() string { return fmt.Sprintf("mint(%s)", c.To.Hex()) }

// Request is an unsigned transaction to the token contract.
type Request struct {
	// From is the expected sender. Mint requests leave it nil.
	From     *common.Address
	To       common.Address
	Data     []byte
	Gas      uint64
	GasPrice *big.Int
	Nonce    uint64
	Value    *big.Int
}

// NewRequest builds the request for call against t. Transfer requests
// record the sender in From, mint requests do not.
func NewRequest(call Call, t *token.Token, from common.Address, nonce uint64, gasPrice *big.Int) (*Request, error) {
	data, err := call.Encode(t)
	if err != nil {
		return nil, err
	}
	req := &Request{
		To:       t.Address,
		Data:     data,
		Gas:      GasLimit,
		GasPrice: gasPrice,
		Nonce:    nonce,
		Value:    new(big.Int),
	}
	if _, ok := call.(Transfer); ok {
		req.From = &from
	}
	return req, nil
}

// Sign signs the request with key for chainID using the EIP-155 signer.
// It returns the signed transaction, its binary encoding and any error
// encountered.
func Sign(req *Request, key *ecdsa.PrivateKey, chainID *big.Int) (*types.Transaction, []byte, error) {
	signer := crypto.PubkeyToAddress(key.PublicKey)
	if req.From != nil && *req.From != signer {
		return nil, nil, errors.Wrapf(ErrFromMismatch, "from %s, key %s", req.From.Hex(), signer.Hex())
	}

	to := req.To
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    req.Nonce,
		To:       &to,
		Value:    req.Value,
		Gas:      req.Gas,
		GasPrice: req.GasPrice,
		Data:     req.Data,
	})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), key)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to sign transaction")
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to encode transaction")
	}
	return signed, raw, nil
}
