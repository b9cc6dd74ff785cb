// Package poa decodes block headers returned by a JSON-RPC node.
//
// Proof-of-authority networks append a 65 byte signer seal to the header
// extraData, so their headers carry more than the 32 bytes of extraData
// a standard header allows. Standard rejects such headers; ProofOfAuthority
// accepts them and recovers the sealing signer.
package poa

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

const (
	// MaxExtraData is the extraData size limit of a standard header.
	MaxExtraData = 32

	// ExtraVanity is the fixed vanity prefix of a proof-of-authority
	// header's extraData.
	ExtraVanity = 32

	// ExtraSeal is the size of the signer seal suffix.
	ExtraSeal = crypto.SignatureLength
)

var (
	// ErrExtraDataLength is returned by Standard for headers whose extraData
	// exceeds MaxExtraData, which is what proof-of-authority headers look
	// like to a decoder that does not know about them.
	ErrExtraDataLength = errors.New("extraData exceeds 32 bytes, network is likely proof-of-authority")

	// ErrMissingSignature is returned by ProofOfAuthority when extraData is
	// too short to hold the vanity and seal.
	ErrMissingSignature = errors.New("extraData is missing the 65 byte signer seal")
)

// Header is a decoded block header.
type Header struct {
	*types.Header

	// Signer is the address that sealed the block. It is only set by the
	// proof-of-authority decoder.
	Signer *common.Address
}

// Decoder decodes the raw JSON header returned by eth_getBlockByNumber.
type Decoder interface {
	Decode(raw json.RawMessage) (*Header, error)
	Name() string
}

// Standard is the default header decoder.
type Standard struct{}

// Name implements Decoder.
func (Standard) Name() string { return "standard" }

// Decode implements Decoder.
func (Standard) Decode(raw json.RawMessage) (*Header, error) {
	h, err := unmarshal(raw)
	if err != nil {
		return nil, err
	}
	if len(h.Extra) > MaxExtraData {
		return nil, errors.Wrapf(ErrExtraDataLength, "block %v: extraData is %d bytes long", h.Number, len(h.Extra))
	}
	return &Header{Header: h}, nil
}

// ProofOfAuthority decodes headers of clique style networks.
type ProofOfAuthority struct{}

// Name implements Decoder.
func (ProofOfAuthority) Name() string { return "proof-of-authority" }

// Decode implements Decoder.
func (ProofOfAuthority) Decode(raw json.RawMessage) (*Header, error) {
	h, err := unmarshal(raw)
	if err != nil {
		return nil, err
	}
	if len(h.Extra) < ExtraVanity+ExtraSeal {
		return nil, errors.Wrapf(ErrMissingSignature, "block %v: extraData is %d bytes long", h.Number, len(h.Extra))
	}
	signer, err := Signer(h)
	if err != nil {
		return nil, err
	}
	return &Header{Header: h, Signer: &signer}, nil
}

// Signer recovers the address that sealed a proof-of-authority header.
func Signer(h *types.Header) (common.Address, error) {
	if len(h.Extra) < ExtraSeal {
		return common.Address{}, ErrMissingSignature
	}
	sig := h.Extra[len(h.Extra)-ExtraSeal:]
	pub, err := crypto.Ecrecover(SealHash(h).Bytes(), sig)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to recover block signer")
	}
	var signer common.Address
	copy(signer[:], crypto.Keccak256(pub[1:])[12:])
	return signer, nil
}

// SealHash returns the hash a proof-of-authority signer signs: the RLP of
// the header with the seal stripped from extraData.
func SealHash(h *types.Header) common.Hash {
	fields := []interface{}{
		h.ParentHash,
		h.UncleHash,
		h.Coinbase,
		h.Root,
		h.TxHash,
		h.ReceiptHash,
		h.Bloom,
		h.Difficulty,
		h.Number,
		h.GasLimit,
		h.GasUsed,
		h.Time,
		h.Extra[:len(h.Extra)-ExtraSeal],
		h.MixDigest,
		h.Nonce,
	}
	if h.BaseFee != nil {
		fields = append(fields, h.BaseFee)
	}
	enc, err := rlp.EncodeToBytes(fields)
	if err != nil {
		panic("can't encode: " + err.Error())
	}
	return crypto.Keccak256Hash(enc)
}

func unmarshal(raw json.RawMessage) (*types.Header, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("block not found")
	}
	h := new(types.Header)
	if err := json.Unmarshal(raw, h); err != nil {
		return nil, errors.Wrap(err, "failed to decode block header")
	}
	if h.Number == nil {
		h.Number = new(big.Int)
	}
	return h, nil
}
