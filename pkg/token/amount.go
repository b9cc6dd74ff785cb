package token

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Amount is a raw token amount and the decimals it is scaled by.
type Amount struct {
	Raw      *big.Int
	Decimals uint8
}

// Float returns Raw / 10^Decimals.
func (a Amount) Float() *big.Float {
	const prec = 256
	num := new(big.Float).SetPrec(prec).SetInt(a.Raw)
	den := new(big.Float).SetPrec(prec).SetInt(pow10(a.Decimals))
	return num.Quo(num, den)
}

// String renders the scaled amount exactly, keeping at least one
// fractional digit: 5000000000000000000 with 18 decimals is "5.0".
func (a Amount) String() string {
	if a.Raw == nil {
		return "<nil>"
	}
	digits := new(big.Int).Abs(a.Raw).String()
	d := int(a.Decimals)
	if len(digits) <= d {
		digits = strings.Repeat("0", d-len(digits)+1) + digits
	}
	whole, frac := digits[:len(digits)-d], strings.TrimRight(digits[len(digits)-d:], "0")
	if frac == "" {
		frac = "0"
	}
	sign := ""
	if a.Raw.Sign() < 0 {
		sign = "-"
	}
	return sign + whole + "." + frac
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ParseAmount parses a raw decimal integer amount that must fit a uint256.
func ParseAmount(s string) (*big.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid amount %q", s)
	}
	return v.ToBig(), nil
}

// ParseAddress parses a hex address. Mixed-case input must carry a valid
// checksum.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Errorf("invalid address %q", s)
	}
	addr := common.HexToAddress(s)
	body := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if addr.Hex()[2:] != body {
			return common.Address{}, errors.Errorf("invalid checksum address %q", s)
		}
	}
	return addr, nil
}
