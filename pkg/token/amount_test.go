package token

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAmountString(t *testing.T) {
	for _, tc := range []struct {
		raw      string
		decimals uint8
		want     string
	}{
		{"5000000000000000000", 18, "5.0"},
		{"1500000000000000000", 18, "1.5"},
		{"1", 18, "0.000000000000000001"},
		{"0", 18, "0.0"},
		{"42", 0, "42.0"},
		{"123456", 3, "123.456"},
		{"-2500", 3, "-2.5"},
	} {
		raw, ok := new(big.Int).SetString(tc.raw, 10)
		require.True(t, ok)
		require.Equal(t, tc.want, Amount{Raw: raw, Decimals: tc.decimals}.String())
	}
}

func TestParseAmount(t *testing.T) {
	require := require.New(t)

	v, err := ParseAmount("1000000000000000000")
	require.NoError(err)
	require.Equal("1000000000000000000", v.String())

	_, err = ParseAmount("-1")
	require.Error(err)
	_, err = ParseAmount("1.5")
	require.Error(err)
	_, err = ParseAmount("1" + strings.Repeat("0", 80))
	require.Error(err)
}

func TestParseAddress(t *testing.T) {
	require := require.New(t)

	const checksummed = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
	addr, err := ParseAddress(checksummed)
	require.NoError(err)
	require.Equal(checksummed, addr.Hex())

	_, err = ParseAddress(strings.ToLower(checksummed))
	require.NoError(err)

	_, err = ParseAddress("0x7e5F4552091A69125d5DfCb7b8C2659029395Bdf")
	require.Error(err)
	require.Contains(err.Error(), "checksum")

	_, err = ParseAddress("0x1234")
	require.Error(err)
}
