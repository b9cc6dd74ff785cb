package config

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	require := require.New(t)

	cfg := Default()
	require.Equal(DefaultMainnetURL, cfg.Network(false).URL)
	require.False(cfg.Network(false).PoA)
	require.Equal(DefaultRinkebyURL, cfg.Network(true).URL)
	require.True(cfg.Network(true).PoA)
	require.Equal(uint64(mainnetChainID), cfg.Mainnet.ChainID)
	require.Equal(uint64(rinkebyChainID), cfg.Rinkeby.ChainID)
	require.Equal(100*time.Millisecond, cfg.Transaction.PollInterval.Duration)
	require.Equal("NOTICE", cfg.Logging.Level)
}

func TestBuiltinEndpointsAndAddresses(t *testing.T) {
	require := require.New(t)

	cfg := Default()
	require.Equal("https://cloudflare-eth.com", cfg.Mainnet.URL)
	require.Equal("https://rinkeby.infura.io/v3/d6f3858df4d944d7bb992f931f976d22", cfg.Rinkeby.URL)
	require.Equal("0x680Bb9f1b40D89a0E74311A07A0ae01F2Cf912dE", cfg.Token.Contract)
	require.Equal("0x74D4c3647a049C9F4702F08f552F7b998d7aBBAd", cfg.Token.AddrTo)

	// both are valid EIP-55 checksummed addresses
	require.Equal(cfg.Token.Contract, common.HexToAddress(cfg.Token.Contract).Hex())
	require.Equal(cfg.Token.AddrTo, common.HexToAddress(cfg.Token.AddrTo).Hex())
}

func TestLoad(t *testing.T) {
	require := require.New(t)

	cfg, err := Load([]byte(`
[Rinkeby]
  URL = "http://127.0.0.1:8545"
  ChainID = 1337
  PoA = true

[Token]
  Contract = "0x00000000000000000000000000000000000000aa"

[Transaction]
  PollInterval = "2s"
  ReceiptTimeout = "1m"

[Logging]
  Level = "debug"
`))
	require.NoError(err)
	require.Equal("http://127.0.0.1:8545", cfg.Rinkeby.URL)
	require.Equal(uint64(1337), cfg.Rinkeby.ChainID)
	require.Equal(DefaultMainnetURL, cfg.Mainnet.URL)
	require.Equal("0x00000000000000000000000000000000000000aa", cfg.Token.Contract)
	require.Equal(DefaultAddrTo, cfg.Token.AddrTo)
	require.Equal(2*time.Second, cfg.Transaction.PollInterval.Duration)
	require.Equal(time.Minute, cfg.Transaction.ReceiptTimeout.Duration)
	require.Equal("DEBUG", cfg.Logging.Level)
}

func TestLoadRejects(t *testing.T) {
	for name, body := range map[string]string{
		"undecoded":    "[Token]\nContrakt = \"0x00\"\n",
		"relative log": "[Logging]\nFile = \"erc20.log\"\n",
		"bad level":    "[Logging]\nLevel = \"LOUD\"\n",
		"ws url":       "[Mainnet]\nURL = \"ws://127.0.0.1:8546\"\n",
		"bad duration": "[Transaction]\nPollInterval = \"soon\"\n",
		"gas limit":    "[Transaction]\nGasLimit = 50000\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load([]byte(body))
			require.Error(t, err)
		})
	}
}

type staticChainID struct {
	id  *big.Int
	err error
}

func (s staticChainID) ChainID(context.Context) (*big.Int, error) { return s.id, s.err }

func TestVerifyChainID(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	id, err := VerifyChainID(ctx, &Network{URL: "http://x", ChainID: 4}, staticChainID{id: big.NewInt(4)})
	require.NoError(err)
	require.Equal(int64(4), id.Int64())

	_, err = VerifyChainID(ctx, &Network{URL: "http://x", ChainID: 4}, staticChainID{id: big.NewInt(1)})
	require.True(errors.Is(err, ErrWrongChainID))

	id, err = VerifyChainID(ctx, &Network{URL: "http://x"}, staticChainID{id: big.NewInt(99)})
	require.NoError(err)
	require.Equal(int64(99), id.Int64())

	_, err = VerifyChainID(ctx, &Network{URL: "http://x"}, staticChainID{err: errors.New("down")})
	require.Error(err)
}
