package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	client "github.com/hashcloak/erc20-cli"
	"github.com/hashcloak/erc20-cli/config"
	"github.com/hashcloak/erc20-cli/pkg/commands"
	"github.com/hashcloak/erc20-cli/pkg/keys"
	"github.com/hashcloak/erc20-cli/pkg/log"
	"github.com/hashcloak/erc20-cli/pkg/token"
)

const (
	flagInfo            = "info"
	flagRinkeby         = "rinkeby"
	flagMint            = "mint"
	flagTransfer        = "transfer"
	flagContract        = "contract"
	flagAmount          = "amount"
	flagAddrTo          = "addr-to"
	flagFromPrivKey     = "from-privkey"
	flagFromPrivKeyFile = "from-privkey-file"
	flagPrivKeyPrompt   = "privkey-prompt"
	flagConfig          = "config"

	envPrefix = "ERC20"
)

type mode int

const (
	modeNone mode = iota
	modeInfo
	modeMint
	modeTransfer
)

// selectMode picks the first requested mode in the order info, mint,
// transfer.
func selectMode(info, mint, transfer bool) mode {
	switch {
	case info:
		return modeInfo
	case mint:
		return modeMint
	case transfer:
		return modeTransfer
	}
	return modeNone
}

// backend is the node connection used by the commands.
type backend interface {
	commands.Backend
	Close()
}

type dialFunc func(context.Context, *config.Network, *config.Transaction, *log.Backend) (backend, error)

func dialClient(ctx context.Context, n *config.Network, txCfg *config.Transaction, logBackend *log.Backend) (backend, error) {
	c, err := client.Dial(ctx, n, txCfg, logBackend)
	if err != nil {
		return nil, err
	}
	return c, nil
}

type app struct {
	out   io.Writer
	stdin int
	dial  dialFunc
	v     *viper.Viper
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "erc20",
		Short:         "Query and transact against an ERC20 token contract",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd)
		},
	}
	cmd.SetOut(a.out)

	f := cmd.Flags()
	f.Bool(flagInfo, false, "print token name, symbol, decimals, total supply and the --addr-to balance")
	f.Bool(flagRinkeby, false, "use the test network gateway (proof-of-authority headers)")
	f.Bool(flagMint, false, "call mint(--addr-to)")
	f.Bool(flagTransfer, false, "transfer --amount raw units to --addr-to")
	f.String(flagContract, "", "token contract address (default "+config.DefaultContract+")")
	f.String(flagAmount, "0", "raw integer amount, not scaled by decimals")
	f.String(flagAddrTo, "", "recipient or queried address (default "+config.DefaultAddrTo+" for mint and transfer)")
	f.String(flagFromPrivKey, "", "hex private key of the sender, visible in shell history and process listings; prefer "+envPrefix+"_FROM_PRIVKEY")
	f.String(flagFromPrivKeyFile, "", "file holding the hex private key of the sender")
	f.Bool(flagPrivKeyPrompt, false, "read the sender private key from the terminal")
	f.String(flagConfig, "", "path to a TOML config file")

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(f); err != nil {
		panic(err)
	}
	return cmd
}

func (a *app) loadConfig() (*config.Config, error) {
	if f := a.v.GetString(flagConfig); f != "" {
		cfg, err := config.LoadFile(f)
		return cfg, errors.Wrapf(err, "failed to load config %s", f)
	}
	return config.Default(), nil
}

func (a *app) run(cmd *cobra.Command) error {
	m := selectMode(a.v.GetBool(flagInfo), a.v.GetBool(flagMint), a.v.GetBool(flagTransfer))
	if m == modeNone {
		return cmd.Help()
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	logBackend, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		return err
	}
	defer logBackend.Close()
	logger := logBackend.GetLogger("erc20")

	contractHex := a.v.GetString(flagContract)
	if contractHex == "" {
		contractHex = cfg.Token.Contract
	}
	contract, err := token.ParseAddress(contractHex)
	if err != nil {
		return err
	}

	var addrTo *common.Address
	if s := a.v.GetString(flagAddrTo); s != "" {
		addr, err := token.ParseAddress(s)
		if err != nil {
			return err
		}
		addrTo = &addr
	}

	ctx := context.Background()
	network := cfg.Network(a.v.GetBool(flagRinkeby))
	c, err := a.dial(ctx, network, cfg.Transaction, logBackend)
	if err != nil {
		return err
	}
	defer c.Close()

	d, err := commands.New(c, contract, network, a.out, logBackend)
	if err != nil {
		return err
	}

	if m == modeInfo {
		return d.Info(ctx, addrTo)
	}

	if addrTo == nil {
		addr, err := token.ParseAddress(cfg.Token.AddrTo)
		if err != nil {
			return err
		}
		addrTo = &addr
	}
	if cmd.Flags().Changed(flagFromPrivKey) {
		logger.Warningf("--%s exposes the key to shell history and process listings", flagFromPrivKey)
	}
	keyFile := a.v.GetString(flagFromPrivKeyFile)
	if keyFile == "" {
		keyFile = cfg.Keys.File
	}
	resolver := &keys.Resolver{
		Hex:    a.v.GetString(flagFromPrivKey),
		File:   keyFile,
		Prompt: a.v.GetBool(flagPrivKeyPrompt),
		Stdin:  a.stdin,
		Out:    cmd.ErrOrStderr(),
	}
	key, err := resolver.Resolve()
	if err != nil {
		return err
	}

	if m == modeMint {
		_, err = d.Mint(ctx, key, *addrTo)
		return err
	}
	amount, err := token.ParseAmount(a.v.GetString(flagAmount))
	if err != nil {
		return err
	}
	_, err = d.Transfer(ctx, key, *addrTo, amount)
	return err
}

func main() {
	a := &app{
		out:   os.Stdout,
		stdin: int(os.Stdin.Fd()),
		dial:  dialClient,
		v:     viper.New(),
	}
	if err := newRootCommand(a).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}
