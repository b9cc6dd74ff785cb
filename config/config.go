// Package config implements the configuration for the erc20 client.
package config

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

const (
	// DefaultMainnetURL is the production gateway.
	DefaultMainnetURL = "https://cloudflare-eth.com"

	// DefaultRinkebyURL is the named test-network gateway.
	DefaultRinkebyURL = "https://rinkeby.infura.io/v3/d6f3858df4d944d7bb992f931f976d22"

	// DefaultContract is the token deployed on the test network.
	DefaultContract = "0x680Bb9f1b40D89a0E74311A07A0ae01F2Cf912dE"

	// DefaultAddrTo is the recipient used when none is given.
	DefaultAddrTo = "0x74D4c3647a049C9F4702F08f552F7b998d7aBBAd"

	defaultPollInterval   = 100 * time.Millisecond
	defaultReceiptTimeout = 120 * time.Second
	defaultLogLevel       = "NOTICE"

	mainnetChainID = 1
	rinkebyChainID = 4
)

// Duration is a time.Duration that decodes from TOML strings such as "2s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Network is a JSON-RPC endpoint and the properties of the chain behind it.
type Network struct {
	// URL is the HTTP(S) JSON-RPC endpoint.
	URL string

	// ChainID pins the expected chain id. Zero accepts whatever the node
	// reports.
	ChainID uint64

	// PoA enables proof-of-authority block header decoding.
	PoA bool
}

func (n *Network) validate(name string) error {
	if n.URL == "" {
		return errors.Errorf("config: %s: URL is not set", name)
	}
	if !strings.HasPrefix(n.URL, "http://") && !strings.HasPrefix(n.URL, "https://") {
		return errors.Errorf("config: %s: URL '%v' is not an HTTP endpoint", name, n.URL)
	}
	return nil
}

// Token is the token contract configuration.
type Token struct {
	// Contract is the deployed token address.
	Contract string

	// AddrTo is the default recipient for mint and transfer.
	AddrTo string
}

// Transaction is the receipt polling configuration. The gas limit is
// fixed and not configurable.
type Transaction struct {
	// PollInterval is the delay between receipt polls.
	PollInterval Duration

	// ReceiptTimeout bounds how long to wait for a receipt.
	ReceiptTimeout Duration
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file, if omitted stderr will be used.
	File string

	// Level specifies the log level.
	Level string
}

func (lCfg *Logging) validate() error {
	lvl := strings.ToUpper(lCfg.Level)
	switch lvl {
	case "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG":
	case "":
		lCfg.Level = defaultLogLevel
	default:
		return errors.Errorf("config: Logging: Level '%v' is invalid", lCfg.Level)
	}
	lCfg.Level = strings.ToUpper(lCfg.Level)
	if !lCfg.Disable && lCfg.File != "" && !filepath.IsAbs(lCfg.File) {
		return errors.New("config: Logging: File must be an absolute path")
	}
	return nil
}

// Keys is the signing key configuration.
type Keys struct {
	// File holds a hex encoded private key.
	File string
}

// Config is the top level erc20 client configuration.
type Config struct {
	Mainnet     *Network
	Rinkeby     *Network
	Token       *Token
	Transaction *Transaction
	Logging     *Logging
	Keys        *Keys
}

// Network returns the mainnet or test-network endpoint.
func (c *Config) Network(rinkeby bool) *Network {
	if rinkeby {
		return c.Rinkeby
	}
	return c.Mainnet
}

// FixupAndValidate applies defaults to config entries and validates the
// supplied configuration.
func (c *Config) FixupAndValidate() error {
	if c.Mainnet == nil {
		c.Mainnet = &Network{URL: DefaultMainnetURL, ChainID: mainnetChainID}
	}
	if c.Rinkeby == nil {
		c.Rinkeby = &Network{URL: DefaultRinkebyURL, ChainID: rinkebyChainID, PoA: true}
	}
	if err := c.Mainnet.validate("Mainnet"); err != nil {
		return err
	}
	if err := c.Rinkeby.validate("Rinkeby"); err != nil {
		return err
	}

	if c.Token == nil {
		c.Token = &Token{}
	}
	if c.Token.Contract == "" {
		c.Token.Contract = DefaultContract
	}
	if c.Token.AddrTo == "" {
		c.Token.AddrTo = DefaultAddrTo
	}

	if c.Transaction == nil {
		c.Transaction = &Transaction{}
	}
	if c.Transaction.PollInterval.Duration <= 0 {
		c.Transaction.PollInterval.Duration = defaultPollInterval
	}
	if c.Transaction.ReceiptTimeout.Duration <= 0 {
		c.Transaction.ReceiptTimeout.Duration = defaultReceiptTimeout
	}

	if c.Logging == nil {
		c.Logging = &Logging{}
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}

	if c.Keys == nil {
		c.Keys = &Keys{}
	}
	return nil
}

// Default returns a configuration holding only default values.
func Default() *Config {
	cfg := new(Config)
	if err := cfg.FixupAndValidate(); err != nil {
		panic("BUG: default configuration is invalid: " + err.Error())
	}
	return cfg
}

// Load parses and validates the provided buffer b as a config file body and
// returns the Config.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, errors.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses and validates the provided file and returns the
// Config.
func LoadFile(f string) (*Config, error) {
	b, err := ioutil.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}
