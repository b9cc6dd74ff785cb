// Package keys resolves the signing key from the command line, the
// environment, a key file or an interactive prompt.
package keys

import (
	"crypto/ecdsa"
	"fmt"
	"io"
	"io/ioutil"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

// ErrNoKey is returned when no key source was configured.
var ErrNoKey = errors.New("no private key supplied, use --from-privkey, ERC20_FROM_PRIVKEY, --from-privkey-file or --privkey-prompt")

// Parse decodes a hex private key, with or without 0x prefix.
func Parse(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}
	return key, nil
}

// Resolver picks the first configured key source: Hex, then File, then
// Prompt.
type Resolver struct {
	// Hex is a key given on the command line or through the environment.
	Hex string

	// File is a path to a file holding a hex key.
	File string

	// Prompt reads the key from the terminal without echo.
	Prompt bool

	// Stdin is the terminal file descriptor used by Prompt.
	Stdin int

	// Out receives the prompt text.
	Out io.Writer
}

// Resolve returns the private key from the first configured source.
func (r *Resolver) Resolve() (*ecdsa.PrivateKey, error) {
	switch {
	case r.Hex != "":
		return Parse(r.Hex)
	case r.File != "":
		b, err := ioutil.ReadFile(r.File)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read key file")
		}
		return Parse(string(b))
	case r.Prompt:
		return r.prompt()
	}
	return nil, ErrNoKey
}

func (r *Resolver) prompt() (*ecdsa.PrivateKey, error) {
	if !term.IsTerminal(r.Stdin) {
		return nil, errors.New("--privkey-prompt needs an interactive terminal")
	}
	fmt.Fprint(r.Out, "private key: ")
	b, err := term.ReadPassword(r.Stdin)
	fmt.Fprintln(r.Out)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read private key")
	}
	return Parse(string(b))
}
