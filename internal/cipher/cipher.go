package cipher

import (
	"fmt"
	"io"
	"strings"

	sherr "haz.cat/sshovel/internal/errors"
	logger "haz.cat/sshovel/internal/logging"
)

// Cipher transforms a byte stream under a passphrase by driving an
// external tool. The encoded body format is entirely the cipher's concern;
// the container header only records its name.
type Cipher interface {
	Name() string
	Encrypt(in io.Reader, out io.Writer, passphrase string) error
	Decrypt(in io.Reader, out io.Writer, passphrase string) error
}

// Options carries construction-time settings. Only encryption is tunable;
// decryption parameters live inside each cipher's own body format.
type Options struct {
	// ScryptArgs are extra arguments placed between "enc" and the stream
	// marker, e.g. work-factor tuning like {"-t", "5"}.
	ScryptArgs []string

	Log logger.Logger
}

// Resolve maps a cipher name, case-insensitively, to an implementation.
// The registry is closed: the decryptor must be able to reconstruct any
// cipher a header can name.
func Resolve(name string, opts Options) (Cipher, error) {
	switch strings.ToLower(name) {
	case "openssl":
		return &OpenSSL{log: opts.Log}, nil
	case "scrypt":
		return &Scrypt{encryptArgs: opts.ScryptArgs, log: opts.Log}, nil
	}
	return nil, fmt.Errorf("%w: %q (known ciphers: %s)",
		sherr.ErrUnknownCipher, name, strings.Join(Names(), ", "))
}

// Names lists the registered cipher names, for help text.
func Names() []string {
	return []string{"openssl", "scrypt"}
}
