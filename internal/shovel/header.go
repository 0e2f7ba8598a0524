package shovel

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"fmt"
	"io"

	sherr "haz.cat/sshovel/internal/errors"
	"haz.cat/sshovel/internal/wire"
)

// Magic is the first thing in every shovel file.
var Magic = []byte("HAZ.CAT/SSHOVEL")

const (
	// Version is the container format version. Parsing rejects anything else.
	Version = 5807

	// NonceSize is the exact length of the per-file nonce.
	NonceSize = 1024

	selectorSize = sha1.Size
)

// Header is the shovel container preamble. Everything after it belongs to
// the named cipher.
type Header struct {
	// Cipher names the body cipher, resolvable via cipher.Resolve.
	Cipher string

	// Nonce is the per-file random value the passphrase is derived from.
	Nonce []byte

	// Selector is SHA-1(nonce || identity blob); the decryptor evaluates
	// it against each identity the agent offers.
	Selector []byte
}

// WriteHeader encodes h. The recipient count is fixed at 1: the format
// reserves the field for multi-recipient support it does not yet have.
func WriteHeader(w io.Writer, h *Header) error {
	var b wire.Writer
	b.Raw(Magic)
	b.Uint32(Version)
	b.String([]byte(h.Cipher))
	b.String(h.Nonce)
	b.Uint32(1)
	b.String(h.Selector)
	_, err := w.Write(b.Bytes())
	return err
}

// ReadHeader decodes and validates a header, consuming exactly the header
// bytes from r. Any mismatch is ErrMalformed.
func ReadHeader(r io.Reader) (*Header, error) {
	rd := wire.NewReader(r)

	got, err := rd.Raw(len(Magic))
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(got, Magic) {
		return nil, fmt.Errorf("%w: bad magic %q", sherr.ErrMalformed, got)
	}

	version, err := rd.Uint32()
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, fmt.Errorf("%w: version %d, want %d", sherr.ErrMalformed, version, Version)
	}

	cipherName, err := rd.String()
	if err != nil {
		return nil, err
	}

	nonce, err := rd.String()
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce length %d, want %d", sherr.ErrMalformed, len(nonce), NonceSize)
	}

	count, err := rd.Uint32()
	if err != nil {
		return nil, err
	}
	if count != 1 {
		return nil, fmt.Errorf("%w: recipient count %d, want 1", sherr.ErrMalformed, count)
	}

	selector, err := rd.String()
	if err != nil {
		return nil, err
	}
	if len(selector) != selectorSize {
		return nil, fmt.Errorf("%w: selector length %d, want %d", sherr.ErrMalformed, len(selector), selectorSize)
	}

	return &Header{
		Cipher:   string(cipherName),
		Nonce:    nonce,
		Selector: selector,
	}, nil
}

// IsShovelStream reports whether the stream starts with the shovel magic,
// peeking without consuming. Decryption versus encryption is decided here,
// before any agent round-trip.
func IsShovelStream(br *bufio.Reader) bool {
	peek, err := br.Peek(len(Magic))
	return err == nil && bytes.Equal(peek, Magic)
}
