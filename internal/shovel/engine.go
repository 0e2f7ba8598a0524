package shovel

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"haz.cat/sshovel/internal/agent"
	"haz.cat/sshovel/internal/cipher"
	sherr "haz.cat/sshovel/internal/errors"
	logger "haz.cat/sshovel/internal/logging"
)

// Agent is the slice of the ssh-agent client the engine needs.
type Agent interface {
	List() ([]agent.Identity, error)
	Sign(id agent.Identity, msg []byte) ([]byte, error)
}

// Engine binds the agent, the container format, and a body cipher into
// the two shovel operations.
type Engine struct {
	Agent   Agent
	Options cipher.Options
	Log     logger.Logger

	// Resolve maps a cipher name to an implementation. Defaults to
	// cipher.Resolve; tests substitute their own.
	Resolve func(name string, opts cipher.Options) (cipher.Cipher, error)
}

func New(a Agent, opts cipher.Options, log logger.Logger) *Engine {
	return &Engine{
		Agent:   a,
		Options: opts,
		Log:     log,
		Resolve: cipher.Resolve,
	}
}

// Encrypt writes a shovel file for the given identity: a fresh 1024-byte
// nonce is signed by the agent, the signature digested into a passphrase,
// and the body handed to the named cipher.
func (e *Engine) Encrypt(in io.Reader, out io.Writer, id agent.Identity, cipherName string) error {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}
	return e.EncryptWithNonce(in, out, id, cipherName, nonce)
}

// EncryptWithNonce is Encrypt with a caller-supplied nonce. The edit
// workflow uses it to rewrite a container it just decrypted under the same
// nonce, which keeps the selector hash and passphrase stable.
func (e *Engine) EncryptWithNonce(in io.Reader, out io.Writer, id agent.Identity, cipherName string, nonce []byte) error {
	if len(nonce) != NonceSize {
		return fmt.Errorf("%w: nonce length %d, want %d", sherr.ErrMalformed, len(nonce), NonceSize)
	}
	c, err := e.Resolve(cipherName, e.Options)
	if err != nil {
		return err
	}

	passphrase, err := e.passphrase(id, nonce)
	if err != nil {
		return err
	}

	header := &Header{
		Cipher:   c.Name(),
		Nonce:    nonce,
		Selector: selector(nonce, id.Blob),
	}
	if err := WriteHeader(out, header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	e.Log.Debugf("header written, handing body to %s", c.Name())
	return c.Encrypt(in, out, passphrase)
}

// DecryptInfo reports the container parameters a decryption used, so a
// re-encryption can reuse them.
type DecryptInfo struct {
	Header   *Header
	Identity agent.Identity
}

// Decrypt parses the header, finds the identity whose selector hash
// matches, re-derives the passphrase, and hands the rest of the stream to
// the cipher the header names. Nothing past the header is read here.
func (e *Engine) Decrypt(in io.Reader, out io.Writer) (*DecryptInfo, error) {
	header, err := ReadHeader(in)
	if err != nil {
		return nil, err
	}
	c, err := e.Resolve(header.Cipher, e.Options)
	if err != nil {
		return nil, err
	}

	ids, err := e.Agent.List()
	if err != nil {
		return nil, err
	}
	id, err := matchSelector(ids, header)
	if err != nil {
		return nil, err
	}
	e.Log.Infof("using key %q (%s)", id.Comment, id.Fingerprint)

	passphrase, err := e.passphrase(id, header.Nonce)
	if err != nil {
		return nil, err
	}
	if err := c.Decrypt(in, out, passphrase); err != nil {
		return nil, err
	}
	return &DecryptInfo{Header: header, Identity: id}, nil
}

// passphrase derives the body cipher's secret: lowercase hex SHA-1 of the
// agent's signature over the nonce. Deterministic signature schemes make
// this reproducible across sessions.
func (e *Engine) passphrase(id agent.Identity, nonce []byte) (string, error) {
	signature, err := e.Agent.Sign(id, nonce)
	if err != nil {
		if errors.Is(err, sherr.ErrAgentRefused) {
			return "", fmt.Errorf("%w: agent will not sign with %q", sherr.ErrKeyMissing, id.Comment)
		}
		return "", err
	}
	sum := sha1.Sum(signature)
	return hex.EncodeToString(sum[:]), nil
}

func matchSelector(ids []agent.Identity, header *Header) (agent.Identity, error) {
	for _, id := range ids {
		if string(selector(header.Nonce, id.Blob)) == string(header.Selector) {
			return id, nil
		}
	}
	comments := make([]string, len(ids))
	for i, id := range ids {
		comments[i] = id.Comment
	}
	return agent.Identity{}, fmt.Errorf("%w: none of the agent's %d identities matches this file (have: %v)",
		sherr.ErrKeyMissing, len(ids), comments)
}

func selector(nonce, blob []byte) []byte {
	h := sha1.New()
	h.Write(nonce)
	h.Write(blob)
	return h.Sum(nil)
}
