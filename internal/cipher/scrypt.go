package cipher

import (
	"fmt"
	"io"
	"strings"
	"time"

	sherr "haz.cat/sshovel/internal/errors"
	"haz.cat/sshovel/internal/expect"
	logger "haz.cat/sshovel/internal/logging"
)

// Scrypt drives the tarsnap `scrypt` tool. scrypt insists on reading its
// passphrase from a terminal, so the child runs under a pty and the
// prompts are answered by the expect helper.
type Scrypt struct {
	// encryptArgs tune the encryption work factor. Decryption takes no
	// options; scrypt stores its parameters in its own header.
	encryptArgs []string

	log logger.Logger
}

const (
	scryptPrompt  = "passphrase: "
	promptTimeout = time.Second

	// Bound on the data phase. scrypt's key derivation plus streaming the
	// body takes seconds, not minutes; a stuck child should not hang us
	// forever.
	copyTimeout = 10 * time.Minute
)

func (s *Scrypt) Name() string { return "scrypt" }

func (s *Scrypt) Encrypt(in io.Reader, out io.Writer, passphrase string) error {
	argv := append([]string{"enc"}, s.encryptArgs...)
	argv = append(argv, "-")
	// Encryption prompts twice: once to enter, once to confirm.
	return s.run(argv, 2, in, out, passphrase)
}

func (s *Scrypt) Decrypt(in io.Reader, out io.Writer, passphrase string) error {
	return s.run([]string{"dec", "-"}, 1, in, out, passphrase)
}

func (s *Scrypt) run(argv []string, prompts int, in io.Reader, out io.Writer, passphrase string) (err error) {
	s.log.Debugf("running scrypt %s", strings.Join(argv, " "))
	p, err := expect.Spawn("scrypt", argv...)
	if err != nil {
		return fmt.Errorf("%w: spawning scrypt: %v", sherr.ErrCipherFailure, err)
	}
	defer func() {
		ferr := p.Finish()
		if err == nil && ferr != nil {
			err = fmt.Errorf("%w: scrypt: %v: %s",
				sherr.ErrCipherFailure, ferr, strings.TrimSpace(string(p.Transcript())))
		}
	}()

	for i := 0; i < prompts; i++ {
		if err := p.Expect(scryptPrompt, promptTimeout); err != nil {
			return err
		}
		if err := p.Send([]byte(passphrase + "\n")); err != nil {
			return fmt.Errorf("%w: sending passphrase: %v", sherr.ErrCipherFailure, err)
		}
	}
	if err := p.Copy(in, out, copyTimeout); err != nil {
		return fmt.Errorf("%w: scrypt: %v", sherr.ErrCipherFailure, err)
	}
	return nil
}
