package cipher

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	sherr "haz.cat/sshovel/internal/errors"
	logger "haz.cat/sshovel/internal/logging"
)

// OpenSSL encrypts with `openssl aes-256-cbc`. The passphrase travels over
// an anonymous pipe exposed to the child as /dev/fd/3, so it never touches
// the command line or the environment.
type OpenSSL struct {
	log logger.Logger
}

func (o *OpenSSL) Name() string { return "openssl" }

func (o *OpenSSL) Encrypt(in io.Reader, out io.Writer, passphrase string) error {
	return o.run("-e", in, out, passphrase)
}

func (o *OpenSSL) Decrypt(in io.Reader, out io.Writer, passphrase string) error {
	return o.run("-d", in, out, passphrase)
}

func (o *OpenSSL) run(op string, in io.Reader, out io.Writer, passphrase string) error {
	keyR, keyW, err := os.Pipe()
	if err != nil {
		return err
	}
	defer keyR.Close()

	// The passphrase fits in the pipe buffer, so this cannot block; the
	// child sees EOF after reading it.
	if _, err := keyW.WriteString(passphrase); err != nil {
		keyW.Close()
		return err
	}
	if err := keyW.Close(); err != nil {
		return err
	}

	// -a requests base64 armor, -salt a random salt in the body.
	cmd := exec.Command("openssl", "aes-256-cbc", op, "-a", "-salt", "-kfile", "/dev/fd/3")
	cmd.Stdin = in
	cmd.Stdout = out
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.ExtraFiles = []*os.File{keyR}

	o.log.Debugf("running %s", strings.Join(cmd.Args, " "))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%w: openssl %s: %v: %s", sherr.ErrCipherFailure, op, err, msg)
		}
		return fmt.Errorf("%w: openssl %s: %v", sherr.ErrCipherFailure, op, err)
	}
	return nil
}
