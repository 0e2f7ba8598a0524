package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"haz.cat/sshovel/internal/agent"
	"haz.cat/sshovel/internal/cipher"
	"haz.cat/sshovel/internal/configs"
	"haz.cat/sshovel/internal/shovel"
)

// runStreams is the default operation: sniff the input and either encrypt
// or decrypt it into the output.
func runStreams(settings *configs.Settings, args []string) error {
	inPath, outPath := "-", "-"
	if len(args) > 0 {
		inPath = args[0]
	}
	if len(args) > 1 {
		outPath = args[1]
	}

	in, err := openInput(inPath)
	if err != nil {
		return err
	}
	defer in.Close()
	buffered := bufio.NewReader(in)

	// Direction is decided from the magic alone, before any agent
	// round-trip.
	decrypting := shovel.IsShovelStream(buffered)
	Logger.Debugf("input %s: shovel stream = %t", inPath, decrypting)

	hash, err := agent.ParseFingerprintHash(effective(hashFlag, settings.FingerprintHash))
	if err != nil {
		return err
	}
	client, err := agent.Dial(hash)
	if err != nil {
		return err
	}
	defer client.Close()

	engine := shovel.New(client, cipher.Options{
		ScryptArgs: scryptArgs(settings),
		Log:        Logger,
	}, Logger)

	out, err := openOutput(outPath)
	if err != nil {
		return err
	}

	if decrypting {
		err = decryptStream(engine, buffered, out, inPath)
	} else {
		err = encryptStream(engine, client, buffered, out, settings, inPath)
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

func decryptStream(engine *shovel.Engine, in io.Reader, out io.Writer, name string) error {
	spinner, cleanup := startSpinner("Decrypting "+displayName(name)+"...", verbose)
	defer cleanup()

	info, err := engine.Decrypt(in, out)
	if err != nil {
		return err
	}
	spinner.FinalMSG = color.GreenString("✓") + " Decrypted with key " +
		color.CyanString("'%s'", info.Identity.Comment)
	return nil
}

func encryptStream(engine *shovel.Engine, client *agent.Client, in io.Reader, out io.Writer,
	settings *configs.Settings, name string) error {
	id, err := chooseIdentity(client, keyFlag)
	if err != nil {
		return err
	}
	Logger.Infof("using key %q (%s)", id.Comment, id.Fingerprint)

	cipherName := effective(cipherFlag, settings.Cipher)
	spinner, cleanup := startSpinner("Encrypting "+displayName(name)+" with "+cipherName+"...", verbose)
	defer cleanup()

	if err := engine.Encrypt(in, out, id, cipherName); err != nil {
		return err
	}
	spinner.FinalMSG = color.GreenString("✓") + " Encrypted for key " +
		color.CyanString("'%s'", id.Comment)
	return nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s exists, but is a directory", path)
	}
	return f, nil
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		// Closing stdout is not ours to do.
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("opening output: %w", err)
	}
	return f, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func displayName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return path
}
