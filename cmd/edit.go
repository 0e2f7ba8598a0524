package cmd

import (
	"fmt"
	"os"

	"haz.cat/sshovel/internal/agent"
	"haz.cat/sshovel/internal/cipher"
	"haz.cat/sshovel/internal/configs"
	"haz.cat/sshovel/internal/editor"
	"haz.cat/sshovel/internal/shovel"
	"haz.cat/sshovel/internal/ui"
)

// runEdit decrypts a file, hands it to $EDITOR, and re-encrypts it in
// place. New and plaintext files are converted to shovel files.
func runEdit(settings *configs.Settings, path string) error {
	hash, err := agent.ParseFingerprintHash(effective(hashFlag, settings.FingerprintHash))
	if err != nil {
		return err
	}
	client, err := agent.Dial(hash)
	if err != nil {
		return err
	}
	defer client.Close()

	id, err := chooseIdentity(client, keyFlag)
	if err != nil {
		return err
	}
	Logger.Infof("using key %q (%s)", id.Comment, id.Fingerprint)

	engine := shovel.New(client, cipher.Options{
		ScryptArgs: scryptArgs(settings),
		Log:        Logger,
	}, Logger)

	workflow := &editor.Workflow{
		Engine:     engine,
		Identity:   id,
		CipherName: effective(cipherFlag, settings.Cipher),
		EditorCmd:  settings.Editor,
		Log:        Logger,
	}
	if err := workflow.Run(path); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, ui.Success.Sprint("✓")+" Edited "+ui.Path.Sprint(path))
	return nil
}
