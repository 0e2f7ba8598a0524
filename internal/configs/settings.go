package configs

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables consulted at startup. Command-line flags override
// the environment, which overrides the config file, which overrides the
// built-in defaults.
const (
	EnvCipher = "SSHOVEL_CIPHER"
	EnvEditor = "EDITOR"
)

const (
	defaultCipher = "scrypt"
	defaultHash   = "sha256"
	defaultEditor = "nano"
)

// Settings are the resolved defaults for one invocation.
type Settings struct {
	// Cipher names the body cipher used for new encryptions.
	Cipher string `toml:"cipher"`

	// FingerprintHash is "md5" or "sha256".
	FingerprintHash string `toml:"fingerprint_hash"`

	// Editor is the command run by the edit workflow.
	Editor string `toml:"editor"`

	// ScryptArgs tune scrypt encryption, e.g. ["-t", "5"].
	ScryptArgs []string `toml:"scrypt_args"`
}

// ConfigPath returns the per-user config file location.
func ConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(dir, "sshovel", "config.toml"), nil
}

// Load resolves settings from the config file and the environment. A
// missing config file is not an error.
func Load() (*Settings, error) {
	s := &Settings{
		Cipher:          defaultCipher,
		FingerprintHash: defaultHash,
		Editor:          defaultEditor,
	}

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(path, s); err != nil {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
		}
	}

	if cipherName := os.Getenv(EnvCipher); cipherName != "" {
		s.Cipher = cipherName
	}
	if editor := os.Getenv(EnvEditor); editor != "" {
		s.Editor = editor
	}
	return s, nil
}
