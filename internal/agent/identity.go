package agent

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"haz.cat/sshovel/internal/wire"
)

// FingerprintHash selects how identity fingerprints are rendered.
type FingerprintHash int

const (
	// FingerprintSHA256 renders "SHA256:" + unpadded base64, the modern
	// openssh default.
	FingerprintSHA256 FingerprintHash = iota

	// FingerprintMD5 renders "MD5:" + colon-separated lowercase hex pairs.
	FingerprintMD5
)

// ParseFingerprintHash maps the CLI spelling to a FingerprintHash.
func ParseFingerprintHash(name string) (FingerprintHash, error) {
	switch strings.ToLower(name) {
	case "sha256":
		return FingerprintSHA256, nil
	case "md5":
		return FingerprintMD5, nil
	}
	return 0, fmt.Errorf("unknown fingerprint hash %q (want md5 or sha256)", name)
}

// Identity is one public key held by the agent. Read-only after
// construction; its lifetime is bounded by a single invocation.
type Identity struct {
	// Blob is the wire-format public key, without the outer length field.
	Blob []byte

	// Comment is the agent's UTF-8 comment for the key.
	Comment string

	// Algorithm is the key type parsed from the blob's leading field,
	// e.g. "ssh-rsa" or "ssh-ed25519". Empty if the blob is unparseable.
	Algorithm string

	// Fingerprint is the displayable fingerprint of the blob.
	Fingerprint string
}

func parseIdentity(blob []byte, comment string, hash FingerprintHash) Identity {
	id := Identity{
		Blob:        blob,
		Comment:     comment,
		Fingerprint: fingerprint(hash, blob),
	}
	if algo, err := wire.NewReader(bytes.NewReader(blob)).String(); err == nil {
		id.Algorithm = string(algo)
	}
	return id
}

// SignFlags returns the sign-request flags appropriate for this key type.
// RSA keys ask for rsa-sha2-512; SHA-1-based ssh-rsa signatures are widely
// refused by modern agents.
func (id Identity) SignFlags() uint32 {
	if id.Algorithm == "ssh-rsa" {
		return FlagRSASHA2512
	}
	return FlagNone
}

func fingerprint(hash FingerprintHash, blob []byte) string {
	switch hash {
	case FingerprintMD5:
		sum := md5.Sum(blob)
		pairs := make([]string, len(sum))
		for i, b := range sum {
			pairs[i] = hex.EncodeToString([]byte{b})
		}
		return "MD5:" + strings.Join(pairs, ":")
	default:
		sum := sha256.Sum256(blob)
		return "SHA256:" + strings.TrimRight(base64.StdEncoding.EncodeToString(sum[:]), "=")
	}
}
