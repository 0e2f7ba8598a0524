package editor

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"haz.cat/sshovel/internal/agent"
	"haz.cat/sshovel/internal/agent/agenttest"
	"haz.cat/sshovel/internal/cipher"
	logger "haz.cat/sshovel/internal/logging"
	"haz.cat/sshovel/internal/shovel"
)

// xorCipher mirrors the engine tests' stand-in for a child-process cipher.
type xorCipher struct {
	name string
}

func (c *xorCipher) Name() string { return c.name }

func (c *xorCipher) Encrypt(in io.Reader, out io.Writer, passphrase string) error {
	return c.pump(in, out, passphrase)
}

func (c *xorCipher) Decrypt(in io.Reader, out io.Writer, passphrase string) error {
	return c.pump(in, out, passphrase)
}

func (c *xorCipher) pump(in io.Reader, out io.Writer, passphrase string) error {
	key := []byte(passphrase)
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	for i := range data {
		data[i] ^= key[i%len(key)]
	}
	_, err = out.Write(data)
	return err
}

// script writes an executable shell script and returns a command string
// that the workflow can use as its editor.
func script(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "editor.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0700); err != nil {
		t.Fatal(err)
	}
	return path
}

func testWorkflow(t *testing.T, editorCmd string) *Workflow {
	t.Helper()
	srv, err := agenttest.New(filepath.Join(t.TempDir(), "agent.sock"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Close() })
	if _, err := srv.AddEd25519Key("editor test key"); err != nil {
		t.Fatal(err)
	}

	client, err := agent.DialPath(srv.Path, agent.FingerprintSHA256)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })

	engine := shovel.New(client, cipher.Options{}, logger.Logger{})
	engine.Resolve = func(name string, opts cipher.Options) (cipher.Cipher, error) {
		return &xorCipher{name: strings.ToLower(name)}, nil
	}

	ids, err := client.List()
	if err != nil {
		t.Fatal(err)
	}
	return &Workflow{
		Engine:     engine,
		Identity:   ids[0],
		CipherName: "openssl",
		EditorCmd:  editorCmd,
	}
}

func decryptFile(t *testing.T, w *Workflow, path string) string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var out bytes.Buffer
	if _, err := w.Engine.Decrypt(f, &out); err != nil {
		t.Fatalf("decrypting %s: %v", path, err)
	}
	return out.String()
}

func isShovelFile(t *testing.T, path string) bool {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.HasPrefix(data, shovel.Magic)
}

func TestEditPlaintextAppends(t *testing.T) {
	w := testWorkflow(t, script(t, `printf 'DATA' >> "$1"`))

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("original"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := w.Run(path); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !isShovelFile(t, path) {
		t.Fatal("edited file is not a shovel file")
	}
	if got := decryptFile(t, w, path); got != "originalDATA" {
		t.Errorf("decrypted content: got %q, want %q", got, "originalDATA")
	}
}

func TestNoopEditOnCiphertextSkipsReencryption(t *testing.T) {
	appender := testWorkflow(t, script(t, `printf 'DATA' >> "$1"`))

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("original"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := appender.Run(path); err != nil {
		t.Fatal(err)
	}

	// Backdate the ciphertext so any rewrite would be visible.
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
	before, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	noop := testWorkflow(t, script(t, `touch "$1"`))
	noop.Engine = appender.Engine // same agent holds the key
	if err := noop.Run(path); err != nil {
		t.Fatalf("noop Run: %v", err)
	}

	after, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("unchanged ciphertext was rewritten")
	}
}

func TestNoopEditOnPlaintextStillEncrypts(t *testing.T) {
	w := testWorkflow(t, script(t, `touch "$1"`))

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("plain"), 0600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	if err := w.Run(path); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !isShovelFile(t, path) {
		t.Error("plaintext was not converted to a shovel file")
	}
	after, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().After(old) {
		t.Error("conversion did not advance the mtime")
	}
	if got := decryptFile(t, w, path); got != "plain" {
		t.Errorf("decrypted content: got %q, want %q", got, "plain")
	}
}

func TestEditNewFile(t *testing.T) {
	w := testWorkflow(t, script(t, `printf 'DATA' > "$1"`))

	path := filepath.Join(t.TempDir(), "fresh.txt")
	if err := w.Run(path); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !isShovelFile(t, path) {
		t.Fatal("new file is not a shovel file")
	}
	if got := decryptFile(t, w, path); got != "DATA" {
		t.Errorf("decrypted content: got %q, want %q", got, "DATA")
	}
}

func TestEditNewFileNothingWritten(t *testing.T) {
	w := testWorkflow(t, script(t, `:`))

	path := filepath.Join(t.TempDir(), "fresh.txt")
	if err := w.Run(path); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("an empty edit still created the target")
	}
}

func TestCiphertextReencryptReusesNonce(t *testing.T) {
	w := testWorkflow(t, script(t, `printf 'more' >> "$1"`))

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("v1"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := w.Run(path); err != nil {
		t.Fatal(err)
	}
	headerBefore := readHeader(t, path)

	if err := w.Run(path); err != nil {
		t.Fatal(err)
	}
	headerAfter := readHeader(t, path)

	if !bytes.Equal(headerBefore.Nonce, headerAfter.Nonce) {
		t.Error("re-encryption did not reuse the nonce")
	}
	if !bytes.Equal(headerBefore.Selector, headerAfter.Selector) {
		t.Error("re-encryption changed the selector hash")
	}
	if got := decryptFile(t, w, path); got != "v1moremore" {
		t.Errorf("decrypted content: got %q, want %q", got, "v1moremore")
	}
}

func TestFailingEditorLeavesTargetAlone(t *testing.T) {
	w := testWorkflow(t, script(t, `exit 1`))

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("untouched"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := w.Run(path); err == nil {
		t.Fatal("Run succeeded despite the editor failing")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "untouched" {
		t.Errorf("target modified: %q", data)
	}
}

func TestEditDirectory(t *testing.T) {
	w := testWorkflow(t, script(t, `:`))
	err := w.Run(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "directory") {
		t.Errorf("got %v, want a directory error", err)
	}
}

func TestTempDirRemoved(t *testing.T) {
	// The editor records where it ran; that directory must be gone after.
	record := filepath.Join(t.TempDir(), "tmpdir.txt")
	w := testWorkflow(t, script(t, `dirname "$1" > `+record+`; printf 'x' >> "$1"`))

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("data"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := w.Run(path); err != nil {
		t.Fatal(err)
	}

	recorded, err := os.ReadFile(record)
	if err != nil {
		t.Fatal(err)
	}
	dir := strings.TrimSpace(string(recorded))
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("tempdir %s still exists", dir)
	}
}

func readHeader(t *testing.T, path string) *shovel.Header {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	h, err := shovel.ReadHeader(f)
	if err != nil {
		t.Fatal(err)
	}
	return h
}
