package agent_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	cryptossh "golang.org/x/crypto/ssh"

	"haz.cat/sshovel/internal/agent"
	"haz.cat/sshovel/internal/agent/agenttest"
	sherr "haz.cat/sshovel/internal/errors"
)

func startAgent(t *testing.T) *agenttest.Server {
	t.Helper()
	srv, err := agenttest.New(filepath.Join(t.TempDir(), "agent.sock"))
	if err != nil {
		t.Fatalf("starting test agent: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestClientAgainstServer(t *testing.T) {
	srv := startAgent(t)
	blob, err := srv.AddEd25519Key("work laptop")
	if err != nil {
		t.Fatal(err)
	}

	c, err := agent.DialPath(srv.Path, agent.FingerprintSHA256)
	if err != nil {
		t.Fatalf("DialPath: %v", err)
	}
	defer c.Close()

	ids, err := c.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("got %d identities, want 1", len(ids))
	}
	id := ids[0]
	if id.Comment != "work laptop" || id.Algorithm != "ssh-ed25519" {
		t.Errorf("unexpected identity: %+v", id)
	}
	if !bytes.Equal(id.Blob, blob) {
		t.Errorf("blob mismatch")
	}

	// Repeated signing of the same message must be byte-identical: the
	// derived passphrase depends on it.
	msg := []byte("the message to sign")
	sig1, err := c.Sign(id, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sig2, err := c.Sign(id, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !bytes.Equal(sig1, sig2) {
		t.Errorf("signatures differ across invocations")
	}

	// The raw signature must verify against the public key.
	pub, err := cryptossh.ParsePublicKey(blob)
	if err != nil {
		t.Fatal(err)
	}
	if err := pub.Verify(msg, &cryptossh.Signature{Format: "ssh-ed25519", Blob: sig1}); err != nil {
		t.Errorf("signature does not verify: %v", err)
	}
}

func TestSignAfterKeyRemoved(t *testing.T) {
	srv := startAgent(t)
	if _, err := srv.AddEd25519Key("ephemeral"); err != nil {
		t.Fatal(err)
	}

	c, err := agent.DialPath(srv.Path, agent.FingerprintSHA256)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ids, err := c.List()
	if err != nil {
		t.Fatal(err)
	}
	srv.RemoveKey("ephemeral")

	_, err = c.Sign(ids[0], []byte("m"))
	if !errors.Is(err, sherr.ErrAgentRefused) {
		t.Errorf("got %v, want ErrAgentRefused", err)
	}
}
