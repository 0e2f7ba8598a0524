package cmd

import (
	"strings"
	"testing"

	"haz.cat/sshovel/internal/agent"
)

func identities(comments ...string) []agent.Identity {
	ids := make([]agent.Identity, len(comments))
	for i, c := range comments {
		ids[i] = agent.Identity{Comment: c, Blob: []byte(c)}
	}
	return ids
}

func TestMatchIdentityUnique(t *testing.T) {
	ids := identities("alice@laptop", "bob@desktop", "carol@yubikey")
	id, err := matchIdentity(ids, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if id.Comment != "bob@desktop" {
		t.Errorf("matched %q", id.Comment)
	}
}

func TestMatchIdentitySubstring(t *testing.T) {
	ids := identities("deploy key (staging)", "deploy key (production)")
	id, err := matchIdentity(ids, "production")
	if err != nil {
		t.Fatal(err)
	}
	if id.Comment != "deploy key (production)" {
		t.Errorf("matched %q", id.Comment)
	}
}

func TestMatchIdentityNone(t *testing.T) {
	ids := identities("alice@laptop", "bob@desktop")
	_, err := matchIdentity(ids, "mallory")
	if err == nil {
		t.Fatal("expected an error")
	}
	// The error lists the known keys, so the user can fix the match.
	if !strings.Contains(err.Error(), "alice@laptop") || !strings.Contains(err.Error(), "bob@desktop") {
		t.Errorf("error does not list known keys: %v", err)
	}
}

func TestMatchIdentityAmbiguousPair(t *testing.T) {
	// Exactly two matches is already ambiguous.
	ids := identities("work laptop", "work desktop")
	_, err := matchIdentity(ids, "work")
	if err == nil {
		t.Fatal("expected an error for two matches")
	}
	if !strings.Contains(err.Error(), "more than one key") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMatchIdentityAmbiguousMany(t *testing.T) {
	ids := identities("k1", "k2", "k3")
	if _, err := matchIdentity(ids, "k"); err == nil {
		t.Fatal("expected an error for three matches")
	}
}
