package cmd

import (
	"fmt"
	"strings"

	"haz.cat/sshovel/internal/agent"
	sherr "haz.cat/sshovel/internal/errors"
)

// chooseIdentity picks the identity a new encryption signs with. With no
// match string, the agent's first key is used; with one, exactly one
// comment must contain it.
func chooseIdentity(client *agent.Client, match string) (agent.Identity, error) {
	ids, err := client.List()
	if err != nil {
		return agent.Identity{}, err
	}
	if len(ids) == 0 {
		return agent.Identity{}, sherr.ErrNoKeys
	}
	if match == "" {
		return ids[0], nil
	}
	return matchIdentity(ids, match)
}

func matchIdentity(ids []agent.Identity, match string) (agent.Identity, error) {
	var matches []agent.Identity
	for _, id := range ids {
		if strings.Contains(id.Comment, match) {
			matches = append(matches, id)
		}
	}
	switch {
	case len(matches) == 0:
		return agent.Identity{}, fmt.Errorf("no ssh key matched %q; known keys: %s",
			match, strings.Join(comments(ids), ", "))
	case len(matches) > 1:
		return agent.Identity{}, fmt.Errorf("more than one key matched %q: %s",
			match, strings.Join(comments(matches), ", "))
	}
	return matches[0], nil
}

func comments(ids []agent.Identity) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = fmt.Sprintf("%q", id.Comment)
	}
	return out
}
