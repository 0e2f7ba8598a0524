// Package agent implements the client side of the ssh-agent protocol, see
// https://datatracker.ietf.org/doc/html/draft-miller-ssh-agent.
//
// Only the two operations sshovel needs are provided: listing the agent's
// identities and requesting a signature over a message.
package agent

import (
	"fmt"
	"io"
	"net"
	"os"

	sherr "haz.cat/sshovel/internal/errors"
	"haz.cat/sshovel/internal/wire"
)

// Message types and sign-request flags from the agent protocol.
const (
	agentFailure            = 5
	agentcRequestIdentities = 11
	agentIdentitiesAnswer   = 12
	agentcSignRequest       = 13
	agentSignResponse       = 14

	FlagNone       uint32 = 0
	FlagRSASHA2256 uint32 = 2
	FlagRSASHA2512 uint32 = 4
)

// EnvAuthSock names the environment variable holding the agent socket path.
const EnvAuthSock = "SSH_AUTH_SOCK"

// Client speaks the agent protocol over a stream connection.
type Client struct {
	conn        io.ReadWriter
	fingerprint FingerprintHash
}

// Dial connects to the agent named by SSH_AUTH_SOCK. An empty or unset
// variable is reported the same way as a connection failure.
func Dial(hash FingerprintHash) (*Client, error) {
	path := os.Getenv(EnvAuthSock)
	if path == "" {
		return nil, fmt.Errorf("%w: %s is empty or unset", sherr.ErrAgentUnreachable, EnvAuthSock)
	}
	return DialPath(path, hash)
}

// DialPath connects to an agent socket at an explicit path.
func DialPath(path string, hash FingerprintHash) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sherr.ErrAgentUnreachable, err)
	}
	return NewClient(conn, hash), nil
}

// NewClient wraps an existing connection. Useful for tests.
func NewClient(conn io.ReadWriter, hash FingerprintHash) *Client {
	return &Client{conn: conn, fingerprint: hash}
}

// Close closes the underlying connection if it supports closing.
func (c *Client) Close() error {
	if closer, ok := c.conn.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// request sends a framed request and returns the reply type and a reader
// positioned at the reply body.
func (c *Client) request(req *wire.Writer) (byte, *wire.Reader, error) {
	if _, err := c.conn.Write(req.Framed()); err != nil {
		return 0, nil, fmt.Errorf("%w: write: %v", sherr.ErrAgentUnreachable, err)
	}
	r := wire.NewReader(c.conn)
	if _, err := r.Uint32(); err != nil {
		return 0, nil, protocolErr(err)
	}
	rspType, err := r.Byte()
	if err != nil {
		return 0, nil, protocolErr(err)
	}
	return rspType, r, nil
}

// List requests the agent's identities.
func (c *Client) List() ([]Identity, error) {
	var req wire.Writer
	req.Byte(agentcRequestIdentities)

	rspType, r, err := c.request(&req)
	if err != nil {
		return nil, err
	}
	if rspType != agentIdentitiesAnswer {
		return nil, fmt.Errorf("%w: unexpected response type %d", sherr.ErrProtocolViolation, rspType)
	}
	count, err := r.Uint32()
	if err != nil {
		return nil, protocolErr(err)
	}
	list := make([]Identity, 0, count)
	for i := uint32(0); i < count; i++ {
		blob, err := r.String()
		if err != nil {
			return nil, protocolErr(err)
		}
		comment, err := r.String()
		if err != nil {
			return nil, protocolErr(err)
		}
		list = append(list, parseIdentity(blob, string(comment), c.fingerprint))
	}
	return list, nil
}

// Sign asks the agent to sign msg with the given identity and returns the
// raw signature bytes, with the wire wrapper and algorithm tag stripped.
// RSA identities request rsa-sha2-512; everything else uses the legacy
// flag. If the agent declines, the error wraps ErrAgentRefused.
func (c *Client) Sign(id Identity, msg []byte) ([]byte, error) {
	var req wire.Writer
	req.Byte(agentcSignRequest)
	req.String(id.Blob)
	req.String(msg)
	req.Uint32(id.SignFlags())

	rspType, r, err := c.request(&req)
	if err != nil {
		return nil, err
	}
	if rspType == agentFailure {
		return nil, fmt.Errorf("%w for %q", sherr.ErrAgentRefused, id.Comment)
	}
	if rspType != agentSignResponse {
		return nil, fmt.Errorf("%w: unexpected response type %d", sherr.ErrProtocolViolation, rspType)
	}
	// The u32 here is the length of the outer signature wrapper; the two
	// strings inside it are the algorithm tag and the signature proper.
	if _, err := r.Uint32(); err != nil {
		return nil, protocolErr(err)
	}
	if _, err := r.String(); err != nil {
		return nil, protocolErr(err)
	}
	signature, err := r.String()
	if err != nil {
		return nil, protocolErr(err)
	}
	return signature, nil
}

func protocolErr(err error) error {
	return fmt.Errorf("%w: %v", sherr.ErrProtocolViolation, err)
}
