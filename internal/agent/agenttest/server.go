// Package agenttest provides an in-process ssh-agent for tests.
//
// The server listens on a unix socket and holds ed25519 keys generated on
// demand, so round-trip tests run without a real ssh-agent. ed25519
// signatures are deterministic, which the passphrase derivation depends on.
package agenttest

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	cryptossh "golang.org/x/crypto/ssh"

	"haz.cat/sshovel/internal/wire"
)

const (
	agentFailure            = 5
	agentcRequestIdentities = 11
	agentIdentitiesAnswer   = 12
	agentcSignRequest       = 13
	agentSignResponse       = 14
)

type entry struct {
	signer  cryptossh.Signer
	comment string
}

// Server is a minimal ssh-agent serving a mutable set of keys.
type Server struct {
	// Path is the unix socket the server listens on.
	Path string

	ln net.Listener

	mu     sync.Mutex
	keys   []entry
	refuse bool
}

// New starts a server listening on the given socket path.
func New(path string) (*Server, error) {
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	s := &Server{Path: path, ln: ln}
	go s.serve()
	return s, nil
}

// Close stops the listener. Established connections are abandoned.
func (s *Server) Close() error {
	return s.ln.Close()
}

// AddEd25519Key generates a fresh ed25519 key under the given comment and
// returns its wire-format public key blob.
func (s *Server) AddEd25519Key(comment string) ([]byte, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	signer, err := cryptossh.NewSignerFromKey(priv)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.keys = append(s.keys, entry{signer: signer, comment: comment})
	s.mu.Unlock()
	return signer.PublicKey().Marshal(), nil
}

// RemoveKey forgets all keys with the given comment.
func (s *Server) RemoveKey(comment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.keys[:0]
	for _, e := range s.keys {
		if e.comment != comment {
			kept = append(kept, e)
		}
	}
	s.keys = kept
}

// RefuseSigning makes every subsequent sign request fail, as an agent does
// for keys it no longer holds or a user declining a confirmation.
func (s *Server) RefuseSigning(refuse bool) {
	s.mu.Lock()
	s.refuse = refuse
	s.mu.Unlock()
}

func (s *Server) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			for {
				if err := s.handle(conn); err != nil {
					return
				}
			}
		}()
	}
}

func (s *Server) handle(conn net.Conn) error {
	r := wire.NewReader(conn)
	size, err := r.Uint32()
	if err != nil {
		return err
	}
	if size == 0 {
		return errors.New("empty agent message")
	}
	msgType, err := r.Byte()
	if err != nil {
		return err
	}

	var rsp wire.Writer
	rsp.Byte(agentFailure)

	switch msgType {
	case agentcRequestIdentities:
		s.mu.Lock()
		rsp = wire.Writer{}
		rsp.Byte(agentIdentitiesAnswer)
		rsp.Uint32(uint32(len(s.keys)))
		for _, e := range s.keys {
			rsp.String(e.signer.PublicKey().Marshal())
			rsp.String([]byte(e.comment))
		}
		s.mu.Unlock()

	case agentcSignRequest:
		blob, err := r.String()
		if err != nil {
			return err
		}
		data, err := r.String()
		if err != nil {
			return err
		}
		flags, err := r.Uint32()
		if err != nil {
			return err
		}
		if sig, err := s.sign(blob, data, flags); err == nil {
			rsp = wire.Writer{}
			rsp.Byte(agentSignResponse)
			rsp.String(sig)
		}

	default:
		// Drain the body to keep the stream framed, then report failure.
		if _, err := r.Raw(int(size) - 1); err != nil {
			return fmt.Errorf("draining unsupported request type %d: %w", msgType, err)
		}
	}

	_, err = conn.Write(rsp.Framed())
	return err
}

// sign produces an ssh-formatted signature (algorithm tag plus raw bytes,
// without the outer length field).
func (s *Server) sign(blob, data []byte, flags uint32) ([]byte, error) {
	s.mu.Lock()
	refuse := s.refuse
	var signer cryptossh.Signer
	for _, e := range s.keys {
		if string(e.signer.PublicKey().Marshal()) == string(blob) {
			signer = e.signer
			break
		}
	}
	s.mu.Unlock()

	if refuse || signer == nil {
		return nil, errors.New("refused")
	}

	var sig *cryptossh.Signature
	var err error
	if flags != 0 {
		as, ok := signer.(cryptossh.AlgorithmSigner)
		if !ok {
			return nil, errors.New("flags unsupported for this key")
		}
		sig, err = as.SignWithAlgorithm(zeroReader{}, data, cryptossh.KeyAlgoRSASHA512)
	} else {
		sig, err = signer.Sign(zeroReader{}, data)
	}
	if err != nil {
		return nil, err
	}

	var w wire.Writer
	w.String([]byte(sig.Format))
	w.String(sig.Blob)
	return w.Bytes(), nil
}

// zeroReader keeps signatures deterministic for schemes that consume
// randomness (RSA-PSS would; PKCS#1 and ed25519 do not read it at all).
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

var _ io.Reader = zeroReader{}
