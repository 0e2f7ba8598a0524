package errors

import "errors"

// Agent errors indicate problems reaching or talking to the ssh-agent.
var (
	// ErrAgentUnreachable indicates the agent socket is missing or refused the connection.
	ErrAgentUnreachable = errors.New("ssh-agent is unreachable")

	// ErrProtocolViolation indicates the agent sent bytes the client did not expect.
	ErrProtocolViolation = errors.New("ssh-agent protocol violation")

	// ErrAgentRefused indicates the agent answered a sign request with a failure message.
	ErrAgentRefused = errors.New("ssh-agent refused to sign")
)

// Key errors indicate the required identity is not available.
var (
	// ErrKeyMissing indicates no identity matched, or the agent would not sign with it.
	ErrKeyMissing = errors.New("missing key")

	// ErrNoKeys indicates the agent holds no identities at all.
	ErrNoKeys = errors.New("ssh-agent has no keys")
)

// Cipher errors indicate failures in the child cipher process.
var (
	// ErrUnknownCipher indicates the cipher name does not resolve to an implementation.
	ErrUnknownCipher = errors.New("unknown cipher")

	// ErrCipherFailure indicates the child cipher process exited non-zero.
	ErrCipherFailure = errors.New("cipher process failed")

	// ErrPromptTimeout indicates the expected passphrase prompt never appeared.
	ErrPromptTimeout = errors.New("timed out waiting for prompt")

	// ErrUnexpectedEOF indicates the child closed its terminal before the prompt appeared.
	ErrUnexpectedEOF = errors.New("unexpected EOF from cipher process")
)

// Format errors indicate a malformed shovel container.
var (
	// ErrMalformed indicates the container header could not be parsed.
	ErrMalformed = errors.New("malformed shovel file")

	// ErrOverflow indicates a length field larger than the implementation will allocate.
	ErrOverflow = errors.New("length field too large")
)

// Workflow errors.
var (
	// ErrInterrupted indicates a signal aborted the operation; cleanup has run.
	ErrInterrupted = errors.New("interrupted")
)
