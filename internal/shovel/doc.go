// Package shovel implements the sshovel container format and the engine
// that binds it to an ssh-agent and a body cipher.
//
// A shovel file is a fixed preamble (magic, version, cipher name, nonce,
// selector hash) followed by a body whose format belongs entirely to the
// named cipher. The symmetric passphrase is never stored: it is re-derived
// on every run by having the agent sign the file's nonce.
package shovel
