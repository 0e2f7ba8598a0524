// Package cipher provides the pluggable body ciphers for shovel files.
//
// A cipher is an encrypt/decrypt pair over opaque byte streams, realized
// by spawning a child process and handing it the passphrase: openssl reads
// it from an inherited file descriptor, scrypt is prompted interactively
// on a pseudo-terminal.
package cipher
