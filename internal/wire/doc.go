// Package wire implements the length-prefixed, big-endian binary format
// shared by the ssh-agent protocol and the shovel container header.
//
// The way values are serialized follows
// https://www.rfc-editor.org/rfc/rfc4251#section-5: single bytes, 32-bit
// big-endian unsigned integers, and strings framed as a u32 length followed
// by that many raw bytes.
package wire
