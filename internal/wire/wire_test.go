package wire

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	sherr "haz.cat/sshovel/internal/errors"
)

func h(ascii string) []byte {
	s, err := hex.DecodeString(ascii)
	if err != nil {
		panic(fmt.Errorf("invalid hex %q: %v", ascii, err))
	}
	return s
}

func TestWriterFixture(t *testing.T) {
	var w Writer
	w.String([]byte("Sade"))
	w.Byte(58)
	w.Uint32(23500000)

	want := h("0000000d" + "00000004" + "53616465" + "3a" + "016694e0")
	if got := w.Framed(); !bytes.Equal(got, want) {
		t.Errorf("framed writer output: got %x, want %x", got, want)
	}
}

func TestReaderFixture(t *testing.T) {
	input := h("00000011" + "00000008" + "4f6c646669656c64" + "40" + "00282170")
	r := NewReader(bytes.NewReader(input))

	length, err := r.Uint32()
	if err != nil {
		t.Fatal(err)
	}
	if length != 17 {
		t.Errorf("outer length: got %d, want 17", length)
	}

	s, err := r.String()
	if err != nil {
		t.Fatal(err)
	}
	if string(s) != "Oldfield" {
		t.Errorf("string: got %q, want %q", s, "Oldfield")
	}

	b, err := r.Byte()
	if err != nil {
		t.Fatal(err)
	}
	if b != 64 {
		t.Errorf("byte: got %d, want 64", b)
	}

	v, err := r.Uint32()
	if err != nil {
		t.Fatal(err)
	}
	if v != 2630000 {
		t.Errorf("uint32: got %d, want 2630000", v)
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		b := byte(rng.Intn(256))
		v := rng.Uint32()
		s := make([]byte, rng.Intn(512))
		rng.Read(s)

		var w Writer
		w.Byte(b)
		w.Uint32(v)
		w.String(s)

		r := NewReader(bytes.NewReader(w.Bytes()))
		gotB, err := r.Byte()
		if err != nil {
			t.Fatal(err)
		}
		gotV, err := r.Uint32()
		if err != nil {
			t.Fatal(err)
		}
		gotS, err := r.String()
		if err != nil {
			t.Fatal(err)
		}
		if gotB != b || gotV != v || !bytes.Equal(gotS, s) {
			t.Fatalf("round trip mismatch: (%d, %d, %x) != (%d, %d, %x)",
				gotB, gotV, gotS, b, v, s)
		}
	}
}

func TestFramedEmpty(t *testing.T) {
	var w Writer
	if got, want := w.Framed(), h("00000000"); !bytes.Equal(got, want) {
		t.Errorf("empty frame: got %x, want %x", got, want)
	}
}

func TestReaderShortInput(t *testing.T) {
	for _, tt := range []struct {
		desc  string
		input []byte
		read  func(*Reader) error
	}{
		{"byte from empty", nil, func(r *Reader) error { _, err := r.Byte(); return err }},
		{"truncated uint32", h("0000"), func(r *Reader) error { _, err := r.Uint32(); return err }},
		{"truncated string body", h("00000004abcd"), func(r *Reader) error { _, err := r.String(); return err }},
		{"missing string length", h("000000"), func(r *Reader) error { _, err := r.String(); return err }},
	} {
		r := NewReader(bytes.NewReader(tt.input))
		err := tt.read(r)
		if !errors.Is(err, sherr.ErrMalformed) {
			t.Errorf("%s: got %v, want ErrMalformed", tt.desc, err)
		}
	}
}

func TestReaderOverflow(t *testing.T) {
	// Length field claims 17 MiB; the reader must refuse to allocate it.
	r := NewReader(bytes.NewReader(h("01100000")))
	_, err := r.String()
	if !errors.Is(err, sherr.ErrOverflow) {
		t.Errorf("got %v, want ErrOverflow", err)
	}
}
