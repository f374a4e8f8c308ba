package wire

import (
	"bytes"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	in := ClientHello{
		Version:     3,
		MethodsMask: MethodAnonymous | MethodSRP,
		CipherMask:  CipherChaCha20Poly1305,
	}
	for i := range in.NonceC {
		in.NonceC[i] = byte(i)
	}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, &in); err != nil {
		t.Fatal(err)
	}

	var out ClientHello
	if err := ReadFrame(&buf, &out); err != nil {
		t.Fatal(err)
	}

	if out != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestRawFrameRoundTrip(t *testing.T) {
	body, err := Encode(&Result{Status: StatusAccessDenied})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteRawFrame(&buf, body); err != nil {
		t.Fatal(err)
	}

	got, err := ReadRawFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("raw frame mismatch: got %x, want %x", got, body)
	}

	var res Result
	if err := Decode(got, &res); err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusAccessDenied {
		t.Fatalf("decoded status = %d, want %d", res.Status, StatusAccessDenied)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	hdr[0] = 0xFF
	hdr[1] = 0xFF
	hdr[2] = 0xFF
	hdr[3] = 0xFF
	buf.Write(hdr[:])

	var out ClientHello
	if err := ReadFrame(&buf, &out); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}
