package secret

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	sealer, err := NewAESGCMSealer(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("NewAESGCMSealer err: %v", err)
	}

	sealed, err := sealer.Seal("sk-student-key")
	if err != nil {
		t.Fatalf("Seal err: %v", err)
	}
	if sealed == "sk-student-key" {
		t.Fatal("sealed value must not equal plaintext")
	}

	opened, err := sealer.Open(sealed)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	if opened != "sk-student-key" {
		t.Fatalf("expected original value, got %q", opened)
	}
}

func TestOpenRejectsForeignKey(t *testing.T) {
	first, _ := NewAESGCMSealer(bytes.Repeat([]byte{1}, 16))
	second, _ := NewAESGCMSealer(bytes.Repeat([]byte{2}, 16))

	sealed, err := first.Seal("value")
	if err != nil {
		t.Fatalf("Seal err: %v", err)
	}
	if _, err := second.Open(sealed); err == nil {
		t.Fatal("expected decrypt failure with a different key")
	}
}

func TestNewAESGCMSealerFromBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{9}, 24))
	if _, err := NewAESGCMSealerFromBase64(encoded); err != nil {
		t.Fatalf("expected valid key, got %v", err)
	}
	if _, err := NewAESGCMSealerFromBase64("not base64!"); err == nil {
		t.Fatal("expected decode error")
	}
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := NewAESGCMSealerFromBase64(short); err == nil {
		t.Fatal("expected invalid key size error")
	}
}
