package offcrypto

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestStandardRoundTrip(t *testing.T) {
	cases := []struct {
		alg       StandardAlgorithm
		password  string
		cleartext []byte
	}{
		{AES128, "pass", bytes.Repeat([]byte("x"), 32)},
		{AES192, "correct horse battery staple", []byte("hello, world")},
		{AES256, "", []byte{0x42}},
	}
	for _, c := range cases {
		info, pkg, err := EncryptStandard(c.cleartext, c.password, c.alg)
		if err != nil {
			t.Fatalf("EncryptStandard(%v): %v", c.alg, err)
		}
		got, err := DecryptStandard(info, pkg, c.password)
		if err != nil {
			t.Fatalf("DecryptStandard(%v): %v", c.alg, err)
		}
		if !bytes.Equal(got, c.cleartext) {
			t.Fatalf("round trip mismatch for %v: got %v want %v", c.alg, got, c.cleartext)
		}
	}
}

func TestStandardWrongPassword(t *testing.T) {
	info, pkg, err := EncryptStandard([]byte("secret contents"), "right", AES256)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecryptStandard(info, pkg, "wrong"); err != ErrInvalidPassword {
		t.Fatalf("err = %v, want ErrInvalidPassword", err)
	}
}

func TestStandardEmptyPasswordUsesVelvetSweatshop(t *testing.T) {
	info, pkg, err := EncryptStandard([]byte("data"), "", AES128)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecryptStandard(info, pkg, DefaultPassword)
	if err != nil {
		t.Fatalf("decrypt with %q: %v", DefaultPassword, err)
	}
	if string(got) != "data" {
		t.Fatalf("got %q, want %q", got, "data")
	}
}

// TestStandardS1SeedVector is the S1 interoperability seed vector:
// Standard AES-128, password "pass", cleartext 32 bytes 00..1F.
func TestStandardS1SeedVector(t *testing.T) {
	cleartext := make([]byte, 32)
	for i := range cleartext {
		cleartext[i] = byte(i)
	}
	info, pkg, err := EncryptStandard(cleartext, "pass", AES128)
	if err != nil {
		t.Fatal(err)
	}

	const (
		algAES128offset = 20
		keySizeOffset   = 28
	)
	if got := binary.LittleEndian.Uint32(info[algAES128offset : algAES128offset+4]); got != algAES128 {
		t.Fatalf("header.algId = %#x, want %#x", got, algAES128)
	}
	if got := binary.LittleEndian.Uint32(info[keySizeOffset : keySizeOffset+4]); got != 128 {
		t.Fatalf("header.keySize = %d, want 128", got)
	}

	desc, err := decodeStandardDescriptor(info)
	if err != nil {
		t.Fatalf("decodeStandardDescriptor: %v", err)
	}
	if len(desc.Salt) != 16 {
		t.Fatalf("verifier.saltSize = %d, want 16", len(desc.Salt))
	}
	if len(desc.EncryptedVerifierHash) != 32 {
		t.Fatalf("verifier.verifierHashSize = %d, want 32", len(desc.EncryptedVerifierHash))
	}

	got, err := DecryptStandard(info, pkg, "pass")
	if err != nil {
		t.Fatalf("DecryptStandard(%q): %v", "pass", err)
	}
	if !bytes.Equal(got, cleartext) {
		t.Fatalf("round trip mismatch: got %v want %v", got, cleartext)
	}

	if _, err := DecryptStandard(info, pkg, "Pass"); err != ErrInvalidPassword {
		t.Fatalf("DecryptStandard(%q) err = %v, want ErrInvalidPassword", "Pass", err)
	}
}

// TestStandardS2SeedVector is the S2 interoperability seed vector:
// Standard AES-256, empty password, cleartext is the single byte 0xFF.
// The EncryptedPackage stream must be exactly one zero-padded AES block
// (16 bytes) plus the leading u64le size prefix.
func TestStandardS2SeedVector(t *testing.T) {
	cleartext := []byte{0xFF}
	info, pkg, err := EncryptStandard(cleartext, "", AES256)
	if err != nil {
		t.Fatal(err)
	}
	if want := 8 + 16; len(pkg) != want {
		t.Fatalf("EncryptedPackage length = %d, want %d", len(pkg), want)
	}
	got, err := DecryptStandard(info, pkg, "")
	if err != nil {
		t.Fatalf("DecryptStandard: %v", err)
	}
	if !bytes.Equal(got, cleartext) {
		t.Fatalf("round trip mismatch: got %v want %v", got, cleartext)
	}
}

func TestStandardMalformedEnvelope(t *testing.T) {
	info, _, err := EncryptStandard([]byte("data"), "p", AES128)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecryptStandard(info, []byte{1, 2, 3}, "p"); err != ErrMalformedEnvelope {
		t.Fatalf("err = %v, want ErrMalformedEnvelope", err)
	}
}
