package ooxmlcrypt

import (
	"bytes"
	"testing"
)

func fastAgileOptions() AgileOptions {
	o := DefaultAgileOptions()
	o.SpinCount = 1000
	return o
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	cleartext := bytes.Repeat([]byte("PK\x03\x04 pretend zip bytes "), 200)
	cases := []EncryptOptions{
		{Profile: ProfileStandard, Standard: AES128},
		{Profile: ProfileStandard, Standard: AES192},
		{Profile: ProfileStandard, Standard: AES256},
		{Profile: ProfileAgile, Agile: fastAgileOptions()},
	}
	for _, opts := range cases {
		var out bytes.Buffer
		if err := Encrypt(&out, bytes.NewReader(cleartext), "hunter2", opts); err != nil {
			t.Fatalf("Encrypt(%+v): %v", opts, err)
		}
		var recovered bytes.Buffer
		if err := Decrypt(&recovered, bytes.NewReader(out.Bytes()), "hunter2"); err != nil {
			t.Fatalf("Decrypt(%+v): %v", opts, err)
		}
		if !bytes.Equal(recovered.Bytes(), cleartext) {
			t.Fatalf("round trip mismatch for %+v", opts)
		}
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	var out bytes.Buffer
	opts := EncryptOptions{Profile: ProfileAgile, Agile: fastAgileOptions()}
	if err := Encrypt(&out, bytes.NewReader([]byte("payload")), "correct", opts); err != nil {
		t.Fatal(err)
	}
	var recovered bytes.Buffer
	if err := Decrypt(&recovered, bytes.NewReader(out.Bytes()), "incorrect"); err != ErrInvalidPassword {
		t.Fatalf("err = %v, want ErrInvalidPassword", err)
	}
}

func TestDecryptNotACFBContainer(t *testing.T) {
	var recovered bytes.Buffer
	err := Decrypt(&recovered, bytes.NewReader([]byte("not a compound file")), "p")
	if err != ErrNotEncryptedPackage {
		t.Fatalf("err = %v, want ErrNotEncryptedPackage", err)
	}
}

func TestEmptyPasswordVelvetSweatshopFallback(t *testing.T) {
	var out bytes.Buffer
	opts := EncryptOptions{Profile: ProfileStandard, Standard: AES128}
	if err := Encrypt(&out, bytes.NewReader([]byte("doc body")), "", opts); err != nil {
		t.Fatal(err)
	}
	var a, b bytes.Buffer
	if err := Decrypt(&a, bytes.NewReader(out.Bytes()), ""); err != nil {
		t.Fatalf("decrypt with empty password: %v", err)
	}
	if err := Decrypt(&b, bytes.NewReader(out.Bytes()), "VelvetSweatshop"); err != nil {
		t.Fatalf("decrypt with VelvetSweatshop: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("empty password and VelvetSweatshop produced different plaintext")
	}
}
