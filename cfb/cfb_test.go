package cfb

import (
	"bytes"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	tree := []*Node{
		Stream("EncryptionInfo", []byte("hello-info")),
		Stream("EncryptedPackage", bytes.Repeat([]byte{0xAB}, 5000)),
		Storage("\x06DataSpaces",
			Stream("Version", []byte("v1")),
			Stream("DataSpaceMap", []byte("map")),
			Storage("DataSpaceInfo",
				Stream("StrongEncryptionDataSpace", []byte("sed")),
			),
			Storage("TransformInfo",
				Storage("StrongEncryptionTransform",
					Stream("\x06Primary", []byte("primary-transform")),
				),
			),
		),
	}

	buf := &bytes.Buffer{}
	if err := Write(buf, tree); err != nil {
		t.Fatal(err)
	}

	if !IsCFB(buf.Bytes()) {
		t.Fatal("expected output to have CFB signature")
	}

	doc, err := OpenBytes(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}

	names, err := doc.List(nil)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"EncryptionInfo": true, "EncryptedPackage": true, "\x06DataSpaces": true}
	if len(names) != len(want) {
		t.Fatalf("root List() = %v, want 3 entries", names)
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected root entry %q", n)
		}
	}

	r, err := doc.Open([]string{"EncryptionInfo"})
	if err != nil {
		t.Fatal(err)
	}
	got := readAll(t, r)
	if string(got) != "hello-info" {
		t.Errorf("EncryptionInfo = %q, want %q", got, "hello-info")
	}

	r, err = doc.Open([]string{"EncryptedPackage"})
	if err != nil {
		t.Fatal(err)
	}
	got = readAll(t, r)
	if len(got) != 5000 {
		t.Errorf("EncryptedPackage length = %d, want 5000", len(got))
	}

	if !doc.HasStorage([]string{"\x06DataSpaces"}) {
		t.Fatal("expected \\x06DataSpaces to be a storage")
	}

	r, err = doc.Open([]string{"\x06DataSpaces", "TransformInfo", "StrongEncryptionTransform", "\x06Primary"})
	if err != nil {
		t.Fatal(err)
	}
	got = readAll(t, r)
	if string(got) != "primary-transform" {
		t.Errorf("Primary = %q, want %q", got, "primary-transform")
	}
}

func TestNotCFB(t *testing.T) {
	_, err := OpenBytes([]byte("not a compound file"))
	if err != ErrNotCFB {
		t.Fatalf("err = %v, want ErrNotCFB", err)
	}
}

func readAll(t *testing.T, r interface{ Read([]byte) (int, error) }) []byte {
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			break
		}
	}
	return out
}
