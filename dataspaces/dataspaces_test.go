package dataspaces

import (
	"encoding/binary"
	"testing"
)

func TestVersionLayout(t *testing.T) {
	b := Version()
	if len(b)%2 != 0 {
		t.Fatalf("Version() length %d not even", len(b))
	}
	major := int16(binary.LittleEndian.Uint16(b[0:2]))
	if major != 0x3C {
		t.Fatalf("major = %#x, want 0x3C", major)
	}
	minor := int16(binary.LittleEndian.Uint16(b[2:4]))
	if minor != 0 {
		t.Fatalf("minor = %d, want 0", minor)
	}
	tail := b[len(b)-12:]
	reader := binary.LittleEndian.Uint32(tail[0:4])
	updater := binary.LittleEndian.Uint32(tail[4:8])
	writer := binary.LittleEndian.Uint32(tail[8:12])
	if reader != 1 || updater != 1 || writer != 1 {
		t.Fatalf("reader/updater/writer = %d/%d/%d, want 1/1/1", reader, updater, writer)
	}
}

func TestDataSpaceMapReferencesEncryptedPackage(t *testing.T) {
	b := DataSpaceMap()
	headerLen := binary.LittleEndian.Uint32(b[0:4])
	entryCount := binary.LittleEndian.Uint32(b[4:8])
	if headerLen != 8 || entryCount != 1 {
		t.Fatalf("header = %d/%d, want 8/1", headerLen, entryCount)
	}
	if len(b) <= 12 {
		t.Fatalf("DataSpaceMap too short: %d bytes", len(b))
	}
}

func TestFixedStreamsAreDeterministic(t *testing.T) {
	if string(Version()) != string(Version()) {
		t.Fatal("Version not deterministic")
	}
	if string(TransformInfoPrimary()) != string(TransformInfoPrimary()) {
		t.Fatal("TransformInfoPrimary not deterministic")
	}
}

func TestTransformInfoPrimaryFieldCounts(t *testing.T) {
	b := TransformInfoPrimary()
	// trailing 8 x i32 fields: reader, updater, writer, 3 zeros, cipherMode, reserved
	tail := b[len(b)-32:]
	reserved := binary.LittleEndian.Uint32(tail[28:32])
	if reserved != 4 {
		t.Fatalf("reserved = %d, want 4", reserved)
	}
	cipherMode := binary.LittleEndian.Uint32(tail[24:28])
	if cipherMode != 0 {
		t.Fatalf("cipherMode = %d, want 0", cipherMode)
	}
}
