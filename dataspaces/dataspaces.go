// Package dataspaces synthesises the fixed \x06DataSpaces substorage tree
// (C5) that every OFFCRYPTO-encrypted OOXML container carries alongside
// its EncryptionInfo/EncryptedPackage streams. The byte layouts here are
// invariant across documents -- there is exactly one transform chain, so
// nothing here is parameterised by the chosen profile or algorithm.
package dataspaces

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

// StorageName is the substorage name every conformant writer uses,
// prefixed with the reserved 0x06 byte.
const StorageName = "\x06DataSpaces"

const transformGUID = "{FF9A3F03-56EF-4613-BDD5-5A41C1D07246}"
const transformName = "Microsoft.Container.EncryptionTransform"

func utf16leNulPadded(s string) []byte {
	r16 := utf16.Encode([]rune(s))
	b := make([]byte, 0, len(r16)*2+2)
	for _, u := range r16 {
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], u)
		b = append(b, tmp[:]...)
	}
	b = append(b, 0, 0)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

func putI32(buf *bytes.Buffer, v int32) {
	binary.Write(buf, binary.LittleEndian, v)
}

func putI16(buf *bytes.Buffer, v int16) {
	binary.Write(buf, binary.LittleEndian, v)
}

// Version returns the DataSpaces/Version stream contents.
func Version() []byte {
	buf := &bytes.Buffer{}
	putI16(buf, 0x3C)
	putI16(buf, 0)
	buf.Write(utf16leNulPadded("Microsoft.Container.DataSpaces"))
	putI32(buf, 1) // reader
	putI32(buf, 1) // updater
	putI32(buf, 1) // writer
	return buf.Bytes()
}

// DataSpaceMap returns the DataSpaces/DataSpaceMap stream contents,
// mapping the EncryptedPackage stream onto the StrongEncryptionDataSpace.
func DataSpaceMap() []byte {
	streamName := utf16leNulPadded("EncryptedPackage")
	dsName := utf16leNulPadded("StrongEncryptionDataSpace")

	entry := &bytes.Buffer{}
	putI32(entry, 1) // componentRefCount
	putI32(entry, 0) // streamRef (component type 0 = stream)
	putI32(entry, int32(len(streamName)))
	entry.Write(streamName)
	putI32(entry, int32(len(dsName)))
	entry.Write(dsName)

	buf := &bytes.Buffer{}
	putI32(buf, 8) // headerLen
	putI32(buf, 1) // entryCount
	putI32(buf, int32(4+entry.Len())) // totalLen includes itself
	buf.Write(entry.Bytes())
	return buf.Bytes()
}

// DataSpaceInfoStrongEncryption returns the
// DataSpaces/DataSpaceInfo/StrongEncryptionDataSpace stream contents.
func DataSpaceInfoStrongEncryption() []byte {
	name := utf16leNulPadded("StrongEncryptionTransform")
	buf := &bytes.Buffer{}
	putI32(buf, 8) // headerLen
	putI32(buf, 1) // entryCount
	putI32(buf, int32(len(name)))
	buf.Write(name)
	return buf.Bytes()
}

// TransformInfoPrimary returns the
// DataSpaces/TransformInfo/StrongEncryptionTransform/\x06Primary stream
// contents: the fixed transform identifier and name, plus the trailing
// version/reserved fields every writer emits identically.
func TransformInfoPrimary() []byte {
	guid := utf16leNulPadded(transformGUID)
	name := utf16leNulPadded(transformName)

	buf := &bytes.Buffer{}
	putI32(buf, int32(len(guid)))
	buf.Write(guid)
	putI32(buf, int32(len(name)))
	buf.Write(name)
	putI32(buf, 1) // reader
	putI32(buf, 1) // updater
	putI32(buf, 1) // writer
	putI32(buf, 0)
	putI32(buf, 0)
	putI32(buf, 0)
	putI32(buf, 0) // cipherMode
	putI32(buf, 4) // reserved
	return buf.Bytes()
}
