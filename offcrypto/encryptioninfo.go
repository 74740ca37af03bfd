package offcrypto

// Binary EncryptionInfo layout for the Standard profile, MS-OFFCRYPTO
// §2.3.4.5-2.3.4.7.

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

// StandardAlgorithm selects the AES key size used by the Standard profile.
type StandardAlgorithm int

const (
	AES128 StandardAlgorithm = iota
	AES192
	AES256
)

func (a StandardAlgorithm) keyBits() (int, error) {
	switch a {
	case AES128:
		return 128, nil
	case AES192:
		return 192, nil
	case AES256:
		return 256, nil
	}
	return 0, ErrUnsupportedAlgorithm
}

func (a StandardAlgorithm) algID() (uint32, error) {
	switch a {
	case AES128:
		return algAES128, nil
	case AES192:
		return algAES192, nil
	case AES256:
		return algAES256, nil
	}
	return 0, ErrUnsupportedAlgorithm
}

func standardAlgorithmFromAlgID(id uint32) (StandardAlgorithm, error) {
	switch id {
	case algAES128:
		return AES128, nil
	case algAES192:
		return AES192, nil
	case algAES256:
		return AES256, nil
	}
	return 0, ErrUnsupportedAlgorithm
}

const (
	algAES128      = 0x660E
	algAES192      = 0x660F
	algAES256      = 0x6610
	algIDHashSHA1  = 0x8004
	providerTypeAES = 0x18

	standardMajor = 4
	standardMinor = 2

	flagCryptoAPI = 0x04
	flagDocProps  = 0x08
	flagExternal  = 0x10
	flagAES       = 0x20

	standardHeaderFlags = flagAES | flagCryptoAPI // 0x24
)

// CspName is the exact provider name literal required by MS-OFFCRYPTO;
// conformant readers reject any variation.
const CspName = "Microsoft Enhanced RSA and AES Cryptographic Provider"

// standardDescriptor is the fully decoded Standard binary descriptor.
type standardDescriptor struct {
	Algorithm              StandardAlgorithm
	Salt                   []byte // 16 bytes
	EncryptedVerifier      []byte // 16 bytes
	EncryptedVerifierHash  []byte // 32 bytes
}

func utf16leNulPadded(s string) []byte {
	r16 := utf16.Encode([]rune(s))
	b := make([]byte, 0, len(r16)*2+2)
	for _, u := range r16 {
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], u)
		b = append(b, tmp[:]...)
	}
	b = append(b, 0, 0) // null terminator
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

// encodeStandardDescriptor serialises the Standard EncryptionInfo stream.
func encodeStandardDescriptor(d standardDescriptor) ([]byte, error) {
	algID, err := d.Algorithm.algID()
	if err != nil {
		return nil, err
	}
	keyBits, err := d.Algorithm.keyBits()
	if err != nil {
		return nil, err
	}

	csp := utf16leNulPadded(CspName)

	header := &bytes.Buffer{}
	binary.Write(header, binary.LittleEndian, uint32(standardHeaderFlags))
	binary.Write(header, binary.LittleEndian, uint32(0)) // sizeExtra
	binary.Write(header, binary.LittleEndian, algID)
	binary.Write(header, binary.LittleEndian, uint32(algIDHashSHA1))
	binary.Write(header, binary.LittleEndian, uint32(keyBits))
	binary.Write(header, binary.LittleEndian, uint32(providerTypeAES))
	binary.Write(header, binary.LittleEndian, uint32(0)) // reserved1
	binary.Write(header, binary.LittleEndian, uint32(0)) // reserved2
	header.Write(csp)

	out := &bytes.Buffer{}
	binary.Write(out, binary.LittleEndian, uint16(standardMajor))
	binary.Write(out, binary.LittleEndian, uint16(standardMinor))
	binary.Write(out, binary.LittleEndian, uint32(standardHeaderFlags))
	binary.Write(out, binary.LittleEndian, uint32(header.Len()))
	out.Write(header.Bytes())

	binary.Write(out, binary.LittleEndian, uint32(16))
	out.Write(FixSize(d.Salt, 16, 0))
	out.Write(FixSize(d.EncryptedVerifier, 16, 0))
	binary.Write(out, binary.LittleEndian, uint32(32))
	out.Write(FixSize(d.EncryptedVerifierHash, 32, 0))

	return out.Bytes(), nil
}

// decodeStandardDescriptor parses a Standard EncryptionInfo stream.
func decodeStandardDescriptor(b []byte) (standardDescriptor, error) {
	var d standardDescriptor
	if len(b) < 12 {
		return d, ErrMalformedEnvelope
	}
	le := binary.LittleEndian
	major := le.Uint16(b[0:2])
	minor := le.Uint16(b[2:4])
	if major != standardMajor || minor != standardMinor {
		return d, ErrMalformedEnvelope
	}
	flags := le.Uint32(b[4:8])
	headerSize := le.Uint32(b[8:12])
	if flags&flagExternal != 0 {
		return d, ErrUnsupportedAlgorithm
	}
	if flags&flagAES == 0 {
		return d, ErrUnsupportedAlgorithm
	}
	hdrStart := 12
	hdrEnd := hdrStart + int(headerSize)
	if hdrEnd > len(b) || headerSize < 32 {
		return d, ErrMalformedEnvelope
	}
	hdr := b[hdrStart:hdrEnd]

	algID := le.Uint32(hdr[8:12])
	keySize := le.Uint32(hdr[16:20])
	alg, err := standardAlgorithmFromAlgID(algID)
	if err != nil {
		return d, err
	}
	if bits, _ := alg.keyBits(); bits != int(keySize) {
		return d, ErrMalformedEnvelope
	}
	d.Algorithm = alg

	rest := b[hdrEnd:]
	if len(rest) < 4 {
		return d, ErrMalformedEnvelope
	}
	saltSize := le.Uint32(rest[0:4])
	if saltSize != 16 || len(rest) < 4+16+16+4 {
		return d, ErrMalformedEnvelope
	}
	d.Salt = append([]byte(nil), rest[4:20]...)
	d.EncryptedVerifier = append([]byte(nil), rest[20:36]...)
	verifierHashSize := le.Uint32(rest[36:40])
	if verifierHashSize != 32 || len(rest) < 40+32 {
		return d, ErrMalformedEnvelope
	}
	d.EncryptedVerifierHash = append([]byte(nil), rest[40:72]...)
	return d, nil
}
