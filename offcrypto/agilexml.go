package offcrypto

// C4 (Agile half): the <encryption> XML descriptor. Parsed by walking raw
// tokens the same way the rest of this codebase's sibling OOXML readers
// walk relationship/workbook XML -- a map of attribute values per element,
// unknown elements simply falling through unhandled.

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	agileNS         = "http://schemas.microsoft.com/office/2006/encryption"
	agilePasswordNS = "http://schemas.microsoft.com/office/2006/keyEncryptor/password"
)

// agileKeyData mirrors the <keyData> element's attributes.
type agileKeyData struct {
	SaltSize        int
	BlockSize       int
	KeyBits         int
	HashSize        int
	CipherAlgorithm CipherAlgorithm
	CipherChaining  ChainingMode
	HashAlgorithm   HashAlgorithm
	SaltValue       []byte
}

// agilePasswordKeyEncryptor mirrors the password <keyEncryptor>'s
// nested <p:encryptedKey> attributes, plus three in-memory-only fields.
// EncryptAgile and DecryptAgile keep those values in local variables and
// leave these fields unset.
type agilePasswordKeyEncryptor struct {
	SpinCount       int
	SaltSize        int
	BlockSize       int
	KeyBits         int
	HashSize        int
	CipherAlgorithm CipherAlgorithm
	CipherChaining  ChainingMode
	HashAlgorithm   HashAlgorithm
	SaltValue       []byte

	EncryptedVerifierHashInput []byte
	EncryptedVerifierHashValue []byte
	EncryptedKeyValue          []byte

	// in-memory only, never serialised
	VerifierHashInput []byte
	VerifierHash      []byte
	KeyValue          []byte
}

// agileDescriptor is the fully decoded Agile XML document.
type agileDescriptor struct {
	KeyData           agileKeyData
	EncryptedHmacKey  []byte
	EncryptedHmacValue []byte
	KeyEncryptor      agilePasswordKeyEncryptor
}

func b64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func attrInt(vals map[string]string, key string) int {
	n, _ := strconv.Atoi(vals[key])
	return n
}

func attrBytes(vals map[string]string, key string) ([]byte, error) {
	v, ok := vals[key]
	if !ok || v == "" {
		return nil, nil
	}
	return b64(v)
}

// parseAgileDescriptor decodes the Agile <encryption> XML document.
func parseAgileDescriptor(xmlBody []byte) (*agileDescriptor, error) {
	dec := xml.NewDecoder(strings.NewReader(string(xmlBody)))
	d := &agileDescriptor{}
	foundKeyData := false
	foundKeyEncryptor := false

	tok, err := dec.RawToken()
	for ; err == nil; tok, err = dec.RawToken() {
		v, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch v.Name.Local {
		case "encryption", "keyEncryptors", "keyEncryptor":
			// containers only; the password keyEncryptor's payload
			// arrives as a nested <encryptedKey> element below.
		case "keyData":
			vals := attrMap(v.Attr)
			salt, err := attrBytes(vals, "saltValue")
			if err != nil {
				return nil, ErrMalformedEnvelope
			}
			d.KeyData = agileKeyData{
				SaltSize:        attrInt(vals, "saltSize"),
				BlockSize:       attrInt(vals, "blockSize"),
				KeyBits:         attrInt(vals, "keyBits"),
				HashSize:        attrInt(vals, "hashSize"),
				CipherAlgorithm: CipherAlgorithm(vals["cipherAlgorithm"]),
				CipherChaining:  ChainingMode(vals["cipherChaining"]),
				HashAlgorithm:   HashAlgorithm(vals["hashAlgorithm"]),
				SaltValue:       salt,
			}
			foundKeyData = true
		case "dataIntegrity":
			vals := attrMap(v.Attr)
			key, err1 := attrBytes(vals, "encryptedHmacKey")
			val, err2 := attrBytes(vals, "encryptedHmacValue")
			if err1 != nil || err2 != nil {
				return nil, ErrMalformedEnvelope
			}
			d.EncryptedHmacKey = key
			d.EncryptedHmacValue = val
		case "encryptedKey":
			vals := attrMap(v.Attr)
			salt, e1 := attrBytes(vals, "saltValue")
			vhi, e2 := attrBytes(vals, "encryptedVerifierHashInput")
			vhv, e3 := attrBytes(vals, "encryptedVerifierHashValue")
			kv, e4 := attrBytes(vals, "encryptedKeyValue")
			if e1 != nil || e2 != nil || e3 != nil || e4 != nil {
				return nil, ErrMalformedEnvelope
			}
			d.KeyEncryptor = agilePasswordKeyEncryptor{
				SpinCount:                  attrInt(vals, "spinCount"),
				SaltSize:                   attrInt(vals, "saltSize"),
				BlockSize:                  attrInt(vals, "blockSize"),
				KeyBits:                    attrInt(vals, "keyBits"),
				HashSize:                   attrInt(vals, "hashSize"),
				CipherAlgorithm:            CipherAlgorithm(vals["cipherAlgorithm"]),
				CipherChaining:             ChainingMode(vals["cipherChaining"]),
				HashAlgorithm:              HashAlgorithm(vals["hashAlgorithm"]),
				SaltValue:                  salt,
				EncryptedVerifierHashInput: vhi,
				EncryptedVerifierHashValue: vhv,
				EncryptedKeyValue:          kv,
			}
			foundKeyEncryptor = true
		}
	}
	if err != nil && err != io.EOF {
		return nil, err
	}
	if !foundKeyData || !foundKeyEncryptor {
		return nil, ErrMalformedEnvelope
	}
	return d, nil
}

func attrMap(attrs []xml.Attr) map[string]string {
	vals := make(map[string]string, len(attrs))
	for _, a := range attrs {
		vals[a.Name.Local] = a.Value
	}
	return vals
}

// buildAgileDescriptor renders the descriptor back into the canonical XML
// text: fixed element/attribute order, standard base64 alphabet, so that
// output is deterministic across runs given identical inputs.
func buildAgileDescriptor(d *agileDescriptor) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	fmt.Fprintf(&b, `<encryption xmlns="%s" xmlns:p="%s">`, agileNS, agilePasswordNS)

	kd := d.KeyData
	fmt.Fprintf(&b, `<keyData saltSize="%d" blockSize="%d" keyBits="%d" hashSize="%d" cipherAlgorithm="%s" cipherChaining="%s" hashAlgorithm="%s" saltValue="%s"/>`,
		kd.SaltSize, kd.BlockSize, kd.KeyBits, kd.HashSize, kd.CipherAlgorithm, kd.CipherChaining, kd.HashAlgorithm,
		base64.StdEncoding.EncodeToString(kd.SaltValue))

	fmt.Fprintf(&b, `<dataIntegrity encryptedHmacKey="%s" encryptedHmacValue="%s"/>`,
		base64.StdEncoding.EncodeToString(d.EncryptedHmacKey),
		base64.StdEncoding.EncodeToString(d.EncryptedHmacValue))

	ke := d.KeyEncryptor
	b.WriteString(`<keyEncryptors>`)
	fmt.Fprintf(&b, `<keyEncryptor uri="%s">`, agilePasswordNS)
	fmt.Fprintf(&b, `<p:encryptedKey spinCount="%d" saltSize="%d" blockSize="%d" keyBits="%d" hashSize="%d" cipherAlgorithm="%s" cipherChaining="%s" hashAlgorithm="%s" saltValue="%s" encryptedVerifierHashInput="%s" encryptedVerifierHashValue="%s" encryptedKeyValue="%s"/>`,
		ke.SpinCount, ke.SaltSize, ke.BlockSize, ke.KeyBits, ke.HashSize, ke.CipherAlgorithm, ke.CipherChaining, ke.HashAlgorithm,
		base64.StdEncoding.EncodeToString(ke.SaltValue),
		base64.StdEncoding.EncodeToString(ke.EncryptedVerifierHashInput),
		base64.StdEncoding.EncodeToString(ke.EncryptedVerifierHashValue),
		base64.StdEncoding.EncodeToString(ke.EncryptedKeyValue))
	b.WriteString(`</keyEncryptor>`)
	b.WriteString(`</keyEncryptors>`)
	b.WriteString(`</encryption>`)
	return []byte(b.String())
}

// encodeAgileEncryptionInfo prefixes the fixed 8-byte Agile marker onto
// the rendered XML body.
func encodeAgileEncryptionInfo(d *agileDescriptor) []byte {
	out := make([]byte, 0, 8+256)
	out = append(out, byte(agileMajor), 0, byte(agileMinor), 0)
	out = append(out, byte(agileReserved), 0, 0, 0)
	out = append(out, buildAgileDescriptor(d)...)
	return out
}

// decodeAgileEncryptionInfo strips the 8-byte marker, checking only that
// it is present and not its values, then parses the XML body.
func decodeAgileEncryptionInfo(b []byte) (*agileDescriptor, error) {
	if len(b) < 8 {
		return nil, ErrMalformedEnvelope
	}
	return parseAgileDescriptor(b[8:])
}
